// pkg/event/event.go
package event

import (
	"sync"
)

// Type represents the type of event
type Type string

// Common event types
const (
	AircraftSpawned    Type = "aircraft_spawned"
	AircraftRemoved    Type = "aircraft_removed"
	ThrottleChanged    Type = "throttle_changed"
	TickCompleted      Type = "tick_completed"
	TickFault          Type = "tick_fault"
	ClientConnected    Type = "client_connected"
	ClientDisconnected Type = "client_disconnected"
	SimulationStarted  Type = "simulation_started"
	SimulationStopped  Type = "simulation_stopped"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription is a handle to a registered handler
type Subscription struct {
	ID     uint64
	Cancel func()
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	handlers map[Type][]subscriber
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Cancel: func() { b.unsubscribe(eventType, id) },
	}
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// Publish sends an event to all subscribed handlers. Handlers run
// synchronously on the publishing goroutine.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.handlers[event.GetType()]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Specific event implementations

// AircraftEvent contains information about aircraft lifecycle and control
type AircraftEvent struct {
	BaseEvent
	AircraftID uint64
	Name       string
	Value      float64
}

// NewAircraftEvent creates a new aircraft event
func NewAircraftEvent(eventType Type, source interface{}, aircraftID uint64, name string) *AircraftEvent {
	return &AircraftEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		AircraftID: aircraftID,
		Name:       name,
	}
}

// TickEvent reports a completed simulation tick
type TickEvent struct {
	BaseEvent
	Tick     uint64
	SimTime  float64
	Aircraft int
	Faults   int
}

// NewTickEvent creates a tick completion event
func NewTickEvent(source interface{}, tick uint64, simTime float64, aircraft, faults int) *TickEvent {
	return &TickEvent{
		BaseEvent: BaseEvent{
			EventType: TickCompleted,
			Source:    source,
		},
		Tick:     tick,
		SimTime:  simTime,
		Aircraft: aircraft,
		Faults:   faults,
	}
}

// FaultEvent reports a force generator that produced a non-finite force
type FaultEvent struct {
	BaseEvent
	AircraftID uint64
	Tick       uint64
	Err        error
}

// NewFaultEvent creates a tick fault event
func NewFaultEvent(source interface{}, aircraftID, tick uint64, err error) *FaultEvent {
	return &FaultEvent{
		BaseEvent: BaseEvent{
			EventType: TickFault,
			Source:    source,
		},
		AircraftID: aircraftID,
		Tick:       tick,
		Err:        err,
	}
}

// ClientEvent contains information about telemetry client sessions
type ClientEvent struct {
	BaseEvent
	ClientID   uint64
	AircraftID uint64
}

// NewClientEvent creates a new client session event
func NewClientEvent(eventType Type, source interface{}, clientID, aircraftID uint64) *ClientEvent {
	return &ClientEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		ClientID:   clientID,
		AircraftID: aircraftID,
	}
}
