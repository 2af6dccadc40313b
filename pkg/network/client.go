// pkg/network/client.go
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/config"
	"github.com/opd-ai/go-dogfight/pkg/engine"
	"github.com/opd-ai/go-dogfight/pkg/event"
	"github.com/opd-ai/go-dogfight/pkg/logging"
	"github.com/opd-ai/go-dogfight/pkg/validation"
)

// Client event types
const (
	ControlInputRejected  event.Type = "control_input_rejected"
	ClientReconnected     event.Type = "client_reconnected"
	ClientReconnectFailed event.Type = "client_reconnect_failed"
)

// ErrNotConnected is returned when sending without an established connection
var ErrNotConnected = errors.New("not connected")

// RejectionEvent carries the server's reason for refusing a control message
type RejectionEvent struct {
	event.BaseEvent
	Reason string
}

// PilotClient connects to a telemetry server, receives simulation state
// and sends control input for one aircraft
type PilotClient struct {
	conn           net.Conn
	clientID       uint64
	aircraftID     uint64
	tickRate       int
	serverAddress  string
	aircraftName   string
	connected      bool
	receivedStates chan *engine.SimState
	eventBus       *event.Bus
	networkService *NetworkService
	logger         *logging.Logger

	mu      sync.Mutex // guards connection state
	writeMu sync.Mutex // serializes frames on conn

	latency              time.Duration
	pingInterval         time.Duration
	reconnectDelay       time.Duration
	maxReconnectAttempts int
	AutoReconnect        bool

	ctx               context.Context
	cancel            context.CancelFunc
	stopReconnect     context.CancelFunc
	connectionTimeout time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
}

// NewPilotClient creates a client publishing connection events on eventBus.
// A nil envConfig is loaded from the environment.
func NewPilotClient(eventBus *event.Bus, envConfig *config.EnvironmentConfig, logger *logging.Logger) *PilotClient {
	if envConfig == nil {
		var err error
		if envConfig, err = config.LoadConfigFromEnv(); err != nil {
			envConfig = &config.EnvironmentConfig{
				ReadTimeout:                       30 * time.Second,
				WriteTimeout:                      30 * time.Second,
				CircuitBreakerMaxRequests:         3,
				CircuitBreakerInterval:            60 * time.Second,
				CircuitBreakerTimeout:             30 * time.Second,
				CircuitBreakerMaxConsecutiveFails: 5,
			}
		}
	}
	if logger == nil {
		logger = logging.NewLogger()
	}

	return &PilotClient{
		receivedStates:       make(chan *engine.SimState, 10),
		eventBus:             eventBus,
		networkService:       NewNetworkService(envConfig, logger),
		logger:               logger.With("component", "pilot_client"),
		pingInterval:         5 * time.Second,
		reconnectDelay:       3 * time.Second,
		maxReconnectAttempts: 5,
		connectionTimeout:    10 * time.Second,
		readTimeout:          envConfig.ReadTimeout,
		writeTimeout:         envConfig.WriteTimeout,
	}
}

// Connect dials the server and takes control of aircraftName. An empty
// name connects as an observer. A pending automatic reconnect is abandoned.
func (c *PilotClient) Connect(ctx context.Context, address, aircraftName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelReconnectLocked()
	return c.connectLocked(ctx, address, aircraftName)
}

// reconnect is Connect for the reconnect loop. It gives up once ctx is
// cancelled by Disconnect or an explicit Connect.
func (c *PilotClient) reconnect(ctx context.Context, address, aircraftName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return c.connectLocked(ctx, address, aircraftName)
}

// connectLocked dials and handshakes. c.mu must be held.
func (c *PilotClient) connectLocked(ctx context.Context, address, aircraftName string) error {
	c.closeLocked()
	c.serverAddress = address
	c.aircraftName = aircraftName

	var conn net.Conn
	err := c.networkService.Execute(ctx, func() error {
		dialCtx, cancel := context.WithTimeout(ctx, c.connectionTimeout)
		defer cancel()

		var dialer net.Dialer
		var err error
		conn, err = dialer.DialContext(dialCtx, "tcp", address)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	resp, err := c.handshake(conn, aircraftName)
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.clientID = resp.ClientID
	c.aircraftID = resp.AircraftID
	c.tickRate = resp.TickRate
	c.connected = true
	c.ctx, c.cancel = context.WithCancel(context.Background())

	go c.messageLoop(c.ctx, conn)
	go c.pingLoop(c.ctx)

	c.logger.Info(ctx, "connected to server", "address", address, "aircraft", aircraftName, "client_id", resp.ClientID)
	return nil
}

// handshake sends the connect request and validates the server's response
func (c *PilotClient) handshake(conn net.Conn, aircraftName string) (*ConnectResponseData, error) {
	conn.SetDeadline(time.Now().Add(c.connectionTimeout))
	defer conn.SetDeadline(time.Time{})

	if err := writeMessage(conn, ConnectRequest, ConnectRequestData{Aircraft: aircraftName}); err != nil {
		return nil, fmt.Errorf("failed to send connect request: %w", err)
	}

	msgType, data, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read connect response: %w", err)
	}
	if msgType != ConnectResponse {
		return nil, fmt.Errorf("unexpected response type: %d", msgType)
	}

	var resp ConnectResponseData
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse connect response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("server rejected connection: %s", resp.Error)
	}
	return &resp, nil
}

// Disconnect notifies the server and closes the connection. It also stops
// any automatic reconnect in progress.
func (c *PilotClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelReconnectLocked()
	if !c.connected {
		return nil
	}

	c.writeFrame(c.conn, DisconnectNotification, nil)
	c.closeLocked()
	return nil
}

func (c *PilotClient) cancelReconnectLocked() {
	if c.stopReconnect != nil {
		c.stopReconnect()
		c.stopReconnect = nil
	}
}

// closeLocked stops background loops and closes the connection. c.mu must be held.
func (c *PilotClient) closeLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// SetThrottle sends a throttle command in [-1, 1]
func (c *PilotClient) SetThrottle(input float64) error {
	throttle, err := validation.ValidateThrottleInput(input)
	if err != nil {
		return err
	}
	return c.SendControl(ControlInputData{Throttle: &throttle})
}

// SetAngularVelocity sends a steering rate in world frame rad/s
func (c *PilotClient) SetAngularVelocity(w mgl64.Vec3) error {
	if err := validation.ValidateAngularVelocity(w); err != nil {
		return err
	}
	return c.SendControl(ControlInputData{AngularVelocity: &w})
}

// SendControl sends a control message to the server
func (c *PilotClient) SendControl(input ControlInputData) error {
	return c.sendMessage(ControlInput, input)
}

// IsConnected reports whether the client has a live connection
func (c *PilotClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ClientID returns the id assigned by the server
func (c *PilotClient) ClientID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// AircraftID returns the id of the controlled aircraft, zero for observers
func (c *PilotClient) AircraftID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aircraftID
}

// TickRate returns the server's simulation tick rate
func (c *PilotClient) TickRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickRate
}

// GetLatency returns the last measured round trip time
func (c *PilotClient) GetLatency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

// States returns the channel of received simulation states
func (c *PilotClient) States() <-chan *engine.SimState {
	return c.receivedStates
}

// messageLoop handles incoming messages until conn fails or ctx ends
func (c *PilotClient) messageLoop(ctx context.Context, conn net.Conn) {
	for {
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		msgType, data, err := readMessage(conn)
		if err != nil {
			if ctx.Err() == nil {
				c.handleDisconnect(ctx, err)
			}
			return
		}

		switch msgType {
		case TelemetryUpdate:
			c.handleTelemetryUpdate(data)
		case ControlRejected:
			c.handleControlRejected(data)
		case PingResponse:
			c.handlePingResponse(data)
		}
	}
}

// handleTelemetryUpdate forwards a state to the channel, dropping it when full
func (c *PilotClient) handleTelemetryUpdate(data []byte) {
	var state engine.SimState
	if err := json.Unmarshal(data, &state); err != nil {
		c.logger.Debug(context.Background(), "malformed telemetry update", "error", err.Error())
		return
	}

	select {
	case c.receivedStates <- &state:
	default:
	}
}

func (c *PilotClient) handleControlRejected(data []byte) {
	var rejected ControlRejectedData
	if err := json.Unmarshal(data, &rejected); err != nil {
		return
	}

	c.logger.Warn(context.Background(), "control input rejected", "reason", rejected.Error)
	c.eventBus.Publish(&RejectionEvent{
		BaseEvent: event.BaseEvent{EventType: ControlInputRejected, Source: c},
		Reason:    rejected.Error,
	})
}

func (c *PilotClient) handlePingResponse(data []byte) {
	var sent time.Time
	if err := json.Unmarshal(data, &sent); err != nil {
		return
	}

	c.mu.Lock()
	c.latency = time.Since(sent)
	c.mu.Unlock()
}

// pingLoop periodically measures latency and keeps the server's read
// deadline from expiring
func (c *PilotClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sendMessage(PingRequest, time.Now())
		}
	}
}

// handleDisconnect handles an unexpected loss of connection
func (c *PilotClient) handleDisconnect(ctx context.Context, err error) {
	c.mu.Lock()
	if c.ctx != ctx || !c.connected {
		c.mu.Unlock()
		return
	}
	c.closeLocked()
	address, aircraft := c.serverAddress, c.aircraftName
	var reconnectCtx context.Context
	if c.AutoReconnect {
		c.cancelReconnectLocked()
		reconnectCtx, c.stopReconnect = context.WithCancel(context.Background())
	}
	c.mu.Unlock()

	c.logger.Warn(context.Background(), "connection lost", "error", err.Error())
	c.eventBus.Publish(&event.BaseEvent{EventType: event.ClientDisconnected, Source: c})

	if reconnectCtx != nil {
		go c.attemptReconnect(reconnectCtx, address, aircraft)
	}
}

// attemptReconnect tries to reconnect with the original aircraft until ctx
// is cancelled. The circuit breaker cuts the attempts short when the server
// stays down.
func (c *PilotClient) attemptReconnect(ctx context.Context, address, aircraft string) {
	for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}

		err := c.reconnect(ctx, address, aircraft)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			c.eventBus.Publish(&event.BaseEvent{EventType: ClientReconnected, Source: c})
			return
		}
		c.logger.Debug(context.Background(), "reconnect attempt failed", "attempt", attempt, "error", err.Error())
	}

	c.eventBus.Publish(&event.BaseEvent{EventType: ClientReconnectFailed, Source: c})
}

// sendMessage sends a message on the current connection
func (c *PilotClient) sendMessage(msgType MessageType, msg interface{}) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	return c.writeFrame(conn, msgType, msg)
}

func (c *PilotClient) writeFrame(conn net.Conn, msgType MessageType, msg interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return writeMessage(conn, msgType, msg)
}
