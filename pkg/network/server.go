// pkg/network/server.go
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-dogfight/pkg/config"
	"github.com/opd-ai/go-dogfight/pkg/engine"
	"github.com/opd-ai/go-dogfight/pkg/entity"
	"github.com/opd-ai/go-dogfight/pkg/event"
	"github.com/opd-ai/go-dogfight/pkg/logging"
	"github.com/opd-ai/go-dogfight/pkg/validation"
)

// outboxSize is the number of frames queued per client before telemetry
// frames are dropped
const outboxSize = 16

// DefaultMaxClients applies when the network config leaves maxClients unset
const DefaultMaxClients = 32

// Server streams telemetry to connected pilots and applies their control input
type Server struct {
	listener    net.Listener
	sim         *engine.Simulation
	clients     map[uint64]*Client
	conns       map[net.Conn]struct{} // every open connection, including handshakes
	clientsLock sync.RWMutex
	running     atomic.Bool
	nextID      atomic.Uint64
	wg          sync.WaitGroup

	maxClients    int
	ticksPerState int
	readTimeout   time.Duration
	writeTimeout  time.Duration

	validator *validation.MessageValidator
	logger    *logging.Logger
	sub       *event.Subscription
}

// Client represents a connected pilot or observer
type Client struct {
	ID           uint64
	Conn         net.Conn
	AircraftID   entity.ID // zero for observers
	AircraftName string
	ConnectedAt  time.Time

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates a telemetry server for sim. Client limits come from the
// simulation's network config; timeouts and rate limits from envConfig.
func NewServer(sim *engine.Simulation, envConfig *config.EnvironmentConfig, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogger()
	}
	nc := sim.Config.NetworkConfig

	ticksPerState := nc.TicksPerState
	if ticksPerState < 1 {
		ticksPerState = 1
	}
	maxClients := nc.MaxClients
	if maxClients < 1 {
		maxClients = DefaultMaxClients
	}

	return &Server{
		sim:           sim,
		clients:       make(map[uint64]*Client),
		conns:         make(map[net.Conn]struct{}),
		maxClients:    maxClients,
		ticksPerState: ticksPerState,
		readTimeout:   envConfig.ReadTimeout,
		writeTimeout:  envConfig.WriteTimeout,
		validator:     validation.NewMessageValidator(envConfig.ControlRateLimit),
		logger:        logger.With("component", "network"),
	}
}

// Start listens on address and begins streaming telemetry
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.running.Store(true)
	s.sub = s.sim.EventBus.Subscribe(event.TickCompleted, s.onTick)

	s.wg.Add(1)
	go s.acceptConnections()

	s.logger.Info(context.Background(), "telemetry server started", "address", listener.Addr().String())
	return nil
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenerAddress returns the listening address, or "" when stopped
func (s *Server) ListenerAddress() string {
	if !s.running.Load() {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and every client connection
func (s *Server) Stop() {
	if !s.running.Swap(false) {
		return
	}

	if s.sub != nil {
		s.sub.Cancel()
	}
	s.listener.Close()

	s.clientsLock.RLock()
	for _, client := range s.clients {
		client.close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.clientsLock.RUnlock()

	s.wg.Wait()
	s.validator.Close()

	s.logger.Info(context.Background(), "telemetry server stopped")
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return len(s.clients)
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				s.logger.Warn(context.Background(), "error accepting connection", "error", err.Error())
			}
			continue
		}

		if s.ClientCount() >= s.maxClients {
			s.logger.Warn(context.Background(), "rejecting connection, server full", "remote", conn.RemoteAddr().String())
			s.reject(conn, "server full")
			conn.Close()
			continue
		}

		s.clientsLock.Lock()
		s.conns[conn] = struct{}{}
		s.clientsLock.Unlock()
		if !s.running.Load() {
			conn.Close()
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection performs the handshake and then serves the client
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.clientsLock.Lock()
		delete(s.conns, conn)
		s.clientsLock.Unlock()
	}()

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	msgType, data, err := readMessage(conn)
	if err != nil {
		s.logger.Debug(context.Background(), "error reading connect request", "error", err.Error())
		return
	}
	if msgType != ConnectRequest {
		s.reject(conn, fmt.Sprintf("expected connect request, got message type %d", msgType))
		return
	}

	var req ConnectRequestData
	if err := json.Unmarshal(data, &req); err != nil {
		s.reject(conn, "malformed connect request")
		return
	}

	client, err := s.register(conn, req.Aircraft)
	if err != nil {
		s.logger.Info(context.Background(), "connection rejected", "aircraft", req.Aircraft, "error", err.Error())
		s.reject(conn, err.Error())
		return
	}
	defer s.removeClient(client)

	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := writeMessage(conn, ConnectResponse, ConnectResponseData{
		Success:    true,
		ClientID:   client.ID,
		AircraftID: uint64(client.AircraftID),
		TickRate:   s.sim.Config.TickRate,
	}); err != nil {
		return
	}

	s.logger.WithAircraft(uint64(client.AircraftID), client.AircraftName).Info(context.Background(), "client connected",
		"client_id", client.ID,
		"remote", conn.RemoteAddr().String(),
	)
	s.sim.EventBus.Publish(event.NewClientEvent(event.ClientConnected, s, client.ID, uint64(client.AircraftID)))

	s.wg.Add(1)
	go s.writeLoop(client)
	s.handleClientMessages(client)
}

// register resolves the requested aircraft and claims it for a new client
func (s *Server) register(conn net.Conn, aircraftName string) (*Client, error) {
	client := &Client{
		Conn:        conn,
		ConnectedAt: time.Now(),
		outbox:      make(chan []byte, outboxSize),
		done:        make(chan struct{}),
	}

	if aircraftName != "" {
		name, err := validation.ValidateAircraftName(aircraftName)
		if err != nil {
			return nil, err
		}
		id, ok := s.sim.FindAircraft(name)
		if !ok {
			return nil, fmt.Errorf("unknown aircraft %q", name)
		}
		client.AircraftID = id
		client.AircraftName = name
	}

	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	if len(s.clients) >= s.maxClients {
		return nil, errors.New("server full")
	}
	if client.AircraftID != 0 {
		for _, other := range s.clients {
			if other.AircraftID == client.AircraftID {
				return nil, fmt.Errorf("aircraft %q is already controlled", client.AircraftName)
			}
		}
	}

	client.ID = s.nextID.Add(1)
	s.clients[client.ID] = client
	return client, nil
}

func (s *Server) reject(conn net.Conn, reason string) {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	writeMessage(conn, ConnectResponse, ConnectResponseData{Success: false, Error: reason})
}

// handleClientMessages processes messages until the client disconnects
func (s *Server) handleClientMessages(client *Client) {
	for s.running.Load() {
		client.Conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		msgType, data, err := readMessage(client.Conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug(context.Background(), "error reading from client", "client_id", client.ID, "error", err.Error())
			}
			return
		}

		switch msgType {
		case ControlInput:
			if err := s.handleControlInput(client, data); err != nil {
				s.send(client, ControlRejected, ControlRejectedData{Error: err.Error()})
			}

		case PingRequest:
			var echo interface{}
			if len(data) > 0 {
				echo = json.RawMessage(data)
			}
			s.send(client, PingResponse, echo)

		case DisconnectNotification:
			s.logger.Debug(context.Background(), "client disconnecting", "client_id", client.ID)
			return

		default:
			s.logger.Debug(context.Background(), "unknown message type", "client_id", client.ID, "type", int(msgType))
		}
	}
}

// handleControlInput validates a control message and applies it to the
// client's aircraft
func (s *Server) handleControlInput(client *Client, data []byte) error {
	if client.AircraftID == 0 {
		return errors.New("observers cannot send control input")
	}
	if err := s.validator.ValidateMessage(data, strconv.FormatUint(client.ID, 10)); err != nil {
		return err
	}

	var input ControlInputData
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("malformed control input: %w", err)
	}

	if input.Throttle != nil {
		throttle, err := validation.ValidateThrottleInput(*input.Throttle)
		if err != nil {
			return err
		}
		if err := s.sim.SetThrottleInput(client.AircraftID, throttle); err != nil {
			return err
		}
	}
	if input.AngularVelocity != nil {
		if err := validation.ValidateAngularVelocity(*input.AngularVelocity); err != nil {
			return err
		}
		if err := s.sim.SetAngularVelocity(client.AircraftID, *input.AngularVelocity); err != nil {
			return err
		}
	}
	return nil
}

// removeClient releases the client's aircraft back to idle
func (s *Server) removeClient(client *Client) {
	client.close()

	s.clientsLock.Lock()
	delete(s.clients, client.ID)
	s.clientsLock.Unlock()
	s.validator.Forget(strconv.FormatUint(client.ID, 10))

	if client.AircraftID != 0 {
		// the aircraft may have been removed in the meantime
		_ = s.sim.SetThrottleInput(client.AircraftID, 0)
		_ = s.sim.SetAngularVelocity(client.AircraftID, mgl64.Vec3{})
	}

	s.logger.WithAircraft(uint64(client.AircraftID), client.AircraftName).Info(context.Background(), "client removed", "client_id", client.ID)
	s.sim.EventBus.Publish(event.NewClientEvent(event.ClientDisconnected, s, client.ID, uint64(client.AircraftID)))
}

// onTick broadcasts the simulation state every ticksPerState ticks
func (s *Server) onTick(e event.Event) {
	tick, ok := e.(*event.TickEvent)
	if !ok || tick.Tick%uint64(s.ticksPerState) != 0 {
		return
	}
	s.broadcastState()
}

// broadcastState queues the current simulation state for every client.
// Slow clients drop frames rather than stall the tick loop.
func (s *Server) broadcastState() {
	frame, err := encodeFrame(TelemetryUpdate, s.sim.GetSimState())
	if err != nil {
		s.logger.Warn(context.Background(), "failed to encode telemetry", "error", err.Error())
		return
	}

	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()

	for _, client := range s.clients {
		select {
		case client.outbox <- frame:
		default:
			s.logger.Debug(context.Background(), "dropping telemetry for slow client", "client_id", client.ID)
		}
	}
}

// send queues a reply for the client, waiting for room in its outbox
func (s *Server) send(client *Client, msgType MessageType, msg interface{}) {
	frame, err := encodeFrame(msgType, msg)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to encode message", "type", int(msgType), "error", err.Error())
		return
	}
	select {
	case client.outbox <- frame:
	case <-client.done:
	}
}

// writeLoop is the only writer on an established client connection
func (s *Server) writeLoop(client *Client) {
	defer s.wg.Done()

	for {
		select {
		case frame := <-client.outbox:
			client.Conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if _, err := client.Conn.Write(frame); err != nil {
				s.logger.Debug(context.Background(), "error writing to client", "client_id", client.ID, "error", err.Error())
				client.close()
				return
			}
		case <-client.done:
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}
