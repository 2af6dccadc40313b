// Package api serves the simulation over HTTP: aircraft telemetry as JSON,
// operator control of throttle and steering, Prometheus metrics and the
// health endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/mux"

	"github.com/opd-ai/go-dogfight/pkg/engine"
	"github.com/opd-ai/go-dogfight/pkg/entity"
	"github.com/opd-ai/go-dogfight/pkg/health"
	"github.com/opd-ai/go-dogfight/pkg/logging"
	"github.com/opd-ai/go-dogfight/pkg/validation"
)

const shutdownGrace = 5 * time.Second

// Server routes HTTP requests to a simulation
type Server struct {
	sim    *engine.Simulation
	router *mux.Router
	logger *logging.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewServer builds the router. metrics and checker may be nil, in which
// case their endpoints are not registered.
func NewServer(sim *engine.Simulation, metrics http.Handler, checker *health.HealthChecker, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogger()
	}
	s := &Server{
		sim:          sim,
		router:       mux.NewRouter(),
		logger:       logger.With("component", "api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.router.Use(s.correlate)
	s.router.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	s.router.HandleFunc("/aircraft", s.listAircraft).Methods(http.MethodGet)
	s.router.HandleFunc("/aircraft/{id:[0-9]+}", s.getAircraft).Methods(http.MethodGet)
	s.router.HandleFunc("/aircraft/{id:[0-9]+}/throttle", s.putThrottle).Methods(http.MethodPut)
	s.router.HandleFunc("/aircraft/{id:[0-9]+}/angular-velocity", s.putAngularVelocity).Methods(http.MethodPut)

	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	if checker != nil {
		s.router.HandleFunc("/health", checker.LivenessHandler).Methods(http.MethodGet)
		s.router.HandleFunc("/ready", checker.ReadinessHandler).Methods(http.MethodGet)
	}
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is cancelled, then drains open requests
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	s.logger.Info(ctx, "http api listening", "address", l.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// correlate tags every request with a correlation id and logs it
func (s *Server) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = logging.GenerateCorrelationID()
		}
		ctx := logging.WithCorrelationID(r.Context(), id)
		w.Header().Set("X-Correlation-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Debug(ctx, "http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.sim.GetSimState())
}

func (s *Server) listAircraft(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.sim.Snapshots())
}

func (s *Server) getAircraft(w http.ResponseWriter, r *http.Request) {
	id, ok := s.aircraftID(w, r)
	if !ok {
		return
	}
	snapshot, err := s.sim.GetAircraftState(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, snapshot)
}

type throttleRequest struct {
	Input *float64 `json:"input"`
}

func (s *Server) putThrottle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.aircraftID(w, r)
	if !ok {
		return
	}

	var req throttleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Input == nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "expected {\"input\": number}"})
		return
	}
	input, err := validation.ValidateThrottleInput(*req.Input)
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	if err := s.sim.SetThrottleInput(id, input); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type angularVelocityRequest struct {
	AngularVelocity *mgl64.Vec3 `json:"angularVelocity"`
}

func (s *Server) putAngularVelocity(w http.ResponseWriter, r *http.Request) {
	id, ok := s.aircraftID(w, r)
	if !ok {
		return
	}

	var req angularVelocityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AngularVelocity == nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "expected {\"angularVelocity\": [x, y, z]}"})
		return
	}
	if err := validation.ValidateAngularVelocity(*req.AngularVelocity); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	if err := s.sim.SetAngularVelocity(id, *req.AngularVelocity); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) aircraftID(w http.ResponseWriter, r *http.Request) (entity.ID, bool) {
	raw, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err == nil {
		err = validation.ValidateAircraftID(raw)
	}
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "invalid aircraft id"})
		return 0, false
	}
	return entity.ID(raw), true
}

// writeError maps simulation errors to status codes
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, engine.ErrAircraftNotFound) {
		status = http.StatusNotFound
	} else {
		s.logger.Error(r.Context(), "request failed", err, "path", r.URL.Path)
	}
	s.writeJSON(w, r, status, errorBody{Error: err.Error()})
}

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes v with status. The status is already sent when encoding
// fails, so the error can only be logged.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), "failed to encode response", err, "path", r.URL.Path, "status", status)
	}
}
