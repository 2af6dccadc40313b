// pkg/config/env_config.go
package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Environment variable names
const (
	EnvServerAddr         = "DOGFIGHT_SERVER_ADDR"
	EnvServerPort         = "DOGFIGHT_SERVER_PORT"
	EnvMaxClients         = "DOGFIGHT_MAX_CLIENTS"
	EnvReadTimeout        = "DOGFIGHT_READ_TIMEOUT"
	EnvWriteTimeout       = "DOGFIGHT_WRITE_TIMEOUT"
	EnvUpdateRate         = "DOGFIGHT_UPDATE_RATE"
	EnvTicksPerState      = "DOGFIGHT_TICKS_PER_STATE"
	EnvTickRate           = "DOGFIGHT_TICK_RATE"
	EnvHTTPAddr           = "DOGFIGHT_HTTP_ADDR"
	EnvGravity            = "DOGFIGHT_GRAVITY"
	EnvControlRateLimit   = "DOGFIGHT_CONTROL_RATE_LIMIT"
	EnvCBMaxRequests      = "DOGFIGHT_CB_MAX_REQUESTS"
	EnvCBInterval         = "DOGFIGHT_CB_INTERVAL"
	EnvCBTimeout          = "DOGFIGHT_CB_TIMEOUT"
	EnvCBMaxFails         = "DOGFIGHT_CB_MAX_FAILS"
	EnvMaxMemoryMB        = "DOGFIGHT_MAX_MEMORY_MB"
	EnvMaxGoroutines      = "DOGFIGHT_MAX_GOROUTINES"
	EnvShutdownTimeout    = "DOGFIGHT_SHUTDOWN_TIMEOUT"
	EnvResourceCheckEvery = "DOGFIGHT_RESOURCE_CHECK_INTERVAL"
)

// EnvironmentConfig holds deployment settings read from DOGFIGHT_* variables
type EnvironmentConfig struct {
	ServerAddr    string
	ServerPort    int
	MaxClients    int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	UpdateRate    int
	TicksPerState int
	TickRate      int
	HTTPAddr      string
	Gravity       float64 // downward acceleration, m/s²

	// ControlRateLimit is the number of control messages accepted per
	// client per second.
	ControlRateLimit int

	// Circuit Breaker Configuration
	CircuitBreakerMaxRequests         uint32
	CircuitBreakerInterval            time.Duration
	CircuitBreakerTimeout             time.Duration
	CircuitBreakerMaxConsecutiveFails uint32

	// Resource Management Configuration
	MaxMemoryMB           int64
	MaxGoroutines         int
	ShutdownTimeout       time.Duration
	ResourceCheckInterval time.Duration
}

// ValidationError describes a single invalid environment setting
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

// LoadConfigFromEnv reads and validates the environment configuration
func LoadConfigFromEnv() (*EnvironmentConfig, error) {
	config := &EnvironmentConfig{
		ServerAddr:    getEnvOrDefault(EnvServerAddr, "localhost"),
		ServerPort:    getEnvAsIntOrDefault(EnvServerPort, 4566),
		MaxClients:    getEnvAsIntOrDefault(EnvMaxClients, 32),
		ReadTimeout:   getEnvAsDurationOrDefault(EnvReadTimeout, 30*time.Second),
		WriteTimeout:  getEnvAsDurationOrDefault(EnvWriteTimeout, 30*time.Second),
		UpdateRate:    getEnvAsIntOrDefault(EnvUpdateRate, 20),
		TicksPerState: getEnvAsIntOrDefault(EnvTicksPerState, 3),
		TickRate:      getEnvAsIntOrDefault(EnvTickRate, 50),
		HTTPAddr:      getEnvOrDefault(EnvHTTPAddr, "localhost:8080"),
		Gravity:       getEnvAsFloatOrDefault(EnvGravity, 9.81),

		ControlRateLimit: getEnvAsIntOrDefault(EnvControlRateLimit, 60),

		CircuitBreakerMaxRequests:         uint32(getEnvAsIntOrDefault(EnvCBMaxRequests, 3)),
		CircuitBreakerInterval:            getEnvAsDurationOrDefault(EnvCBInterval, 60*time.Second),
		CircuitBreakerTimeout:             getEnvAsDurationOrDefault(EnvCBTimeout, 30*time.Second),
		CircuitBreakerMaxConsecutiveFails: uint32(getEnvAsIntOrDefault(EnvCBMaxFails, 5)),

		MaxMemoryMB:           int64(getEnvAsIntOrDefault(EnvMaxMemoryMB, 500)),
		MaxGoroutines:         getEnvAsIntOrDefault(EnvMaxGoroutines, 100),
		ShutdownTimeout:       getEnvAsDurationOrDefault(EnvShutdownTimeout, 30*time.Second),
		ResourceCheckInterval: getEnvAsDurationOrDefault(EnvResourceCheckEvery, 10*time.Second),
	}

	if err := validateEnvironmentConfig(config); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	return config, nil
}

// Validate checks every field against its allowed range
func (c *EnvironmentConfig) Validate() error {
	return validateEnvironmentConfig(c)
}

func validateEnvironmentConfig(c *EnvironmentConfig) error {
	invalid := func(field string, value interface{}, msg string) error {
		return &ValidationError{Field: field, Value: value, Message: msg}
	}

	switch {
	case c.ServerAddr == "":
		return invalid("ServerAddr", c.ServerAddr, "must not be empty")
	case c.ServerPort < 1024 || c.ServerPort > 65535:
		return invalid("ServerPort", c.ServerPort, "must be between 1024 and 65535")
	case c.MaxClients < 1 || c.MaxClients > 1000:
		return invalid("MaxClients", c.MaxClients, "must be between 1 and 1000")
	case c.ReadTimeout < time.Second || c.ReadTimeout > time.Minute:
		return invalid("ReadTimeout", c.ReadTimeout, "must be between 1s and 1m")
	case c.WriteTimeout < time.Second || c.WriteTimeout > time.Minute:
		return invalid("WriteTimeout", c.WriteTimeout, "must be between 1s and 1m")
	case c.UpdateRate < 1 || c.UpdateRate > 100:
		return invalid("UpdateRate", c.UpdateRate, "must be between 1 and 100")
	case c.TicksPerState < 1 || c.TicksPerState > 100:
		return invalid("TicksPerState", c.TicksPerState, "must be between 1 and 100")
	case c.TickRate < 1 || c.TickRate > 1000:
		return invalid("TickRate", c.TickRate, "must be between 1 and 1000")
	case c.HTTPAddr == "":
		return invalid("HTTPAddr", c.HTTPAddr, "must not be empty")
	case math.IsNaN(c.Gravity) || c.Gravity < 0 || c.Gravity > 100:
		return invalid("Gravity", c.Gravity, "must be between 0 and 100")
	case c.ControlRateLimit < 1:
		return invalid("ControlRateLimit", c.ControlRateLimit, "must be at least 1")
	case c.CircuitBreakerMaxRequests < 1:
		return invalid("CircuitBreakerMaxRequests", c.CircuitBreakerMaxRequests, "must be at least 1")
	case c.CircuitBreakerInterval < time.Second:
		return invalid("CircuitBreakerInterval", c.CircuitBreakerInterval, "must be at least 1s")
	case c.CircuitBreakerTimeout < time.Second:
		return invalid("CircuitBreakerTimeout", c.CircuitBreakerTimeout, "must be at least 1s")
	case c.CircuitBreakerMaxConsecutiveFails < 1:
		return invalid("CircuitBreakerMaxConsecutiveFails", c.CircuitBreakerMaxConsecutiveFails, "must be at least 1")
	case c.MaxMemoryMB < 16:
		return invalid("MaxMemoryMB", c.MaxMemoryMB, "must be at least 16")
	case c.MaxGoroutines < 4:
		return invalid("MaxGoroutines", c.MaxGoroutines, "must be at least 4")
	case c.ShutdownTimeout < time.Second:
		return invalid("ShutdownTimeout", c.ShutdownTimeout, "must be at least 1s")
	case c.ResourceCheckInterval < time.Second:
		return invalid("ResourceCheckInterval", c.ResourceCheckInterval, "must be at least 1s")
	}
	return nil
}

// ApplyEnvironmentOverrides copies the DOGFIGHT_* settings that are set in
// the environment onto a file based configuration. Unset variables leave
// the file values alone.
func ApplyEnvironmentOverrides(config *SimConfig) error {
	env, err := LoadConfigFromEnv()
	if err != nil {
		return err
	}

	if isSet(EnvServerAddr) || isSet(EnvServerPort) {
		config.NetworkConfig.ServerPort = env.ServerPort
		config.NetworkConfig.ServerAddress = net.JoinHostPort(env.ServerAddr, strconv.Itoa(env.ServerPort))
	}
	if isSet(EnvMaxClients) {
		config.NetworkConfig.MaxClients = env.MaxClients
	}
	if isSet(EnvUpdateRate) {
		config.NetworkConfig.UpdateRate = env.UpdateRate
	}
	if isSet(EnvTicksPerState) {
		config.NetworkConfig.TicksPerState = env.TicksPerState
	}
	if isSet(EnvTickRate) {
		config.TickRate = env.TickRate
	}
	if isSet(EnvHTTPAddr) {
		config.HTTPConfig.Address = env.HTTPAddr
	}
	if isSet(EnvGravity) {
		config.Gravity = mgl64.Vec3{0, -env.Gravity, 0}
	}

	return nil
}

func isSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
