package network

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MessageType defines the type of network message
type MessageType byte

const (
	ConnectRequest MessageType = iota
	ConnectResponse
	DisconnectNotification
	TelemetryUpdate
	ControlInput
	ControlRejected
	PingRequest
	PingResponse
)

// headerSize is one type byte followed by a big endian uint16 length
const headerSize = 3

// ErrMessageTooLarge is returned for payloads a frame length cannot describe
var ErrMessageTooLarge = errors.New("message too large")

// ConnectRequestData asks to pilot the named aircraft. An empty name
// connects as a telemetry-only observer.
type ConnectRequestData struct {
	Aircraft string `json:"aircraft"`
}

// ConnectResponseData answers a ConnectRequest
type ConnectResponseData struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	ClientID   uint64 `json:"clientID,omitempty"`
	AircraftID uint64 `json:"aircraftID,omitempty"`
	TickRate   int    `json:"tickRate,omitempty"`
}

// ControlInputData carries pilot commands. Omitted fields are left unchanged.
type ControlInputData struct {
	Throttle        *float64    `json:"throttle,omitempty"`
	AngularVelocity *mgl64.Vec3 `json:"angularVelocity,omitempty"`
}

// ControlRejectedData explains why a control message was not applied
type ControlRejectedData struct {
	Error string `json:"error"`
}

// encodeFrame serializes msg into a complete frame. A nil msg yields an
// empty payload.
func encodeFrame(msgType MessageType, msg interface{}) ([]byte, error) {
	var data []byte
	if msg != nil {
		var err error
		if data, err = json.Marshal(msg); err != nil {
			return nil, fmt.Errorf("failed to marshal message: %w", err)
		}
	}
	if len(data) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	frame := make([]byte, headerSize+len(data))
	frame[0] = byte(msgType)
	binary.BigEndian.PutUint16(frame[1:headerSize], uint16(len(data)))
	copy(frame[headerSize:], data)
	return frame, nil
}

// writeMessage writes one frame in a single call so concurrent frames
// cannot interleave on the wire
func writeMessage(w io.Writer, msgType MessageType, msg interface{}) error {
	frame, err := encodeFrame(msgType, msg)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// readMessage reads one frame
func readMessage(r io.Reader) (MessageType, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}

	data := make([]byte, binary.BigEndian.Uint16(header[1:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}

	return MessageType(header[0]), data, nil
}
