// Package ipc is the control socket of a running displayhal instance.
// Messages are protobuf Structs carrying a "type" field, framed with a
// 4-byte big endian length.
package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Message types.
const (
	TypeStatus         = "status"
	TypeStatusResponse = "status_response"
	TypeHotplug        = "hotplug"
	TypePower          = "power"
	TypeVsync          = "vsync"
	TypeMode           = "mode"
	TypeOK             = "ok"
	TypeError          = "error"
)

// maxMessageSize bounds a single frame.
const maxMessageSize = 4 << 20

func newMessage(msgType string, fields map[string]interface{}) (*structpb.Struct, error) {
	m := map[string]interface{}{"type": msgType}
	for k, v := range fields {
		m[k] = v
	}
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s message: %w", msgType, err)
	}
	return msg, nil
}

// NewStatusMessage creates a status query.
func NewStatusMessage() (*structpb.Struct, error) {
	return newMessage(TypeStatus, nil)
}

// NewStatusResponseMessage wraps an adapter snapshot.
func NewStatusResponseMessage(snapshot *structpb.Struct) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":     structpb.NewStringValue(TypeStatusResponse),
		"snapshot": structpb.NewStructValue(snapshot),
	}}
}

// NewHotplugMessage asks the backend to connect or disconnect a display handle.
// The handle travels as a decimal string since Struct numbers are doubles.
func NewHotplugMessage(handle uint64, connected bool) (*structpb.Struct, error) {
	return newMessage(TypeHotplug, map[string]interface{}{
		"handle":    strconv.FormatUint(handle, 10),
		"connected": connected,
	})
}

// NewPowerMessage sets the power mode of a display.
func NewPowerMessage(display, mode string) (*structpb.Struct, error) {
	return newMessage(TypePower, map[string]interface{}{"display": display, "mode": mode})
}

// NewVsyncMessage enables or disables vsync delivery for a display.
func NewVsyncMessage(display string, enabled bool) (*structpb.Struct, error) {
	return newMessage(TypeVsync, map[string]interface{}{"display": display, "enabled": enabled})
}

// NewModeMessage switches the active mode of a display.
func NewModeMessage(display string, mode int) (*structpb.Struct, error) {
	return newMessage(TypeMode, map[string]interface{}{"display": display, "mode": mode})
}

// NewOKMessage acknowledges a command.
func NewOKMessage() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type": structpb.NewStringValue(TypeOK),
	}}
}

// NewErrorMessage reports a failed request.
func NewErrorMessage(errMsg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":  structpb.NewStringValue(TypeError),
		"error": structpb.NewStringValue(errMsg),
	}}
}

// MessageType returns the type field of msg.
func MessageType(msg *structpb.Struct) string {
	return msg.GetFields()["type"].GetStringValue()
}

func stringField(msg *structpb.Struct, name string) (string, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return "", fmt.Errorf("%s message has no %s", MessageType(msg), name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s message field %s is not a string", MessageType(msg), name)
	}
	return s.StringValue, nil
}

func boolField(msg *structpb.Struct, name string) (bool, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return false, fmt.Errorf("%s message has no %s", MessageType(msg), name)
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%s message field %s is not a bool", MessageType(msg), name)
	}
	return b.BoolValue, nil
}

func numberField(msg *structpb.Struct, name string) (float64, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%s message has no %s", MessageType(msg), name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s message field %s is not a number", MessageType(msg), name)
	}
	return n.NumberValue, nil
}

// uint64Field reads a string field holding an unsigned integer, with an
// optional 0x or 0o prefix.
func uint64Field(msg *structpb.Struct, name string) (uint64, error) {
	s, err := stringField(msg, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%s message field %s is not an unsigned integer: %q", MessageType(msg), name, s)
	}
	return n, nil
}

// responseError turns an error response into a Go error.
func responseError(msg *structpb.Struct) error {
	if MessageType(msg) != TypeError {
		return nil
	}
	errMsg, _ := stringField(msg, "error")
	return fmt.Errorf("server error: %s", errMsg)
}

// ReadMessage reads one framed message.
func ReadMessage(r io.Reader) (*structpb.Struct, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit of %d", length, maxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	msg := &structpb.Struct{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return msg, nil
}

// WriteMessage writes one framed message.
func WriteMessage(w io.Writer, msg *structpb.Struct) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	length := uint32(len(data)) //nolint:gosec // bounded by maxMessageSize on read
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	return nil
}
