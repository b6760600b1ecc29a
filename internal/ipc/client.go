package ipc

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/displayhal/internal/logger"
)

// Client sends control requests to a running displayhal instance. Each
// request uses its own connection.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for socketPath, or for the per-user default
// path when socketPath is empty.
func NewClient(socketPath string) (*Client, error) {
	if socketPath == "" {
		p, err := DefaultSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
		socketPath = p
	}
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}, nil
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Status returns the adapter snapshot of the running instance.
func (c *Client) Status() (*structpb.Struct, error) {
	msg, err := NewStatusMessage()
	if err != nil {
		return nil, err
	}
	response, err := c.sendMessage(msg)
	if err != nil {
		return nil, err
	}
	switch MessageType(response) {
	case TypeStatusResponse:
		return response.GetFields()["snapshot"].GetStructValue(), nil
	case TypeError:
		return nil, responseError(response)
	default:
		return nil, fmt.Errorf("unexpected response type %q", MessageType(response))
	}
}

// Hotplug connects or disconnects a backend display handle.
func (c *Client) Hotplug(handle uint64, connected bool) error {
	msg, err := NewHotplugMessage(handle, connected)
	if err != nil {
		return err
	}
	return c.command(msg)
}

// SetPowerMode sets the power mode of display.
func (c *Client) SetPowerMode(display, mode string) error {
	msg, err := NewPowerMessage(display, mode)
	if err != nil {
		return err
	}
	return c.command(msg)
}

// SetVsyncEnabled toggles vsync delivery for display.
func (c *Client) SetVsyncEnabled(display string, enabled bool) error {
	msg, err := NewVsyncMessage(display, enabled)
	if err != nil {
		return err
	}
	return c.command(msg)
}

// SetActiveMode switches display to mode.
func (c *Client) SetActiveMode(display string, mode int) error {
	msg, err := NewModeMessage(display, mode)
	if err != nil {
		return err
	}
	return c.command(msg)
}

// IsRunning reports whether an instance answers on the socket.
func (c *Client) IsRunning() bool {
	_, err := c.Status()
	return err == nil
}

func (c *Client) command(msg *structpb.Struct) error {
	response, err := c.sendMessage(msg)
	if err != nil {
		return err
	}
	switch MessageType(response) {
	case TypeOK:
		return nil
	case TypeError:
		return responseError(response)
	default:
		return fmt.Errorf("unexpected response type %q", MessageType(response))
	}
}

// sendMessage sends a message and returns the response
func (c *Client) sendMessage(msg *structpb.Struct) (*structpb.Struct, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isNotRunning(err) {
			return nil, fmt.Errorf("displayhal is not running at %s", c.socketPath)
		}
		return nil, fmt.Errorf("failed to connect to displayhal: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("Failed to close control connection", "error", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warn("Failed to set connection deadline", "error", err)
	}

	if err := WriteMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	response, err := ReadMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return response, nil
}

func isNotRunning(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}
