package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/displayhal/internal/logger"
)

// Handler executes control requests against a running adapter.
type Handler interface {
	HandleStatus() (*structpb.Struct, error)
	HandleHotplug(handle uint64, connected bool) error
	HandlePower(display, mode string) error
	HandleVsync(display string, enabled bool) error
	HandleMode(display string, mode int) error
}

// SocketServer handles incoming control connections
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	handler    Handler
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
}

// NewSocketServer creates a server listening on socketPath, or on the
// per-user default path when socketPath is empty.
func NewSocketServer(socketPath string, handler Handler) (*SocketServer, error) {
	if socketPath == "" {
		p, err := DefaultSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
		socketPath = p
	}
	return &SocketServer{
		socketPath: socketPath,
		handler:    handler,
	}, nil
}

// Path returns the socket path.
func (s *SocketServer) Path() string {
	return s.socketPath
}

// Start starts the socket server
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	logger.Info("Control socket started", "path", s.socketPath)
	return nil
}

// Stop closes the listener, waits for open connections and removes the socket file.
func (s *SocketServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	s.listener.Close()
	s.wg.Wait()

	os.RemoveAll(s.socketPath)
	logger.Info("Control socket stopped")
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("Failed to accept connection", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock reads on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Debug("New control connection established")
	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			logger.Debug("Control connection closed", "error", err)
			return
		}
		if err := WriteMessage(conn, s.handleMessage(msg)); err != nil {
			logger.Error("Failed to send response", "error", err)
			return
		}
	}
}

// handleMessage processes a single message and returns a response
func (s *SocketServer) handleMessage(msg *structpb.Struct) *structpb.Struct {
	var err error
	switch t := MessageType(msg); t {
	case TypeStatus:
		snapshot, err := s.handler.HandleStatus()
		if err != nil {
			return NewErrorMessage(err.Error())
		}
		return NewStatusResponseMessage(snapshot)

	case TypeHotplug:
		var handle uint64
		var connected bool
		if handle, err = uint64Field(msg, "handle"); err == nil {
			if connected, err = boolField(msg, "connected"); err == nil {
				err = s.handler.HandleHotplug(handle, connected)
			}
		}

	case TypePower:
		var display, mode string
		if display, err = stringField(msg, "display"); err == nil {
			if mode, err = stringField(msg, "mode"); err == nil {
				err = s.handler.HandlePower(display, mode)
			}
		}

	case TypeVsync:
		var display string
		var enabled bool
		if display, err = stringField(msg, "display"); err == nil {
			if enabled, err = boolField(msg, "enabled"); err == nil {
				err = s.handler.HandleVsync(display, enabled)
			}
		}

	case TypeMode:
		var display string
		var mode float64
		if display, err = stringField(msg, "display"); err == nil {
			if mode, err = numberField(msg, "mode"); err == nil {
				err = s.handler.HandleMode(display, int(mode))
			}
		}

	default:
		err = fmt.Errorf("unknown message type %q", t)
	}

	if err != nil {
		return NewErrorMessage(err.Error())
	}
	return NewOKMessage()
}

// DefaultSocketPath returns /tmp/displayhal-<user>.sock.
func DefaultSocketPath() (string, error) {
	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("displayhal-%s.sock", currentUser.Username)), nil
}
