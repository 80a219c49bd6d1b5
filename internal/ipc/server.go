package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/compwm/internal/runtimepath"
)

// Handler carries out control commands. Implementations serialise access to
// the runtime themselves; the server calls them from connection goroutines.
type Handler interface {
	Status(ctx context.Context) (*StatusData, error)
	ListPlugins(ctx context.Context) (*PluginsData, error)
	GetOptions(ctx context.Context, req OptionsPayload) (*OptionsData, error)
	SetOption(ctx context.Context, req SetOptionPayload) (*SetOptionData, error)
	Activate(ctx context.Context, name string) (*StackData, error)
	Deactivate(ctx context.Context, name string) (*StackData, error)
	ListWindows(ctx context.Context) (*WindowsData, error)
	EvalMatch(ctx context.Context, expr string) (*EvalMatchData, error)
	Reload(ctx context.Context) error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath     string
	listener       net.Listener
	handler        Handler
	logger         *slog.Logger
	requestTimeout time.Duration

	shuttingDown bool
	shutdownMu   sync.Mutex
	wg           sync.WaitGroup
}

// NewServer creates a server on the default socket path.
func NewServer(handler Handler, logger *slog.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, handler, logger), nil
}

// NewServerAt creates a server listening on socketPath.
func NewServerAt(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath:     socketPath,
		handler:        handler,
		logger:         logger,
		requestTimeout: 10 * time.Second,
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// A stale socket from a crashed daemon blocks Listen.
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight requests.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			done := s.shuttingDown
			s.shutdownMu.Unlock()
			if done || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection serves one newline-terminated JSON request.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.requestTimeout))

	data, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	var resp *Response
	req, err := ParseRequest(data)
	if err != nil {
		resp = NewErrorResponse(fmt.Sprintf("Invalid request: %v", err))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
		resp = s.handleCommand(ctx, req)
		cancel()
	}

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}
	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command)

	var (
		data any
		err  error
	)
	switch req.Command {
	case CommandReload:
		err = s.handler.Reload(ctx)
	case CommandGetStatus:
		data, err = s.handler.Status(ctx)
	case CommandListPlugins:
		data, err = s.handler.ListPlugins(ctx)
	case CommandGetOptions:
		var p OptionsPayload
		if err = decodePayload(req.Payload, &p); err == nil {
			data, err = s.handler.GetOptions(ctx, p)
		}
	case CommandSetOption:
		var p SetOptionPayload
		if err = decodePayload(req.Payload, &p); err == nil {
			data, err = s.handler.SetOption(ctx, p)
		}
	case CommandActivate, CommandDeactivate:
		var p PluginPayload
		if err = decodePayload(req.Payload, &p); err != nil {
			break
		}
		if p.Name == "" {
			err = fmt.Errorf("plugin name is required")
			break
		}
		if req.Command == CommandActivate {
			data, err = s.handler.Activate(ctx, p.Name)
		} else {
			data, err = s.handler.Deactivate(ctx, p.Name)
		}
	case CommandListWindows:
		data, err = s.handler.ListWindows(ctx)
	case CommandEvalMatch:
		var p EvalMatchPayload
		if err = decodePayload(req.Payload, &p); err == nil {
			data, err = s.handler.EvalMatch(ctx, p.Expr)
		}
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}

	if err != nil {
		s.logger.Info("IPC command failed", "command", req.Command, "error", err)
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
