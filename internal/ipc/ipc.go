// Package ipc implements the daemon's control protocol: newline-delimited
// JSON commands over a local Unix domain socket. Three commands exist —
// graph_changed, status, shutdown — each answered with a response envelope.
// The socket is local-only and carries no authentication, per spec.md §6.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Command is one line of client input.
type Command struct {
	Cmd string `json:"cmd"`
}

const (
	CmdGraphChanged = "graph_changed"
	CmdStatus       = "status"
	CmdShutdown     = "shutdown"
)

// Response is one line of server output.
type Response struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Status Status `json:"status"`
}

// Status mirrors the coordinator's view of the world, returned by the
// status command.
type Status struct {
	Tick        uint64    `json:"tick"`
	LastTick    time.Time `json:"last_tick"`
	AliveAgents int       `json:"alive_agents"`
	ReadyTasks  int       `json:"ready_tasks"`
}

// Handler answers the three commands the protocol defines. graph_changed
// and shutdown are notifications — the daemon's tick loop owns the actual
// work; the handler only needs to wake it (or, for shutdown, begin the
// drain) and report whether that was accepted. Status answers synchronously.
type Handler interface {
	NotifyGraphChanged() error
	RequestShutdown() error
	CurrentStatus() (Status, error)
}

// Server accepts connections on a Unix socket and dispatches each
// newline-delimited command line to a Handler. One connection can send
// multiple commands; each gets its own response line.
type Server struct {
	listener net.Listener
	handler  Handler
	logger   *slog.Logger
}

// Listen creates (removing any stale socket file first) and binds a Unix
// socket at path.
func Listen(path string, handler Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "remove stale ipc socket %s", path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "listen on ipc socket %s", path)
	}
	return &Server{listener: ln, handler: handler, logger: logger}, nil
}

// Addr returns the bound socket path.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve accepts connections until the listener is closed (typically by
// Close from a shutdown path), handling each on its own goroutine.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return wgerr.Wrap(wgerr.IOFailure, err, "accept ipc connection")
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			_ = enc.Encode(Response{OK: false, Error: "malformed command: " + err.Error()})
			continue
		}
		resp := s.dispatch(cmd)
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("ipc write failed", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(cmd Command) Response {
	switch cmd.Cmd {
	case CmdGraphChanged:
		if err := s.handler.NotifyGraphChanged(); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}
	case CmdStatus:
		st, err := s.handler.CurrentStatus()
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, Status: st}
	case CmdShutdown:
		if err := s.handler.RequestShutdown(); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}
	default:
		return Response{OK: false, Error: "unknown command: " + cmd.Cmd}
	}
}

// Close stops accepting new connections; in-flight connections finish on
// their own.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Send dials the socket at path, sends a single command, and returns its
// response. It is the client half used by operator-facing commands (e.g.
// notifying the daemon after a graph edit) and by tests.
func Send(path string, cmd string) (Response, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return Response{}, wgerr.Wrap(wgerr.IOFailure, err, "dial ipc socket %s", path)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(Command{Cmd: cmd}); err != nil {
		return Response{}, wgerr.Wrap(wgerr.IOFailure, err, "send ipc command %s", cmd)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, wgerr.Wrap(wgerr.IOFailure, err, "read ipc response")
	}
	if !resp.OK && resp.Error != "" {
		return resp, wgerr.New(wgerr.IOFailure, "%s", resp.Error)
	}
	return resp, nil
}
