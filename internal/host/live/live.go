// Package live implements the `seni serve` live-preview host: it
// recompiles a script on file change and pushes a render frame to every
// connected browser client over a websocket, the external "geometry
// consumer" of the core spec made concrete for local development —
// adapted from internal/vm/network_websocket_server.go's server-accept/
// broadcast shape and internal/network/websocket.go's gorilla/websocket
// upgrade handler.
package live

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"seni/internal/compiler"
	"seni/internal/parser"
	"seni/internal/vm"
	"seni/internal/words"
)

// CommandFrame is one native call's recorded effect: the native's own name
// and the matrix-stack transform in force when it ran. This is the stand-in
// for the original's literal vbuf/cbuf/tbuf vertex buffers: the
// rasterisation primitives that would tessellate a native call into actual
// vertex/colour/UV floats are an explicitly out-of-scope collaborator (see
// spec.md's component table), so a frame instead exposes the sequence of
// native invocations that would feed such a tessellator.
type CommandFrame struct {
	Native string     `json:"native"`
	Matrix [16]float64 `json:"matrix"`
}

// Frame is one complete render's worth of output, pushed to every client
// as a single JSON text message.
type Frame struct {
	Commands    []CommandFrame `json:"commands"`
	NumVertices int            `json:"num_vertices"`
	Error       string         `json:"error,omitempty"`
}

func buildFrame(m *vm.VM, table *words.Table, runErr error) Frame {
	f := Frame{Commands: make([]CommandFrame, 0, len(m.Commands))}
	for _, cmd := range m.Commands {
		name, _ := table.Reverse(cmd.Native)
		f.Commands = append(f.Commands, CommandFrame{Native: name, Matrix: [16]float64(cmd.Matrix)})
	}
	f.NumVertices = len(f.Commands)
	if runErr != nil {
		f.Error = runErr.Error()
	}
	return f
}

// Server is a single-page websocket broadcast hub: every connected client
// receives the same frame after each recompile.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	http     *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewServer(addr string) *Server {
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/preview", s.handle)
	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain and discard client messages until the connection closes, just
	// to notice disconnects; this host never expects client -> server
	// payloads.
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Broadcast sends frame to every currently-connected client, dropping any
// client whose write fails.
func (s *Server) Broadcast(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("live: marshal frame: %w", err)
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var lastErr error
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			lastErr = err
			s.drop(c)
		}
	}
	return lastErr
}

// ListenAndServe starts the HTTP/websocket listener; it blocks until the
// server is closed or fails.
func (s *Server) ListenAndServe() error { return s.http.ListenAndServe() }

func (s *Server) Close() error { return s.http.Close() }

// Watch polls path's mtime on the given interval and invokes render
// whenever it changes, broadcasting the resulting frame. No file-watcher
// library is present anywhere in the example pack (fsnotify or similar),
// so this falls back to stdlib os.Stat polling rather than a native OS
// file-event API — the one ambient concern in this package not grounded on
// a third-party library, justified by its absence from the available
// dependency surface rather than by preference.
func (s *Server) Watch(path string, interval time.Duration, table *words.Table, natives vm.NativeSet) error {
	var lastMod time.Time
	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("live: stat %s: %w", path, err)
		}
		if info.ModTime().After(lastMod) {
			lastMod = info.ModTime()
			frame := renderOnce(path, table, natives)
			if err := s.Broadcast(frame); err != nil {
				log.Printf("live: broadcast failed: %v", err)
			}
		}
		time.Sleep(interval)
	}
}

// renderOnce parses, compiles and runs path's source once, returning the
// frame it produced (or a Frame carrying the error string, so a syntax
// error shows up in the browser console instead of killing the server).
func renderOnce(path string, table *words.Table, natives vm.NativeSet) Frame {
	src, err := os.ReadFile(path)
	if err != nil {
		return Frame{Error: err.Error()}
	}
	nodes, err := parser.New(string(src), table).Parse()
	if err != nil {
		return Frame{Error: err.Error()}
	}
	prog, err := compiler.Compile(nodes, table)
	if err != nil {
		return Frame{Error: err.Error()}
	}
	m := vm.New(prog, natives)
	_, runErr := m.Run()
	return buildFrame(m, table, runErr)
}
