package transport

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server accepts websocket sessions and serves the gateway's HTTP surface.
type Server struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	mu        sync.RWMutex
	onConnect func(*Conn)
	onError   func(error)
	onStatus  func() string
	conns     map[string]*Conn
	wg        sync.WaitGroup
}

// NewServer creates a server. A nil gatherer disables "/metrics".
func NewServer(logger *zap.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		logger:   logger.Named("transport"),
		gatherer: gatherer,
		conns:    make(map[string]*Conn),
	}
}

// OnConnect sets the callback run for every new session. It runs on the
// session's goroutine before any client frame is read.
func (s *Server) OnConnect(fn func(*Conn)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// OnError sets the callback for transport failures and recovered panics.
func (s *Server) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// OnRequestStatus sets the producer of the "/status" body.
func (s *Server) OnRequestStatus(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// Handler returns the HTTP handler for all gateway routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", s.handleWebsocket)
	return s.recoverer(mux)
}

// ConnectionCount returns the number of open sessions.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close ends every open session and waits for their goroutines.
func (s *Server) Close() {
	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.Close(nil)
	}
	s.wg.Wait()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.RLock()
	status := s.onStatus
	s.mu.RUnlock()

	body := "[]"
	if status != nil {
		body = status()
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.NotFound(w, r)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		s.reportError(fmt.Errorf("websocket upgrade: %w", err))
		return
	}

	conn := newConn(ws, s.logger)
	s.track(conn)
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		conn.writeLoop()
	}()
	defer func() {
		conn.Close(nil)
		<-flushed
		s.untrack(conn)
	}()

	s.mu.RLock()
	onConnect := s.onConnect
	s.mu.RUnlock()

	if onConnect != nil && !s.safeCall(func() { onConnect(conn) }) {
		return
	}
	conn.readLoop()
}

func (s *Server) track(c *Conn) {
	s.wg.Add(1)
	s.mu.Lock()
	s.conns[c.ID()] = c
	s.mu.Unlock()
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.ID())
	s.mu.Unlock()
	s.wg.Done()
}

// safeCall runs fn and reports whether it returned without panicking.
func (s *Server) safeCall(fn func()) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			s.reportPanic(v)
			ok = false
		}
	}()
	fn()
	return true
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.reportPanic(v)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) reportPanic(v any) {
	s.logger.Error("uncaught panic", zap.Any("panic", v), zap.ByteString("stack", debug.Stack()))
	s.reportError(fmt.Errorf("panic: %v", v))
}

func (s *Server) reportError(err error) {
	s.mu.RLock()
	onError := s.onError
	s.mu.RUnlock()

	if onError != nil {
		onError(err)
		return
	}
	s.logger.Error("transport error", zap.Error(err))
}
