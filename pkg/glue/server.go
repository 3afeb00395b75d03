package glue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/logger"
)

// ServerConfig configures the glue endpoint.
type ServerConfig struct {
	Host string
	Port int // 0 picks a free port
	// AdvertiseHost is the host written into URL(). Defaults to Host.
	AdvertiseHost string
}

// Server is the WebSocket endpoint the test page connects to. Actions arrive
// as request frames and are answered with reply frames; events are pushed to
// every connected client.
type Server struct {
	cfg ServerConfig

	mu      sync.Mutex
	ln      net.Listener
	httpSrv *http.Server
	addr    string
	handler Handler
	clients map[*client]struct{}
	backlog [][]byte

	ctx    context.Context
	cancel context.CancelFunc
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type reply struct {
	ID    json.RawMessage `json:"id,omitempty"`
	OK    bool            `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(cfg ServerConfig) *Server {
	if cfg.AdvertiseHost == "" {
		cfg.AdvertiseHost = cfg.Host
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start listens and serves actions to h.
func (s *Server) Start(h Handler) error {
	if h == nil {
		return errors.New("glue handler is nil")
	}
	s.mu.Lock()
	if s.ln != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	listenAddr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %q: %w", listenAddr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.ln = ln
	s.httpSrv = httpSrv
	s.addr = ln.Addr().String()
	s.handler = h
	s.mu.Unlock()

	logger.Info("Glue server listening on %s", s.addr)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Glue server stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the address the test page should connect to.
func (s *Server) URL() string {
	_, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		port = strconv.Itoa(s.cfg.Port)
	}
	return "ws://" + net.JoinHostPort(s.cfg.AdvertiseHost, port) + "/"
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Emit pushes ev to all connected clients. Events emitted before any client
// connects are held and delivered to the first one.
func (s *Server) Emit(ev Event) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		logger.Debug("No glue client, holding %s event %s", ev.Name(), ev.Correlation())
		s.backlog = append(s.backlog, data)
		return nil
	}
	for c := range s.clients {
		if err := c.write(data); err != nil {
			logger.Warn("Dropping glue client: %v", err)
			delete(s.clients, c)
			_ = c.conn.Close()
		}
	}
	return nil
}

// Close stops serving and drops all clients.
func (s *Server) Close(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	srv := s.httpSrv
	clients := s.clients
	s.httpSrv = nil
	s.ln = nil
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for c := range clients {
		_ = c.conn.Close()
	}
	if srv == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Glue upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn}

	s.mu.Lock()
	backlog := s.backlog
	s.backlog = nil
	for _, data := range backlog {
		if err := c.write(data); err != nil {
			s.backlog = append(s.backlog, data)
		}
	}
	s.clients[c] = struct{}{}
	handler := s.handler
	s.mu.Unlock()

	logger.Info("Glue client connected from %s", r.RemoteAddr)
	go s.readLoop(c, handler)
}

func (s *Server) readLoop(c *client, h Handler) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		go s.handleFrame(c, h, data)
	}

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.conn.Close()
	logger.Debug("Glue client disconnected")
}

func (s *Server) handleFrame(c *client, h Handler, frame []byte) {
	var out reply
	if id := gjson.GetBytes(frame, "id"); id.Exists() {
		out.ID = json.RawMessage(id.Raw)
	}

	action, err := Decode(frame)
	if err == nil {
		logger.Debug("Glue action %s", gjson.GetBytes(frame, "action").String())
		err = Dispatch(s.ctx, h, action)
	}
	if err != nil {
		logger.Warn("Glue action failed: %v", err)
		out.Error = err.Error()
	} else {
		out.OK = true
	}

	data, err := json.Marshal(out)
	if err != nil {
		logger.Error("Encode glue reply: %v", err)
		return
	}
	if err := c.write(data); err != nil {
		logger.Debug("Glue reply not delivered: %v", err)
	}
}
