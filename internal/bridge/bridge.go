// Package bridge exposes the flock command protocol over WebSocket: every
// text frame received is one command line, answered by one reply line.
package bridge

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lao-tseu-is-alive/go-flocking-geese/internal/control"
	golog "github.com/tochemey/goakt/v3/log"
)

var (
	PingPongFreq   = 30 * time.Second
	WriteTimeout   = 5 * time.Second
	MaxMessageSize = int64(4096)
)

// Dispatcher runs a command line and returns the reply line.
type Dispatcher interface {
	Dispatch(ctx context.Context, line string) (string, error)
}

// Server is an http.Handler upgrading every request to a WebSocket.
type Server struct {
	dispatcher   Dispatcher
	logger       golog.Logger
	infoInterval time.Duration
	upgrader     websocket.Upgrader
	clients      atomic.Int64
}

// NewServer returns a Server sending every frame to d. When infoInterval
// is positive, each client also receives a setSimulationInfo line at that
// period.
func NewServer(d Dispatcher, logger golog.Logger, infoInterval time.Duration) *Server {
	if logger == nil {
		logger = golog.DiscardLogger
	}
	return &Server{
		dispatcher:   d,
		logger:       logger,
		infoInterval: infoInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// remote drivers are served from anywhere
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int64 {
	return s.clients.Load()
}

type client struct {
	conn  *websocket.Conn
	msgCH chan string
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	conn.SetReadLimit(MaxMessageSize)

	s.clients.Add(1)
	defer s.clients.Add(-1)
	s.logger.Infof("driver connected from %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{conn: conn, msgCH: make(chan string, 16)}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, c)
	}()
	if s.infoInterval > 0 {
		go s.pushInfoLoop(ctx, c)
	}

	s.readLoop(ctx, c)
	cancel()
	<-writerDone
	s.logger.Infof("driver %s disconnected", r.RemoteAddr)
}

// writeLoop is the only writer of data frames on the connection.
func (s *Server) writeLoop(ctx context.Context, c *client) {
	t := time.NewTicker(PingPongFreq)
	defer t.Stop()
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(WriteTimeout))
			return
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout)); err != nil {
				return
			}
		case msg := <-c.msgCH:
			_ = c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				s.logger.Warnf("failed to write to driver: %v", err)
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warnf("driver read failed: %v", err)
			}
			return
		}

		line := strings.TrimSpace(string(b))
		if line == "" {
			continue
		}
		reply, err := s.dispatcher.Dispatch(ctx, line)
		if err != nil {
			reply = control.Error(err).String()
		}

		select {
		case c.msgCH <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) pushInfoLoop(ctx context.Context, c *client) {
	t := time.NewTicker(s.infoInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			info, err := s.dispatcher.Dispatch(ctx, control.MethodGetSimulationInfo)
			if err != nil {
				s.logger.Debugf("info push skipped: %v", err)
				continue
			}
			select {
			case c.msgCH <- info:
			default:
				// driver busy, skip this one
			}
		}
	}
}
