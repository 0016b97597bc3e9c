package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/shard"
)

var (
	// ErrClosed is returned by Send after the session has closed.
	ErrClosed = errors.New("connection closed")
	// ErrSlowConsumer is returned by Send when the outbound queue is full.
	// The session is closed with it as the reason.
	ErrSlowConsumer = errors.New("client is not reading fast enough")
)

const (
	writeWait      = 10 * time.Second
	closeWait      = time.Second
	sendQueueSize  = 64
	maxReasonBytes = 123 // Control frame payload limit minus the status code
	maxMessageSize = 64 * 1024
)

// Conn is one websocket session.
type Conn struct {
	id     string
	ws     *websocket.Conn
	logger *zap.Logger

	out chan []byte // Encoded frames waiting for writeLoop

	mu      sync.Mutex
	closed  bool
	onClose []func()
	done    chan struct{}
}

var _ shard.Conn = (*Conn)(nil)

func newConn(ws *websocket.Conn, logger *zap.Logger) *Conn {
	id := uuid.NewString()
	ws.SetReadLimit(maxMessageSize)
	return &Conn{
		id:     id,
		ws:     ws,
		logger: logger.With(zap.String("conn", id)),
		out:    make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (c *Conn) ID() string { return c.id }

// Send encodes msg as one JSON text frame and queues it for the writer.
// It never waits on the network. A full queue closes the session and
// returns ErrSlowConsumer.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		go c.Close(ErrSlowConsumer)
		return ErrSlowConsumer
	}
}

// Close ends the session. A nil reason is a normal closure; any other
// reason is sent to the client as the close text with code 1013 (try
// again later). Calling Close more than once is a no-op.
func (c *Conn) Close(reason error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hooks := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	code, text := websocket.CloseNormalClosure, ""
	if reason != nil {
		code, text = websocket.CloseTryAgainLater, reason.Error()
		if len(text) > maxReasonBytes {
			text = text[:maxReasonBytes]
		}
	}

	// WriteControl may run alongside writeLoop; it waits at most closeWait
	// for a writer stuck on a full socket.
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(closeWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("close frame not sent", zap.Error(err))
	}
	_ = c.ws.Close()
	close(c.done)

	for _, fn := range hooks {
		fn()
	}
}

// OnClose registers fn to run once the session ends. If it has already
// ended, fn runs immediately.
func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// Done is closed when the session ends.
func (c *Conn) Done() <-chan struct{} { return c.done }

// readLoop drains client frames until the socket fails or closes. Game
// messages are not interpreted here.
func (c *Conn) readLoop() {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("session read failed", zap.Error(err))
			}
			return
		}
	}
}

// writeLoop flushes queued frames until the session ends. Frames still
// queued at that point are dropped.
func (c *Conn) writeLoop() {
	for {
		select {
		case data := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("session write failed", zap.Error(err))
				go c.Close(nil)
				return
			}
		case <-c.done:
			return
		}
	}
}
