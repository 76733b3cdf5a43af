package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 128
)

var ErrConnectionClosed = errors.New("connection closed")

// Sink is anything that can receive encoded frames for one socket session.
type Sink interface {
	ID() string
	UserID() int64
	Send(payload []byte) error
}

// Connection wraps a websocket and serializes writes through a buffered
// channel. A slow client whose buffer fills is disconnected.
type Connection struct {
	id     string
	userID int64

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}
}

func NewConnection(userID int64, ws *websocket.Conn) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *Connection) ID() string    { return c.id }
func (c *Connection) UserID() int64 { return c.userID }

// Start launches the write loop. Call it once.
func (c *Connection) Start() {
	go c.writeLoop()
}

func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return ErrConnectionClosed
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Done is closed once the connection is shut down.
func (c *Connection) Done() <-chan struct{} { return c.closed }

func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
