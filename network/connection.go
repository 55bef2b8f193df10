package network

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/23jmo/typr-server/models"
)

// Connection abstracts the transport so sessions can be driven by mocks
// in tests.
type Connection interface {
	Send(event string, data interface{}) error
	ReadMessage() (*models.InboundMessage, error)
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
}

// WSConnection wraps a gorilla websocket with serialized writes. The
// browser client speaks JSON envelopes, one message per frame.
type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(event string, data interface{}) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	return c.conn.WriteJSON(models.Message{Event: event, Data: data})
}

// ReadMessage blocks for the next inbound envelope. Every message, a
// ping included, pushes the read deadline out.
func (c *WSConnection) ReadMessage() (*models.InboundMessage, error) {
	var msg models.InboundMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	if c.heartbeat > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}
	return &msg, nil
}

// SetHeartbeat bounds how long a silent connection is kept before reads
// fail and the disconnect path runs.
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
