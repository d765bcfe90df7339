package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// pingPeriod must stay below pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound subscribe messages
	maxMessageSize = 1024

	// sendBufferSize is the number of queued events before a client counts as too slow
	sendBufferSize = 256
)

// actionSubscribe replaces the client's subscription
const actionSubscribe = "subscribe"

// controlMessage is the only message clients may send
type controlMessage struct {
	Action   string       `json:"action"`
	Entities []EntityType `json:"entities"`
	PeriodID *uuid.UUID   `json:"periodId"`
}

// Client is one owner's push connection. Its subscription can be narrowed at
// connect time and replaced later with a subscribe message.
type Client struct {
	id      string
	ownerID uuid.UUID
	conn    *websocket.Conn
	hub     *Hub
	send    chan []byte
	done    chan struct{}
	once    sync.Once

	subMu sync.RWMutex
	sub   Subscription
}

// NewClient creates a client for ownerID receiving the events sub matches
func NewClient(conn *websocket.Conn, ownerID uuid.UUID, hub *Hub, sub Subscription) *Client {
	return &Client{
		id:      uuid.New().String(),
		ownerID: ownerID,
		conn:    conn,
		hub:     hub,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		sub:     sub,
	}
}

func (c *Client) ID() string         { return c.id }
func (c *Client) OwnerID() uuid.UUID { return c.ownerID }

// Subscription returns the filters currently applied
func (c *Client) Subscription() Subscription {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.sub
}

// Wants reports whether the event passes the client's subscription
func (c *Client) Wants(e Event) bool {
	return c.Subscription().Matches(e)
}

// Send queues a message without blocking. A full buffer returns ErrSlowClient.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSlowClient
	}
}

// Close stops both pumps and closes the connection. It may be called more than once.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ReadPump reads subscribe messages until the connection drops. Run it in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Str("owner_id", c.ownerID.String()).
					Msg("WebSocket unexpected close")
			}
			return
		}
		c.handleControl(data)
	}
}

// handleControl applies a subscribe message and answers with an acknowledgement or a rejection
func (c *Client) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Action != actionSubscribe {
		c.reply(SubscriptionRejected("expected {\"action\":\"subscribe\"}"))
		return
	}

	sub := Subscription{Entities: msg.Entities, PeriodID: msg.PeriodID}
	if err := sub.Validate(); err != nil {
		c.reply(SubscriptionRejected(err.Error()))
		return
	}

	c.subMu.Lock()
	c.sub = sub
	c.subMu.Unlock()

	log.Debug().
		Str("client_id", c.id).
		Str("owner_id", c.ownerID.String()).
		Int("entities", len(sub.Entities)).
		Bool("period_scoped", sub.PeriodID != nil).
		Msg("WebSocket subscription updated")
	c.reply(SubscriptionUpdated(sub))
}

// reply sends an event to this client only, bypassing the subscription
func (c *Client) reply(e Event) {
	data, err := e.ToJSON()
	if err != nil {
		return
	}
	if err := c.Send(data); err != nil {
		log.Debug().Err(err).Str("client_id", c.id).Msg("Dropped subscription reply")
	}
}

// WritePump writes queued events and keepalive pings. Run it in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Str("owner_id", c.ownerID.String()).
					Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
