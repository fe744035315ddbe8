package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 5 / 6
	maxMessageSize = 512
	sendBuffer     = 10
)

// Client is one participant page watching a card.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and streams updates for token until the peer
// goes away. The snapshot, when given, is the first frame the viewer gets.
// The feed is read-only; inbound frames are discarded.
func ServeWS(w http.ResponseWriter, r *http.Request, hub *Hub, token string, snapshot *BalanceUpdate) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if snapshot != nil {
		if payload, err := json.Marshal(snapshot); err == nil {
			client.send <- payload
		}
	}
	hub.Register(token, client)
	go client.writePump(hub, token)
	client.readPump(hub, token)
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) readPump(hub *Hub, token string) {
	defer func() {
		hub.Unregister(token, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *Client) writePump(hub *Hub, token string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		hub.Unregister(token, c)
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
