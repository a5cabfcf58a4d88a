package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"friendsync/internal/config"
	"friendsync/internal/session"
	"friendsync/internal/wire"
)

var newline = []byte("\n")

// Client is a middleman between one websocket connection and its sync
// session. Inbound frames become session ops; the session's update stream is
// marshalled onto the connection.
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// Buffered channel of outbound frames, already marshalled.
	send chan []byte

	// Authenticated user id for this connection.
	UserID string

	session *session.Session

	// Closed when forwardUpdates exits, so the hub knows nothing will
	// write to send anymore.
	forwardDone chan struct{}

	wsCfg config.WebSocketConfig
}

// start launches the pumps. Called by the hub once the client is registered
// so a replaced predecessor is already detached.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
	go c.forwardUpdates()
	if err := c.session.Start(context.Background()); err != nil {
		log.Printf("session start failed for user %s: %v", c.UserID, err)
	}
}

// forwardUpdates drains the session's update stream onto the send channel.
// Exits when the session closes the stream.
func (c *Client) forwardUpdates() {
	defer close(c.forwardDone)
	for update := range c.session.Updates() {
		payload, err := json.Marshal(wire.FromUpdate(update))
		if err != nil {
			log.Printf("marshal update for user %s failed: %v", c.UserID, err)
			continue
		}
		select {
		case c.send <- payload:
		default:
			log.Printf("send buffer full for user %s, dropping %s frame", c.UserID, update.Kind)
		}
	}
}

// readPump pumps frames from the websocket connection into session ops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	pongWait := time.Duration(c.wsCfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(c.wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error (user %s): %v", c.UserID, err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			log.Printf("user %s sent non-text message type %d, ignoring", c.UserID, messageType)
			continue
		}

		var frame wire.ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("bad frame from user %s: %v", c.UserID, err)
			continue
		}
		c.dispatch(frame)
	}
}

// dispatch runs one client op against the session. Op errors surface through
// the session's error updates, so failures here are only logged.
func (c *Client) dispatch(frame wire.ClientFrame) {
	ctx := context.Background()
	switch frame.Op {
	case wire.OpSendMessage:
		if _, err := c.session.SendMessage(ctx, frame.ReceiverID, frame.Content); err != nil {
			log.Printf("user %s: send_message to %s failed: %v", c.UserID, frame.ReceiverID, err)
		}
	case wire.OpFriendRequest:
		if err := c.session.SendFriendRequest(ctx, frame.UserID); err != nil {
			log.Printf("user %s: friend_request to %s failed: %v", c.UserID, frame.UserID, err)
		}
	case wire.OpAcceptRequest:
		if err := c.session.AcceptRequest(ctx, frame.UserID); err != nil {
			log.Printf("user %s: accept_request from %s failed: %v", c.UserID, frame.UserID, err)
		}
	case wire.OpRejectRequest:
		if err := c.session.RejectRequest(ctx, frame.UserID); err != nil {
			log.Printf("user %s: reject_request from %s failed: %v", c.UserID, frame.UserID, err)
		}
	case wire.OpMarkRead:
		c.session.MarkRead(ctx, frame.NotificationID)
	case wire.OpDismiss:
		c.session.Dismiss(ctx, frame.NotificationID)
	case wire.OpClearError:
		c.session.ClearError()
	default:
		log.Printf("user %s sent unknown op %q", c.UserID, frame.Op)
	}
}

// writePump pumps frames from the send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(time.Duration(c.wsCfg.PingPeriodSeconds) * time.Second)
	writeWait := time.Duration(c.wsCfg.WriteWaitSeconds) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Aggregate whatever else is queued into the same write.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// ServeWsPerConnection upgrades an authenticated request and hands the
// connection, with a freshly built session, to the hub.
func ServeWsPerConnection(hub *Hub, sess *session.Session, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsCfg.MaxMessageSizeBytes,
		WriteBufferSize: wsCfg.MaxMessageSizeBytes,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ServeWsPerConnection upgrade failed:", err)
		return
	}
	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, wsCfg.SendBufferFrames),
		UserID:      sess.UserID(),
		session:     sess,
		forwardDone: make(chan struct{}),
		wsCfg:       wsCfg,
	}
	client.hub.register <- client

	log.Printf("client connected: user %s", client.UserID)
}
