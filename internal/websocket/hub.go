package websocket

import (
	"context"
	"log"
)

// Hub maintains the set of active clients, one connection per user id. A new
// connection for an already-connected user replaces the old one: the stale
// connection's session is closed and its send channel shut.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client map; it must run in its own goroutine.
func (h *Hub) Run() {
	log.Println("WebSocket hub started.")
	for {
		select {
		case client := <-h.register:
			if existing, ok := h.clients[client.UserID]; ok {
				log.Printf("user %s already connected, replacing old connection", client.UserID)
				h.drop(existing)
			}
			h.clients[client.UserID] = client
			client.start()
			log.Printf("client registered: user %s", client.UserID)

		case client := <-h.unregister:
			// Only drop the stored client; a replaced connection may
			// already have a successor in the map.
			if stored, ok := h.clients[client.UserID]; ok && stored == client {
				delete(h.clients, client.UserID)
				h.drop(client)
				log.Printf("client unregistered: user %s", client.UserID)
			}
		}
	}
}

// drop tears a client down: close the session first so its update stream
// ends, wait for the forward goroutine to drain, then close the send channel
// so writePump sends the close frame.
func (h *Hub) drop(c *Client) {
	go func() {
		c.session.Close(context.Background())
		<-c.forwardDone
		close(c.send)
	}()
}
