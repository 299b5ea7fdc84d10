package websocket

import (
	"context"

	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection and pumps it until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, userID string, handler MessageHandler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &Client{Hub: hub, Conn: c, UserID: userID, Send: make(chan []byte, 256), handler: handler}
	client.Hub.register <- client

	go client.writePump()
	client.readPump(ctx)
}
