package web

import (
	fws "github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-scalpscan/pkg/hub"
)

// handleEventsWS attaches a dashboard client to the event hub. The optional
// ?session= query narrows the feed to one session.
func (s *Server) handleEventsWS(c *fws.Conn) {
	client := hub.NewClient(s.events, c, c.Query("session"))
	if client == nil {
		return
	}
	client.Run()
}
