package gateway

import (
	"time"

	"community-gateway/internal/events"
	"community-gateway/pkg/logger"

	"github.com/gorilla/websocket"
)

type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	SendBufferSize int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	return o
}

// Gateway ties the registry, router and presence tracker to live websocket
// connections.
type Gateway struct {
	opts     Options
	reg      *Registry
	router   *Router
	presence *Presence
}

func New(opts Options) *Gateway {
	reg := NewRegistry()
	return &Gateway{
		opts:     opts.withDefaults(),
		reg:      reg,
		router:   NewRouter(reg),
		presence: NewPresence(reg),
	}
}

func (g *Gateway) Router() *Router { return g.router }

func (g *Gateway) Presence() *Presence { return g.presence }

// Serve owns an upgraded socket until it closes. The caller's goroutine
// becomes the read pump.
func (g *Gateway) Serve(sock *websocket.Conn, userID, username string) {
	c := newConn(sock, userID, username, g.opts, g.presence.HandleDisconnect)
	g.reg.Register(c)
	logger.Info("Connection %s opened for %s (user %s)", c.ID, c.Username, c.UserID)

	go c.writePump()
	c.readPump(g.handleControl)
	logger.Info("Connection %s closed for %s (user %s)", c.ID, c.Username, c.UserID)
}

func (g *Gateway) handleControl(c *Conn, ctrl events.Control) {
	if ctrl.RoomID == "" {
		return
	}
	switch ctrl.Type {
	case events.ControlJoinCommunity:
		g.presence.HandleJoin(c, ctrl.RoomID)
	case events.ControlLeaveCommunity:
		g.presence.HandleLeave(c, ctrl.RoomID)
	}
}

// DisconnectUser force-closes every connection the user holds. Used when a
// credential is invalidated mid-session; the close code tells clients not to
// auto-reconnect.
func (g *Gateway) DisconnectUser(userID string) int {
	conns := g.reg.ConnsOfUser(userID)
	for _, c := range conns {
		c.CloseWithCode(events.CloseAuthInvalidated, "credential revoked")
	}
	return len(conns)
}
