// Package gateway runs the per-connection state machine: handshake,
// authentication, room join, inbound event dispatch, and teardown.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pulsefeed/gateway/internal/auth"
	"github.com/pulsefeed/gateway/internal/presence"
	"github.com/pulsefeed/gateway/internal/relay"
	"github.com/pulsefeed/gateway/internal/ws"
	"go.uber.org/zap"
)

// Gateway accepts WebSocket connections and drives each one through
// connecting → authenticating → joined → active → closed.
type Gateway struct {
	hub      *ws.Hub
	verifier *auth.Verifier
	presence *presence.Tracker
	relay    *relay.Relay
	fanout   *relay.Fanout
	logger   *zap.Logger

	upgrader       websocket.Upgrader
	sendBuffer     int
	maxMessageSize int64
}

type Options struct {
	SendBuffer     int
	MaxMessageSize int64

	// CheckOrigin overrides the upgrader's origin policy. Nil means the
	// gorilla default (same-origin only).
	CheckOrigin func(r *http.Request) bool
}

func New(hub *ws.Hub, verifier *auth.Verifier, tracker *presence.Tracker, msgRelay *relay.Relay, fanout *relay.Fanout, opts Options, logger *zap.Logger) *Gateway {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 65536
	}
	return &Gateway{
		hub:      hub,
		verifier: verifier,
		presence: tracker,
		relay:    msgRelay,
		fanout:   fanout,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		sendBuffer:     opts.SendBuffer,
		maxMessageSize: opts.MaxMessageSize,
	}
}

// credentialFromRequest extracts the bearer credential from the
// handshake: "?token=..." first (browser WebSocket clients can't set
// headers), then "Authorization: Bearer ...".
func credentialFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// Handle is the gin handler for GET /ws.
//
// The socket is upgraded BEFORE authentication so a bad credential can
// be signaled as an error event on the socket, per the protocol, instead
// of a bare HTTP status the client's WebSocket API can't read. No
// inbound event is processed until authentication succeeds.
func (g *Gateway) Handle(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ident, err := g.verifier.Verify(credentialFromRequest(c.Request))
	if err != nil {
		g.logger.Info("connection refused", zap.Error(err))
		g.refuse(conn)
		return
	}

	client := ws.NewClient(conn, ident.UserID, g.sendBuffer, g.logger)
	g.logger.Info("connection established",
		zap.String("user_id", ident.UserID.String()),
		zap.String("conn_id", client.ID.String()))

	// Joined: bind to own room, flip presence if this is the user's
	// first connection. Presence and message operations deliberately do
	// NOT use the request context — the request context dies with the
	// handshake, while in-flight work is allowed to outlive a closing
	// connection.
	count := g.hub.Join(ident.UserID, client)
	if count == 1 {
		if _, err := g.presence.MarkOnline(context.Background(), ident.UserID); err != nil {
			g.logger.Error("presence mark online failed",
				zap.String("user_id", ident.UserID.String()),
				zap.Error(err))
		}
	}

	defer g.teardown(client)

	go client.WritePump()
	client.PrepareRead(g.maxMessageSize)
	g.readLoop(client, ident)
}

// refuse signals an authentication failure on the fresh socket and
// closes it. The connection never joins a room.
func (g *Gateway) refuse(conn *websocket.Conn) {
	deadline := time.Now().Add(5 * time.Second)
	conn.SetWriteDeadline(deadline)
	conn.WriteJSON(ws.ErrorEvent("authentication failed"))
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"),
		deadline)
	conn.Close()
}

// teardown runs the closed transition: unbind from the room
// synchronously, and mark offline only when the last connection for the
// user is gone (a second device keeps the user online).
func (g *Gateway) teardown(client *ws.Client) {
	remaining := g.hub.Leave(client.UserID, client)
	if remaining == 0 {
		if _, err := g.presence.MarkOffline(context.Background(), client.UserID); err != nil {
			g.logger.Error("presence mark offline failed",
				zap.String("user_id", client.UserID.String()),
				zap.Error(err))
		}
	}
	g.logger.Info("connection closed",
		zap.String("user_id", client.UserID.String()),
		zap.String("conn_id", client.ID.String()),
		zap.Int("remaining", remaining))
}

// readLoop processes inbound events in arrival order, one at a time.
// Sequential handling per connection is what gives same-sender messages
// their ordering guarantee; interleaving across connections is
// unconstrained.
func (g *Gateway) readLoop(client *ws.Client, ident *auth.Identity) {
	for {
		evt, err := client.ReadEvent()
		if err != nil {
			if errors.Is(err, ws.ErrMalformedEvent) {
				// Bad frame, live transport. Skip it.
				g.logger.Debug("ignoring malformed event",
					zap.String("conn_id", client.ID.String()),
					zap.Error(err))
				continue
			}
			if !ws.IsExpectedClose(err) {
				g.logger.Debug("read loop ended",
					zap.String("conn_id", client.ID.String()),
					zap.Error(err))
			}
			return
		}
		g.dispatch(client, ident, evt)
	}
}

// dispatch routes one validated envelope. Each arm re-validates its own
// payload; malformed payloads never reach the relay or fan-out engine.
func (g *Gateway) dispatch(client *ws.Client, ident *auth.Identity, evt *ws.Event) {
	switch evt.Type {
	case ws.EventTypingStart, ws.EventTypingStop:
		p, err := ws.ParseTyping(evt.Data)
		if err != nil {
			// Typing is fire-and-forget; a bad payload is just dropped.
			return
		}
		g.hub.RelayTyping(ident.UserID, p.ChatID, evt.Type == ws.EventTypingStart)

	case ws.EventSendMessage:
		p, err := ws.ParseSendMessage(evt.Data)
		if err != nil {
			client.TrySend(ws.ErrorEvent("receiver_id and content are required"))
			return
		}
		if _, err := g.relay.SendMessage(context.Background(), ident.UserID, *p); err != nil {
			g.logger.Error("message send failed",
				zap.String("sender_id", ident.UserID.String()),
				zap.String("receiver_id", p.ReceiverID.String()),
				zap.Error(err))
			// Persistence failure surfaces to the sender, and only the
			// sender. The receiver saw nothing.
			client.TrySend(ws.ErrorEvent("failed to send message"))
		}

	case ws.EventNewPost:
		p, err := ws.ParseNewPost(evt.Data)
		if err != nil {
			client.TrySend(ws.ErrorEvent("post with id is required"))
			return
		}
		// Author comes from the authenticated identity, same rule as
		// message senders.
		p.Post.AuthorID = ident.UserID
		if err := g.fanout.NotifyNewPost(context.Background(), ident.UserID, p.Post); err != nil {
			// Fan-out failure is operator-facing; followers simply don't
			// get the live event and nothing partial went out.
			g.logger.Error("post fan-out aborted",
				zap.String("post_id", p.Post.ID.String()),
				zap.Error(err))
		}

	default:
		g.logger.Debug("ignoring unknown event type",
			zap.String("type", string(evt.Type)),
			zap.String("conn_id", client.ID.String()))
	}
}
