// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fourline/internal/auth"
	"fourline/internal/bot"
	"fourline/internal/room"
)

// ClientMessage is one incoming wire event. Fields beyond Type are only
// meaningful for the event types that use them.
type ClientMessage struct {
	Type       string `json:"event"`
	RoomID     string `json:"roomId,omitempty"`
	Col        *int   `json:"col,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// GameWSHandler upgrades the connection, resolves the caller's identity
// from the auth cookie, and runs the read loop, dispatching wire events
// into the registry. Unauthenticated connections get a single needLogin
// notice and stay connected but inert.
func GameWSHandler(logger *logrus.Logger, reg *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"fourline"},
			OriginPatterns: []string{"*"}, // tighten in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "fourline" {
			c.Close(BadSubprotocolError, "client must speak the fourline subprotocol")
			return
		}

		userID := resolveUser(r)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := room.NewConn(userID, cancel)
		reg.Register(conn)

		logger.WithFields(logrus.Fields{
			"conn":   conn.ID,
			"user":   userID,
			"remote": r.RemoteAddr,
		}).Info("WebSocket connected")

		if !conn.Authenticated() {
			conn.Write(room.Event{Type: room.EvNeedLogin})
		}

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, reg, conn, logger)

		// disconnect cleanup must run before the close frame: queue entry
		// dropped, seat cleared, membership broadcast
		reg.Disconnect(conn)
		logger.WithField("conn", conn.ID).Info("WebSocket disconnected")
	}
}

// resolveUser is the connection identity resolver: it validates the JWT
// supplied with the handshake and returns the bound user id, or uuid.Nil
// when the connection must stay unbound.
func resolveUser(r *http.Request) uuid.UUID {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		return uuid.Nil
	}
	sub, err := auth.AuthenticateJWT(token)
	if err != nil {
		return uuid.Nil
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil
	}
	return userID
}

// readPump consumes client events until the connection closes.
func readPump(ctx context.Context, c *websocket.Conn, reg *room.Registry, conn *room.Conn, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.WithField("conn", conn.ID).Info("WebSocket closed normally")
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.WithField("conn", conn.ID).Warnf("read error: %v (status %d)", err, status)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.WithField("conn", conn.ID).Warnf("invalid json: %v", err)
			continue
		}
		dispatch(reg, conn, msg, logger)
	}
}

// dispatch translates one wire event into a registry call. Structural
// garbage (bad room ids, missing fields) is a no-op, matching the
// protocol's silent-rejection rule.
func dispatch(reg *room.Registry, conn *room.Conn, msg ClientMessage, logger *logrus.Logger) {
	switch msg.Type {
	case "createRoom":
		roomID := reg.NewRoomID()
		conn.Write(room.Event{Type: room.EvRoomCreated, Data: map[string]string{"roomId": roomID.String()}})
	case "joinRoom":
		if roomID, err := uuid.Parse(msg.RoomID); err == nil {
			reg.Join(conn, roomID)
		}
	case "move":
		roomID, err := uuid.Parse(msg.RoomID)
		if err != nil || msg.Col == nil {
			return
		}
		reg.Move(conn, roomID, *msg.Col)
	case "restart":
		if roomID, err := uuid.Parse(msg.RoomID); err == nil {
			reg.Restart(conn, roomID)
		}
	case "leaveRoom":
		if roomID, err := uuid.Parse(msg.RoomID); err == nil {
			reg.Leave(conn, roomID)
		}
	case "playOnline":
		reg.PlayOnline(conn)
	case "leaveQueue":
		reg.LeaveQueue(conn)
	case "playBot":
		reg.PlayBot(conn, bot.Difficulty(msg.Difficulty))
	default:
		logger.WithFields(logrus.Fields{
			"conn": conn.ID,
			"type": msg.Type,
		}).Warn("unknown event type")
	}
}

// writePump drains the connection's outbound channel onto the socket and
// keeps the connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *room.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("failed to marshal outgoing event: %v", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("write failed: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("ping failed, assuming disconnect: %v", err)
				return
			}
		}
	}
}
