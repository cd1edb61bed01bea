// internal/room/conn.go
package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event is one named message on the wire, in either direction.
type Event struct {
	Type string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Server-to-client event names.
const (
	EvRoomCreated  = "roomCreated"
	EvPlayerRole   = "playerRole"
	EvGameState    = "gameState"
	EvRoomUpdate   = "roomUpdate"
	EvMatchFound   = "matchFound"
	EvQueueJoined  = "queueJoined"
	EvEloUpdate    = "eloUpdate"
	EvNeedLogin    = "needLogin"
	EvOpponentLeft = "opponentLeft"
)

// Conn is one live websocket session as the registry sees it. The transport
// layer creates it at accept time and drains OutChan in its write pump.
type Conn struct {
	ID     uuid.UUID
	UserID uuid.UUID // uuid.Nil until the identity resolver binds one
	Cancel context.CancelFunc

	OutChan chan Event
}

// NewConn builds a registry connection handle for a resolved user.
func NewConn(userID uuid.UUID, cancel context.CancelFunc) *Conn {
	return &Conn{
		ID:      uuid.New(),
		UserID:  userID,
		Cancel:  cancel,
		OutChan: make(chan Event, 16),
	}
}

// Authenticated reports whether the identity resolver bound a user.
func (c *Conn) Authenticated() bool {
	return c.UserID != uuid.Nil
}

// Write pushes an event onto the connection's outbound channel without
// blocking. A full or abandoned channel drops the event; the write pump
// going away means the disconnect path is already tearing this conn down.
func (c *Conn) Write(ev Event) {
	select {
	case c.OutChan <- ev:
	default:
		logrus.WithFields(logrus.Fields{
			"conn": c.ID,
			"type": ev.Type,
		}).Warn("outbound channel full, dropping event")
	}
}
