// internal/room/room.go
package room

import (
	"time"

	"github.com/google/uuid"

	"fourline/internal/bot"
	"fourline/internal/game"
)

// Room groups connections around a single game. Seats hold user ids, not
// connection ids: a seat, once assigned, is only cleared by that same
// user's departure. Members beyond the two seated players are tolerated
// as spectators.
type Room struct {
	ID        uuid.UUID
	Members   []uuid.UUID // connection ids, join order
	Red       uuid.UUID   // user id, uuid.Nil when open
	Yellow    uuid.UUID
	Game      *game.Game
	CreatedAt time.Time

	// BotSeat marks the yellow seat as machine-controlled.
	BotSeat       bool
	BotDifficulty bot.Difficulty
}

func newRoom(id uuid.UUID) *Room {
	return &Room{
		ID:        id,
		Game:      game.New(),
		CreatedAt: time.Now(),
	}
}

// seatOf resolves a user's seat color, or Empty for spectators.
func (rm *Room) seatOf(userID uuid.UUID) game.Cell {
	switch {
	case userID != uuid.Nil && rm.Red == userID:
		return game.Red
	case userID != uuid.Nil && rm.Yellow == userID:
		return game.Yellow
	}
	return game.Empty
}

// assignSeat gives the user red if open, else yellow if open and the user
// is not already red. Returns the seat taken, Empty if both are held.
func (rm *Room) assignSeat(userID uuid.UUID) game.Cell {
	if seat := rm.seatOf(userID); seat != game.Empty {
		return seat
	}
	if rm.Red == uuid.Nil {
		rm.Red = userID
		return game.Red
	}
	if rm.Yellow == uuid.Nil && !rm.BotSeat && rm.Red != userID {
		rm.Yellow = userID
		return game.Yellow
	}
	return game.Empty
}

// clearSeat releases whichever seat the user holds.
func (rm *Room) clearSeat(userID uuid.UUID) {
	if rm.Red == userID {
		rm.Red = uuid.Nil
	}
	if rm.Yellow == userID {
		rm.Yellow = uuid.Nil
	}
}

// hasMember reports whether the connection already joined.
func (rm *Room) hasMember(connID uuid.UUID) bool {
	for _, id := range rm.Members {
		if id == connID {
			return true
		}
	}
	return false
}

// removeMember drops the connection from the join-ordered member list.
func (rm *Room) removeMember(connID uuid.UUID) {
	for i, id := range rm.Members {
		if id == connID {
			rm.Members = append(rm.Members[:i], rm.Members[i+1:]...)
			return
		}
	}
}

// memberIDs returns the member connection ids as strings for roomUpdate.
func (rm *Room) memberIDs() []string {
	out := make([]string, 0, len(rm.Members))
	for _, id := range rm.Members {
		out = append(out, id.String())
	}
	return out
}
