// internal/models/match.go
package models

import (
	"github.com/google/uuid"
)

// MatchRecord is one completed game, pushed to the historian queue and
// persisted in the matches table.
type MatchRecord struct {
	RoomID    uuid.UUID `json:"room_id"`
	WinnerID  uuid.UUID `json:"winner_id"`
	LoserID   uuid.UUID `json:"loser_id"`
	WinnerElo int       `json:"winner_elo"`
	LoserElo  int       `json:"loser_elo"`
	Timestamp int64     `json:"timestamp"`
}
