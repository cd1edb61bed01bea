// internal/rating/settler.go
package rating

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the narrow persistence surface the settler needs. The real
// implementation lives in internal/database; tests substitute an in-memory
// fake.
type Store interface {
	// ReadRatings returns current ratings for the given user ids in one
	// batched read. Ids absent from the result are treated as unrated.
	ReadRatings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
	// WriteRating durably stores a user's new rating.
	WriteRating(ctx context.Context, id uuid.UUID, elo int) error
	// RecordMatch appends a match history record.
	RecordMatch(ctx context.Context, winnerID, loserID uuid.UUID) error
}

// Result carries the settled ratings back to the transport layer for the
// eloUpdate broadcast.
type Result struct {
	WinnerID     uuid.UUID `json:"winnerId"`
	NewWinnerElo int       `json:"newWinnerElo"`
	LoserID      uuid.UUID `json:"loserId"`
	NewLoserElo  int       `json:"newLoserElo"`
}

// Settler applies ELO settlement at match end and persists the outcome.
type Settler struct {
	Store  Store
	K      int
	Logger *logrus.Logger
}

// NewSettler builds a Settler with the given store and K factor. A nil
// logger falls back to the logrus standard logger.
func NewSettler(store Store, k int, logger *logrus.Logger) *Settler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if k <= 0 {
		k = DefaultKFactor
	}
	return &Settler{Store: store, K: k, Logger: logger}
}

// SettleMatch reads both ratings, computes the update, and persists the new
// ratings plus a match history record. It returns an error — and no Result —
// if any write fails: the eloUpdate broadcast must not claim a rating
// change that was not durably recorded.
func (s *Settler) SettleMatch(ctx context.Context, winnerID, loserID uuid.UUID) (*Result, error) {
	ratings, err := s.Store.ReadRatings(ctx, []uuid.UUID{winnerID, loserID})
	if err != nil {
		return nil, fmt.Errorf("read ratings: %w", err)
	}

	winnerElo, ok := ratings[winnerID]
	if !ok {
		winnerElo = InitialElo
	}
	loserElo, ok := ratings[loserID]
	if !ok {
		loserElo = InitialElo
	}

	newWinnerElo, newLoserElo := Settle(winnerElo, loserElo, s.K)

	if err := s.Store.WriteRating(ctx, winnerID, newWinnerElo); err != nil {
		return nil, fmt.Errorf("write winner rating: %w", err)
	}
	if err := s.Store.WriteRating(ctx, loserID, newLoserElo); err != nil {
		return nil, fmt.Errorf("write loser rating: %w", err)
	}
	if err := s.Store.RecordMatch(ctx, winnerID, loserID); err != nil {
		return nil, fmt.Errorf("record match: %w", err)
	}

	s.Logger.WithFields(logrus.Fields{
		"winner":  winnerID,
		"loser":   loserID,
		"new_elo": newWinnerElo,
	}).Info("Match settled")

	return &Result{
		WinnerID:     winnerID,
		NewWinnerElo: newWinnerElo,
		LoserID:      loserID,
		NewLoserElo:  newLoserElo,
	}, nil
}
