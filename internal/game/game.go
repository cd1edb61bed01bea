// internal/game/game.go
package game

import "errors"

// Move rejection reasons. The websocket layer maps all of these to silent
// drops per the protocol; they exist so tests and logs can tell them apart.
var (
	ErrGameOver     = errors.New("game is already over")
	ErrColumnRange  = errors.New("column out of range")
	ErrColumnFull   = errors.New("column is full")
	ErrNotYourTurn  = errors.New("not this player's turn")
	ErrInvalidColor = errors.New("invalid player color")
)

// Game is the state machine for a single Connect Four game:
// InProgress (Winner == Empty) -> Terminal (Winner red/yellow/draw),
// with Reset returning to a fresh InProgress state.
type Game struct {
	Board         Board `json:"board"`
	CurrentPlayer Cell  `json:"currentPlayer"`
	Winner        Cell  `json:"winner"`
}

// New returns a fresh game with red to move.
func New() *Game {
	return &Game{CurrentPlayer: Red}
}

// Over reports whether the game has reached a terminal state.
func (g *Game) Over() bool {
	return g.Winner != Empty
}

// ApplyMove drops a piece of the given color into col.
//
// It validates terminal state, column range, turn order, and column
// capacity; on success it places the piece, runs win detection, marks a
// full board with no winner as a draw, and flips the current player.
// The turn flips even on a winning move; it is irrelevant once terminal.
func (g *Game) ApplyMove(color Cell, col int) error {
	if g.Over() {
		return ErrGameOver
	}
	if col < 0 || col >= Cols {
		return ErrColumnRange
	}
	if color != Red && color != Yellow {
		return ErrInvalidColor
	}
	if g.CurrentPlayer != color {
		return ErrNotYourTurn
	}
	if g.Board.Drop(col, color) < 0 {
		return ErrColumnFull
	}

	g.Winner = g.Board.CheckWinner()
	if g.Winner == Empty && g.Board.Full() {
		g.Winner = Draw
	}
	g.CurrentPlayer = color.Opponent()
	return nil
}

// Snapshot returns a copy of the game suitable for broadcasting. Callers
// hold no reference into the live state afterwards.
func (g *Game) Snapshot() Game {
	return *g
}
