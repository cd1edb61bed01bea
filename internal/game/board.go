// internal/game/board.go
package game

import "encoding/json"

const (
	// Rows and Cols are the standard Connect Four board dimensions.
	Rows = 6
	Cols = 7
)

// Cell is the content of one board position. The zero value is an empty cell.
// It also doubles as a player color ("red" or "yellow").
type Cell string

const (
	Empty  Cell = ""
	Red    Cell = "red"
	Yellow Cell = "yellow"

	// Draw is only ever used as a Game winner value, never as a board cell.
	Draw Cell = "draw"
)

// Opponent returns the other player color. Calling it on anything but
// Red or Yellow returns Empty.
func (c Cell) Opponent() Cell {
	switch c {
	case Red:
		return Yellow
	case Yellow:
		return Red
	}
	return Empty
}

// MarshalJSON emits empty cells as JSON null so the wire format matches
// what clients expect for an unoccupied position.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// UnmarshalJSON accepts null or a color string.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Cell(s)
	return nil
}

// Board is the 6x7 grid in row-major order; row 0 is the top row,
// row 5 the bottom. Cells below the first empty cell of a column are
// always filled (gravity).
type Board [Rows][Cols]Cell

// Drop places color in col, landing in the lowest empty row.
// Returns the landing row, or -1 if the column is full.
func (b *Board) Drop(col int, color Cell) int {
	for r := Rows - 1; r >= 0; r-- {
		if b[r][col] == Empty {
			b[r][col] = color
			return r
		}
	}
	return -1
}

// Full reports whether no legal moves remain.
func (b *Board) Full() bool {
	for c := 0; c < Cols; c++ {
		if b[0][c] == Empty {
			return false
		}
	}
	return true
}

// LegalMoves returns the columns that can still accept a piece,
// in ascending order.
func (b *Board) LegalMoves() []int {
	var out []int
	for c := 0; c < Cols; c++ {
		if b[0][c] == Empty {
			out = append(out, c)
		}
	}
	return out
}

// directions probed by CheckWinner: right, down, down-right, up-right.
// Every run of four is discovered from its earliest cell in the row-major
// scan, so the negative directions never need probing.
var winDirections = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{-1, 1},
}

// CheckWinner scans the board row-major and returns the color owning a run
// of four in any row, column, or diagonal, or Empty if there is none.
func (b *Board) CheckWinner() Cell {
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			player := b[r][c]
			if player == Empty {
				continue
			}
			for _, d := range winDirections {
				count := 1
				for step := 1; step < 4; step++ {
					nr := r + step*d[0]
					nc := c + step*d[1]
					if nr < 0 || nr >= Rows || nc < 0 || nc >= Cols || b[nr][nc] != player {
						break
					}
					count++
				}
				if count == 4 {
					return player
				}
			}
		}
	}
	return Empty
}
