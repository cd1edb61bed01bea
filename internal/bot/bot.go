// internal/bot/bot.go
package bot

import (
	"math"

	"fourline/internal/game"
)

// Difficulty selects the minimax search depth.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// searchDepth maps a difficulty to a fixed number of plies.
var searchDepth = map[Difficulty]int{
	Easy:   2,
	Medium: 4,
	Hard:   6,
}

// Heuristic weights. A window is any 4 contiguous cells in a row, column,
// or diagonal. The opponent's open three outweighs our own so the bot
// blocks before it builds.
const (
	winScore        = 10000
	windowFour      = 100000
	windowThree     = 100
	windowTwo       = 10
	oppThreePenalty = 150 // windowThree * 1.5
	centerBonus     = 3
)

// Depth returns the search depth for a difficulty, defaulting to Hard for
// unknown values.
func Depth(d Difficulty) int {
	if depth, ok := searchDepth[d]; ok {
		return depth
	}
	return searchDepth[Hard]
}

// ChooseMove picks a column for botColor on the given board using minimax
// with alpha-beta pruning. It is deterministic: columns are explored left
// to right and the first move achieving the best score wins ties. The
// caller's board is never mutated; every simulated move operates on a copy.
//
// Returns -1 only if the board has no legal moves.
func ChooseMove(b game.Board, botColor game.Cell, difficulty Difficulty) int {
	moves := b.LegalMoves()
	if len(moves) == 0 {
		return -1
	}
	if len(moves) == 1 {
		return moves[0]
	}

	depth := Depth(difficulty)
	bestMove := moves[0]
	bestScore := math.MinInt
	alpha, beta := math.MinInt, math.MaxInt

	for _, col := range moves {
		next := b
		next.Drop(col, botColor)
		score := minimax(next, depth-1, alpha, beta, false, botColor)
		if score > bestScore {
			bestScore = score
			bestMove = col
		}
		if bestScore > alpha {
			alpha = bestScore
		}
	}
	return bestMove
}

// minimax returns the value of the position for botColor. The bot
// maximizes, the opponent minimizes.
func minimax(b game.Board, depth, alpha, beta int, maximizing bool, botColor game.Cell) int {
	switch b.CheckWinner() {
	case botColor:
		return winScore
	case botColor.Opponent():
		return -winScore
	}
	if depth == 0 || b.Full() {
		return evaluate(b, botColor)
	}

	moves := b.LegalMoves()
	if maximizing {
		best := math.MinInt
		for _, col := range moves {
			next := b
			next.Drop(col, botColor)
			score := minimax(next, depth-1, alpha, beta, false, botColor)
			if score > best {
				best = score
			}
			if best > alpha {
				alpha = best
			}
			if beta <= alpha {
				break
			}
		}
		return best
	}

	best := math.MaxInt
	opp := botColor.Opponent()
	for _, col := range moves {
		next := b
		next.Drop(col, opp)
		score := minimax(next, depth-1, alpha, beta, true, botColor)
		if score < best {
			best = score
		}
		if best < beta {
			beta = best
		}
		if beta <= alpha {
			break
		}
	}
	return best
}

// evaluate scores the whole board for botColor by sliding a 4-cell window
// across every horizontal, vertical, and diagonal line, plus a small bonus
// for center-column control.
func evaluate(b game.Board, botColor game.Cell) int {
	score := 0

	for r := 0; r < game.Rows; r++ {
		for c := 0; c <= game.Cols-4; c++ {
			score += scoreWindow(botColor, b[r][c], b[r][c+1], b[r][c+2], b[r][c+3])
		}
	}
	for c := 0; c < game.Cols; c++ {
		for r := 0; r <= game.Rows-4; r++ {
			score += scoreWindow(botColor, b[r][c], b[r+1][c], b[r+2][c], b[r+3][c])
		}
	}
	for r := 0; r <= game.Rows-4; r++ {
		for c := 0; c <= game.Cols-4; c++ {
			score += scoreWindow(botColor, b[r][c], b[r+1][c+1], b[r+2][c+2], b[r+3][c+3])
		}
	}
	for r := 3; r < game.Rows; r++ {
		for c := 0; c <= game.Cols-4; c++ {
			score += scoreWindow(botColor, b[r][c], b[r-1][c+1], b[r-2][c+2], b[r-3][c+3])
		}
	}

	center := game.Cols / 2
	for r := 0; r < game.Rows; r++ {
		switch b[r][center] {
		case botColor:
			score += centerBonus
		case botColor.Opponent():
			score -= centerBonus
		}
	}
	return score
}

// scoreWindow scores one 4-cell window for botColor.
func scoreWindow(botColor game.Cell, cells ...game.Cell) int {
	var bot, opp, empty int
	for _, cell := range cells {
		switch cell {
		case botColor:
			bot++
		case game.Empty:
			empty++
		default:
			opp++
		}
	}

	score := 0
	switch {
	case bot == 4:
		score += windowFour
	case bot == 3 && empty == 1:
		score += windowThree
	case bot == 2 && empty == 2:
		score += windowTwo
	}
	switch {
	case opp == 4:
		score -= windowFour
	case opp == 3 && empty == 1:
		score -= oppThreePenalty
	case opp == 2 && empty == 2:
		score -= windowTwo
	}
	return score
}
