// internal/bot/bot_test.go
package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fourline/internal/game"
)

func TestChooseMoveDeterministic(t *testing.T) {
	var b game.Board
	first := ChooseMove(b, game.Red, Medium)
	require.GreaterOrEqual(t, first, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ChooseMove(b, game.Red, Medium))
	}
}

func TestChooseMoveTakesImmediateWin(t *testing.T) {
	var b game.Board
	b[5][0] = game.Yellow
	b[5][1] = game.Yellow
	b[5][2] = game.Yellow
	b[4][0] = game.Red
	b[4][1] = game.Red

	for _, d := range []Difficulty{Easy, Medium, Hard} {
		assert.Equal(t, 3, ChooseMove(b, game.Yellow, d), "difficulty %s", d)
	}
}

func TestChooseMoveBlocksOpponentWin(t *testing.T) {
	var b game.Board
	// red threatens to complete 0-3 on the bottom row
	b[5][0] = game.Red
	b[5][1] = game.Red
	b[5][2] = game.Red
	b[4][1] = game.Yellow
	b[4][2] = game.Yellow

	assert.Equal(t, 3, ChooseMove(b, game.Yellow, Medium))
}

func TestChooseMoveSingleLegalColumn(t *testing.T) {
	var b game.Board
	for c := 0; c < game.Cols; c++ {
		if c == 4 {
			continue
		}
		for r := 0; r < game.Rows; r++ {
			color := game.Red
			if (r+c)%2 == 0 {
				color = game.Yellow
			}
			b[r][c] = color
		}
	}
	assert.Equal(t, 4, ChooseMove(b, game.Red, Hard))
}

func TestChooseMoveFullBoard(t *testing.T) {
	var b game.Board
	for r := 0; r < game.Rows; r++ {
		for c := 0; c < game.Cols; c++ {
			b[r][c] = game.Red
		}
	}
	assert.Equal(t, -1, ChooseMove(b, game.Yellow, Easy))
}

func TestChooseMoveDoesNotMutateBoard(t *testing.T) {
	var b game.Board
	b[5][3] = game.Red
	before := b
	ChooseMove(b, game.Yellow, Hard)
	assert.Equal(t, before, b)
}

func TestDepthMapping(t *testing.T) {
	assert.Equal(t, 2, Depth(Easy))
	assert.Equal(t, 4, Depth(Medium))
	assert.Equal(t, 6, Depth(Hard))
	assert.Equal(t, 6, Depth("nonsense"), "unknown difficulty falls back to hard")
}
