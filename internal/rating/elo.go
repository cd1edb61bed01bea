// internal/rating/elo.go
package rating

import (
	"math"
	"os"
	"strconv"
)

const (
	// InitialElo is the rating assigned to every new user.
	InitialElo = 1500

	// DefaultKFactor matches the live service's (unusually aggressive)
	// K value. Override with the ELO_K_FACTOR env var.
	DefaultKFactor = 69
)

// KFactorFromEnv reads ELO_K_FACTOR, falling back to DefaultKFactor when
// unset or unparseable.
func KFactorFromEnv() int {
	v := os.Getenv("ELO_K_FACTOR")
	if v == "" {
		return DefaultKFactor
	}
	k, err := strconv.Atoi(v)
	if err != nil || k <= 0 {
		return DefaultKFactor
	}
	return k
}

// Expected returns the winner's expected score against the loser under the
// standard ELO formula: 0.5 means even odds, above 0.5 the favourite.
func Expected(winnerElo, loserElo int) float64 {
	return 1 / (1 + math.Pow(10, float64(loserElo-winnerElo)/400))
}

// Settle computes post-match ratings for the winner and loser with the
// given K factor. The deltas are symmetric before rounding; each side is
// rounded half away from zero independently.
func Settle(winnerElo, loserElo, k int) (newWinnerElo, newLoserElo int) {
	expectedWin := Expected(winnerElo, loserElo)
	newWinnerElo = int(math.Round(float64(winnerElo) + float64(k)*(1-expectedWin)))
	newLoserElo = int(math.Round(float64(loserElo) + float64(k)*(0-(1-expectedWin))))
	return newWinnerElo, newLoserElo
}
