package rating

import (
	"math"

	"github.com/mcoot/paddleduel/internal/model"
)

// KFactor is the maximum rating change for a single match
const KFactor = 32

// CalculateEloChange returns the points the winner gains and the loser loses
func CalculateEloChange(winnerRating, loserRating int) int {
	expected := 1 / (1 + math.Pow(10, float64(loserRating-winnerRating)/400))
	return int(math.Round(KFactor * (1 - expected)))
}

// ApplyEloChange adds change to rating, never going below model.MinRating
func ApplyEloChange(rating, change int) int {
	return max(rating+change, model.MinRating)
}
