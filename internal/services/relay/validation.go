package relay

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mcoot/paddleduel/internal/model"
)

// MaxRally is the longest rally a client may report
const MaxRally = 10000

// ParseScores decodes a two-element array of non-negative integers
func ParseScores(raw json.RawMessage) ([2]int, error) {
	var values []float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return [2]int{}, fmt.Errorf("%w: scores must be an array of numbers", model.ErrValidation)
	}
	if len(values) != 2 {
		return [2]int{}, fmt.Errorf("%w: scores must have exactly 2 entries, got %d", model.ErrValidation, len(values))
	}

	var scores [2]int
	for i, v := range values {
		if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return [2]int{}, fmt.Errorf("%w: score %v is not a non-negative integer", model.ErrValidation, v)
		}
		scores[i] = int(v)
	}
	return scores, nil
}

// ValidateScoreDelta accepts next only if exactly one player's score went up by
// one and the other stayed the same
func ValidateScoreDelta(next, previous [2]int) error {
	for _, v := range next {
		if v < 0 {
			return fmt.Errorf("%w: scores must be non-negative", model.ErrValidation)
		}
	}
	d0 := next[0] - previous[0]
	d1 := next[1] - previous[1]
	if (d0 == 1 && d1 == 0) || (d0 == 0 && d1 == 1) {
		return nil
	}
	return fmt.Errorf("%w: score change %v -> %v is not a single point", model.ErrValidation, previous, next)
}

// ValidateRally floors a reported rally length and checks it is within
// [previous, MaxRally]
func ValidateRally(value float64, previous int) (int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: rally must be a finite number", model.ErrValidation)
	}
	rally := math.Floor(value)
	if rally < 0 {
		return 0, fmt.Errorf("%w: rally must be non-negative", model.ErrValidation)
	}
	if rally > MaxRally {
		return 0, fmt.Errorf("%w: rally exceeds %d", model.ErrValidation, MaxRally)
	}
	if int(rally) < previous {
		return 0, fmt.Errorf("%w: rally %d is below recorded %d", model.ErrValidation, int(rally), previous)
	}
	return int(rally), nil
}
