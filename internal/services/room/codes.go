package room

import (
	"fmt"
	"strings"

	"github.com/mcoot/paddleduel/internal/model"
)

const (
	// CodeLength is the length of generated room codes
	CodeLength = 6
	// CodeAlphabet is the set of characters room codes are drawn from
	CodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// DefaultCodeAttempts bounds the rejection sampling loop
	DefaultCodeAttempts = 10
)

// NormalizeCode trims and upper-cases a user-supplied code
func NormalizeCode(raw string) model.RoomCode {
	return model.RoomCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// ValidateCode checks that a normalized code has the expected format
func ValidateCode(code model.RoomCode) error {
	if len(code) != CodeLength {
		return fmt.Errorf("%w: room code must be %d characters", model.ErrValidation, CodeLength)
	}
	for _, ch := range code {
		if !strings.ContainsRune(CodeAlphabet, ch) {
			return fmt.Errorf("%w: room code may only contain 0-9 and A-Z", model.ErrValidation)
		}
	}
	return nil
}

// generateCode draws candidate codes until one is well-formed and unused,
// giving up after attempts tries
func (m *Manager) generateCode(attempts int) (model.RoomCode, error) {
	for range attempts {
		code := model.RoomCode(m.random.String(CodeLength, CodeAlphabet))
		if ValidateCode(code) != nil {
			continue
		}
		if _, taken := m.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", model.ErrCodeGeneration
}
