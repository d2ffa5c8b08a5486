package gateway

import (
	"encoding/json"
	"errors"

	"github.com/mcoot/paddleduel/internal/model"
)

// Message is an inbound client message. ID is echoed back in the ack and may
// be any JSON value.
type Message struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Ack is the reply to a client message
type Ack struct {
	Type    model.EventType `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload AckPayload      `json:"payload"`
}

// AckPayload carries either a result or an error
type AckPayload struct {
	OK     bool      `json:"ok"`
	Result any       `json:"result,omitempty"`
	Error  *AckError `json:"error,omitempty"`
}

// AckError is a client-facing error
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes sent to clients
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotRegistered  = "NOT_REGISTERED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeRoomFull       = "ROOM_FULL"
	CodeCodeGeneration = "CODE_GENERATION_FAILED"
	CodeAlreadyInRoom  = "ALREADY_IN_ROOM"
	CodeNotInRoom      = "NOT_IN_ROOM"
	CodeInvalidState   = "INVALID_STATE"
	CodeMalformed      = "MALFORMED_MESSAGE"
	CodeInternal       = "INTERNAL_ERROR"
)

// errorResponse maps domain errors to client error codes. Unknown errors are
// reported without their message.
func errorResponse(err error) *AckError {
	switch {
	case errors.Is(err, model.ErrValidation):
		return &AckError{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, model.ErrNotRegistered):
		return &AckError{Code: CodeNotRegistered, Message: err.Error()}
	case errors.Is(err, model.ErrRateLimited):
		return &AckError{Code: CodeRateLimited, Message: err.Error()}
	case errors.Is(err, model.ErrRoomNotFound):
		return &AckError{Code: CodeRoomNotFound, Message: err.Error()}
	case errors.Is(err, model.ErrRoomFull):
		return &AckError{Code: CodeRoomFull, Message: err.Error()}
	case errors.Is(err, model.ErrCodeGeneration):
		return &AckError{Code: CodeCodeGeneration, Message: err.Error()}
	case errors.Is(err, model.ErrAlreadyInRoom):
		return &AckError{Code: CodeAlreadyInRoom, Message: err.Error()}
	case errors.Is(err, model.ErrNotInRoom):
		return &AckError{Code: CodeNotInRoom, Message: err.Error()}
	case errors.Is(err, model.ErrInvalidState):
		return &AckError{Code: CodeInvalidState, Message: err.Error()}
	default:
		return &AckError{Code: CodeInternal, Message: "internal error"}
	}
}
