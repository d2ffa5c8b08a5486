package model

import "errors"

// Common errors used across the application
var (
	// Registration errors
	ErrValidation    = errors.New("validation failed")
	ErrNotRegistered = errors.New("connection is not registered")
	ErrRateLimited   = errors.New("too many attempts")

	// Room errors
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrCodeGeneration = errors.New("could not generate a unique room code")
	ErrAlreadyInRoom  = errors.New("player is already in a room")
	ErrNotInRoom      = errors.New("player is not in a room")
	ErrInvalidState   = errors.New("action not allowed in current room state")

	// Persistence errors
	ErrProfileNotFound = errors.New("profile not found")
	ErrStatsNotFound   = errors.New("stats not found")
)
