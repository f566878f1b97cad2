// internal/models/errors.go
package models

import "errors"

// Store-level sentinel errors shared by every Session Store implementation.
var (
	ErrNotFound             = errors.New("not found")
	ErrCharacterTaken       = errors.New("character already taken")
	ErrRoomCodeTaken        = errors.New("room code already in use")
	ErrWaitingSessionExists = errors.New("waiting session already exists for game")
	// ErrUnsupported is returned when the store schema lacks a column an operation needs.
	ErrUnsupported = errors.New("operation not supported by store schema")
)
