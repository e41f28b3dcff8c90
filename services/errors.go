package services

import "errors"

// Structural errors are returned synchronously to the caller and never
// corrupt room state. Match with errors.Is.
var (
	ErrAuth             = errors.New("invalid or expired credential")
	ErrNotFound         = errors.New("room not found")
	ErrNotHost          = errors.New("only the host can start the game")
	ErrInvalidPhase     = errors.New("operation not valid in the current phase")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrCapacityExceeded = errors.New("room capacity exceeded")
	ErrAlreadyAnswered  = errors.New("answer already submitted for this question")
	ErrRoomClosed       = errors.New("room is closed")
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrQuestionBank     = errors.New("question bank unavailable")
)
