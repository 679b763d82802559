package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnauthenticated    = errors.New("user is not authenticated")
	ErrForbidden          = errors.New("insufficient role for this resource")

	// Assistant errors
	ErrEmptyQuestion    = errors.New("question is empty after sanitizing")
	ErrQuestionTooLong  = errors.New("question exceeds maximum length")
	ErrAIUnavailable    = errors.New("ai provider temporarily unavailable")
	ErrEmbeddingMissing = errors.New("provider returned no embedding")

	// Indexer errors
	ErrIndexInProgress = errors.New("an index run is already in progress")
)
