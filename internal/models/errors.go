package models

import "errors"

var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrSchemaMismatch     = errors.New("feature schema mismatch")
	ErrUnknownEntity      = errors.New("unknown entity")
	ErrModelUnavailable   = errors.New("model unavailable")
	ErrPersistence        = errors.New("model persistence failed")
	ErrTrainingInProgress = errors.New("training already in progress")
)
