package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrInvalidCode        = errors.New("sign-in code is invalid or expired")
	ErrProjectNotFound    = errors.New("project not found")
	ErrBatchNotFound      = errors.New("upload batch not found")
	ErrBatchCancelled     = errors.New("upload cancelled")
	ErrEmptyBatch         = errors.New("no files were admitted")
	ErrValidation         = errors.New("validation failed")
	ErrFileNotReady       = errors.New("file has no stored content")
)

// ErrFileTooLarge is rejected at admission like an unsupported type.
var ErrFileTooLarge = fmt.Errorf("file exceeds maximum allowed size: %w", ErrUnsupportedType)

// ExtractionError reports that an extractor could not produce an Insight.
type ExtractionError struct {
	FileID   uuid.UUID
	Strategy Strategy
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Strategy, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write to the relational store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransportError reports a failed or interrupted object store transfer.
type TransportError struct {
	Key string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Key, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
