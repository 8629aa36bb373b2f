package services

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures. The string value doubles as the
// machine-readable "code" field of error responses.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindRateLimited       Kind = "rate_limited"
	KindInvalidInput      Kind = "invalid_input"
	KindProcessingFailed  Kind = "processing_failed"
	KindStorageFailed     Kind = "storage_failed"
	KindPersistenceFailed Kind = "persistence_failed"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

// Error is the error type returned by the ingest, retrieval and deletion services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// User-facing messages.
const (
	MsgUnauthorized      = "Unauthorized"
	MsgTooManyRequests   = "Too many requests"
	MsgNoFile            = "No file provided"
	MsgFileTooLarge      = "File too large"
	MsgTypeNotAllowed    = "File type not allowed"
	MsgProcessingFailed  = "Failed to process file"
	MsgStorageFailed     = "Failed to store file"
	MsgPersistenceFailed = "Failed to save file information"
	MsgImageNotFound     = "Image not found"
	MsgDeleteFailed      = "Failed to delete image"
	MsgListFailed        = "Failed to fetch images"
	MsgInternal          = "Internal server error"
)
