package services

import (
	"strings"
)

// FailureKind says why an upload was rejected by the Validator.
type FailureKind string

const (
	FailureTooLarge        FailureKind = "too_large"
	FailureUnsupportedType FailureKind = "unsupported_type"
)

// ValidationError is returned by Validate; it is always wrapped in an
// *Error of KindInvalidInput by the ingest service.
type ValidationError struct {
	Failure FailureKind
	Size    int64
	Max     int64
	Type    string
}

func (e *ValidationError) Error() string {
	switch e.Failure {
	case FailureTooLarge:
		return MsgFileTooLarge
	default:
		return MsgTypeNotAllowed
	}
}

// Validator enforces upload size and MIME policy before any bytes are read.
type Validator struct {
	maxSize int64
	allowed map[string]bool
}

func NewValidator(maxSize int64, allowedTypes []string) *Validator {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Validator{maxSize: maxSize, allowed: allowed}
}

// MaxSize returns the configured byte ceiling.
func (v *Validator) MaxSize() int64 { return v.maxSize }

// Validate checks the transport-reported size and declared MIME type.
// A type must be both configured and known to the transform pipeline.
func (v *Validator) Validate(size int64, mimeType string) error {
	if size > v.maxSize {
		return &ValidationError{Failure: FailureTooLarge, Size: size, Max: v.maxSize}
	}
	mimeType = normalizeMimeType(mimeType)
	if _, known := LookupMediaType(mimeType); !known || !v.allowed[mimeType] {
		return &ValidationError{Failure: FailureUnsupportedType, Type: mimeType}
	}
	return nil
}

// normalizeMimeType lower-cases and strips parameters ("image/png; foo=bar").
func normalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
