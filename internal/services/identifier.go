package services

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// shortCodeAlphabet is URL-safe and avoids '-' and '_' so codes survive
// being double-clicked or pasted into chat clients.
const shortCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// IdentifierAllocator draws both identifiers from crypto/rand. It does not
// consult existing records; the metadata store's unique indexes decide.
type IdentifierAllocator struct {
	codeLength int
	generate   func(alphabet string, size int) (string, error)
}

func NewIdentifierAllocator(codeLength int) *IdentifierAllocator {
	if codeLength <= 0 {
		codeLength = 10
	}
	return &IdentifierAllocator{codeLength: codeLength, generate: gonanoid.Generate}
}

// StorageKey returns a random v4 uuid followed by extension.
func (a *IdentifierAllocator) StorageKey(extension string) string {
	return uuid.New().String() + extension
}

// ShortCode returns a random code of the configured length.
func (a *IdentifierAllocator) ShortCode() (string, error) {
	code, err := a.generate(shortCodeAlphabet, a.codeLength)
	if err != nil {
		return "", fmt.Errorf("generate short code: %w", err)
	}
	return code, nil
}
