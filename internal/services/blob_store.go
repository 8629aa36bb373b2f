package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrBlobNotFound   = errors.New("blob not found")
	ErrBlobExists     = errors.New("blob already exists")
	ErrInvalidBlobKey = errors.New("invalid blob key")
)

// DeleteOutcome distinguishes a removed blob from one that was already gone.
type DeleteOutcome int

const (
	BlobDeleted DeleteOutcome = iota
	BlobMissing
)

func (o DeleteOutcome) String() string {
	if o == BlobMissing {
		return "missing"
	}
	return "deleted"
}

// Blob is an open blob. Callers must close Body.
type Blob struct {
	Body io.ReadCloser
	Size int64
}

// BlobStore holds asset bytes under generated keys. Put never overwrites:
// an existing key yields ErrBlobExists.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Open(ctx context.Context, key string) (*Blob, error)
	Delete(ctx context.Context, key string) (DeleteOutcome, error)
}

// validateBlobKey rejects anything that could escape the content root.
func validateBlobKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidBlobKey, key)
	}
	return nil
}

// LocalBlobStore keeps blobs as flat files under a content root directory.
type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalBlobStore{root: root}, nil
}

func (s *LocalBlobStore) path(key string) string {
	return filepath.Join(s.root, key)
}

// Put streams r into a temp file, syncs it and hard-links it into place so a
// partially written blob is never visible under its final name.
func (s *LocalBlobStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (int64, error) {
	if err := validateBlobKey(key); err != nil {
		return 0, err
	}
	absPath := s.path(key)

	f, err := os.CreateTemp(s.root, "."+key+"-*.part")
	if err != nil {
		return 0, err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	if err := os.Link(tmp, absPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrBlobExists, key)
		}
		return 0, err
	}
	return n, nil
}

func (s *LocalBlobStore) Open(_ context.Context, key string) (*Blob, error) {
	if err := validateBlobKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Blob{Body: f, Size: info.Size()}, nil
}

func (s *LocalBlobStore) Delete(_ context.Context, key string) (DeleteOutcome, error) {
	if err := validateBlobKey(key); err != nil {
		return BlobMissing, err
	}
	if err := os.Remove(s.path(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return BlobMissing, nil
		}
		return BlobMissing, err
	}
	return BlobDeleted, nil
}

// ctxReader stops a copy once ctx is done (client went away mid-upload).
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
