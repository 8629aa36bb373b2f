package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/logger"
	"github.com/imagehost/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	if err := logger.Init(&logger.Config{Level: "error", Format: "text", Output: "console"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                   "test",
		SiteURL:               "https://img.example.com",
		DBDriver:              "sqlite",
		SQLitePath:            ":memory:",
		JWTSecret:             "test-secret",
		ShareXTokenDuration:   8760 * time.Hour,
		MaxFileSize:           10 << 20,
		AllowedFileTypes:      config.DefaultAllowedFileTypes,
		ImageMaxWidth:         2000,
		ImageMaxHeight:        2000,
		ImageJPEGQuality:      80,
		ShortCodeLength:       10,
		IdentifierMaxAttempts: 3,
		BlobBackend:           config.BlobBackendLocal,
		UploadDir:             t.TempDir(),
		UploadRateLimit:       10,
		UploadRateWindow:      time.Minute,
		RateLimitCapacity:     500,
	}
}

func newTestDB(t *testing.T, cfg *config.Config) *gorm.DB {
	t.Helper()
	db, err := models.InitDB(cfg)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createOwner(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@example.com"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// stubBlobStore wraps a real store and lets tests inject failures.
type stubBlobStore struct {
	BlobStore

	mu        sync.Mutex
	putErrs   []error
	deleteErr error
	puts      []string
	deletes   []string
}

func (s *stubBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) (int64, error) {
	s.mu.Lock()
	s.puts = append(s.puts, key)
	var err error
	if len(s.putErrs) > 0 {
		err, s.putErrs = s.putErrs[0], s.putErrs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.BlobStore.Put(ctx, key, r, size, ct)
}

func (s *stubBlobStore) Delete(ctx context.Context, key string) (DeleteOutcome, error) {
	s.mu.Lock()
	s.deletes = append(s.deletes, key)
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return BlobMissing, err
	}
	return s.BlobStore.Delete(ctx, key)
}
