package models

import (
	"bytes"
	"testing"

	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	require.NoError(t, logger.Init(&logger.Config{Level: "info", Format: "text", Output: "console"}))
	var buf bytes.Buffer
	logger.Get().SetOutput(&buf)

	db, err := InitDB(&config.Config{Env: "test", DBDriver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db, &buf
}

func TestInitDBLogsThroughLogrus(t *testing.T) {
	db, buf := openTestDB(t)

	err := db.Exec("SELECT * FROM missing_table").Error
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "component=gorm")
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "no such table: missing_table")
}

func TestInitDBUnsupportedDriver(t *testing.T) {
	_, err := InitDB(&config.Config{DBDriver: "oracle"})
	assert.EqualError(t, err, "unsupported database driver: oracle")
}

func TestAssetSearchKey(t *testing.T) {
	db, _ := openTestDB(t)

	a := &Asset{
		StorageKey:   "k1.jpg",
		OriginalName: "ÜBERSICHT.jpg",
		ShortCode:    "AbC123",
		MimeType:     "image/jpeg",
		SizeBytes:    1,
	}
	require.NoError(t, db.Create(a).Error)

	var got Asset
	require.NoError(t, db.First(&got, "id = ?", a.ID).Error)
	assert.Equal(t, "übersicht.jpg\nabc123", got.SearchKey)
}
