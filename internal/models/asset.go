package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Asset represents an uploaded file. Bytes live in the blob store under
// StorageKey; ShortCode is the public handle used in /i/{code} links.
type Asset struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StorageKey   string    `gorm:"size:255;not null;uniqueIndex" json:"filename"`
	OriginalName string    `gorm:"size:255;not null" json:"originalName"`
	ShortCode    string    `gorm:"size:32;not null;uniqueIndex" json:"shortUrl"`
	MimeType     string    `gorm:"size:120;not null" json:"mimeType"`
	SizeBytes    int64     `gorm:"not null" json:"size"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	OwnerID      uuid.UUID `gorm:"type:uuid;not null;index" json:"ownerId"`
	IsPublic     bool      `gorm:"not null;default:true" json:"isPublic"`
	ViewCount    int64     `gorm:"not null;default:0" json:"views"`
	// SearchKey is the Unicode lower-cased name and short code; SQLite's LOWER folds ASCII only.
	SearchKey string `gorm:"size:300;not null;default:''" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.SearchKey = SearchKeyFor(a.OriginalName, a.ShortCode)
	return nil
}

// SearchKeyFor folds name and short code into the form List matches against.
func SearchKeyFor(originalName, shortCode string) string {
	return strings.ToLower(originalName) + "\n" + strings.ToLower(shortCode)
}
