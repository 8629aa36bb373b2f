package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/logger"
	"github.com/imagehost/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Retrieved is an open asset ready to be streamed. Callers must close Body.
type Retrieved struct {
	Asset *models.Asset
	Blob  *Blob
}

// RetrievalService resolves short codes to blobs and counts views.
type RetrievalService struct {
	assets *AssetRepository
	blobs  BlobStore
}

func NewRetrievalService(assets *AssetRepository, blobs BlobStore) *RetrievalService {
	return &RetrievalService{assets: assets, blobs: blobs}
}

// Resolve looks up shortCode, counts the view and opens the blob. Private
// assets resolve only for their owner; viewerID is uuid.Nil when anonymous.
// A view already counted is kept even if the blob turns out to be missing.
func (s *RetrievalService) Resolve(ctx context.Context, shortCode string, viewerID uuid.UUID) (*Retrieved, error) {
	asset, err := s.assets.FindByShortCode(ctx, shortCode)
	if errors.Is(err, ErrAssetNotFound) {
		return nil, newError(KindNotFound, MsgImageNotFound, err)
	}
	if err != nil {
		return nil, newError(KindInternal, MsgInternal, err)
	}
	if !asset.IsPublic && asset.OwnerID != viewerID {
		return nil, newError(KindNotFound, MsgImageNotFound, nil)
	}

	log := logger.WithFields(logrus.Fields{
		"short_code":  asset.ShortCode,
		"storage_key": asset.StorageKey,
	})

	if err := s.assets.IncrementViews(ctx, asset.ID); err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return nil, newError(KindNotFound, MsgImageNotFound, err)
		}
		log.WithError(err).Warn("Failed to increment view count")
	} else {
		asset.ViewCount++
	}

	blob, err := s.blobs.Open(ctx, asset.StorageKey)
	if errors.Is(err, ErrBlobNotFound) {
		log.Warn("Metadata without blob")
		return nil, newError(KindNotFound, MsgImageNotFound, err)
	}
	if err != nil {
		log.WithError(err).Error("Blob open failed")
		return nil, newError(KindStorageFailed, MsgInternal, err)
	}
	return &Retrieved{Asset: asset, Blob: blob}, nil
}
