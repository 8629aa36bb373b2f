package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/logger"
	"github.com/sirupsen/logrus"
)

// DeletionService removes an owner's asset. The metadata delete decides the
// outcome; the blob delete before it is advisory.
type DeletionService struct {
	assets *AssetRepository
	blobs  BlobStore
}

func NewDeletionService(assets *AssetRepository, blobs BlobStore) *DeletionService {
	return &DeletionService{assets: assets, blobs: blobs}
}

// Delete removes the asset named by an internal id or short code. Unknown and
// foreign assets both report not found.
func (s *DeletionService) Delete(ctx context.Context, idOrCode string, requesterID uuid.UUID) error {
	if requesterID == uuid.Nil {
		return newError(KindUnauthorized, MsgUnauthorized, nil)
	}

	asset, err := s.assets.FindOwned(ctx, idOrCode, requesterID)
	if errors.Is(err, ErrAssetNotFound) {
		return newError(KindNotFound, MsgImageNotFound, err)
	}
	if err != nil {
		return newError(KindInternal, MsgDeleteFailed, err)
	}

	log := logger.WithFields(logrus.Fields{
		"short_code":  asset.ShortCode,
		"storage_key": asset.StorageKey,
		"owner_id":    requesterID,
	})

	outcome, err := s.blobs.Delete(ctx, asset.StorageKey)
	switch {
	case err != nil:
		log.WithError(err).Error("Blob delete failed, removing metadata anyway")
	case outcome == BlobMissing:
		log.Warn("Blob already missing")
	}

	if err := s.assets.Delete(ctx, asset.ID, requesterID); err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return newError(KindNotFound, MsgImageNotFound, err)
		}
		return newError(KindInternal, MsgDeleteFailed, err)
	}

	log.Info("Asset deleted")
	return nil
}
