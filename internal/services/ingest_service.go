package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/logger"
	"github.com/imagehost/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// UploadRateKeyPrefix namespaces upload counters in a shared limiter backend.
const UploadRateKeyPrefix = "upload:"

// Upload is the file part of a request. Size is what the transport reported;
// the body is still checked against the ceiling while it is read.
type Upload struct {
	OriginalName string
	MimeType     string
	Size         int64
	Body         io.Reader
}

// UploadOpener produces the upload once the request has been admitted, so a
// rate-limited client never has its payload parsed.
type UploadOpener func() (*Upload, error)

// StaticUpload wraps an already parsed upload.
func StaticUpload(u *Upload) UploadOpener {
	return func() (*Upload, error) { return u, nil }
}

type IngestRequest struct {
	ClientKey string
	OwnerID   uuid.UUID
	Open      UploadOpener
}

// IngestResult is the persisted asset plus its public links.
type IngestResult struct {
	Asset     *models.Asset
	URL       string
	DeleteURL string
}

// IngestService runs rate check, validation, transform, blob write and
// metadata insert in that order. The blob is always written before its record.
type IngestService struct {
	cfg         *config.Config
	limiter     RateLimiter
	validator   *Validator
	transformer *Transformer
	ids         *IdentifierAllocator
	blobs       BlobStore
	assets      *AssetRepository
	owners      *OwnerService
}

func NewIngestService(
	cfg *config.Config,
	limiter RateLimiter,
	validator *Validator,
	transformer *Transformer,
	ids *IdentifierAllocator,
	blobs BlobStore,
	assets *AssetRepository,
	owners *OwnerService,
) *IngestService {
	return &IngestService{
		cfg:         cfg,
		limiter:     limiter,
		validator:   validator,
		transformer: transformer,
		ids:         ids,
		blobs:       blobs,
		assets:      assets,
		owners:      owners,
	}
}

func (s *IngestService) maxAttempts() int {
	if s.cfg.IdentifierMaxAttempts < 1 {
		return 1
	}
	return s.cfg.IdentifierMaxAttempts
}

// Ingest stores one upload and returns the created asset.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	log := logger.WithFields(logrus.Fields{
		"owner_id": req.OwnerID,
		"client":   req.ClientKey,
	})

	if req.OwnerID == uuid.Nil {
		return nil, newError(KindUnauthorized, MsgUnauthorized, nil)
	}

	allowed, err := s.limiter.Allow(ctx, UploadRateKeyPrefix+req.ClientKey)
	if err != nil {
		log.WithError(err).Warn("Upload rate limiter unavailable, allowing request")
		allowed = true
	}
	if !allowed {
		log.Info("Upload rate limited")
		return nil, newError(KindRateLimited, MsgTooManyRequests, nil)
	}

	if req.Open == nil {
		return nil, newError(KindInvalidInput, MsgNoFile, nil)
	}
	up, err := req.Open()
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, newError(KindInvalidInput, MsgNoFile, err)
	}
	log = log.WithField("mime_type", up.MimeType)

	if err := s.validator.Validate(up.Size, up.MimeType); err != nil {
		return nil, validationFailure(err)
	}

	data, err := readBounded(up.Body, s.validator.MaxSize())
	if err != nil {
		return nil, err
	}

	out, err := s.transformer.Transform(data, up.MimeType)
	if err != nil {
		log.WithError(err).Warn("Transform failed")
		return nil, newError(KindProcessingFailed, MsgProcessingFailed, err)
	}

	key, written, err := s.writeBlob(ctx, out)
	if err != nil {
		log.WithError(err).Error("Blob write failed")
		return nil, newError(KindStorageFailed, MsgStorageFailed, err)
	}
	log = log.WithField("storage_key", key)

	asset := &models.Asset{
		StorageKey:   key,
		OriginalName: up.OriginalName,
		MimeType:     out.MimeType,
		SizeBytes:    written,
		Width:        out.Width,
		Height:       out.Height,
		OwnerID:      req.OwnerID,
		IsPublic:     true,
	}
	if err := s.persist(ctx, asset); err != nil {
		log.WithError(err).Error("Metadata insert failed, blob is orphaned")
		s.handleOrphan(ctx, key, log)
		return nil, newError(KindPersistenceFailed, MsgPersistenceFailed, err)
	}
	log = log.WithField("short_code", asset.ShortCode)

	if err := s.owners.IncrementUploadCount(ctx, req.OwnerID); err != nil {
		log.WithError(err).Warn("Failed to increment upload count")
	}

	log.WithField("size", written).Info("Upload stored")
	return &IngestResult{
		Asset:     asset,
		URL:       s.PublicURL(asset.ShortCode),
		DeleteURL: s.DeleteURL(asset.ShortCode),
	}, nil
}

// writeBlob puts the transformed bytes under a fresh storage key, drawing a
// new key when the store reports the key as taken.
func (s *IngestService) writeBlob(ctx context.Context, out *TransformResult) (string, int64, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts(); attempt++ {
		key := s.ids.StorageKey(out.Extension)
		n, err := s.blobs.Put(ctx, key, bytes.NewReader(out.Data), int64(len(out.Data)), out.MimeType)
		if err == nil {
			return key, n, nil
		}
		if !errors.Is(err, ErrBlobExists) {
			return "", 0, err
		}
		lastErr = err
	}
	return "", 0, lastErr
}

// persist inserts the record, redrawing the short code on a unique index hit.
func (s *IngestService) persist(ctx context.Context, asset *models.Asset) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts(); attempt++ {
		code, err := s.ids.ShortCode()
		if err != nil {
			return err
		}
		asset.ID = uuid.Nil
		asset.ShortCode = code

		err = s.assets.Create(ctx, asset)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateIdentifier) {
			return err
		}
		logger.WithField("attempt", attempt+1).Warn("Short code collision, reallocating")
		lastErr = err
	}
	return lastErr
}

// handleOrphan removes the unreferenced blob when cleanup is enabled.
func (s *IngestService) handleOrphan(ctx context.Context, key string, log *logrus.Entry) {
	if !s.cfg.OrphanCleanupEnabled {
		return
	}
	outcome, err := s.blobs.Delete(context.WithoutCancel(ctx), key)
	if err != nil {
		log.WithError(err).Error("Orphan cleanup failed")
		return
	}
	log.WithField("outcome", outcome.String()).Info("Orphan blob removed")
}

func (s *IngestService) PublicURL(shortCode string) string {
	return s.cfg.SiteURL + "/i/" + shortCode
}

func (s *IngestService) DeleteURL(shortCode string) string {
	return s.cfg.SiteURL + "/api/images/" + shortCode
}

// readBounded reads at most limit bytes; one byte more means the upload lied about its size.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, newError(KindInvalidInput, MsgNoFile, nil)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, newError(KindInvalidInput, MsgFileTooLarge, err)
		}
		return nil, newError(KindProcessingFailed, MsgProcessingFailed, err)
	}
	if int64(len(data)) > limit {
		return nil, newError(KindInvalidInput, MsgFileTooLarge,
			&ValidationError{Failure: FailureTooLarge, Size: int64(len(data)), Max: limit})
	}
	return data, nil
}

func validationFailure(err error) *Error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return newError(KindInvalidInput, ve.Error(), ve)
	}
	return newError(KindInvalidInput, err.Error(), err)
}
