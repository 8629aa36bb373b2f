package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrAssetNotFound       = errors.New("asset not found")
	ErrDuplicateIdentifier = errors.New("duplicate asset identifier")
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ListQuery selects one page of a caller's assets.
type ListQuery struct {
	OwnerID uuid.UUID
	Page    int
	Limit   int
	Search  string
}

// Normalize clamps page and limit into their valid ranges.
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	q.Search = strings.TrimSpace(q.Search)
}

type ListResult struct {
	Assets []models.Asset
	Total  int64
	Page   int
	Limit  int
	Pages  int
}

// AssetRepository is the metadata store for assets. Counters are updated
// with single UPDATE statements so concurrent increments are not lost.
type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts a; a unique index hit is reported as ErrDuplicateIdentifier.
func (r *AssetRepository) Create(ctx context.Context, a *models.Asset) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentifier
		}
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (r *AssetRepository) FindByShortCode(ctx context.Context, code string) (*models.Asset, error) {
	var a models.Asset
	err := r.db.WithContext(ctx).Where("short_code = ?", code).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find asset by short code: %w", err)
	}
	return &a, nil
}

// FindOwned looks an asset up by internal id or short code, restricted to ownerID.
func (r *AssetRepository) FindOwned(ctx context.Context, idOrCode string, ownerID uuid.UUID) (*models.Asset, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if id, err := uuid.Parse(idOrCode); err == nil {
		q = q.Where("id = ? OR short_code = ?", id, idOrCode)
	} else {
		q = q.Where("short_code = ?", idOrCode)
	}

	var a models.Asset
	err := q.First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find owned asset: %w", err)
	}
	return &a, nil
}

// List returns the owner's assets newest first.
func (r *AssetRepository) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	q.Normalize()

	query := r.db.WithContext(ctx).Model(&models.Asset{}).Where("owner_id = ?", q.OwnerID)
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		query = query.Where(`search_key LIKE ? ESCAPE '\'`, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count assets: %w", err)
	}

	assets := []models.Asset{}
	if err := query.Order("created_at DESC").Order("id").
		Limit(q.Limit).Offset((q.Page - 1) * q.Limit).
		Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return &ListResult{Assets: assets, Total: total, Page: q.Page, Limit: q.Limit, Pages: pages}, nil
}

// IncrementViews adds one to the view counter in the database.
func (r *AssetRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment views: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAssetNotFound
	}
	return nil
}

// Delete removes the record if it still belongs to ownerID.
func (r *AssetRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Asset{})
	if res.Error != nil {
		return fmt.Errorf("delete asset: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// isUniqueViolation recognises duplicate keys across the supported drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
