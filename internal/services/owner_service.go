package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/models"
	"gorm.io/gorm"
)

var ErrOwnerNotFound = errors.New("owner not found")

// OwnerService keeps the owner records that assets point at.
type OwnerService struct {
	db *gorm.DB
}

func NewOwnerService(db *gorm.DB) *OwnerService {
	return &OwnerService{db: db}
}

// EnsureOwner returns the owner with id, creating it on first authentication.
func (s *OwnerService) EnsureOwner(ctx context.Context, id uuid.UUID, email string, role models.Role) (*models.User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("ensure owner: empty id")
	}
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = id.String() + "@users.invalid"
	}

	var u models.User
	err := s.db.WithContext(ctx).
		Where(models.User{ID: id}).
		Attrs(models.User{Email: email, Role: role}).
		FirstOrCreate(&u).Error
	if err != nil && isUniqueViolation(err) {
		// Lost a race with a concurrent first request for the same id.
		err = s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	}
	if err != nil {
		return nil, fmt.Errorf("ensure owner: %w", err)
	}
	return &u, nil
}

func (s *OwnerService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return &u, nil
}

// IncrementUploadCount bumps the owner's counter in a single UPDATE.
func (s *OwnerService) IncrementUploadCount(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("upload_count", gorm.Expr("upload_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment upload count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrOwnerNotFound
	}
	return nil
}
