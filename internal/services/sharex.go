package services

import (
	"errors"
	"fmt"

	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/pkg/jwt"
)

var ErrSiteURLNotConfigured = errors.New("site URL not configured")

// ShareXConfig is the .sxcu document ShareX imports as a custom uploader.
type ShareXConfig struct {
	Version         string            `json:"Version"`
	Name            string            `json:"Name"`
	DestinationType string            `json:"DestinationType"`
	RequestMethod   string            `json:"RequestMethod"`
	RequestURL      string            `json:"RequestURL"`
	Headers         map[string]string `json:"Headers"`
	Body            string            `json:"Body"`
	FileFormName    string            `json:"FileFormName"`
	URL             string            `json:"URL"`
	DeletionURL     string            `json:"DeletionURL"`
	DeletionMethod  string            `json:"DeletionRequestMethod"`
	ErrorMessage    string            `json:"ErrorMessage"`
}

// ShareXService builds per-user uploader configs carrying an upload token.
type ShareXService struct {
	cfg *config.Config
}

func NewShareXService(cfg *config.Config) *ShareXService {
	return &ShareXService{cfg: cfg}
}

func (s *ShareXService) Build(id jwt.Identity) (*ShareXConfig, error) {
	if s.cfg.SiteURL == "" {
		return nil, ErrSiteURLNotConfigured
	}
	token, err := jwt.GenerateToken(id, jwt.UploadToken, s.cfg.JWTSecret, s.cfg.ShareXTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("mint upload token: %w", err)
	}
	return &ShareXConfig{
		Version:         "15.0.0",
		Name:            "ImageHost",
		DestinationType: "ImageUploader, FileUploader",
		RequestMethod:   "POST",
		RequestURL:      s.cfg.SiteURL + "/api/upload",
		Headers:         map[string]string{"Authorization": "Bearer " + token},
		Body:            "MultipartFormData",
		FileFormName:    "file",
		URL:             "$json:file.url$",
		DeletionURL:     "$json:file.deleteUrl$",
		DeletionMethod:  "DELETE",
		ErrorMessage:    "$json:error$",
	}, nil
}
