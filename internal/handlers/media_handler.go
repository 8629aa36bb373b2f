package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/middleware"
	"github.com/imagehost/backend/internal/models"
	"github.com/imagehost/backend/internal/services"
	"github.com/imagehost/backend/pkg/jwt"
	"github.com/imagehost/backend/pkg/validation"
)

// multipartSlack covers boundaries and part headers on top of the file itself.
const multipartSlack = 1 << 20

const (
	publicCacheControl  = "public, max-age=31536000, immutable"
	privateCacheControl = "private, max-age=3600"
)

type MediaHandler struct {
	cfg       *config.Config
	ingest    *services.IngestService
	retrieval *services.RetrievalService
	deletion  *services.DeletionService
	assets    *services.AssetRepository
	sharex    *services.ShareXService
	qr        *services.QRService
}

func NewMediaHandler(
	cfg *config.Config,
	ingest *services.IngestService,
	retrieval *services.RetrievalService,
	deletion *services.DeletionService,
	assets *services.AssetRepository,
	sharex *services.ShareXService,
	qr *services.QRService,
) *MediaHandler {
	return &MediaHandler{
		cfg:       cfg,
		ingest:    ingest,
		retrieval: retrieval,
		deletion:  deletion,
		assets:    assets,
		sharex:    sharex,
		qr:        qr,
	}
}

// imageResponse is the public JSON shape of an asset.
type imageResponse struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	ShortURL     string    `json:"shortUrl"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	Views        int64     `json:"views"`
	IsPublic     bool      `json:"isPublic"`
	CreatedAt    time.Time `json:"createdAt"`
	URL          string    `json:"url"`
	DeleteURL    string    `json:"deleteUrl"`
}

func (h *MediaHandler) toResponse(a *models.Asset) imageResponse {
	return imageResponse{
		ID:           a.ID.String(),
		Filename:     a.StorageKey,
		OriginalName: a.OriginalName,
		ShortURL:     a.ShortCode,
		MimeType:     a.MimeType,
		Size:         a.SizeBytes,
		Width:        a.Width,
		Height:       a.Height,
		Views:        a.ViewCount,
		IsPublic:     a.IsPublic,
		CreatedAt:    a.CreatedAt,
		URL:          h.ingest.PublicURL(a.ShortCode),
		DeleteURL:    h.ingest.DeleteURL(a.ShortCode),
	}
}

// Upload handles a single file upload
// POST /api/upload
// Multipart form: file (required)
func (h *MediaHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxFileSize+multipartSlack)

	var file multipart.File
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	res, err := h.ingest.Ingest(c.Request.Context(), services.IngestRequest{
		ClientKey: middleware.ClientIP(c),
		OwnerID:   middleware.UserID(c),
		Open: func() (*services.Upload, error) {
			f, header, err := c.Request.FormFile("file")
			if err != nil {
				return nil, formFileError(err)
			}
			file = f

			mimeType, err := declaredOrSniffed(f, header)
			if err != nil {
				return nil, &services.Error{Kind: services.KindProcessingFailed, Message: services.MsgProcessingFailed, Err: err}
			}
			return &services.Upload{
				OriginalName: validation.SanitizeFilename(header.Filename),
				MimeType:     mimeType,
				Size:         header.Size,
				Body:         f,
			}, nil
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"file": gin.H{
			"id":        res.Asset.ID,
			"shortCode": res.Asset.ShortCode,
			"url":       res.URL,
			"deleteUrl": res.DeleteURL,
			"filename":  res.Asset.StorageKey,
			"size":      res.Asset.SizeBytes,
		},
	})
}

func formFileError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
		return &services.Error{Kind: services.KindInvalidInput, Message: services.MsgFileTooLarge, Err: err}
	}
	return &services.Error{Kind: services.KindInvalidInput, Message: services.MsgNoFile, Err: err}
}

// declaredOrSniffed trusts the part's Content-Type unless it is missing or generic.
func declaredOrSniffed(f multipart.File, header *multipart.FileHeader) (string, error) {
	declared := strings.TrimSpace(header.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

// Serve streams an asset by short code
// GET /i/:shortCode
func (h *MediaHandler) Serve(c *gin.Context) {
	got, err := h.retrieval.Resolve(c.Request.Context(), c.Param("shortCode"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	defer got.Blob.Body.Close()

	cacheControl := publicCacheControl
	if !got.Asset.IsPublic {
		cacheControl = privateCacheControl
	}

	c.DataFromReader(http.StatusOK, got.Blob.Size, got.Asset.MimeType, got.Blob.Body, map[string]string{
		"Cache-Control":          cacheControl,
		"Content-Disposition":    contentDisposition(got.Asset.OriginalName),
		"X-Content-Type-Options": "nosniff",
	})
}

func contentDisposition(name string) string {
	if name == "" {
		return "inline"
	}
	if v := mime.FormatMediaType("inline", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "inline"
}

// Delete removes one of the caller's assets
// DELETE /api/images/:id
func (h *MediaHandler) Delete(c *gin.Context) {
	if err := h.deletion.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// List returns the caller's assets, newest first
// GET /api/images?page=&limit=&search=
func (h *MediaHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageLimit)))

	res, err := h.assets.List(c.Request.Context(), services.ListQuery{
		OwnerID: middleware.UserID(c),
		Page:    page,
		Limit:   limit,
		Search:  c.Query("search"),
	})
	if err != nil {
		respondError(c, &services.Error{Kind: services.KindInternal, Message: services.MsgListFailed, Err: err})
		return
	}

	images := make([]imageResponse, 0, len(res.Assets))
	for i := range res.Assets {
		images = append(images, h.toResponse(&res.Assets[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"images": images,
		"pagination": gin.H{
			"page":  res.Page,
			"limit": res.Limit,
			"total": res.Total,
			"pages": res.Pages,
		},
	})
}

// ShareX returns a ShareX custom uploader file for the caller
// GET /api/sharex
func (h *MediaHandler) ShareX(c *gin.Context) {
	sx, err := h.sharex.Build(jwtIdentity(c))
	if errors.Is(err, services.ErrSiteURLNotConfigured) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Site URL not configured", "code": services.KindInternal})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ImageUploader.sxcu"`)
	c.JSON(http.StatusOK, sx)
}

func jwtIdentity(c *gin.Context) jwt.Identity {
	return jwt.Identity{
		UserID: middleware.UserID(c).String(),
		Email:  c.GetString(middleware.ContextEmail),
		Role:   c.GetString(middleware.ContextRole),
	}
}

// QRCode returns a PNG QR code of one of the caller's share links
// GET /api/images/:id/qr?size=
func (h *MediaHandler) QRCode(c *gin.Context) {
	asset, ok := h.ownedAsset(c)
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	png, err := h.qr.SharePNG(asset, size)
	if err != nil {
		respondError(c, &services.Error{Kind: services.KindProcessingFailed, Message: services.MsgProcessingFailed, Err: err})
		return
	}
	c.Header("Cache-Control", privateCacheControl)
	c.Data(http.StatusOK, "image/png", png)
}

// ShareSheet returns a printable PDF with the share link and its QR code
// GET /api/images/:id/sheet
func (h *MediaHandler) ShareSheet(c *gin.Context) {
	asset, ok := h.ownedAsset(c)
	if !ok {
		return
	}
	pdf, err := h.qr.ShareSheetPDF(asset)
	if err != nil {
		respondError(c, &services.Error{Kind: services.KindProcessingFailed, Message: services.MsgProcessingFailed, Err: err})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="share-%s.pdf"`, asset.ShortCode))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *MediaHandler) ownedAsset(c *gin.Context) (*models.Asset, bool) {
	asset, err := h.assets.FindOwned(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if errors.Is(err, services.ErrAssetNotFound) {
		respondError(c, &services.Error{Kind: services.KindNotFound, Message: services.MsgImageNotFound, Err: err})
		return nil, false
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return asset, true
}
