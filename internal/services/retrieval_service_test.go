package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mp4Bytes = []byte("\x00\x00\x00\x18ftypmp42 retrieval")

func TestResolveStreamsAndCounts(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	owner := createOwner(t, p.db)

	res, err := p.upload(t, owner, mp4Bytes, "video/mp4")
	require.NoError(t, err)

	got, err := p.retrieval.Resolve(ctx, res.Asset.ShortCode, uuid.Nil)
	require.NoError(t, err)
	body, err := io.ReadAll(got.Blob.Body)
	require.NoError(t, got.Blob.Body.Close())
	require.NoError(t, err)

	assert.Equal(t, mp4Bytes, body)
	assert.Equal(t, int64(len(mp4Bytes)), got.Blob.Size)
	assert.Equal(t, int64(1), got.Asset.ViewCount)
}

func TestResolveUnknownCode(t *testing.T) {
	p := newPipeline(t)
	_, err := p.retrieval.Resolve(context.Background(), "nope", uuid.Nil)
	require.Error(t, err)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindNotFound, e.Kind)
	assert.Equal(t, MsgImageNotFound, e.Message)
}

func TestResolveConcurrentViews(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	owner := createOwner(t, p.db)
	res, err := p.upload(t, owner, mp4Bytes, "video/mp4")
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.retrieval.Resolve(ctx, res.Asset.ShortCode, uuid.Nil)
			if assert.NoError(t, err) {
				_, _ = io.Copy(io.Discard, got.Blob.Body)
				got.Blob.Body.Close()
			}
		}()
	}
	wg.Wait()

	a, err := p.assets.FindByShortCode(ctx, res.Asset.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(n), a.ViewCount)
}

func TestResolveMissingBlobKeepsCount(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	owner := createOwner(t, p.db)
	res, err := p.upload(t, owner, mp4Bytes, "video/mp4")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(p.cfg.UploadDir, res.Asset.StorageKey)))

	_, err = p.retrieval.Resolve(ctx, res.Asset.ShortCode, uuid.Nil)
	assert.Equal(t, KindNotFound, KindOf(err))

	a, err := p.assets.FindByShortCode(ctx, res.Asset.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ViewCount)
}

func TestResolvePrivateAsset(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	owner := createOwner(t, p.db)
	stranger := createOwner(t, p.db)
	res, err := p.upload(t, owner, mp4Bytes, "video/mp4")
	require.NoError(t, err)
	require.NoError(t, p.db.Model(&models.Asset{}).Where("id = ?", res.Asset.ID).
		Update("is_public", false).Error)

	_, err = p.retrieval.Resolve(ctx, res.Asset.ShortCode, uuid.Nil)
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = p.retrieval.Resolve(ctx, res.Asset.ShortCode, stranger.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	got, err := p.retrieval.Resolve(ctx, res.Asset.ShortCode, owner.ID)
	require.NoError(t, err)
	got.Blob.Body.Close()

	a, err := p.assets.FindByShortCode(ctx, res.Asset.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ViewCount, "denied lookups are not counted")
}
