package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/lostfound/apiserver/internal/imaging"
	"github.com/lostfound/apiserver/internal/storage"
)

// URLPrefix is the path under which stored images are served.
const URLPrefix = "/uploads/"

// Upload is an image received with a create request, fully buffered.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AssetManager stores listing photos keyed by item id.
type AssetManager struct {
	storage *storage.Storage
	logger  *zap.Logger
}

func NewAssetManager(s *storage.Storage, logger *zap.Logger) *AssetManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetManager{storage: s, logger: logger}
}

// Check validates upload without storing it.
func (m *AssetManager) Check(upload Upload) (imaging.Image, error) {
	img, err := imaging.Check(upload.ContentType, upload.Data)
	if err != nil {
		reason := err.Error()
		switch {
		case errors.Is(err, imaging.ErrNotAnImage):
			reason = "Only image files are allowed"
		case errors.Is(err, imaging.ErrTooLarge):
			reason = "Image must be 1.5 MB or smaller"
		case errors.Is(err, imaging.ErrUndecodable):
			reason = "Image could not be read"
		}
		return imaging.Image{}, &AssetError{Reason: reason}
	}
	return img, nil
}

// Save checks upload and stores it as "<itemID><ext>". It returns the URL
// to record on the item.
func (m *AssetManager) Save(ctx context.Context, itemID string, upload Upload) (string, error) {
	img, err := m.Check(upload)
	if err != nil {
		return "", err
	}

	key := itemID + img.Ext
	if err := m.storage.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), img.ContentType); err != nil {
		return "", &BackendError{Op: "store image", Err: err}
	}
	m.logger.Debug("image stored", zap.String("key", key), zap.Int("bytes", img.Size))
	return URLPrefix + key, nil
}

// Delete removes the asset behind imageURL. Missing objects are not an
// error, and URLs that do not point into the asset store are ignored.
func (m *AssetManager) Delete(ctx context.Context, imageURL string) error {
	key, ok := KeyFromURL(imageURL)
	if !ok {
		if imageURL != "" {
			m.logger.Warn("image url outside asset store", zap.String("url", imageURL))
		}
		return nil
	}
	if err := m.storage.Delete(ctx, key); err != nil {
		return &BackendError{Op: "delete image", Err: err}
	}
	return nil
}

// Open returns a reader for the object named key.
func (m *AssetManager) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return m.storage.Get(ctx, key)
}

// KeyFromURL extracts the object key from an "/uploads/<key>" URL.
func KeyFromURL(imageURL string) (string, bool) {
	if !strings.HasPrefix(imageURL, URLPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(imageURL, URLPrefix)
	if key == "" || key != path.Base(key) || strings.HasPrefix(key, ".") {
		return "", false
	}
	return key, true
}
