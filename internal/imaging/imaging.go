// Package imaging validates uploaded listing photos before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxBytes is the largest accepted upload, 1.5 MB.
const MaxBytes = 1536 * 1024

var (
	ErrTooLarge    = errors.New("image exceeds 1.5 MB limit")
	ErrNotAnImage  = errors.New("only image files are allowed")
	ErrUndecodable = errors.New("image data could not be decoded")
)

// extensions maps decoder format names to the stored content type and file
// extension.
var extensions = map[string]struct {
	mime string
	ext  string
}{
	"jpeg": {"image/jpeg", ".jpg"},
	"png":  {"image/png", ".png"},
	"gif":  {"image/gif", ".gif"},
	"bmp":  {"image/bmp", ".bmp"},
	"webp": {"image/webp", ".webp"},
	"tiff": {"image/tiff", ".tiff"},
}

// Image describes an accepted upload.
type Image struct {
	ContentType string
	Ext         string
	Width       int
	Height      int
	Size        int
}

// Check validates an upload: the declared content type must be an image
// type, the payload must not exceed MaxBytes and its header must decode as
// a supported image format. The declared type is not trusted beyond that.
func Check(declaredType string, data []byte) (Image, error) {
	if len(data) > MaxBytes {
		return Image{}, ErrTooLarge
	}

	mediaType, _, err := mime.ParseMediaType(declaredType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return Image{}, ErrNotAnImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	info, ok := extensions[format]
	if !ok {
		return Image{}, fmt.Errorf("%w: unsupported format %s", ErrUndecodable, format)
	}

	return Image{
		ContentType: info.mime,
		Ext:         info.ext,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Size:        len(data),
	}, nil
}
