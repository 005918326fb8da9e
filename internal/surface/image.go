package surface

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for bytes no registered decoder accepts.
var ErrUnsupportedImage = errors.New("unsupported image format")

// MaxImagePixels bounds the declared size of an uploaded image. Decoders
// allocate the full pixel buffer from the header alone.
const MaxImagePixels = 40_000_000

// ImageAsset is a decoded signature or seal image. Data is always in a format
// the PDF writer can embed directly (PNG, JPEG or GIF).
type ImageAsset struct {
	ID     string `json:"id"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"-"`
}

// PDFType returns the image type name understood by the PDF writer.
func (a *ImageAsset) PDFType() string {
	switch a.Format {
	case "jpeg":
		return "JPG"
	case "gif":
		return "GIF"
	default:
		return "PNG"
	}
}

// embeddable lists formats that go into the PDF untouched.
var embeddable = map[string]bool{"png": true, "jpeg": true, "gif": true}

// DecodeImage validates data as an image and returns an asset handle. BMP,
// TIFF and WebP inputs are re-encoded to PNG.
func DecodeImage(data []byte) (*ImageAsset, error) {
	cfg, kind, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrUnsupportedImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height, MaxImagePixels)
	}

	asset := &ImageAsset{
		ID:     uuid.NewString(),
		Format: kind,
		Width:  cfg.Width,
		Height: cfg.Height,
		Data:   append([]byte(nil), data...),
	}
	if embeddable[kind] {
		return asset, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedImage, kind, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("re-encode %s as png: %w", kind, err)
	}
	asset.Format = "png"
	asset.Data = buf.Bytes()
	return asset, nil
}
