package transform

import (
	"bytes"
	"fmt"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	// Register the WebP decoder so already-compressed uploads can be re-encoded.
	_ "golang.org/x/image/webp"
)

// Settings are the per-batch transform parameters. The bounding box is
// aspect-preserving and never upscales; Quality is the lossy WebP factor.
type Settings struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

const (
	DefaultMaxWidth  = 1280
	DefaultMaxHeight = 1280
	DefaultQuality   = 80

	maxDimension = 10000
)

// Normalize replaces out-of-range or missing values with the defaults.
func (s Settings) Normalize() Settings {
	if s.MaxWidth < 1 || s.MaxWidth > maxDimension {
		s.MaxWidth = DefaultMaxWidth
	}
	if s.MaxHeight < 1 || s.MaxHeight > maxDimension {
		s.MaxHeight = DefaultMaxHeight
	}
	if s.Quality < 1 || s.Quality > 100 {
		s.Quality = DefaultQuality
	}
	return s
}

// Image loads the image at srcPath, downscales it to fit within the
// settings' bounding box (never upscaling), and re-encodes it as lossy
// WebP. The encoded bytes are returned in memory so the caller can decide
// where they end up.
func Image(srcPath string, s Settings) ([]byte, error) {
	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	b := src.Bounds()
	if b.Dx() > s.MaxWidth || b.Dy() > s.MaxHeight {
		src = imaging.Fit(src, s.MaxWidth, s.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, src, &webp.Options{Quality: float32(s.Quality)}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
