package transform

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligible(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPG", true},
		{"scan.jpeg", true},
		{"icon.png", true},
		{"anim.gif", true},
		{"old.bmp", true},
		{"raw.TIFF", true},
		{"already.webp", true},
		{"notes.txt", false},
		{"archive.zip", false},
		{"clip.mp4", false},
		{"noext", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Eligible(c.name), c.name)
	}
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "photo.webp", OutputName("photo.jpg"))
	assert.Equal(t, "a.b.webp", OutputName("a.b.png"))
	assert.Equal(t, "noext.webp", OutputName("noext"))
}

func TestSettingsNormalize(t *testing.T) {
	s := Settings{}.Normalize()
	assert.Equal(t, DefaultMaxWidth, s.MaxWidth)
	assert.Equal(t, DefaultMaxHeight, s.MaxHeight)
	assert.Equal(t, DefaultQuality, s.Quality)

	s = Settings{MaxWidth: 800, MaxHeight: 600, Quality: 70}.Normalize()
	assert.Equal(t, 800, s.MaxWidth)
	assert.Equal(t, 600, s.MaxHeight)
	assert.Equal(t, 70, s.Quality)

	s = Settings{MaxWidth: -1, MaxHeight: 99999, Quality: 101}.Normalize()
	assert.Equal(t, DefaultMaxWidth, s.MaxWidth)
	assert.Equal(t, DefaultMaxHeight, s.MaxHeight)
	assert.Equal(t, DefaultQuality, s.Quality)
}

func TestImageDownscalesToFit(t *testing.T) {
	src := writeTestPNG(t, 400, 200)

	out, err := Image(src, Settings{MaxWidth: 100, MaxHeight: 100, Quality: 80})
	require.NoError(t, err)

	img, err := webp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestImageNeverUpscales(t *testing.T) {
	src := writeTestPNG(t, 40, 20)

	out, err := Image(src, Settings{MaxWidth: 1280, MaxHeight: 1280, Quality: 80})
	require.NoError(t, err)

	img, err := webp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestImageRejectsCorruptSource(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "broken.png")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))

	_, err := Image(src, Settings{}.Normalize())
	assert.Error(t, err)
}

func TestImageRejectsMissingSource(t *testing.T) {
	_, err := Image(filepath.Join(t.TempDir(), "missing.png"), Settings{}.Normalize())
	assert.Error(t, err)
}

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "source.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}
