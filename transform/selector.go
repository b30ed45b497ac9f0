package transform

import (
	"path/filepath"
	"strings"
)

// rasterExts is the set of file extensions eligible for lossy recompression.
var rasterExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Eligible reports whether a file should go through the lossy transform,
// decided purely from its extension (case-insensitive).
func Eligible(filename string) bool {
	return rasterExts[strings.ToLower(filepath.Ext(filename))]
}

// OutputName returns the archive entry name for a transformed file: the
// original base name with the extension swapped for .webp.
func OutputName(filename string) string {
	ext := filepath.Ext(filename)
	return filename[:len(filename)-len(ext)] + ".webp"
}
