package archive

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	srcPath := filepath.Join(tmp, "doc.txt")
	srcData := []byte("the original text, byte for byte")
	require.NoError(t, os.WriteFile(srcPath, srcData, 0o644))

	zipPath := filepath.Join(tmp, "out.zip")
	w, err := Create(zipPath)
	require.NoError(t, err)
	assert.Equal(t, zipPath, w.Path())

	require.NoError(t, w.AppendBytes("photo.webp", []byte{0x52, 0x49, 0x46, 0x46}))
	require.NoError(t, w.AppendFile("doc.txt", srcPath))
	require.NoError(t, w.Close())

	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 2)
	assert.Equal(t, "photo.webp", r.File[0].Name)
	assert.Equal(t, "doc.txt", r.File[1].Name)

	rc, err := r.File[1].Open()
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, srcData, got)
}

func TestAppendFileUnreadableSourceKeepsArchiveUsable(t *testing.T) {
	tmp := t.TempDir()
	zipPath := filepath.Join(tmp, "out.zip")
	w, err := Create(zipPath)
	require.NoError(t, err)

	err = w.AppendFile("gone.bin", filepath.Join(tmp, "does-not-exist"))
	assert.Error(t, err)

	// The failed entry must not poison subsequent appends.
	require.NoError(t, w.AppendBytes("ok.txt", []byte("still fine")))
	require.NoError(t, w.Close())

	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 1)
	assert.Equal(t, "ok.txt", r.File[0].Name)
}

func TestCreateFailsOnBadPath(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing-dir", "out.zip"))
	assert.Error(t, err)
}
