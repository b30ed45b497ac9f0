// Package archive wraps streamed ZIP production for batch output files.
package archive

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
)

// Writer streams entries into a single ZIP file on disk. Entries are
// written in call order; the file is not a valid archive until Close
// returns nil.
type Writer struct {
	path string
	f    *os.File
	zw   *zip.Writer
}

// Create opens a new archive at path, truncating any previous file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	return &Writer{path: path, f: f, zw: zip.NewWriter(f)}, nil
}

// Path returns the on-disk location of the archive being written.
func (w *Writer) Path() string {
	return w.path
}

// AppendBytes writes one entry from an in-memory buffer.
func (w *Writer) AppendBytes(name string, data []byte) error {
	ew, err := w.header(name)
	if err != nil {
		return err
	}
	if _, err := ew.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// AppendFile streams one entry from a file on disk. An unreadable source
// returns an error for that entry only; the archive stays writable and
// the caller decides whether to continue.
func (w *Writer) AppendFile(name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcPath, err)
	}
	defer src.Close()

	ew, err := w.header(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(ew, src); err != nil {
		return fmt.Errorf("copy entry %s: %w", name, err)
	}
	return nil
}

// Close flushes the central directory and closes the file. After a nil
// return the archive is a complete, independently openable ZIP. A Close
// error means the archive is unusable and should be discarded.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func (w *Writer) header(name string) (io.Writer, error) {
	ew, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("add entry %s: %w", name, err)
	}
	return ew, nil
}
