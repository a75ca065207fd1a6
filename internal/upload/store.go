// Package upload persists multipart file parts to the temporary upload
// directory and removes them again when the request that stored them ends.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"filechat/internal/core"
)

// Store writes uploaded files below Dir on Fs.
type Store struct {
	Fs          afero.Fs
	Dir         string
	MaxFileSize int64

	// now is replaceable in tests.
	now func() time.Time
}

// NewStore creates a store rooted at dir. A nil fs means the OS filesystem.
func NewStore(fs afero.Fs, dir string, maxFileSize int64) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{
		Fs:          fs,
		Dir:         dir,
		MaxFileSize: maxFileSize,
		now:         time.Now,
	}
}

// Batch is the set of files stored for one request.
type Batch struct {
	store *Store
	Files []core.UploadedFile
}

// CheckSizes rejects the request when any part exceeds the per-file limit.
// It runs before anything is written so an oversized part fails the whole request.
func (s *Store) CheckSizes(headers []*multipart.FileHeader) error {
	if s.MaxFileSize <= 0 {
		return nil
	}
	for _, fh := range headers {
		if fh.Size > s.MaxFileSize {
			return core.NewUploadError("File too large",
				fmt.Errorf("%s is %d bytes, limit is %d bytes", fh.Filename, fh.Size, s.MaxFileSize))
		}
	}
	return nil
}

// SaveAll validates and stores every part in order. On failure the files
// already written are removed and nothing is returned.
func (s *Store) SaveAll(headers []*multipart.FileHeader) (*Batch, error) {
	if err := s.CheckSizes(headers); err != nil {
		return nil, err
	}

	batch := &Batch{store: s, Files: make([]core.UploadedFile, 0, len(headers))}
	for _, fh := range headers {
		f, err := s.saveHeader(fh)
		if err != nil {
			batch.Release()
			return nil, err
		}
		batch.Files = append(batch.Files, f)
	}
	return batch, nil
}

func (s *Store) saveHeader(fh *multipart.FileHeader) (core.UploadedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return core.UploadedFile{}, core.NewUploadError("Unable to open uploaded file", err)
	}
	defer func() {
		_ = src.Close() //nolint:errcheck
	}()

	return s.Save(fh.Filename, fh.Header.Get("Content-Type"), src)
}

// Save writes r as <epoch-millis>-<base><ext> in the upload directory.
func (s *Store) Save(originalName, mediaType string, r io.Reader) (core.UploadedFile, error) {
	if err := s.Fs.MkdirAll(s.Dir, 0o755); err != nil {
		return core.UploadedFile{}, core.NewInternalError("Unable to create upload directory", err)
	}

	now := s.now()
	name := storedName(originalName, now, "")
	f, err := s.create(name)
	if errors.Is(err, os.ErrExist) {
		// Same name in the same millisecond.
		name = storedName(originalName, now, uuid.NewString()[:8])
		f, err = s.create(name)
	}
	if err != nil {
		return core.UploadedFile{}, core.NewInternalError("Unable to store uploaded file", err)
	}

	path := filepath.Join(s.Dir, name)
	n, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.Fs.Remove(path) //nolint:errcheck
		return core.UploadedFile{}, core.NewInternalError("Unable to store uploaded file", err)
	}
	if s.MaxFileSize > 0 && n > s.MaxFileSize {
		_ = s.Fs.Remove(path) //nolint:errcheck
		return core.UploadedFile{}, core.NewUploadError("File too large",
			fmt.Errorf("%s is %d bytes, limit is %d bytes", originalName, n, s.MaxFileSize))
	}

	slog.Debug("stored upload", "name", originalName, "path", path, "media_type", mediaType, "size", n)

	return core.UploadedFile{
		OriginalName: originalName,
		StoredPath:   path,
		MediaType:    mediaType,
		Size:         n,
		StoredAt:     now,
	}, nil
}

func (s *Store) create(name string) (afero.File, error) {
	return s.Fs.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(path string) error {
	if err := s.Fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Release deletes every file of the batch. It is safe to call more than once
// and on a nil batch.
func (b *Batch) Release() {
	if b == nil {
		return
	}
	for _, f := range b.Files {
		if err := b.store.Remove(f.StoredPath); err != nil {
			slog.Warn("failed to remove upload", "path", f.StoredPath, "error", err)
		}
	}
	b.Files = nil
}

// storedName builds <epoch-millis>-<base-without-ext>[-suffix]<ext> from the
// base name of original, so client-supplied directories never reach the disk.
func storedName(original string, at time.Time, suffix string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "upload"
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if suffix != "" {
		stem += "-" + suffix
	}
	return strconv.FormatInt(at.UnixMilli(), 10) + "-" + stem + ext
}
