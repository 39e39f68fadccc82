// Package filestore keeps uploaded profile photos on local disk.
package filestore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"student-records/internal/util"
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes = 2 << 20

// allowed maps accepted content types to the stored file extension.
var allowed = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Store writes files under Dir and hands out references under URLPath.
type Store struct {
	Dir      string
	URLPath  string
	MaxBytes int64
}

func New(dir, urlPath string, maxBytes int64) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if urlPath == "" {
		urlPath = "/uploads"
	}
	return &Store{Dir: dir, URLPath: "/" + strings.Trim(urlPath, "/"), MaxBytes: maxBytes}
}

// Save stores an image read from r and returns its reference path, e.g.
// "/uploads/<uuid>.png". The content type is sniffed, not trusted.
func (s *Store) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return "", util.Upstream("read upload", err)
	}
	if int64(len(data)) > s.MaxBytes {
		return "", util.Invalid("file too large", util.FieldError{
			Field:  "profilePhoto",
			Reason: fmt.Sprintf("must be at most %d bytes", s.MaxBytes),
		})
	}
	if len(data) == 0 {
		return "", util.Invalid("empty file", util.FieldError{Field: "profilePhoto", Reason: "is empty"})
	}

	mt := mimetype.Detect(data)
	ext, ok := allowed[mt.String()]
	if !ok {
		return "", util.Invalid("unsupported file type", util.FieldError{
			Field:  "profilePhoto",
			Reason: "must be a png, jpeg, webp or gif image, got " + mt.String(),
		})
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", util.Upstream("create upload dir", err)
	}
	name := uuid.NewString() + ext
	full := filepath.Join(s.Dir, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		_ = os.Remove(full)
		return "", util.Upstream("write upload", err)
	}
	return path.Join(s.URLPath, name), nil
}

// SaveBytes is Save over an in-memory payload.
func (s *Store) SaveBytes(b []byte) (string, error) {
	return s.Save(bytes.NewReader(b))
}

// Remove deletes the file behind ref. References outside URLPath and
// missing files are ignored.
func (s *Store) Remove(ref string) error {
	prefix := s.URLPath + "/"
	if !strings.HasPrefix(ref, prefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(ref, prefix))
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !os.IsNotExist(err) {
		return util.Upstream("remove upload", err)
	}
	return nil
}
