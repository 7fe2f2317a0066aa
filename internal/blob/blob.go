// Package blob stores uploaded product images and hands back their public URLs.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("file too large")

	rePrefix = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	extByType = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
)

type Object struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

type Store interface {
	Save(ctx context.Context, prefix, originalName string, r io.Reader) (Object, error)
}

// LocalStore writes files under Dir/<prefix>/ and serves them from BaseURL.
type LocalStore struct {
	Dir      string
	BaseURL  string // e.g. "/media"
	MaxBytes int64
}

func NewLocalStore(dir, baseURL string, maxBytes int64) *LocalStore {
	return &LocalStore{Dir: dir, BaseURL: baseURL, MaxBytes: maxBytes}
}

// Save sniffs the content type, picks a random file name and writes the file.
// The caller's file name is only echoed back, never used on disk.
func (s *LocalStore) Save(ctx context.Context, prefix, originalName string, r io.Reader) (Object, error) {
	if !rePrefix.MatchString(prefix) {
		return Object{}, fmt.Errorf("invalid prefix %q", prefix)
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Object{}, err
	}
	head = head[:n]
	ext, ok := extByType[http.DetectContentType(head)]
	if !ok {
		return Object{}, ErrUnsupportedType
	}

	dir := filepath.Join(s.Dir, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, err
	}
	name := uuid.NewString() + ext
	full := filepath.Join(dir, name)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Object{}, err
	}

	src := io.MultiReader(bytes.NewReader(head), r)
	limit := s.MaxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	size, err := io.Copy(f, io.LimitReader(src, limit+1))
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil && size > limit {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(full)
		return Object{}, err
	}

	return Object{
		URL:          path.Join(s.BaseURL, prefix, name),
		Filename:     name,
		OriginalName: filepath.Base(originalName),
		Size:         size,
	}, nil
}
