package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeKeyRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ImageStore: каталог с локальными копиями изображений, файл на товар.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) *ImageStore {
	return &ImageStore{dir: dir}
}

func (s *ImageStore) Dir() string {
	return s.dir
}

// Path is where the image of key with extension ext lives. Keys are reduced
// to a safe file name, so "a/b" and "a_b" share a file.
func (s *ImageStore) Path(key, ext string) string {
	name := strings.Trim(unsafeKeyRe.ReplaceAllString(key, "_"), "._")
	if name == "" {
		name = "image"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.dir, name+strings.ToLower(ext))
}

// Save writes r to a temp file and renames it into place, so a reader never
// sees a half-written image.
func (s *ImageStore) Save(key, ext string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("image dir: %w", err)
	}
	target := s.Path(key, ext)

	tmp, err := os.CreateTemp(s.dir, ".img-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}
	return target, nil
}
