// Package storage persists uploaded documents. The Uploader interface
// is the seam for an S3-compatible backend; LocalUploader writes to the
// local filesystem and is what development and tests use.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Uploader interface {
	// Upload stores the content and returns the public URL path.
	Upload(folder, filename string, content io.Reader) (string, error)
	Delete(url string) error
}

type LocalUploader struct {
	root    string
	baseURL string
}

// NewLocalUploader creates the uploads root if needed.
func NewLocalUploader(root, baseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads root: %w", err)
	}
	return &LocalUploader{root: root, baseURL: baseURL}, nil
}

func (u *LocalUploader) Upload(folder, filename string, content io.Reader) (string, error) {
	dir := filepath.Join(u.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload folder: %w", err)
	}

	// Object key is a uuid; the original extension is kept for content
	// type detection when serving.
	key := uuid.New().String() + filepath.Ext(filename)
	path := filepath.Join(dir, key)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}

	return u.baseURL + "/" + folder + "/" + key, nil
}

func (u *LocalUploader) Delete(url string) error {
	rel, ok := strings.CutPrefix(url, u.baseURL+"/")
	if !ok {
		return fmt.Errorf("url %q outside uploads root", url)
	}
	return os.Remove(filepath.Join(u.root, filepath.Clean("/"+rel)))
}
