package catalog

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore is the default ImageStore: it writes uploads to a local
// directory served as static files. Swappable for an object-store client
// without touching the catalog.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("catalog: upload directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload writes the image and returns its public URL.
func (s *DiskStore) Upload(_ context.Context, name, contentType string, data []byte) (string, error) {
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	if fromName := strings.ToLower(filepath.Ext(name)); fromName == ".png" || fromName == ".jpg" || fromName == ".jpeg" {
		ext = fromName
	}
	filename := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + "/" + path.Clean(filename), nil
}
