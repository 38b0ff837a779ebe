// Package storage provides the object stores that hold property images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"propertyhub/internal/config"
)

var (
	// ErrEmptyFile is returned when an upload has no content.
	ErrEmptyFile = errors.New("storage: empty file")
	// ErrForeignLocator is returned when a locator does not belong to the store.
	ErrForeignLocator = errors.New("storage: locator not owned by this store")
)

// File is one uploaded image held in memory.
type File struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ObjectStore stores image bytes and hands back a locator that can be saved on a property.
type ObjectStore interface {
	Upload(ctx context.Context, f File) (string, error)
	Delete(ctx context.Context, locator string) error
}

// New builds the ObjectStore selected by cfg.StorageDriver.
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case config.StorageLocal, "":
		return NewLocalStore(cfg.UploadDir, cfg.UploadFolder, cfg.UploadPublicPath), nil
	case config.StorageCloudinary:
		return NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.UploadFolder)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// extensionFor picks a file extension from the original name, falling back to the content type.
func extensionFor(f File) string {
	if ext := strings.ToLower(filepath.Ext(f.Filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch normalizeContentType(f.ContentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}

func normalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mediaType)
}
