package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"propertyhub/internal/observability"

	"github.com/google/uuid"
)

const driverLocal = "local"

// LocalStore writes images under a directory that the server exposes as static files.
type LocalStore struct {
	dir        string
	folder     string
	publicPath string
}

func NewLocalStore(dir, folder, publicPath string) *LocalStore {
	if dir == "" {
		dir = "uploads"
	}
	if publicPath == "" {
		publicPath = "/uploads"
	}
	return &LocalStore{
		dir:        dir,
		folder:     strings.Trim(folder, "/"),
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}
}

// Dir is the filesystem root served at PublicPath.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) PublicPath() string { return s.publicPath }

func (s *LocalStore) Upload(ctx context.Context, f File) (locator string, err error) {
	ctx, span := observability.StartStoreSpan(ctx, driverLocal, "upload")
	start := time.Now()
	defer func() {
		observability.ObserveStoreCall(driverLocal, "upload", start, err)
		observability.EndSpan(span, err)
	}()

	if len(f.Content) == 0 {
		return "", ErrEmptyFile
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, s.folder)
	if err := os.MkdirAll(target, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + extensionFor(f)
	if err := os.WriteFile(filepath.Join(target, name), f.Content, 0o600); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return path.Join(s.publicPath, s.folder, name), nil
}

// Delete removes the file behind locator. Deleting a missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, locator string) (err error) {
	_, span := observability.StartStoreSpan(ctx, driverLocal, "delete")
	start := time.Now()
	defer func() {
		observability.ObserveStoreCall(driverLocal, "delete", start, err)
		observability.EndSpan(span, err)
	}()

	rel, err := s.relativePath(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

func (s *LocalStore) relativePath(locator string) (string, error) {
	prefix := s.publicPath + "/"
	if !strings.HasPrefix(locator, prefix) {
		return "", ErrForeignLocator
	}
	rel := path.Clean(strings.TrimPrefix(locator, prefix))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", ErrForeignLocator
	}
	return filepath.FromSlash(rel), nil
}
