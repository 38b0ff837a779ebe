package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"propertyhub/internal/observability"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

const driverCloudinary = "cloudinary"

// cloudinaryAPI is the subset of the Cloudinary upload API the store calls.
type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStore keeps images in a Cloudinary folder and returns their secure URLs as locators.
type CloudinaryStore struct {
	api    cloudinaryAPI
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return newCloudinaryStore(&cld.Upload, folder), nil
}

func newCloudinaryStore(api cloudinaryAPI, folder string) *CloudinaryStore {
	return &CloudinaryStore{api: api, folder: strings.Trim(folder, "/")}
}

func (s *CloudinaryStore) Upload(ctx context.Context, f File) (locator string, err error) {
	ctx, span := observability.StartStoreSpan(ctx, driverCloudinary, "upload")
	start := time.Now()
	defer func() {
		observability.ObserveStoreCall(driverCloudinary, "upload", start, err)
		observability.EndSpan(span, err)
	}()

	if len(f.Content) == 0 {
		return "", ErrEmptyFile
	}

	resp, err := s.api.Upload(ctx, bytes.NewReader(f.Content), uploader.UploadParams{
		Folder:   s.folder,
		PublicID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", errors.New("cloudinary upload: no URL returned")
	}
	return resp.SecureURL, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, locator string) (err error) {
	ctx, span := observability.StartStoreSpan(ctx, driverCloudinary, "delete")
	start := time.Now()
	defer func() {
		observability.ObserveStoreCall(driverCloudinary, "delete", start, err)
		observability.EndSpan(span, err)
	}()

	publicID, ok := publicIDFromURL(locator)
	if !ok {
		return ErrForeignLocator
	}

	resp, err := s.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy: %s", resp.Error.Message)
	}
	// "not found" means the object is already gone.
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy: unexpected result %q", resp.Result)
	}
	return nil
}

// publicIDFromURL extracts "folder/name" from
// https://res.cloudinary.com/<cloud>/image/upload/v123/folder/name.jpg.
func publicIDFromURL(locator string) (string, bool) {
	const marker = "/upload/"
	idx := strings.Index(locator, marker)
	if idx < 0 {
		return "", false
	}
	rest := locator[idx+len(marker):]
	if q := strings.IndexAny(rest, "?#"); q >= 0 {
		rest = rest[:q]
	}

	segments := strings.Split(rest, "/")
	if len(segments) > 1 && isVersionSegment(segments[0]) {
		segments = segments[1:]
	}
	id := strings.Join(segments, "/")
	id = strings.TrimSuffix(id, path.Ext(id))
	if id == "" {
		return "", false
	}
	return id, true
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
