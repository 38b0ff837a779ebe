// Package service contains the business logic between HTTP handlers and repositories.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"
	"strings"
	"time"

	"propertyhub/internal/config"
	"propertyhub/internal/featureflags"
	"propertyhub/internal/middleware"
	"propertyhub/internal/models"
	"propertyhub/internal/observability"
	"propertyhub/internal/repository"
	"propertyhub/internal/storage"
	"propertyhub/internal/validation"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 5
	DefaultMaxImagesPerRequest  = 10
)

// Keys that never reach the record as attributes.
var (
	reservedFieldKeys = map[string]struct{}{
		"amenities":      {},
		"deletedImages":  {},
		"existingImages": {},
		"images":         {},
	}
	systemFieldKeys = map[string]struct{}{
		"id":        {},
		"_id":       {},
		"createdBy": {},
		"createdAt": {},
		"updatedAt": {},
		"version":   {},
	}
)

// EventPublisher receives property mutation events. It may be nil.
type EventPublisher interface {
	PublishPropertyEvent(ctx context.Context, evt models.PropertyEvent) error
}

type AddPropertyInput struct {
	Fields       map[string]string
	AmenitiesRaw *string
	Files        []storage.File
	CreatorID    uint
}

type UpdatePropertyInput struct {
	ID     uint
	Fields map[string]string
	// AmenitiesRaw is JSON array text; nil leaves amenities unchanged.
	AmenitiesRaw     *string
	ExistingImages   []string
	ExistingSupplied bool
	DeletedImages    []string
	Files            []storage.File
	// ExpectedVersion enables the optimistic concurrency check.
	ExpectedVersion *uint
	AdminID         uint
}

type ListPropertiesInput struct {
	City     string
	State    string
	Purpose  string
	Category string
	Limit    int
	Offset   int
}

type PropertyService struct {
	repo               repository.PropertyRepository
	reconciler         *Reconciler
	publisher          EventPublisher
	maxFiles           int
	maxUploadSizeBytes int64
}

func NewPropertyService(repo repository.PropertyRepository, store storage.ObjectStore, cfg *config.Config, flags *featureflags.Manager, publisher EventPublisher) *PropertyService {
	maxMB := DefaultImageMaxUploadSizeMB
	maxFiles := DefaultMaxImagesPerRequest
	concurrency := DefaultUploadConcurrency
	if cfg != nil {
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxMB = cfg.ImageMaxUploadSizeMB
		}
		if cfg.MaxImagesPerRequest > 0 {
			maxFiles = cfg.MaxImagesPerRequest
		}
		if cfg.UploadConcurrency > 0 {
			concurrency = cfg.UploadConcurrency
		}
	}

	return &PropertyService{
		repo:               repo,
		reconciler:         NewReconciler(store, flags, concurrency),
		publisher:          publisher,
		maxFiles:           maxFiles,
		maxUploadSizeBytes: int64(maxMB) * 1024 * 1024,
	}
}

func (s *PropertyService) GetProperty(ctx context.Context, id uint) (*models.Property, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PropertyService) ListProperties(ctx context.Context, in ListPropertiesInput) ([]models.Property, error) {
	if in.Limit < 0 || in.Offset < 0 {
		return nil, models.NewValidationError("limit and offset must not be negative")
	}
	return s.repo.List(ctx, repository.PropertyFilter{
		City:     strings.TrimSpace(in.City),
		State:    strings.TrimSpace(in.State),
		Purpose:  strings.TrimSpace(in.Purpose),
		Category: strings.TrimSpace(in.Category),
		Limit:    in.Limit,
		Offset:   in.Offset,
	})
}

func (s *PropertyService) AddProperty(ctx context.Context, in AddPropertyInput) (*models.Property, error) {
	p := &models.Property{}
	applyFields(p, in.Fields)
	if err := requireAttributes(p); err != nil {
		return nil, err
	}
	if err := s.validateFiles(in.Files); err != nil {
		return nil, err
	}

	p.Amenities = parseAmenities(ctx, in.AmenitiesRaw)

	uploaded, err := s.reconciler.UploadAll(ctx, in.CreatorID, in.Files)
	if err != nil {
		return nil, err
	}
	p.Images = append([]string{}, uploaded...)
	if in.CreatorID != 0 {
		creator := in.CreatorID
		p.CreatedBy = &creator
	}
	p.Version = 1

	if err := s.repo.Create(ctx, p); err != nil {
		s.reconciler.recordOrphans(ctx, uploaded, orphanSaveFailed)
		return nil, err
	}

	s.publish(ctx, models.PropertyCreated, p, in.CreatorID)
	return p, nil
}

// UpdateProperty applies a partial update and reconciles the image list.
// Deleted images are purged from the store only after the record is saved.
func (s *PropertyService) UpdateProperty(ctx context.Context, in UpdatePropertyInput) (*models.Property, error) {
	p, err := s.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	if in.ExpectedVersion != nil && *in.ExpectedVersion != p.Version {
		return nil, models.NewConflictError("Property was modified by another request")
	}

	if in.AmenitiesRaw != nil {
		p.Amenities = parseAmenities(ctx, in.AmenitiesRaw)
	}

	applyFields(p, in.Fields)
	if err := requireAttributes(p); err != nil {
		return nil, err
	}
	if err := s.validateFiles(in.Files); err != nil {
		return nil, err
	}

	plan, err := s.reconciler.Reconcile(ctx, ReconcileInput{
		Current:      p.Images,
		Kept:         in.ExistingImages,
		KeptSupplied: in.ExistingSupplied,
		Deleted:      in.DeletedImages,
		Files:        in.Files,
		AdminID:      in.AdminID,
	})
	if err != nil {
		return nil, err
	}
	p.Images = plan.Images

	if err := s.repo.Update(ctx, p, in.ExpectedVersion); err != nil {
		s.reconciler.recordOrphans(ctx, plan.Uploaded, orphanSaveFailed)
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewInternalError(err)
		}
		return nil, err
	}

	s.reconciler.Purge(ctx, plan)
	s.publish(ctx, models.PropertyUpdated, p, in.AdminID)
	return p, nil
}

// DeleteProperty removes every stored image, best effort, then the record.
func (s *PropertyService) DeleteProperty(ctx context.Context, id, adminID uint) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.reconciler.DeleteAll(ctx, p.Images)

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, models.PropertyDeleted, p, adminID)
	return nil
}

func (s *PropertyService) publish(ctx context.Context, eventType string, p *models.Property, adminID uint) {
	observability.PropertyMutations.WithLabelValues(eventType).Inc()
	if s.publisher == nil {
		return
	}
	evt := models.PropertyEvent{
		Type:       eventType,
		PropertyID: p.ID,
		AdminID:    adminID,
		Images:     append([]string{}, p.Images...),
		Version:    p.Version,
		At:         time.Now().UTC(),
	}
	if err := s.publisher.PublishPropertyEvent(ctx, evt); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to publish property event",
			slog.String("type", eventType),
			slog.Uint64("property_id", uint64(p.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// applyFields writes patch fields onto p, skipping reserved and system keys.
func applyFields(p *models.Property, fields map[string]string) {
	for key, value := range fields {
		if _, ok := reservedFieldKeys[key]; ok {
			continue
		}
		if _, ok := systemFieldKeys[key]; ok {
			continue
		}
		p.SetAttribute(key, value)
	}
}

func requireAttributes(p *models.Property) error {
	if missing := validation.MissingFields(p); len(missing) > 0 {
		return models.NewValidationError("Missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// parseAmenities decodes a JSON array of strings. Malformed input yields an empty list.
func parseAmenities(ctx context.Context, raw *string) []string {
	out := []string{}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return out
	}

	var parsed []string
	if err := json.Unmarshal([]byte(*raw), &parsed); err != nil {
		middleware.Logger.WarnContext(ctx, "Amenities parse error, using empty list",
			slog.String("error", err.Error()),
		)
		return out
	}

	seen := make(map[string]struct{}, len(parsed))
	for _, a := range parsed {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (s *PropertyService) validateFiles(files []storage.File) error {
	if len(files) > s.maxFiles {
		return models.NewValidationError(fmt.Sprintf("Too many images (max %d)", s.maxFiles))
	}
	for _, f := range files {
		if len(f.Content) == 0 {
			return models.NewValidationError("Empty image file: " + f.Filename)
		}
		if int64(len(f.Content)) > s.maxUploadSizeBytes {
			return models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
		}
		if !isAllowedImageMIME(http.DetectContentType(f.Content)) {
			return models.NewValidationError("Invalid image type: " + f.Filename)
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(f.Content)); err != nil {
			return models.NewValidationError("Invalid image file: " + f.Filename)
		}
	}
	return nil
}

func isAllowedImageMIME(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
