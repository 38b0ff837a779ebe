// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sort"
	"strings"
	"sync"
	"time"

	"propertyhub/internal/models"
	"propertyhub/internal/repository"
	"propertyhub/internal/storage"
)

// MemoryStore is an in-memory storage.ObjectStore with failure injection.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int

	UploadCalls int
	DeleteCalls int
	Deleted     []string

	// FailUploadOn fails the Nth upload call (1-based) with the mapped error.
	FailUploadOn map[int]error
	// FailFilename fails uploads of the mapped filenames, regardless of call order.
	FailFilename map[string]error
	// FailDelete fails deletes of the mapped locators.
	FailDelete map[string]error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:      make(map[string][]byte),
		FailUploadOn: make(map[int]error),
		FailFilename: make(map[string]error),
		FailDelete:   make(map[string]error),
	}
}

// Put stores content under an explicit locator, for seeding existing images.
func (s *MemoryStore) Put(locator string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[locator] = content
}

// Upload stores f and returns a fresh locator.
func (s *MemoryStore) Upload(ctx context.Context, f storage.File) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UploadCalls++
	if err, ok := s.FailUploadOn[s.UploadCalls]; ok {
		return "", err
	}
	if err, ok := s.FailFilename[f.Filename]; ok {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(f.Content) == 0 {
		return "", storage.ErrEmptyFile
	}
	s.seq++
	locator := fmt.Sprintf("mem://properties/%03d-%s", s.seq, f.Filename)
	s.objects[locator] = f.Content
	return locator, nil
}

// Delete removes locator. Deleting an absent locator succeeds.
func (s *MemoryStore) Delete(_ context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls++
	if err, ok := s.FailDelete[locator]; ok {
		return err
	}
	delete(s.objects, locator)
	s.Deleted = append(s.Deleted, locator)
	return nil
}

// Has reports whether locator is currently stored.
func (s *MemoryStore) Has(locator string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[locator]
	return ok
}

// Locators lists stored locators in sorted order.
func (s *MemoryStore) Locators() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PropertyRepoStub is an in-memory repository.PropertyRepository.
type PropertyRepoStub struct {
	mu     sync.Mutex
	items  map[uint]models.Property
	nextID uint

	// UpdateErr, when set, is returned by Update without saving.
	UpdateErr   error
	UpdateCalls int
}

// NewPropertyRepoStub creates an empty PropertyRepoStub.
func NewPropertyRepoStub() *PropertyRepoStub {
	return &PropertyRepoStub{items: make(map[uint]models.Property), nextID: 1}
}

func (s *PropertyRepoStub) Create(_ context.Context, p *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID
		s.nextID++
	}
	if p.Version == 0 {
		p.Version = 1
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.items[p.ID] = clone(*p)
	return nil
}

// GetByID returns a copy so callers can mutate it freely.
func (s *PropertyRepoStub) GetByID(_ context.Context, id uint) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, models.NewNotFoundError("Property")
	}
	out := clone(p)
	return &out, nil
}

func (s *PropertyRepoStub) List(_ context.Context, f repository.PropertyFilter) ([]models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Property{}
	for _, p := range s.items {
		if f.City != "" && !strings.EqualFold(p.City, f.City) {
			continue
		}
		if f.State != "" && !strings.EqualFold(p.State, f.State) {
			continue
		}
		if f.Purpose != "" && !strings.EqualFold(p.Purpose, f.Purpose) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []models.Property{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *PropertyRepoStub) Update(_ context.Context, p *models.Property, expectedVersion *uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdateCalls++
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	stored, ok := s.items[p.ID]
	if !ok {
		return models.NewNotFoundError("Property")
	}
	if expectedVersion != nil && stored.Version != *expectedVersion {
		return models.NewConflictError("Property was modified by another request")
	}
	p.Version = stored.Version + 1
	p.CreatedAt = stored.CreatedAt
	p.CreatedBy = stored.CreatedBy
	p.UpdatedAt = time.Now().UTC()
	s.items[p.ID] = clone(*p)
	return nil
}

func (s *PropertyRepoStub) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return models.NewNotFoundError("Property")
	}
	delete(s.items, id)
	return nil
}

// Len returns the number of stored properties.
func (s *PropertyRepoStub) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func clone(p models.Property) models.Property {
	out := p
	if p.Images != nil {
		out.Images = append([]string{}, p.Images...)
	}
	if p.Amenities != nil {
		out.Amenities = append([]string{}, p.Amenities...)
	}
	if p.Extras != nil {
		out.Extras = make(map[string]interface{}, len(p.Extras))
		for k, v := range p.Extras {
			out.Extras[k] = v
		}
	}
	return out
}

// AdminRepoStub is an in-memory repository.AdminRepository.
type AdminRepoStub struct {
	mu     sync.Mutex
	items  map[uint]models.Admin
	nextID uint
}

// NewAdminRepoStub creates an empty AdminRepoStub.
func NewAdminRepoStub() *AdminRepoStub {
	return &AdminRepoStub{items: make(map[uint]models.Admin), nextID: 1}
}

func (s *AdminRepoStub) Create(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin.Email = models.NormalizeEmail(admin.Email)
	for _, existing := range s.items {
		if existing.Email == admin.Email {
			return models.NewConflictError("Admin already exists")
		}
	}
	admin.ID = s.nextID
	s.nextID++
	admin.CreatedAt = time.Now().UTC()
	admin.UpdatedAt = admin.CreatedAt
	s.items[admin.ID] = *admin
	return nil
}

func (s *AdminRepoStub) GetByID(_ context.Context, id uint) (*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, models.NewNotFoundError("Admin")
	}
	return &a, nil
}

func (s *AdminRepoStub) GetByEmail(_ context.Context, email string) (*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = models.NormalizeEmail(email)
	for _, a := range s.items {
		if a.Email == email {
			out := a
			return &out, nil
		}
	}
	return nil, models.NewNotFoundError("Admin")
}

func (s *AdminRepoStub) List(_ context.Context) ([]models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Admin, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

var (
	_ storage.ObjectStore           = (*MemoryStore)(nil)
	_ repository.PropertyRepository = (*PropertyRepoStub)(nil)
	_ repository.AdminRepository    = (*AdminRepoStub)(nil)
)
