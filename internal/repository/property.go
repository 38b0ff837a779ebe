// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"propertyhub/internal/cache"
	"propertyhub/internal/models"

	"gorm.io/gorm"
)

// PropertyFilter narrows a listing. Empty fields match everything; Limit 0 means no limit.
type PropertyFilter struct {
	City     string
	State    string
	Purpose  string
	Category string
	Limit    int
	Offset   int
}

// cacheKey is a stable encoding of the filter, used as the list cache key.
func (f PropertyFilter) cacheKey() string {
	v := url.Values{}
	v.Set("city", strings.ToLower(f.City))
	v.Set("state", strings.ToLower(f.State))
	v.Set("purpose", strings.ToLower(f.Purpose))
	v.Set("category", strings.ToLower(f.Category))
	v.Set("limit", strconv.Itoa(f.Limit))
	v.Set("offset", strconv.Itoa(f.Offset))
	return v.Encode()
}

// PropertyRepository defines persistence operations for properties.
type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) error
	GetByID(ctx context.Context, id uint) (*models.Property, error)
	List(ctx context.Context, filter PropertyFilter) ([]models.Property, error)
	// Update saves every attribute of p and bumps its version. When expectedVersion
	// is set the write only applies if the stored version still matches.
	Update(ctx context.Context, p *models.Property, expectedVersion *uint) error
	Delete(ctx context.Context, id uint) error
}

type propertyRepository struct {
	db *gorm.DB
}

// NewPropertyRepository returns a new PropertyRepository implementation.
func NewPropertyRepository(db *gorm.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) Create(ctx context.Context, p *models.Property) error {
	if p.Version == 0 {
		p.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePropertyLists(ctx)
	return nil
}

func (r *propertyRepository) GetByID(ctx context.Context, id uint) (*models.Property, error) {
	var p models.Property
	err := cache.Aside(ctx, cache.PropertyKey(id), &p, cache.PropertyTTL, func() error {
		if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Property")
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepository) List(ctx context.Context, filter PropertyFilter) ([]models.Property, error) {
	properties := []models.Property{}
	err := cache.Aside(ctx, cache.PropertyListKey(filter.cacheKey()), &properties, cache.PropertyListTTL, func() error {
		q := r.db.WithContext(ctx).Model(&models.Property{})
		if filter.City != "" {
			q = q.Where("LOWER(city) = ?", strings.ToLower(filter.City))
		}
		if filter.State != "" {
			q = q.Where("LOWER(state) = ?", strings.ToLower(filter.State))
		}
		if filter.Purpose != "" {
			q = q.Where("LOWER(purpose) = ?", strings.ToLower(filter.Purpose))
		}
		if filter.Category != "" {
			q = q.Where("LOWER(category) = ?", strings.ToLower(filter.Category))
		}
		q = q.Order("created_at DESC").Order("id DESC")
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		if err := q.Find(&properties).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return properties, nil
}

func (r *propertyRepository) Update(ctx context.Context, p *models.Property, expectedVersion *uint) error {
	prev := p.Version
	if expectedVersion != nil {
		p.Version = *expectedVersion + 1
	} else {
		p.Version = prev + 1
	}

	q := r.db.WithContext(ctx).Model(p)
	if expectedVersion != nil {
		q = q.Where("version = ?", *expectedVersion)
	}
	res := q.Select("*").Omit("id", "created_at", "created_by").Updates(p)
	if res.Error != nil {
		p.Version = prev
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		p.Version = prev
		if expectedVersion != nil {
			return models.NewConflictError("Property was modified by another request")
		}
		return models.NewNotFoundError("Property")
	}

	cache.InvalidateProperty(ctx, p.ID)
	return nil
}

func (r *propertyRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Property{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Property")
	}
	cache.InvalidateProperty(ctx, id)
	return nil
}
