// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Property is a listed real-estate item. Images holds store locators in display order.
type Property struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	Title        string                      `gorm:"not null" json:"title" validate:"required"`
	Category     string                      `json:"category"`
	PropertyType string                      `json:"propertyType"`
	Purpose      string                      `gorm:"index" json:"purpose"`
	Price        string                      `gorm:"not null" json:"price" validate:"required"`
	City         string                      `gorm:"not null;index" json:"city" validate:"required"`
	State        string                      `gorm:"not null" json:"state" validate:"required"`
	Location     string                      `json:"location"`
	Area         string                      `json:"area"`
	BHK          string                      `gorm:"column:bhk" json:"bhk"`
	Bathrooms    string                      `json:"bathrooms"`
	Balconies    string                      `json:"balconies"`
	FloorNo      string                      `json:"floorNo"`
	TotalFloors  string                      `json:"totalFloors"`
	Facing       string                      `json:"facing"`
	Parking      string                      `json:"parking"`
	Description  string                      `gorm:"type:text" json:"description"`
	Amenities    datatypes.JSONSlice[string] `json:"amenities"`
	Images       datatypes.JSONSlice[string] `json:"images"`
	Extras       datatypes.JSONMap           `json:"extras,omitempty"`
	CreatedBy    *uint                       `gorm:"index" json:"createdBy"`
	Version      uint                        `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time                   `json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

var propertyAttributes = map[string]func(p *Property) *string{
	"title":        func(p *Property) *string { return &p.Title },
	"category":     func(p *Property) *string { return &p.Category },
	"propertyType": func(p *Property) *string { return &p.PropertyType },
	"purpose":      func(p *Property) *string { return &p.Purpose },
	"price":        func(p *Property) *string { return &p.Price },
	"city":         func(p *Property) *string { return &p.City },
	"state":        func(p *Property) *string { return &p.State },
	"location":     func(p *Property) *string { return &p.Location },
	"area":         func(p *Property) *string { return &p.Area },
	"bhk":          func(p *Property) *string { return &p.BHK },
	"bathrooms":    func(p *Property) *string { return &p.Bathrooms },
	"balconies":    func(p *Property) *string { return &p.Balconies },
	"floorNo":      func(p *Property) *string { return &p.FloorNo },
	"totalFloors":  func(p *Property) *string { return &p.TotalFloors },
	"facing":       func(p *Property) *string { return &p.Facing },
	"parking":      func(p *Property) *string { return &p.Parking },
	"description":  func(p *Property) *string { return &p.Description },
}

// IsPropertyAttribute reports whether key names a scalar Property attribute.
func IsPropertyAttribute(key string) bool {
	_, ok := propertyAttributes[key]
	return ok
}

// SetAttribute writes a scalar attribute by its JSON name. Unknown names are
// stored in Extras.
func (p *Property) SetAttribute(key, value string) {
	if field, ok := propertyAttributes[key]; ok {
		*field(p) = strings.TrimSpace(value)
		return
	}
	if p.Extras == nil {
		p.Extras = datatypes.JSONMap{}
	}
	p.Extras[key] = value
}

// PropertyEvent is published on the property feed after every mutation.
type PropertyEvent struct {
	Type       string    `json:"type"`
	PropertyID uint      `json:"property_id"`
	AdminID    uint      `json:"admin_id,omitempty"`
	Images     []string  `json:"images,omitempty"`
	Version    uint      `json:"version,omitempty"`
	At         time.Time `json:"at"`
}

// Property event types.
const (
	PropertyCreated = "property.created"
	PropertyUpdated = "property.updated"
	PropertyDeleted = "property.deleted"
)
