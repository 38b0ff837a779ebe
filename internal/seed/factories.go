// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strconv"
	"time"

	"propertyhub/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the password every seeded admin gets.
const DefaultPassword = "password123"

var (
	categories    = []string{"Residential", "Commercial", "Agricultural"}
	propertyTypes = []string{"Apartment", "Villa", "Independent House", "Plot", "Office", "Shop"}
	purposes      = []string{"sale", "rent"}
	facings       = []string{"North", "South", "East", "West", "North-East", "South-West"}
	parkings      = []string{"Covered", "Open", "None"}
	amenityPool   = []string{
		"Gym", "Swimming Pool", "Lift", "Power Backup", "Security", "Club House",
		"Garden", "Children's Play Area", "Intercom", "Rainwater Harvesting", "CCTV",
	}
	cities = []struct{ city, state string }{
		{"Pune", "Maharashtra"}, {"Mumbai", "Maharashtra"}, {"Bengaluru", "Karnataka"},
		{"Hyderabad", "Telangana"}, {"Chennai", "Tamil Nadu"}, {"Jaipur", "Rajasthan"},
		{"Kochi", "Kerala"}, {"Ahmedabad", "Gujarat"}, {"Noida", "Uttar Pradesh"},
	}
)

// Factory builds admins and properties without persisting them.
type Factory struct {
	faker      *gofakeit.Faker
	maxDays    int
	bcryptCost int
	nextID     uint
}

// NewFactory creates a Factory. A zero seed uses the current time.
func NewFactory(seed int64, maxDays, bcryptCost int) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxDays <= 0 {
		maxDays = 90
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Factory{faker: gofakeit.New(seed), maxDays: maxDays, bcryptCost: bcryptCost, nextID: 1000}
}

// BuildAdmin returns an admin with a hashed DefaultPassword.
func (f *Factory) BuildAdmin() (*models.Admin, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), f.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	first, last := f.faker.FirstName(), f.faker.LastName()
	return &models.Admin{
		FullName: first + " " + last,
		Email:    models.NormalizeEmail(fmt.Sprintf("%s.%s.%d@propertyhub.dev", first, last, f.faker.Number(100, 9999))),
		Password: string(hash),
	}, nil
}

// BuildProperty returns a listing created by creator. Images point at placeholder URLs.
func (f *Factory) BuildProperty(creator *models.Admin, overrides ...func(*models.Property)) *models.Property {
	place := cities[f.faker.Number(0, len(cities)-1)]
	propertyType := f.faker.RandomString(propertyTypes)
	bhk := f.faker.Number(1, 5)
	totalFloors := f.faker.Number(1, 30)
	purpose := f.faker.RandomString(purposes)

	price := f.faker.Number(20, 500) * 100000
	if purpose == "rent" {
		price = f.faker.Number(8, 150) * 1000
	}

	p := &models.Property{
		Title:        fmt.Sprintf("%d BHK %s in %s", bhk, propertyType, place.city),
		Category:     f.faker.RandomString(categories),
		PropertyType: propertyType,
		Purpose:      purpose,
		Price:        strconv.Itoa(price),
		City:         place.city,
		State:        place.state,
		Location:     f.faker.Street(),
		Area:         fmt.Sprintf("%d sqft", f.faker.Number(350, 4500)),
		BHK:          strconv.Itoa(bhk),
		Bathrooms:    strconv.Itoa(f.faker.Number(1, bhk+1)),
		Balconies:    strconv.Itoa(f.faker.Number(0, 3)),
		FloorNo:      strconv.Itoa(f.faker.Number(0, totalFloors)),
		TotalFloors:  strconv.Itoa(totalFloors),
		Facing:       f.faker.RandomString(facings),
		Parking:      f.faker.RandomString(parkings),
		Description:  f.faker.Paragraph(1, 3, 12, " "),
		Amenities:    f.amenities(),
		Images:       f.images(),
		Version:      1,
	}

	if creator != nil && creator.ID != 0 {
		id := creator.ID
		p.CreatedBy = &id
	}

	daysBack := f.faker.Number(0, f.maxDays-1)
	minsBack := f.faker.Number(0, 24*60-1)
	p.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(minsBack)*time.Minute)
	p.UpdatedAt = p.CreatedAt

	for _, override := range overrides {
		override(p)
	}
	return p
}

// syntheticID hands out IDs for dry runs.
func (f *Factory) syntheticID() uint {
	f.nextID++
	return f.nextID
}

func (f *Factory) amenities() []string {
	n := f.faker.Number(0, 6)
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		a := f.faker.RandomString(amenityPool)
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (f *Factory) images() []string {
	n := f.faker.Number(1, 4)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("https://picsum.photos/seed/%s/1200/800", f.faker.UUID()))
	}
	return out
}
