package seed

import (
	"context"
	"strings"
	"testing"

	"propertyhub/internal/database"
	"propertyhub/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestBuildPropertyIsListable(t *testing.T) {
	f := NewFactory(42, 30, bcrypt.MinCost)
	creator := &models.Admin{ID: 7}

	for i := 0; i < 50; i++ {
		p := f.BuildProperty(creator)
		if p.Title == "" || p.Price == "" || p.City == "" || p.State == "" {
			t.Fatalf("missing required field: %+v", p)
		}
		if len(p.Images) == 0 {
			t.Fatalf("expected at least one image")
		}
		for _, img := range p.Images {
			if !strings.HasPrefix(img, "https://picsum.photos/") {
				t.Fatalf("unexpected image locator %q", img)
			}
		}
		seen := map[string]bool{}
		for _, a := range p.Amenities {
			if seen[a] {
				t.Fatalf("duplicate amenity %q", a)
			}
			seen[a] = true
		}
		if p.Version != 1 {
			t.Fatalf("expected version 1, got %d", p.Version)
		}
		if p.CreatedBy == nil || *p.CreatedBy != 7 {
			t.Fatalf("expected createdBy 7")
		}
	}
}

func TestBuildPropertyOverrides(t *testing.T) {
	f := NewFactory(1, 0, bcrypt.MinCost)
	p := f.BuildProperty(nil, func(p *models.Property) { p.City = "Goa" })
	if p.City != "Goa" {
		t.Fatalf("override not applied, city=%q", p.City)
	}
	if p.CreatedBy != nil {
		t.Fatalf("expected no creator")
	}
}

func TestBuildAdminHashesPassword(t *testing.T) {
	f := NewFactory(1, 0, bcrypt.MinCost)
	admin, err := f.BuildAdmin()
	if err != nil {
		t.Fatalf("BuildAdmin: %v", err)
	}
	if admin.Email != strings.ToLower(admin.Email) {
		t.Fatalf("email not normalized: %q", admin.Email)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(DefaultPassword)); err != nil {
		t.Fatalf("password hash mismatch: %v", err)
	}
}

func TestSeederRun(t *testing.T) {
	db := setupDB(t)
	s := NewSeeder(db, Options{NumAdmins: 2, NumProperties: 5, Seed: 9, BcryptCost: bcrypt.MinCost})

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Admins) != 2 || len(summary.Properties) != 5 {
		t.Fatalf("unexpected summary: %d admins, %d properties", len(summary.Admins), len(summary.Properties))
	}

	var count int64
	db.Model(&models.Property{}).Count(&count)
	if count != 5 {
		t.Fatalf("expected 5 stored properties, got %d", count)
	}

	clean := NewSeeder(db, Options{NumAdmins: 1, NumProperties: 1, ShouldClean: true, Seed: 10, BcryptCost: bcrypt.MinCost})
	if _, err := clean.Run(context.Background()); err != nil {
		t.Fatalf("Run with clean: %v", err)
	}
	db.Model(&models.Property{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 property after clean, got %d", count)
	}
	db.Model(&models.Admin{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 admin after clean, got %d", count)
	}
}

func TestSeederDryRunWritesNothing(t *testing.T) {
	db := setupDB(t)
	s := NewSeeder(db, Options{NumAdmins: 1, NumProperties: 3, DryRun: true, ShouldClean: true, BcryptCost: bcrypt.MinCost})

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, p := range summary.Properties {
		if p.ID == 0 {
			t.Fatalf("dry run property has no synthetic id")
		}
	}

	var count int64
	db.Model(&models.Property{}).Count(&count)
	if count != 0 {
		t.Fatalf("dry run stored %d properties", count)
	}
}
