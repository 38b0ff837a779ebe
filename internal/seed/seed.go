package seed

import (
	"context"
	"fmt"
	"log"

	"propertyhub/internal/cache"
	"propertyhub/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumAdmins     int
	NumProperties int
	ShouldClean   bool
	DryRun        bool
	// Seed makes the generated data reproducible when non-zero.
	Seed       int64
	MaxDays    int
	BcryptCost int
}

// Summary reports what a run created.
type Summary struct {
	Admins     []models.Admin
	Properties []models.Property
}

// Seeder writes factory output to the database.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder creates a Seeder. db may be nil for dry runs.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{
		db:      db,
		factory: NewFactory(opts.Seed, opts.MaxDays, opts.BcryptCost),
		opts:    opts,
	}
}

// ClearAll removes every property and admin.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		log.Println("🧪 Dry run: skipping cleanup")
		return nil
	}
	log.Println("🗑️  Clearing existing data...")
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := tx.Delete(&models.Property{}).Error; err != nil {
		return fmt.Errorf("clear properties: %w", err)
	}
	if err := tx.Delete(&models.Admin{}).Error; err != nil {
		return fmt.Errorf("clear admins: %w", err)
	}
	return nil
}

// Run creates admins, then spreads properties across them.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Seeding %d admins and %d properties (dry-run=%v)", s.opts.NumAdmins, s.opts.NumProperties, s.opts.DryRun)

	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	admins, err := s.SeedAdmins(ctx, s.opts.NumAdmins)
	if err != nil {
		return nil, fmt.Errorf("failed to create admins: %w", err)
	}
	log.Printf("✓ %d admins created", len(admins))

	properties, err := s.SeedProperties(ctx, admins, s.opts.NumProperties)
	if err != nil {
		return nil, fmt.Errorf("failed to create properties: %w", err)
	}
	log.Printf("✓ %d properties created", len(properties))

	if !s.opts.DryRun {
		cache.InvalidatePropertyLists(ctx)
	}
	return &Summary{Admins: admins, Properties: properties}, nil
}

// SeedAdmins creates count admins sharing DefaultPassword.
func (s *Seeder) SeedAdmins(ctx context.Context, count int) ([]models.Admin, error) {
	admins := make([]models.Admin, 0, count)
	for i := 0; i < count; i++ {
		admin, err := s.factory.BuildAdmin()
		if err != nil {
			return nil, err
		}
		if s.opts.DryRun {
			admin.ID = s.factory.syntheticID()
		} else if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
			return nil, fmt.Errorf("create admin %s: %w", admin.Email, err)
		}
		admins = append(admins, *admin)
	}
	return admins, nil
}

// SeedProperties creates count properties owned round-robin by admins.
func (s *Seeder) SeedProperties(ctx context.Context, admins []models.Admin, count int) ([]models.Property, error) {
	properties := make([]models.Property, 0, count)
	for i := 0; i < count; i++ {
		var creator *models.Admin
		if len(admins) > 0 {
			creator = &admins[i%len(admins)]
		}
		properties = append(properties, *s.factory.BuildProperty(creator))
	}
	if count == 0 {
		return properties, nil
	}

	if s.opts.DryRun {
		for i := range properties {
			properties[i].ID = s.factory.syntheticID()
		}
		return properties, nil
	}

	if err := s.db.WithContext(ctx).CreateInBatches(&properties, 100).Error; err != nil {
		return nil, err
	}
	return properties, nil
}
