// Command main runs the database seeder for PropertyHub.
package main

import (
	"context"
	"flag"
	"log"

	"propertyhub/internal/cache"
	"propertyhub/internal/config"
	"propertyhub/internal/database"
	"propertyhub/internal/seed"
)

func main() {
	numAdmins := flag.Int("admins", 3, "Number of admins to create")
	numProperties := flag.Int("properties", 60, "Number of properties to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	maxDays := flag.Int("days", 90, "Spread created dates over this many past days")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d admins, %d properties, clean=%v\n", *numAdmins, *numProperties, *shouldClean)

	opts := seed.Options{
		NumAdmins:     *numAdmins,
		NumProperties: *numProperties,
		ShouldClean:   *shouldClean,
		DryRun:        *dryRun,
		Seed:          *randSeed,
		MaxDays:       *maxDays,
	}

	if *dryRun {
		summary, err := seed.NewSeeder(nil, opts).Run(context.Background())
		if err != nil {
			log.Fatalf("❌ Dry run failed: %v", err)
		}
		for _, p := range summary.Properties {
			log.Printf("  #%d %s (%s, %s) ₹%s", p.ID, p.Title, p.City, p.State, p.Price)
		}
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// Cached listings would hide the new rows until they expire.
	cache.InitRedis(cfg.RedisURL)

	if _, err := seed.NewSeeder(database.DB, opts).Run(context.Background()); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All seeded admins have the password: %s", seed.DefaultPassword)
}
