// Package main provides admin account and schema utilities for PropertyHub.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"propertyhub/internal/config"
	"propertyhub/internal/database"
	"propertyhub/internal/models"
	"propertyhub/internal/repository"
	"propertyhub/internal/service"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// adminFile is the document accepted by the import command.
type adminFile struct {
	Admins []struct {
		FullName string `yaml:"full_name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admins"`
}

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin create <full_name> <email> <password>  - Create an admin")
	fmt.Println("  go run ./cmd/admin import <admins.yml>                    - Create admins from a YAML file")
	fmt.Println("  go run ./cmd/admin list                                   - List all admins")
	fmt.Println("  go run ./cmd/admin migrate                                - Apply schema migrations")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	admins := service.NewAdminService(repository.NewAdminRepository(db))

	switch command := os.Args[1]; command {
	case "create":
		if len(os.Args) < 5 {
			fmt.Println("Usage: go run ./cmd/admin create <full_name> <email> <password>")
			os.Exit(1)
		}
		createAdmin(ctx, admins, service.RegisterAdminInput{
			FullName: os.Args[2],
			Email:    os.Args[3],
			Password: os.Args[4],
		})

	case "import":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin import <admins.yml>")
			os.Exit(1)
		}
		importAdmins(ctx, admins, os.Args[2])

	case "list":
		listAdmins(ctx, admins)

	case "migrate":
		migrate(db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func createAdmin(ctx context.Context, admins *service.AdminService, in service.RegisterAdminInput) {
	admin, err := admins.Register(ctx, in)
	if err != nil {
		fmt.Printf("Could not create admin %s: %s\n", in.Email, describe(err))
		os.Exit(1)
	}
	fmt.Printf("✓ Created admin %s (ID: %d)\n", admin.Email, admin.ID)
}

func importAdmins(ctx context.Context, admins *service.AdminService, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	var doc adminFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}

	created, skipped := 0, 0
	for _, entry := range doc.Admins {
		admin, err := admins.Register(ctx, service.RegisterAdminInput{
			FullName: entry.FullName,
			Email:    entry.Email,
			Password: entry.Password,
		})
		if err != nil {
			fmt.Printf("  skipped %s: %s\n", entry.Email, describe(err))
			skipped++
			continue
		}
		fmt.Printf("  created %s (ID: %d)\n", admin.Email, admin.ID)
		created++
	}
	fmt.Printf("Imported %d admins, skipped %d\n", created, skipped)
}

func listAdmins(ctx context.Context, admins *service.AdminService) {
	list, err := admins.ListAdmins(ctx)
	if err != nil {
		log.Fatalf("Database error: %s", describe(err))
	}

	if len(list) == 0 {
		fmt.Println("No admins found")
		return
	}

	fmt.Printf("Found %d admin(s):\n", len(list))
	fmt.Println(strings.Repeat("-", 60))
	for _, admin := range list {
		fmt.Printf("ID: %-5d Name: %-20s Email: %s\n", admin.ID, admin.FullName, admin.Email)
	}
}

func migrate(db *gorm.DB) {
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Println("✓ Schema is up to date")
}

// describe prefers the caller-facing message of an AppError.
func describe(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
