package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                  "development",
		JWTSecret:            "secure-secret-at-least-32-chars-long",
		DBPassword:           "secure-password",
		DBSSLMode:            "require",
		Port:                 "8080",
		ImageMaxUploadSizeMB: 5,
		MaxImagesPerRequest:  10,
		StorageDriver:        StorageLocal,
	}
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"Production with strong settings", func(c *Config) { c.Env = "production" }, false},
		{"Production with default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"Prod with short secret", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "short"
		}, true},
		{"Production with weak DB password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"Production with disabled SSL", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "disable"
		}, true},
		{"Development with short secret", func(c *Config) { c.JWTSecret = "short" }, false},
		{"Missing port", func(c *Config) { c.Port = "" }, true},
		{"Zero upload size", func(c *Config) { c.ImageMaxUploadSizeMB = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateStorageDriver(t *testing.T) {
	c := validConfig()
	c.StorageDriver = StorageCloudinary
	assert.Error(t, c.Validate(), "cloudinary without credentials must be rejected")

	c.CloudinaryCloudName = "demo"
	c.CloudinaryAPIKey = "key"
	c.CloudinaryAPISecret = "secret"
	assert.NoError(t, c.Validate())

	c.StorageDriver = "s3"
	assert.Error(t, c.Validate())
}

func TestLoadConfig_DefaultsAndNormalization(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("UPLOAD_PUBLIC_PATH", "media/")
	t.Setenv("STORAGE_DRIVER", "LOCAL")
	_ = os.Unsetenv("PORT")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "/media", c.UploadPublicPath)
	assert.Equal(t, StorageLocal, c.StorageDriver)
	assert.Equal(t, "8375", c.Port)
	assert.Equal(t, 10, c.MaxImagesPerRequest)
	assert.Equal(t, 5, c.ImageMaxUploadSizeMB)
	assert.Equal(t, 24, c.JWTTTLHours)
}
