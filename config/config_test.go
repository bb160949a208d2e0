package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// clearEnv blanks variables the host may have set; getEnv treats "" as unset.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "ENV", "STORE_DRIVER", "BLOB_DRIVER", "REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"API_MAX_IMAGE_BYTES", "CORS_ALLOWED_ORIGINS", "IDENTITY_JWT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "8080" || cfg.Blob.Driver != "memory" {
		t.Errorf("unexpected defaults %+v", cfg.Server)
	}
	if cfg.API.MaxImageBytes != 10<<20 {
		t.Errorf("expected a 10 MiB image limit, got %d", cfg.API.MaxImageBytes)
	}
	if got := cfg.GetDSN(); got != "host=localhost port=5432 user=nextmessage password=nextmessage_password dbname=nextmessage sslmode=disable" {
		t.Errorf("unexpected dsn %q", got)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
store:
  driver: mongo
blob:
  driver: gridfs
redis:
  enabled: false
  port: "6380"
cors:
  allowed_origins: ["https://a.example"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_PORT", "6381")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Driver != "mongo" || cfg.Blob.Driver != "gridfs" || cfg.Redis.Enabled {
		t.Errorf("file values not applied: %+v %+v %+v", cfg.Store, cfg.Blob, cfg.Redis)
	}
	if cfg.GetRedisAddr() != "localhost:6381" {
		t.Errorf("expected env to override the file, got %s", cfg.GetRedisAddr())
	}
	if !slices.Equal(cfg.CORS.AllowedOrigins, []string{"https://b.example", "https://c.example"}) {
		t.Errorf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults", func(*Config) {}, false},
		{"Unknown store", func(c *Config) { c.Store.Driver = "sqlite" }, true},
		{"GridFS without mongo", func(c *Config) { c.Blob.Driver = "gridfs" }, true},
		{"GridFS with mongo", func(c *Config) { c.Store.Driver = "mongo"; c.Blob.Driver = "gridfs" }, false},
		{"S3 without bucket", func(c *Config) { c.Blob.Driver = "s3"; c.S3.Region = "eu-west-1" }, true},
		{"S3 configured", func(c *Config) { c.Blob.Driver = "s3"; c.S3.Bucket = "images"; c.S3.Region = "eu-west-1" }, false},
		{"Default secret in production", func(c *Config) { c.Server.Env = "production" }, true},
		{"Production with secret", func(c *Config) { c.Server.Env = "production"; c.Identity.JWTSecret = "s3cret" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
