package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "change-this-secret-key"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Blob     BlobConfig     `yaml:"blob"`
	S3       S3Config       `yaml:"s3"`
	Redis    RedisConfig    `yaml:"redis"`
	Identity IdentityConfig `yaml:"identity"`
	API      APIConfig      `yaml:"api"`
	CORS     CORSConfig     `yaml:"cors"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ShutdownSeconds int    `yaml:"shutdown_seconds"`
}

// StoreConfig picks the backend for profiles, messages and groups.
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type BlobConfig struct {
	Driver string `yaml:"driver"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// IdentityConfig verifies the bearer tokens minted by the identity provider.
type IdentityConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	Issuer      string `yaml:"issuer"`
	ExpiryHours int    `yaml:"expiry_hours"`
}

type APIConfig struct {
	RateLimitMessagesPerSec int   `yaml:"rate_limit_messages_per_sec"`
	MaxImageBytes           int64 `yaml:"max_image_bytes"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", Env: "development", ShutdownSeconds: 15},
		Store:    StoreConfig{Driver: "postgres"},
		Database: DatabaseConfig{Host: "localhost", Port: "5432", User: "nextmessage", Password: "nextmessage_password", DBName: "nextmessage", SSLMode: "disable"},
		Mongo:    MongoConfig{URI: "mongodb://localhost:27017", Database: "nextmessage"},
		Blob:     BlobConfig{Driver: "memory"},
		Redis:    RedisConfig{Enabled: true, Host: "localhost", Port: "6379"},
		Identity: IdentityConfig{JWTSecret: defaultJWTSecret, ExpiryHours: 168},
		API:      APIConfig{RateLimitMessagesPerSec: 10, MaxImageBytes: 10 << 20},
		CORS:     CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load loads configuration from defaults, an optional YAML file named by
// CONFIG_FILE, then environment variables, in increasing precedence.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("ENV", c.Server.Env)
	c.Server.ShutdownSeconds = getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", c.Server.ShutdownSeconds)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Mongo.URI = getEnv("MONGODB_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGODB_DATABASE", c.Mongo.Database)

	c.Blob.Driver = getEnv("BLOB_DRIVER", c.Blob.Driver)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = getEnv("S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)

	c.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.Identity.JWTSecret = getEnv("IDENTITY_JWT_SECRET", c.Identity.JWTSecret)
	c.Identity.Issuer = getEnv("IDENTITY_ISSUER", c.Identity.Issuer)
	c.Identity.ExpiryHours = getEnvInt("IDENTITY_EXPIRY_HOURS", c.Identity.ExpiryHours)

	c.API.RateLimitMessagesPerSec = getEnvInt("RATE_LIMIT_MESSAGES_PER_SECOND", c.API.RateLimitMessagesPerSec)
	c.API.MaxImageBytes = int64(getEnvInt("API_MAX_IMAGE_BYTES", int(c.API.MaxImageBytes)))

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = splitList(origins)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate rejects driver combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres, mongo or memory, got %q", c.Store.Driver)
	}

	switch c.Blob.Driver {
	case "gridfs":
		if c.Store.Driver != "mongo" {
			return fmt.Errorf("BLOB_DRIVER=gridfs requires STORE_DRIVER=mongo")
		}
	case "s3":
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return fmt.Errorf("BLOB_DRIVER=s3 requires S3_BUCKET and S3_REGION")
		}
	case "memory":
	default:
		return fmt.Errorf("BLOB_DRIVER must be gridfs, s3 or memory, got %q", c.Blob.Driver)
	}

	if c.API.MaxImageBytes <= 0 {
		return fmt.Errorf("API_MAX_IMAGE_BYTES must be positive")
	}

	// Validate required fields
	if c.Identity.JWTSecret == defaultJWTSecret && c.IsProduction() {
		return fmt.Errorf("IDENTITY_JWT_SECRET must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
