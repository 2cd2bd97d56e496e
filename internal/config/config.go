package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StorageLocal      = "local"
	StorageCloudinary = "cloudinary"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	AllowedOrigins  []string
	PublicBaseURL   string
	ShutdownTimeout time.Duration
}

// IsProduction reports whether cookies must be Secure and cross-site.
func (s ServerConfig) IsProduction() bool {
	return s.Env == EnvProduction
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

// DSN returns DATABASE_URL when set, otherwise a URL built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&search_path=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode, d.Schema)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret     string
	ExpiryDays int
}

// Expiry is the lifetime of both the session token and its cookie.
func (j JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryDays) * 24 * time.Hour
}

type StorageConfig struct {
	Backend          string
	UploadDir        string
	MaxUploadBytes   int64
	CloudinaryURL    string
	CloudName        string
	CloudAPIKey      string
	CloudAPISecret   string
	CloudinaryFolder string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func Load() *Config {
	// .env is optional; real environment variables always win.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: no .env file loaded: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// PORT is what most PaaS providers inject.
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")

	// Set defaults
	viper.SetDefault("SERVER_PORT", "4000")
	viper.SetDefault("SERVER_ENV", EnvDevelopment)
	viper.SetDefault("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30)
	viper.SetDefault("FRONTEND_ORIGIN", "http://localhost:3000")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_ENABLED", false)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_EXPIRY_DAYS", 7)
	viper.SetDefault("STORAGE_BACKEND", StorageLocal)
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("UPLOAD_MAX_BYTES", 5<<20)
	viper.SetDefault("CLOUDINARY_FOLDER", "marketmint")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:            viper.GetString("SERVER_PORT"),
			Env:             viper.GetString("SERVER_ENV"),
			AllowedOrigins:  splitList(viper.GetString("FRONTEND_ORIGIN")),
			PublicBaseURL:   strings.TrimSuffix(viper.GetString("PUBLIC_BASE_URL"), "/"),
			ShutdownTimeout: time.Duration(viper.GetInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			URL:      viper.GetString("DATABASE_URL"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("REDIS_ENABLED"),
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("JWT_SECRET"),
			ExpiryDays: viper.GetInt("JWT_EXPIRY_DAYS"),
		},
		Storage: StorageConfig{
			Backend:          strings.ToLower(viper.GetString("STORAGE_BACKEND")),
			UploadDir:        viper.GetString("UPLOAD_DIR"),
			MaxUploadBytes:   viper.GetInt64("UPLOAD_MAX_BYTES"),
			CloudinaryURL:    viper.GetString("CLOUDINARY_URL"),
			CloudName:        viper.GetString("CLOUDINARY_CLOUD_NAME"),
			CloudAPIKey:      viper.GetString("CLOUDINARY_API_KEY"),
			CloudAPISecret:   viper.GetString("CLOUDINARY_API_SECRET"),
			CloudinaryFolder: viper.GetString("CLOUDINARY_FOLDER"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		if c.Server.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in %s", EnvProduction)
		}
		c.JWT.Secret = "dev-secret-change-me"
	}
	if c.JWT.ExpiryDays <= 0 {
		return fmt.Errorf("JWT_EXPIRY_DAYS must be positive, got %d", c.JWT.ExpiryDays)
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR must be set for the %s storage backend", StorageLocal)
		}
	case StorageCloudinary:
		if c.Storage.CloudinaryURL == "" &&
			(c.Storage.CloudName == "" || c.Storage.CloudAPIKey == "" || c.Storage.CloudAPISecret == "") {
			return fmt.Errorf("cloudinary storage needs CLOUDINARY_URL or CLOUDINARY_CLOUD_NAME/API_KEY/API_SECRET")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimSuffix(part, "/"))
		}
	}
	return out
}
