// Package config loads server settings from the environment.
//
// Sources, highest priority first:
//  1. process environment variables
//  2. a .env file in the working directory (loaded into the environment by godotenv)
//  3. config.yaml in . or ./config
//  4. the defaults below
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the server and the seeder read.
type Config struct {
	Port     int
	BasePath string // "" or "/fitted"; every route is mounted under it

	LogLevel  string
	LogFormat string // text | json
	LogFile   string // optional rotating file sink

	Store         string // sqlite | mongo
	DBPath        string
	MongoURI      string
	MongoDatabase string

	JWTSecret    string
	SessionTTL   time.Duration
	SecureCookie bool
	BcryptCost   int

	MediaBackend string // local | s3
	UploadDir    string
	S3Bucket     string
	S3Region     string
	S3PublicURL  string

	RedisAddr     string
	RedisPassword string

	WeatherAPIURL   string
	WeatherCacheTTL time.Duration

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	TemplateDir string
	StaticDir   string
}

// GitHubEnabled reports whether the optional GitHub login is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads the configuration. A missing .env or config.yaml is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:               v.GetInt("PORT"),
		BasePath:           normalizeBasePath(v.GetString("BASE_PATH")),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:          strings.ToLower(v.GetString("LOG_FORMAT")),
		LogFile:            v.GetString("LOG_FILE"),
		Store:              strings.ToLower(v.GetString("STORE")),
		DBPath:             v.GetString("DB_PATH"),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDatabase:      v.GetString("MONGO_DATABASE"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		SessionTTL:         v.GetDuration("SESSION_TTL"),
		SecureCookie:       v.GetBool("SECURE_COOKIE"),
		BcryptCost:         v.GetInt("BCRYPT_COST"),
		MediaBackend:       strings.ToLower(v.GetString("MEDIA_BACKEND")),
		UploadDir:          v.GetString("UPLOAD_DIR"),
		S3Bucket:           v.GetString("S3_BUCKET"),
		S3Region:           v.GetString("S3_REGION"),
		S3PublicURL:        strings.TrimSuffix(v.GetString("S3_PUBLIC_URL"), "/"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		WeatherAPIURL:      v.GetString("WEATHER_API_URL"),
		WeatherCacheTTL:    v.GetDuration("WEATHER_CACHE_TTL"),
		GitHubClientID:     v.GetString("GITHUB_CLIENT_ID"),
		GitHubClientSecret: v.GetString("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  v.GetString("GITHUB_CALLBACK_URL"),
		TemplateDir:        v.GetString("TEMPLATE_DIR"),
		StaticDir:          v.GetString("STATIC_DIR"),
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d%s/api/auth/github/callback", cfg.Port, cfg.BasePath)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("BASE_PATH", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("STORE", "sqlite")
	v.SetDefault("DB_PATH", "data/fitted.db")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "fitted")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SECURE_COOKIE", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MEDIA_BACKEND", "local")
	v.SetDefault("UPLOAD_DIR", "data/uploads")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("WEATHER_API_URL", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("WEATHER_CACHE_TTL", "60s")
	v.SetDefault("TEMPLATE_DIR", "web/templates")
	v.SetDefault("STATIC_DIR", "web/static")
}

// Validate reports every problem at once rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 16 characters"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be a positive duration"))
	}

	switch c.Store {
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
		}
	case "mongo":
		if c.MongoURI == "" || c.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_URI and MONGO_DATABASE are required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE must be sqlite or mongo, got %q", c.Store))
	}

	switch c.MediaBackend {
	case "local":
		if c.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for local media"))
		}
	case "s3":
		if c.S3Bucket == "" || c.S3PublicURL == "" {
			errs = append(errs, errors.New("S3_BUCKET and S3_PUBLIC_URL are required for s3 media"))
		}
	default:
		errs = append(errs, fmt.Errorf("MEDIA_BACKEND must be local or s3, got %q", c.MediaBackend))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if c.WeatherCacheTTL < 0 {
		errs = append(errs, errors.New("WEATHER_CACHE_TTL must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// normalizeBasePath turns "fitted/", "/fitted" and "/fitted/" into "/fitted"
// and "/" into "".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
