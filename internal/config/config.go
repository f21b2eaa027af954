// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Catalog     CatalogConfig
	Generator   GeneratorConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	Static      StaticConfig
	Log         LogConfig
	Client      ClientConfig
}

type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	MaxBodyBytes int64
}

type CatalogConfig struct {
	BaseURL         string
	SubscriptionKey string
	Timeout         int // in seconds
}

type GeneratorConfig struct {
	URL          string
	Timeout      int // in seconds
	MaxDimension int // in pixels, 0 disables downscaling

	// MaxUploadBytes bounds a whole multipart generate request: head,
	// costume and logo images plus form fields.
	MaxUploadBytes int64
}

type CORSConfig struct {
	Origins []string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type CacheConfig struct {
	TTL           int // in seconds, 0 disables caching
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type StaticConfig struct {
	Dir string
}

type LogConfig struct {
	Level  string
	Format string
}

// ClientConfig is read by the curator client rather than the proxy.
type ClientConfig struct {
	APIBaseURL string
	StoreDSN   string
	MaxRetries int
}

const (
	DefaultPort       = 4000
	DefaultCORSOrigin = "http://localhost:5173"

	// DefaultMaxUploadMB fits three 10MB images with room for the form.
	DefaultMaxUploadMB = 64
)

// Load reads the proxy configuration. The catalog and generator settings are
// required.
func Load() (*Config, error) {
	config := load()
	return config, config.Validate()
}

// LoadClient reads only what the curator client needs; proxy credentials are
// not required.
func LoadClient() *Config {
	return load()
}

func load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", DefaultPort),
			Host:         getEnv("HOST", ""),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 180),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			MaxBodyBytes: int64(getEnvAsInt("SERVER_MAX_BODY_MB", 15)) << 20,
		},
		Catalog: CatalogConfig{
			BaseURL:         strings.TrimSuffix(getEnv("ASCOLOUR_API_BASE_URL", ""), "/"),
			SubscriptionKey: getEnv("ASCOLOUR_SUBSCRIPTION_KEY", ""),
			Timeout:         getEnvAsInt("ASCOLOUR_TIMEOUT", 30),
		},
		Generator: GeneratorConfig{
			URL:            getEnv("GENERATE_IMAGE_URL", ""),
			Timeout:        getEnvAsInt("GENERATE_IMAGE_TIMEOUT", 170),
			MaxDimension:   getEnvAsInt("UPLOAD_MAX_DIMENSION", 0),
			MaxUploadBytes: int64(getEnvAsInt("GENERATE_MAX_UPLOAD_MB", DefaultMaxUploadMB)) << 20,
		},
		CORS: CORSConfig{
			Origins: getEnvAsList("CORS_ORIGIN", []string{DefaultCORSOrigin}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Cache: CacheConfig{
			TTL:           getEnvAsInt("CACHE_TTL", 0),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Static: StaticConfig{
			Dir: getEnv("STATIC_DIR", "client/dist"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Client: ClientConfig{
			APIBaseURL: strings.TrimSuffix(getEnv("API_BASE_URL", "http://localhost:4000"), "/"),
			StoreDSN:   getEnv("CURATOR_STORE", "curator.db"),
			MaxRetries: getEnvAsInt("API_MAX_RETRIES", 3),
		},
	}
}

func (c *Config) Validate() error {
	var missing []string
	if c.Catalog.BaseURL == "" {
		missing = append(missing, "ASCOLOUR_API_BASE_URL")
	}
	if c.Catalog.SubscriptionKey == "" {
		missing = append(missing, "ASCOLOUR_SUBSCRIPTION_KEY")
	}
	if c.Generator.URL == "" {
		missing = append(missing, "GENERATE_IMAGE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	for _, origin := range c.CORS.Origins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid CORS_ORIGIN entry %q", origin)
		}
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit must be positive")
	}

	return nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
