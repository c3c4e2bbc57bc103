package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	devJWTSecret = "devconnector-secret-change-this-in-production"
)

type Config struct {
	Env     string
	Port    string
	GinMode string

	StoreDriver string
	MongoURI    string
	MongoDB     string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string

	RateLimit       int
	RateLimitWindow time.Duration

	CORSOrigins []string
}

// LoadDotEnvs loads .env files by priority. Files that don't exist are
// skipped; variables already set in the environment are never overwritten.
func LoadDotEnvs() {
	env := os.Getenv("DEVCONNECTOR_ENV")
	if env == "" {
		env = "dev"
	}

	godotenv.Load(".env." + env + ".local")
	godotenv.Load(".env.local")
	godotenv.Load(".env." + env)
	godotenv.Load(".env")
}

// Load reads the process configuration from the environment.
func Load() (*Config, error) {
	LoadDotEnvs()

	cfg := &Config{
		Env:             getEnv("DEVCONNECTOR_ENV", "dev"),
		Port:            getEnv("PORT", "5000"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		StoreDriver:     getEnv("STORE_DRIVER", StoreMongo),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:         getEnv("MONGODB_DATABASE", "devconnector"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RateLimit:       60,
		RateLimitWindow: time.Minute,
		JWTTTL:          time.Hour,
		CORSOrigins:     []string{"http://localhost:3000"},
	}

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid RATE_LIMIT %q", v)
		}
		cfg.RateLimit = n
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid RATE_LIMIT_WINDOW %q", v)
		}
		cfg.RateLimitWindow = d
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid JWT_TTL %q", v)
		}
		cfg.JWTTTL = d
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
		if len(cfg.CORSOrigins) == 0 {
			return nil, errors.Errorf("CORS_ORIGINS %q names no origins", v)
		}
	}

	switch cfg.StoreDriver {
	case StoreMongo, StoreMemory:
	default:
		return nil, errors.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsRelease() {
			return nil, errors.New("JWT_SECRET must be set in release mode")
		}
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
