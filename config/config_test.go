package config

import (
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("RATE_LIMIT", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("RATE_LIMIT", "lots")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid RATE_LIMIT")
	var numErr *strconv.NumError
	assert.ErrorAs(t, errors.Cause(err), &numErr)

	t.Setenv("RATE_LIMIT", "")
	t.Setenv("JWT_TTL", "soon")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JWT_TTL")
}

func TestLoadRejectsEmptyCORSOrigins(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("RATE_LIMIT", "")

	for _, v := range []string{",", " , ,"} {
		t.Setenv("CORS_ORIGINS", v)
		_, err := Load()
		require.Error(t, err, "CORS_ORIGINS=%q", v)
		assert.Contains(t, err.Error(), "CORS_ORIGINS")
	}
}

func TestReleaseRequiresSecret(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("RATE_LIMIT", "")
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
