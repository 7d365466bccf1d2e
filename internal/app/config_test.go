package app

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", MinSecretLength))
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "token", cfg.CookieName)
	assert.Equal(t, 4000, cfg.CustomerCodeStart)
	assert.Equal(t, "permissive", cfg.StatusPolicy)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := Config{
		JWTSecret:         strings.Repeat("s", MinSecretLength),
		StatusPolicy:      "backwards",
		CustomerCodeStart: 4000,
		PublicRateLimit:   20,
		GlobalRateLimit:   120,
	}
	assert.ErrorContains(t, cfg.Validate(), "STATUS_POLICY")

	cfg.StatusPolicy = "forward"
	assert.NoError(t, cfg.Validate())

	cfg.CustomerCodeStart = 0
	assert.Error(t, cfg.Validate())
}

func TestInTestModeFollowsEnv(t *testing.T) {
	assert.True(t, InTestMode(), "the test helper package sets TRACKER_TEST_MODE before tests run")
}
