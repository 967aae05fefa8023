package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voicrm"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "voicrm")
	t.Setenv("JWT_SECRET", "secret")
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config errors:")
	assert.Contains(t, err.Error(), "APP_ENV is required")
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "voicrm"
	c.Auth.JWTAudience = "dashboard"
	c.Twilio.AuthToken = "tok"

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_SSLMODE is required in production")
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	require.NoError(t, c.Validate())

	assert.Equal(t, "disable", c.DB.SSLMode)
	assert.Equal(t, 15*time.Minute, c.Auth.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, c.Auth.RefreshTokenTTL)
	assert.Equal(t, 24*time.Hour, c.Carousel.CollisionLookback)
	assert.Equal(t, 250*time.Millisecond, c.Carousel.CoachingTimeout)
	assert.Equal(t, 10*time.Minute, c.Carousel.SessionTTL)
	assert.Equal(t, 5*time.Second, c.Carousel.TranscribeTimeout)
	assert.Equal(t, 4*time.Hour, c.Carousel.CallMaxAge)
	assert.Equal(t, time.Hour, c.Twilio.TokenTTL)
	assert.Equal(t, time.UTC, c.Carousel.Location)
}

func TestValidate_BadDuration(t *testing.T) {
	c := validLocal()
	c.Carousel.CoachingTimeoutRaw = "soon"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `COACHING_TIMEOUT must be a positive duration, got "soon"`)
}

func TestValidate_TranscribeTimeout(t *testing.T) {
	c := validLocal()
	c.Carousel.TranscribeTimeoutRaw = "1500ms"
	require.NoError(t, c.Validate())
	assert.Equal(t, 1500*time.Millisecond, c.Carousel.TranscribeTimeout)

	c = validLocal()
	c.Carousel.TranscribeTimeoutRaw = "-1s"
	assert.ErrorContains(t, c.Validate(), "TRANSCRIBE_TIMEOUT must be a positive duration")
}

func TestValidate_RedisOptional(t *testing.T) {
	c := validLocal()
	c.Redis = RedisConfig{}
	require.NoError(t, c.Validate())
	assert.False(t, c.RedisEnabled())
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "health_weighted", cfg.Carousel.DefaultStrategy)
	assert.Equal(t, 30, cfg.Carousel.SelectionRatePerMinute)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, "https://insights.twilio.com", cfg.Twilio.InsightsURL)
	assert.Equal(t, "Australia/Sydney", cfg.Carousel.Location.String())
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("COACHING_TIMEOUT", "400ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.voicrm.com.au, http://localhost:3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 400*time.Millisecond, cfg.Carousel.CoachingTimeout)
	assert.Equal(t, []string{"https://app.voicrm.com.au", "http://localhost:3000"}, cfg.AllowedOrigins())
}
