package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	env "github.com/Netflix/go-env"
)

// Config holds all configuration required by the API process.
// All values come from env (or an env-file loaded by the process runner).
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Twilio    TwilioConfig
	Anthropic AnthropicConfig
	Speech    SpeechConfig
	Carousel  CarouselConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Env         string `env:"APP_ENV"`
	Port        int    `env:"APP_PORT,default=8080"`
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT,default=5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`
	MaxConns int    `env:"DB_MAX_CONNS,default=25"`

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string `env:"DB_SSLMODE"`
}

// RedisConfig is optional. With no host the selection throttle is off and
// media sessions are kept in memory.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT,default=6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

type AuthConfig struct {
	JWTSecret       string `env:"JWT_SECRET"`
	JWTIssuer       string `env:"JWT_ISSUER"`
	JWTAudience     string `env:"JWT_AUDIENCE"`
	AccessTTLRaw    string `env:"JWT_ACCESS_TTL"`
	RefreshTTLRaw   string `env:"JWT_REFRESH_TTL"`
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`

	// WebhookBaseURL is the public origin Twilio signs webhook URLs against.
	WebhookBaseURL string `env:"TWILIO_WEBHOOK_BASE_URL"`
	VerifyWebhooks bool   `env:"TWILIO_VERIFY_WEBHOOKS,default=true"`

	BaseURL     string `env:"TWILIO_BASE_URL,default=https://api.twilio.com"`
	InsightsURL string `env:"TWILIO_INSIGHTS_URL,default=https://insights.twilio.com"`
	VoiceURL    string `env:"TWILIO_VOICE_URL"`
	StatusURL   string `env:"TWILIO_STATUS_CALLBACK_URL"`
	CallsPerSec int    `env:"TWILIO_CALLS_PER_SEC,default=1"`

	// Browser softphone access tokens.
	APIKey      string `env:"TWILIO_API_KEY"`
	APISecret   string `env:"TWILIO_API_SECRET"`
	TwiMLAppSID string `env:"TWILIO_TWIML_APP_SID"`
	TokenTTLRaw string `env:"TWILIO_TOKEN_TTL"`
	TokenTTL    time.Duration
}

type AnthropicConfig struct {
	APIKey    string `env:"ANTHROPIC_API_KEY"`
	Model     string `env:"ANTHROPIC_MODEL,default=claude-3-haiku-20240307"`
	MaxTokens int    `env:"ANTHROPIC_MAX_TOKENS,default=150"`
}

type SpeechConfig struct {
	Enabled         bool   `env:"SPEECH_ENABLED,default=false"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	LanguageCode    string `env:"SPEECH_LANGUAGE,default=en-AU"`
	SampleRateHz    int    `env:"SPEECH_SAMPLE_RATE,default=8000"`
}

type CarouselConfig struct {
	DefaultStrategy        string `env:"CAROUSEL_DEFAULT_STRATEGY,default=health_weighted"`
	SelectionRatePerMinute int    `env:"SELECTION_RATE_PER_MINUTE,default=30"`
	LookbackRaw            string `env:"COLLISION_LOOKBACK"`
	CoachingTimeoutRaw     string `env:"COACHING_TIMEOUT"`
	SessionTTLRaw          string `env:"STREAM_SESSION_TTL"`
	TranscribeTimeoutRaw   string `env:"TRANSCRIBE_TIMEOUT"`
	CallMaxAgeRaw          string `env:"CALL_MAX_AGE"`
	Timezone               string `env:"CAROUSEL_TIMEZONE,default=Australia/Sydney"`
	CollisionLookback      time.Duration
	CoachingTimeout        time.Duration
	SessionTTL             time.Duration
	TranscribeTimeout      time.Duration
	CallMaxAge             time.Duration
	Location               *time.Location
}

type TracingConfig struct {
	Enabled      bool    `env:"OTEL_ENABLED,default=false"`
	ServiceName  string  `env:"OTEL_SERVICE_NAME,default=voicrm-api"`
	OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE,default=false"`
	SampleRatio  float64 `env:"OTEL_SAMPLER_RATIO,default=0.1"`
}

func Load() (Config, error) {
	var c Config
	if _, err := env.UnmarshalFromEnviron(&c); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate collects every problem into a single error and fills
// duration defaults.
func (c *Config) Validate() error {
	var errs []error

	c.App.Env = strings.TrimSpace(c.App.Env)
	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required in production"))
		}
	}

	c.Auth.AccessTokenTTL = parseDuration(&errs, "JWT_ACCESS_TTL", c.Auth.AccessTTLRaw, 15*time.Minute)
	c.Auth.RefreshTokenTTL = parseDuration(&errs, "JWT_REFRESH_TTL", c.Auth.RefreshTTLRaw, 30*24*time.Hour)
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	c.Carousel.CollisionLookback = parseDuration(&errs, "COLLISION_LOOKBACK", c.Carousel.LookbackRaw, 24*time.Hour)
	c.Carousel.CoachingTimeout = parseDuration(&errs, "COACHING_TIMEOUT", c.Carousel.CoachingTimeoutRaw, 250*time.Millisecond)
	c.Carousel.SessionTTL = parseDuration(&errs, "STREAM_SESSION_TTL", c.Carousel.SessionTTLRaw, 10*time.Minute)
	c.Carousel.TranscribeTimeout = parseDuration(&errs, "TRANSCRIBE_TIMEOUT", c.Carousel.TranscribeTimeoutRaw, 5*time.Second)
	c.Carousel.CallMaxAge = parseDuration(&errs, "CALL_MAX_AGE", c.Carousel.CallMaxAgeRaw, 4*time.Hour)
	if loc, err := time.LoadLocation(c.Carousel.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("CAROUSEL_TIMEZONE invalid: %w", err))
	} else {
		c.Carousel.Location = loc
	}
	if c.Carousel.SelectionRatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("SELECTION_RATE_PER_MINUTE must be >= 0, got %d", c.Carousel.SelectionRatePerMinute))
	}
	c.Twilio.TokenTTL = parseDuration(&errs, "TWILIO_TOKEN_TTL", c.Twilio.TokenTTLRaw, time.Hour)
	if c.Twilio.CallsPerSec <= 0 {
		c.Twilio.CallsPerSec = 1
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLER_RATIO must be within [0,1], got %v", c.Tracing.SampleRatio))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.App.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func parseDuration(errs *[]error, key, raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive duration, got %q", key, raw))
		return def
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
