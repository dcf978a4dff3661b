package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	VoiceAI VoiceAIConfig
	Twilio  TwilioConfig
	Dialer  DialerConfig
	Pricing PricingConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// VoiceAIConfig configures the conversational-voice provider API.
type VoiceAIConfig struct {
	APIKey  string
	BaseURL string
}

// TwilioConfig carries telephony credentials. They are passed through opaquely
// to the voice provider's phone-registration endpoint; this service never calls
// Twilio directly.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
}

// DialerConfig tunes the outbound campaign dialer.
type DialerConfig struct {
	// AgentPhoneNumber is the outbound caller number registered (or to be
	// registered) with the voice provider.
	AgentPhoneNumber string

	// CountryCode rewrites local trunk-prefixed numbers, e.g. "33" turns
	// 0612345678 into +33612345678.
	CountryCode string

	// Quota is the max number of contacts processed per invocation before the
	// runner hands off via a continue dispatch.
	Quota int

	PollInterval time.Duration
	PollMaxWait  time.Duration
	ContactDelay time.Duration

	// SelfURL is the base URL continue dispatches are posted to.
	SelfURL string

	// ServiceToken authenticates service-to-service continue calls.
	ServiceToken string

	// StallAfter is how long a running campaign with pending contacts may sit
	// idle before the reconciliation watchdog re-dispatches a continue.
	StallAfter time.Duration
}

type PricingConfig struct {
	// FallbackEuroPerMinute prices calls for which the provider reports no
	// charge of its own.
	FallbackEuroPerMinute float64
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.VoiceAI.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.VoiceAI.BaseURL = strings.TrimSpace(os.Getenv("ELEVENLABS_BASE_URL"))

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	c.Dialer.AgentPhoneNumber = strings.TrimSpace(os.Getenv("AGENT_PHONE_NUMBER"))
	c.Dialer.CountryCode = strings.TrimSpace(os.Getenv("DIALER_COUNTRY_CODE"))
	c.Dialer.Quota = optInt("DIALER_QUOTA")
	c.Dialer.PollInterval = optDuration("DIALER_POLL_INTERVAL")
	c.Dialer.PollMaxWait = optDuration("DIALER_POLL_MAX_WAIT")
	c.Dialer.ContactDelay = optDuration("DIALER_CONTACT_DELAY")
	c.Dialer.SelfURL = strings.TrimSpace(os.Getenv("DIALER_SELF_URL"))
	c.Dialer.ServiceToken = os.Getenv("DIALER_SERVICE_TOKEN")
	c.Dialer.StallAfter = optDuration("DIALER_STALL_AFTER")

	c.Pricing.FallbackEuroPerMinute = optFloat("PRICING_FALLBACK_EUR_PER_MIN")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required fields and applies defaults for optional ones.
func (c *Config) Validate() error {
	var errs []error

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
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
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
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.VoiceAI.APIKey == "" {
		errs = append(errs, errors.New("ELEVENLABS_API_KEY is required"))
	}
	if c.VoiceAI.BaseURL == "" {
		c.VoiceAI.BaseURL = "https://api.elevenlabs.io"
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}

	if c.Dialer.AgentPhoneNumber == "" {
		errs = append(errs, errors.New("AGENT_PHONE_NUMBER is required"))
	}
	if c.Dialer.CountryCode == "" {
		c.Dialer.CountryCode = "33"
	}
	if c.Dialer.Quota <= 0 {
		c.Dialer.Quota = 1
	}
	if c.Dialer.PollInterval <= 0 {
		c.Dialer.PollInterval = 5 * time.Second
	}
	if c.Dialer.PollMaxWait <= 0 {
		c.Dialer.PollMaxWait = 80 * time.Second
	}
	if c.Dialer.PollMaxWait <= c.Dialer.PollInterval {
		errs = append(errs, errors.New("DIALER_POLL_MAX_WAIT must be greater than DIALER_POLL_INTERVAL"))
	}
	if c.Dialer.ContactDelay <= 0 {
		c.Dialer.ContactDelay = 2 * time.Second
	}
	if c.Dialer.SelfURL == "" && c.App.Port > 0 {
		c.Dialer.SelfURL = fmt.Sprintf("http://127.0.0.1:%d", c.App.Port)
	}
	if c.Dialer.ServiceToken == "" {
		errs = append(errs, errors.New("DIALER_SERVICE_TOKEN is required"))
	}
	if c.Dialer.StallAfter <= 0 {
		c.Dialer.StallAfter = 10 * time.Minute
	}

	if c.Pricing.FallbackEuroPerMinute <= 0 {
		c.Pricing.FallbackEuroPerMinute = 0.15
	}

	return joinErrors(errs)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c *Config) PostgresDSN() string {
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

// MigrateDSN is the URL form golang-migrate expects.
func (c *Config) MigrateDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optFloat(key string) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
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
