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
// All values come from env (or an env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Twilio    TwilioConfig
	Detection DetectionConfig
	Notify    NotifyConfig
	Calls     CallsConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicURL is the externally reachable base URL used in provider callbacks.
	PublicURL string
}

// DBConfig is optional. When Host is empty the audit trail stays in memory.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. When Host is empty the per-user call cap is disabled.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string

	// Browser voice access tokens.
	APIKey      string
	APISecret   string
	TwiMLAppSID string

	ValidateSignatures bool
}

type DetectionConfig struct {
	HumanThreshold    float64
	ContinuityTrigger int
	DecayWindow       time.Duration
	AudioWindow       time.Duration

	OpenAIAPIKey       string
	TranscriptionModel string
}

type NotifyConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	DispatchTimeout time.Duration
}

type CallsConfig struct {
	Retention        time.Duration
	MaxActivePerUser int
	AutoUnmute       bool
}

func Load() (Config, error) {
	c := Config{}
	p := &envParser{}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port = p.requiredInt("APP_PORT")
	c.App.PublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_PUBLIC_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Host != "" {
		c.DB.Port = p.requiredInt("DB_PORT")
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		c.Redis.Port = p.requiredInt("REDIS_PORT")
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Optional durations; defaults applied in Validate().
	c.Auth.AccessTokenTTL = p.duration("JWT_ACCESS_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Twilio.APIKey = strings.TrimSpace(os.Getenv("TWILIO_API_KEY"))
	c.Twilio.APISecret = os.Getenv("TWILIO_API_SECRET")
	c.Twilio.TwiMLAppSID = strings.TrimSpace(os.Getenv("TWILIO_TWIML_APP_SID"))
	c.Twilio.ValidateSignatures = p.boolean("TWILIO_VALIDATE_SIGNATURES", true)

	c.Detection.HumanThreshold = p.float("DETECTION_HUMAN_THRESHOLD")
	c.Detection.ContinuityTrigger = p.optionalInt("DETECTION_CONTINUITY_TRIGGER")
	c.Detection.DecayWindow = p.duration("DETECTION_DECAY_WINDOW")
	c.Detection.AudioWindow = p.duration("DETECTION_AUDIO_WINDOW")
	c.Detection.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.Detection.TranscriptionModel = strings.TrimSpace(os.Getenv("TRANSCRIPTION_MODEL"))

	c.Notify.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.Notify.SMTPPort = p.optionalInt("SMTP_PORT")
	c.Notify.SMTPUser = strings.TrimSpace(os.Getenv("SMTP_USER"))
	c.Notify.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	c.Notify.EmailFrom = strings.TrimSpace(os.Getenv("EMAIL_FROM"))
	c.Notify.VAPIDPublicKey = strings.TrimSpace(os.Getenv("VAPID_PUBLIC_KEY"))
	c.Notify.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
	c.Notify.VAPIDSubscriber = strings.TrimSpace(os.Getenv("VAPID_SUBSCRIBER"))
	c.Notify.DispatchTimeout = p.duration("NOTIFY_DISPATCH_TIMEOUT")

	c.Calls.Retention = p.duration("CALL_RETENTION")
	c.Calls.MaxActivePerUser = p.optionalInt("CALLS_MAX_ACTIVE_PER_USER")
	c.Calls.AutoUnmute = p.boolean("CALLS_AUTO_UNMUTE", false)

	if err := joinErrors(p.errs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
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
	if c.App.PublicURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("APP_PUBLIC_URL is required in production"))
		} else {
			c.App.PublicURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
		}
	}

	if c.DatabaseEnabled() {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.RedisEnabled() && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
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

	if c.TwilioEnabled() {
		if c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required when TWILIO_ACCOUNT_SID is set"))
		}
		if c.Twilio.FromNumber == "" {
			errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required when TWILIO_ACCOUNT_SID is set"))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required in production"))
	}

	if c.Detection.HumanThreshold == 0 {
		c.Detection.HumanThreshold = 0.6
	}
	if c.Detection.HumanThreshold < 0 || c.Detection.HumanThreshold > 1 {
		errs = append(errs, fmt.Errorf("DETECTION_HUMAN_THRESHOLD must be within [0,1], got %v", c.Detection.HumanThreshold))
	}
	if c.Detection.ContinuityTrigger <= 0 {
		c.Detection.ContinuityTrigger = 3
	}
	if c.Detection.DecayWindow <= 0 {
		c.Detection.DecayWindow = 5 * time.Second
	}
	if c.Detection.AudioWindow <= 0 {
		c.Detection.AudioWindow = 3 * time.Second
	}
	if c.Detection.TranscriptionModel == "" {
		c.Detection.TranscriptionModel = "whisper-1"
	}

	if c.Notify.SMTPHost != "" && c.Notify.EmailFrom == "" {
		errs = append(errs, errors.New("EMAIL_FROM is required when SMTP_HOST is set"))
	}
	if c.Notify.SMTPPort <= 0 {
		c.Notify.SMTPPort = 587
	}
	if c.Notify.DispatchTimeout <= 0 {
		c.Notify.DispatchTimeout = 15 * time.Second
	}

	if c.Calls.Retention <= 0 {
		c.Calls.Retention = time.Hour
	}
	if c.Calls.MaxActivePerUser <= 0 {
		c.Calls.MaxActivePerUser = 3
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) DatabaseEnabled() bool { return c.DB.Host != "" }

func (c Config) RedisEnabled() bool { return c.Redis.Host != "" }

func (c Config) TwilioEnabled() bool { return c.Twilio.AccountSID != "" }

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

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// envParser accumulates parse errors so Load can report all of them at once.
type envParser struct {
	errs []error
}

func (p *envParser) requiredInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		p.errs = append(p.errs, fmt.Errorf("%s is required", key))
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

func (p *envParser) optionalInt(key string) int {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0
	}
	return p.requiredInt(key)
}

func (p *envParser) float(key string) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a number, got %q", key, v))
		return 0
	}
	return f
}

func (p *envParser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
		return def
	}
	return b
}

func (p *envParser) duration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a duration, got %q", key, v))
		return 0
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
