package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted in PROVIDER / SMS_PROVIDER.
const (
	ProviderMeta        = "meta"
	ProviderWassenger   = "wassenger"
	ProviderHypersender = "hypersender"
	ProviderSMSGateway  = "smsgateway"
	ProviderTwilio      = "twilio"
)

const (
	DefaultCountryCode        = "+91"
	DefaultHTTPTimeout        = 15 * time.Second
	DefaultGraphBaseURL       = "https://graph.facebook.com/v19.0"
	DefaultWassengerBaseURL   = "https://api.wassenger.com"
	DefaultHypersenderBaseURL = "https://app.hypersender.com"
	DefaultTwilioBaseURL      = "https://api.twilio.com"
)

// Config is built once at startup and handed to every constructor that needs it.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Provider    string
	SMSProvider string
	CountryCode string
	HTTPTimeout time.Duration

	// Meta WhatsApp Cloud API
	WhatsAppToken string
	PhoneNumberID string
	GraphBaseURL  string

	// Wassenger
	WassengerToken   string
	WassengerBaseURL string

	// Hypersender
	HypersenderID      string
	HypersenderToken   string
	HypersenderBaseURL string

	// Twilio SMS
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioBaseURL    string

	// Generic SMS gateway
	SMSURL      string
	SMSAPIKey   string
	SMSSenderID string
	SMSUserID   string
	SMSPassword string

	// Dispatch log; empty driver disables it.
	DBDriver string
	DBPath   string
	DBDSN    string
}

// Default returns a Config populated with built-in defaults only.
func Default() Config {
	return Config{
		Port:               "8080",
		LogLevel:           "info",
		LogFormat:          "console",
		Provider:           ProviderWassenger,
		CountryCode:        DefaultCountryCode,
		HTTPTimeout:        DefaultHTTPTimeout,
		GraphBaseURL:       DefaultGraphBaseURL,
		WassengerBaseURL:   DefaultWassengerBaseURL,
		HypersenderBaseURL: DefaultHypersenderBaseURL,
		TwilioBaseURL:      DefaultTwilioBaseURL,
		DBPath:             "./dispatch.db",
	}
}

// LoadConfig layers the optional TOML file at path, the .env file and the
// process environment over the defaults. An empty path falls back to
// NOTIFY_CONFIG.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; production deployments export variables directly.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("NOTIFY_CONFIG")
	}
	if path != "" {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		if err := ApplyFileConfig(&cfg, fc); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg with any variables present in the environment.
func ApplyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.Provider = strings.ToLower(getEnv("PROVIDER", cfg.Provider))
	cfg.SMSProvider = strings.ToLower(getEnv("SMS_PROVIDER", cfg.SMSProvider))
	cfg.CountryCode = getEnv("COUNTRY_CODE", cfg.CountryCode)

	if v, ok := os.LookupEnv("HTTP_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &Error{Key: "HTTP_TIMEOUT", Reason: fmt.Sprintf("invalid duration %q", v)}
		}
		cfg.HTTPTimeout = d
	}

	cfg.WhatsAppToken = getEnv("WHATSAPP_TOKEN", cfg.WhatsAppToken)
	cfg.PhoneNumberID = getEnv("PHONE_NUMBER_ID", cfg.PhoneNumberID)
	cfg.GraphBaseURL = getEnv("GRAPH_BASE_URL", cfg.GraphBaseURL)

	cfg.WassengerToken = getEnv("WASSENGER_API", cfg.WassengerToken)
	cfg.WassengerBaseURL = getEnv("WASSENGER_BASE_URL", cfg.WassengerBaseURL)

	cfg.HypersenderID = getEnv("HYPERSENDER_ID", cfg.HypersenderID)
	cfg.HypersenderToken = getEnv("HYPERSENDER_API", cfg.HypersenderToken)
	cfg.HypersenderBaseURL = getEnv("HYPERSENDER_BASE_URL", cfg.HypersenderBaseURL)

	cfg.TwilioAccountSID = getEnv("TWILIO_ACCOUNT_SID", cfg.TwilioAccountSID)
	cfg.TwilioAuthToken = getEnv("TWILIO_AUTH_TOKEN", cfg.TwilioAuthToken)
	cfg.TwilioFrom = getEnv("TWILIO_PHONE_NUMBER", cfg.TwilioFrom)
	cfg.TwilioBaseURL = getEnv("TWILIO_BASE_URL", cfg.TwilioBaseURL)

	cfg.SMSURL = getEnv("SMS_URL", cfg.SMSURL)
	cfg.SMSAPIKey = getEnv("SMS_KEY", cfg.SMSAPIKey)
	cfg.SMSSenderID = getEnv("SMS_SENDER", cfg.SMSSenderID)
	cfg.SMSUserID = getEnv("SMS_USER_ID", cfg.SMSUserID)
	cfg.SMSPassword = getEnv("SMS_PASSWORD", cfg.SMSPassword)

	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DBDSN = getEnv("DB_DSN", cfg.DBDSN)
	return nil
}

// Validate checks the selected providers have what they need to start.
// Every failure is an *Error.
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return &Error{Key: "HTTP_TIMEOUT", Reason: "must be positive"}
	}
	if !validCountryCode(c.CountryCode) {
		return &Error{Key: "COUNTRY_CODE", Reason: fmt.Sprintf("invalid country code %q", c.CountryCode)}
	}

	switch c.Provider {
	case ProviderMeta:
		if err := requireValue("WHATSAPP_TOKEN", c.WhatsAppToken); err != nil {
			return err
		}
		if err := requireValue("PHONE_NUMBER_ID", c.PhoneNumberID); err != nil {
			return err
		}
	case ProviderWassenger:
		if err := requireValue("WASSENGER_API", c.WassengerToken); err != nil {
			return err
		}
	case ProviderHypersender:
		if err := requireValue("HYPERSENDER_ID", c.HypersenderID); err != nil {
			return err
		}
		if err := requireValue("HYPERSENDER_API", c.HypersenderToken); err != nil {
			return err
		}
	default:
		return &Error{Key: "PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.Provider)}
	}

	switch c.SMSProvider {
	case "":
	case ProviderTwilio:
		if err := requireValue("TWILIO_ACCOUNT_SID", c.TwilioAccountSID); err != nil {
			return err
		}
		if err := requireValue("TWILIO_AUTH_TOKEN", c.TwilioAuthToken); err != nil {
			return err
		}
		if err := requireValue("TWILIO_PHONE_NUMBER", c.TwilioFrom); err != nil {
			return err
		}
	case ProviderSMSGateway:
		if err := requireValue("SMS_URL", c.SMSURL); err != nil {
			return err
		}
		if c.SMSAPIKey == "" && (c.SMSUserID == "" || c.SMSPassword == "") {
			return &Error{Key: "SMS_KEY", Reason: "either SMS_KEY or SMS_USER_ID and SMS_PASSWORD must be set"}
		}
	default:
		return &Error{Key: "SMS_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.SMSProvider)}
	}

	switch c.DBDriver {
	case "":
	case "sqlite":
		if err := requireValue("DB_PATH", c.DBPath); err != nil {
			return err
		}
	case "postgres":
		if err := requireValue("DB_DSN", c.DBDSN); err != nil {
			return err
		}
	default:
		return &Error{Key: "DB_DRIVER", Reason: fmt.Sprintf("unknown driver %q", c.DBDriver)}
	}
	return nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	for _, s := range []*string{&c.WhatsAppToken, &c.WassengerToken, &c.HypersenderToken, &c.TwilioAuthToken, &c.SMSAPIKey, &c.SMSPassword, &c.DBDSN} {
		if *s != "" {
			*s = "*****"
		}
	}
	return c
}

func requireValue(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{Key: key, Reason: "not set"}
	}
	return nil
}

func validCountryCode(code string) bool {
	code = strings.TrimPrefix(strings.TrimSpace(code), "+")
	if code == "" || len(code) > 4 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
