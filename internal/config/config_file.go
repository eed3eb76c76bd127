package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with string durations so the TOML stays readable.
type FileConfig struct {
	Port        string `toml:"port"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	Provider    string `toml:"provider"`
	SMSProvider string `toml:"sms_provider"`
	CountryCode string `toml:"country_code"`
	HTTPTimeout string `toml:"http_timeout"`

	Meta struct {
		Token         string `toml:"token"`
		PhoneNumberID string `toml:"phone_number_id"`
		BaseURL       string `toml:"base_url"`
	} `toml:"meta"`

	Wassenger struct {
		Token   string `toml:"token"`
		BaseURL string `toml:"base_url"`
	} `toml:"wassenger"`

	Hypersender struct {
		ID      string `toml:"id"`
		Token   string `toml:"token"`
		BaseURL string `toml:"base_url"`
	} `toml:"hypersender"`

	Twilio struct {
		AccountSID string `toml:"account_sid"`
		AuthToken  string `toml:"auth_token"`
		From       string `toml:"phone_number"`
		BaseURL    string `toml:"base_url"`
	} `toml:"twilio"`

	SMS struct {
		URL      string `toml:"url"`
		APIKey   string `toml:"api_key"`
		SenderID string `toml:"sender_id"`
		UserID   string `toml:"user_id"`
		Password string `toml:"password"`
	} `toml:"sms"`

	Database struct {
		Driver string `toml:"driver"`
		Path   string `toml:"path"`
		DSN    string `toml:"dsn"`
	} `toml:"database"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFileConfig copies every non-empty value of fc onto cfg.
func ApplyFileConfig(cfg *Config, fc FileConfig) error {
	setString(&cfg.Port, fc.Port)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.Provider, fc.Provider)
	setString(&cfg.SMSProvider, fc.SMSProvider)
	setString(&cfg.CountryCode, fc.CountryCode)

	if fc.HTTPTimeout != "" {
		d, err := time.ParseDuration(fc.HTTPTimeout)
		if err != nil {
			return &Error{Key: "http_timeout", Reason: fmt.Sprintf("invalid duration %q", fc.HTTPTimeout)}
		}
		cfg.HTTPTimeout = d
	}

	setString(&cfg.WhatsAppToken, fc.Meta.Token)
	setString(&cfg.PhoneNumberID, fc.Meta.PhoneNumberID)
	setString(&cfg.GraphBaseURL, fc.Meta.BaseURL)

	setString(&cfg.WassengerToken, fc.Wassenger.Token)
	setString(&cfg.WassengerBaseURL, fc.Wassenger.BaseURL)

	setString(&cfg.HypersenderID, fc.Hypersender.ID)
	setString(&cfg.HypersenderToken, fc.Hypersender.Token)
	setString(&cfg.HypersenderBaseURL, fc.Hypersender.BaseURL)

	setString(&cfg.TwilioAccountSID, fc.Twilio.AccountSID)
	setString(&cfg.TwilioAuthToken, fc.Twilio.AuthToken)
	setString(&cfg.TwilioFrom, fc.Twilio.From)
	setString(&cfg.TwilioBaseURL, fc.Twilio.BaseURL)

	setString(&cfg.SMSURL, fc.SMS.URL)
	setString(&cfg.SMSAPIKey, fc.SMS.APIKey)
	setString(&cfg.SMSSenderID, fc.SMS.SenderID)
	setString(&cfg.SMSUserID, fc.SMS.UserID)
	setString(&cfg.SMSPassword, fc.SMS.Password)

	setString(&cfg.DBDriver, fc.Database.Driver)
	setString(&cfg.DBPath, fc.Database.Path)
	setString(&cfg.DBDSN, fc.Database.DSN)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
