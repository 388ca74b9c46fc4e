package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	envPrefix                  = "VERSENOTES"
	defaultHTTPAddress         = "0.0.0.0:8080"
	defaultDatabasePath        = "versenotes.db"
	defaultLogLevel            = "info"
	defaultLogFormat           = "json"
	defaultNotesStorageKey     = "bible_notes"
	defaultPassageBaseURL      = "https://bible-api.com"
	defaultPassageTranslation  = "web"
	defaultPassageTimeout      = 10
	defaultPassageRate         = 5.0
	defaultPassageBurst        = 5
	defaultTokenTTLHours       = 720
	defaultCORSAllowedOrigins  = "*"
	defaultStreamHeartbeatSecs = 30
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	LogFormat          string
	NotesStorageKey    string
	PassageBaseURL     string
	PassageTranslation string
	PassageTimeout     time.Duration
	PassageRate        float64
	PassageBurst       int64
	AuthSigningSecret  string
	AuthTokenTTL       time.Duration
	CORSAllowedOrigins []string
	StreamHeartbeat    time.Duration
}

// AuthEnabled reports whether requests must carry a bearer token.
func (c AppConfig) AuthEnabled() bool {
	return strings.TrimSpace(c.AuthSigningSecret) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.cors_allowed_origins", defaultCORSAllowedOrigins)
	configViper.SetDefault("http.stream_heartbeat_seconds", defaultStreamHeartbeatSecs)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("notes.storage_key", defaultNotesStorageKey)
	configViper.SetDefault("passage.base_url", defaultPassageBaseURL)
	configViper.SetDefault("passage.translation", defaultPassageTranslation)
	configViper.SetDefault("passage.timeout_seconds", defaultPassageTimeout)
	configViper.SetDefault("passage.requests_per_second", defaultPassageRate)
	configViper.SetDefault("passage.burst", defaultPassageBurst)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.token_ttl_hours", defaultTokenTTLHours)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        strings.TrimSpace(configViper.GetString("http.address")),
		DatabasePath:       strings.TrimSpace(configViper.GetString("database.path")),
		LogLevel:           strings.TrimSpace(configViper.GetString("log.level")),
		LogFormat:          strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		NotesStorageKey:    strings.TrimSpace(configViper.GetString("notes.storage_key")),
		PassageBaseURL:     strings.TrimSpace(configViper.GetString("passage.base_url")),
		PassageTranslation: strings.TrimSpace(configViper.GetString("passage.translation")),
		PassageTimeout:     time.Duration(configViper.GetInt("passage.timeout_seconds")) * time.Second,
		PassageRate:        configViper.GetFloat64("passage.requests_per_second"),
		PassageBurst:       configViper.GetInt64("passage.burst"),
		AuthSigningSecret:  configViper.GetString("auth.signing_secret"),
		AuthTokenTTL:       time.Duration(configViper.GetInt("auth.token_ttl_hours")) * time.Hour,
		CORSAllowedOrigins: splitList(configViper.GetString("http.cors_allowed_origins")),
		StreamHeartbeat:    time.Duration(configViper.GetInt("http.stream_heartbeat_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.HTTPAddress, validation.Required),
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.LogFormat, validation.In("json", "console")),
		validation.Field(&c.NotesStorageKey, validation.Required, validation.RuneLength(1, 190)),
		validation.Field(&c.PassageBaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.PassageTranslation, validation.Required),
		validation.Field(&c.PassageTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.PassageRate, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.PassageBurst, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.AuthTokenTTL, validation.Required, validation.Min(time.Hour)),
		validation.Field(&c.StreamHeartbeat, validation.Required, validation.Min(time.Second)),
	)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func httpURL(value interface{}) error {
	raw, _ := value.(string)
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("must be an absolute http(s) url")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
