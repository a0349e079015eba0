package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// Config holds the application configuration
type Config struct {
	ListenAddr string `toml:"listen_addr" env:"RSVP_LISTEN_ADDR"`
	APIBaseURL string `toml:"api_base_url" env:"RSVP_API_URL"`

	// Spreadsheet automation endpoints.
	SheetGetURL   string `toml:"sheet_get_url" env:"GSHEET_GET_URL"`
	SheetPostURL  string `toml:"sheet_post_url" env:"GSHEET_POST_URL"`
	AdminPassword string `toml:"admin_password" env:"ADMIN_PASSWORD"`
	AdminSecret   string `toml:"admin_secret" env:"ADMIN_SECRET"`

	EventID       string `toml:"event_id" env:"RSVP_EVENT_ID"`
	Deadline      string `toml:"deadline" env:"RSVP_DEADLINE"`
	DeadlineLabel string `toml:"deadline_label" env:"RSVP_DEADLINE_LABEL"`
	Language      string `toml:"language" env:"RSVP_LANGUAGE"`

	RequestTimeoutSeconds int `toml:"request_timeout" env:"RSVP_REQUEST_TIMEOUT"`
	DeadlinePollSeconds   int `toml:"deadline_poll" env:"RSVP_DEADLINE_POLL"`

	WhatsAppDataDir     string `toml:"whatsapp_data_dir" env:"WHATSAPP_DATA_DIR"`
	WhatsAppCountryCode string `toml:"whatsapp_country_code" env:"WHATSAPP_COUNTRY_CODE"`
	InviteBaseURL       string `toml:"invite_base_url" env:"INVITE_BASE_URL"`

	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:            ":8080",
		APIBaseURL:            "http://localhost:8080",
		EventID:               "boda-marielos-guillermo-2025",
		Deadline:              "2025-11-16T06:00:00Z",
		DeadlineLabel:         "15 de noviembre de 2025",
		Language:              "es",
		RequestTimeoutSeconds: 15,
		DeadlinePollSeconds:   60,
		WhatsAppDataDir:       "data",
		InviteBaseURL:         "http://localhost:3000/rsvp",
		LogLevel:              "info",
	}
}

// LoadConfig loads configuration: defaults, then the optional TOML file at
// path, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.SheetGetURL = strings.TrimSpace(c.SheetGetURL)
	c.SheetPostURL = strings.TrimSpace(c.SheetPostURL)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	c.Deadline = strings.TrimSpace(c.Deadline)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.WhatsAppCountryCode = strings.TrimLeft(strings.TrimSpace(c.WhatsAppCountryCode), "+")
}

// Validate rejects malformed values. Missing spreadsheet URLs are allowed:
// the API reports them per request.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.DeadlineTime(); err != nil {
		errs = append(errs, err)
	}
	if c.RequestTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %d", c.RequestTimeoutSeconds))
	}
	if c.DeadlinePollSeconds <= 0 {
		errs = append(errs, fmt.Errorf("deadline_poll must be positive, got %d", c.DeadlinePollSeconds))
	}
	for name, raw := range map[string]string{
		"sheet_get_url":   c.SheetGetURL,
		"sheet_post_url":  c.SheetPostURL,
		"api_base_url":    c.APIBaseURL,
		"invite_base_url": c.InviteBaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s is not an absolute URL: %q", name, raw))
		}
	}
	return errors.Join(errs...)
}

// DeadlineTime parses the RSVP deadline. An empty value disables it.
func (c *Config) DeadlineTime() (time.Time, error) {
	if c.Deadline == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.Deadline)
	if err != nil {
		return time.Time{}, fmt.Errorf("deadline must be RFC 3339: %w", err)
	}
	return t, nil
}

// RequestTimeout bounds every call to an external service.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DeadlinePoll is how often open sessions re-check the deadline.
func (c *Config) DeadlinePoll() time.Duration {
	return time.Duration(c.DeadlinePollSeconds) * time.Second
}

// InviteLink builds the link a guest opens to RSVP.
func (c *Config) InviteLink(token, name string) string {
	q := url.Values{}
	if token != "" {
		q.Set("p", token)
	}
	if name != "" {
		q.Set("n", name)
	}
	if len(q) == 0 {
		return c.InviteBaseURL
	}
	return c.InviteBaseURL + "?" + q.Encode()
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.AdminPassword = mask(c.AdminPassword)
	c.AdminSecret = mask(c.AdminSecret)
	return c
}
