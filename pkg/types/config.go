package types

import (
	"errors"
	"net/url"
	"time"
)

// Config holds the backend location and client parameters.
type Config struct {
	BaseURL  string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	LogLevel string        `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// DefaultTimeout bounds a single backend request when the config sets none.
const DefaultTimeout = 30 * time.Second

// Config validation errors.
var (
	ErrBaseURLEmpty   = errors.New("base_url must not be empty")
	ErrBaseURLInvalid = errors.New("base_url must be an absolute http(s) URL")
	ErrTimeoutInvalid = errors.New("timeout must not be negative")
)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrBaseURLEmpty
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrBaseURLInvalid
	}
	if c.Timeout < 0 {
		return ErrTimeoutInvalid
	}
	return nil
}

// GetTimeout returns the configured timeout or DefaultTimeout when unset.
func (c Config) GetTimeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
