package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/shelf/internal/paths"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "SHELF"

	cfgKeyBaseURL    = "base_url"
	cfgKeyTimeout    = "timeout"
	cfgKeyLogLevel   = "log_level"
	cfgKeyAdminEmail = "admin_email"
	cfgKeyDataDir    = "data_dir"

	defaultBaseURL  = "http://localhost:8080"
	defaultLogLevel = "warn"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# shelf configuration

# Storefront backend (overridable by --base-url or SHELF_BASE_URL)
base_url: http://localhost:8080

# Per-request timeout
timeout: 30s

# debug, info, warn or error (--verbose forces debug)
log_level: warn

# Default email for shelf login
# admin_email:

# Data directory for shelf serve-mock
# data_dir:
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. SHELF_* environment variables override file
// values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBaseURL, defaultBaseURL)
	v.SetDefault(cfgKeyTimeout, types.DefaultTimeout)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// ensureDefaultConfigFile writes defaultConfigYAML if config.yaml is absent.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// clientConfig extracts and validates the backend settings.
func clientConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		BaseURL:  v.GetString(cfgKeyBaseURL),
		Timeout:  v.GetDuration(cfgKeyTimeout),
		LogLevel: v.GetString(cfgKeyLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
