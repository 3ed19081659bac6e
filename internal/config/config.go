// Package config loads soqlkit configuration and resolves the sandbox flag.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/roach88/soqlkit/internal/remote"
)

const (
	maxWalkDepth = 25

	// SandboxEnv is the host-environment signal consulted when no explicit
	// sandbox setting is configured.
	SandboxEnv = "APP_SANDBOX"

	envPrefix = "SOQLKIT"
)

var configNames = []string{"soqlkit.yaml", "soqlkit.yml"}

// Config represents the soqlkit configuration from soqlkit.yaml.
type Config struct {
	Auth AuthConfig `mapstructure:"auth"`

	APIVersion string `mapstructure:"api_version"`

	// Sandbox is the explicit sandbox setting. Nil defers to SandboxEnv.
	Sandbox *bool `mapstructure:"sandboxed"`

	// Entities is the CUE file or directory declaring entity schemas.
	Entities string `mapstructure:"entities"`

	// Journal is the SQLite journal path. Empty disables journaling.
	Journal string `mapstructure:"journal"`

	client remote.Client

	sandboxOnce sync.Once
	sandboxed   bool

	handleOnce sync.Once
	handle     *remote.Handle
}

// AuthConfig holds username-password login settings.
type AuthConfig struct {
	LoginURL      string `mapstructure:"login_url"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	SecurityToken string `mapstructure:"security_token"`
}

// Option adjusts a Config after loading.
type Option func(*Config)

// WithClient injects a pre-built client; Handle returns it instead of logging in.
func WithClient(c remote.Client) Option {
	return func(cfg *Config) { cfg.client = c }
}

// WithSandbox sets the sandbox flag explicitly.
func WithSandbox(sandboxed bool) Option {
	return func(cfg *Config) { cfg.Sandbox = &sandboxed }
}

// New builds a Config in code, without viper.
func New(opts ...Option) *Config {
	cfg := &Config{APIVersion: remote.DefaultAPIVersion}
	cfg.Auth.LoginURL = "https://login.salesforce.com"
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// LoadConfig discovers and loads configuration with proper precedence:
// env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string, opts ...Option) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default, so a missing key stays distinguishable from false.
	if err := v.BindEnv("sandboxed"); err != nil {
		return nil, "", fmt.Errorf("binding sandboxed: %w", err)
	}

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.login_url", "https://login.salesforce.com")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.security_token", "")

	v.SetDefault("api_version", remote.DefaultAPIVersion)
	v.SetDefault("entities", "")
	v.SetDefault("journal", "")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for soqlkit.yaml or soqlkit.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// Sandboxed reports whether writes must be refused. The explicit setting
// wins; otherwise SandboxEnv decides; otherwise false. The answer is
// resolved on first call and fixed for the life of the Config.
func (c *Config) Sandboxed() bool {
	c.sandboxOnce.Do(func() {
		c.sandboxed = c.resolveSandbox()
	})
	return c.sandboxed
}

func (c *Config) resolveSandbox() bool {
	if c.Sandbox != nil {
		return *c.Sandbox
	}
	raw, ok := os.LookupEnv(SandboxEnv)
	if !ok || raw == "" {
		return false
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		slog.Warn("ignoring unparseable sandbox signal", "env", SandboxEnv, "value", raw)
		return false
	}
	return b
}

// Credentials returns the login inputs for the remote client.
func (c *Config) Credentials() remote.Credentials {
	return remote.Credentials{
		LoginURL:      c.Auth.LoginURL,
		ClientID:      c.Auth.ClientID,
		ClientSecret:  c.Auth.ClientSecret,
		Username:      c.Auth.Username,
		Password:      c.Auth.Password,
		SecurityToken: c.Auth.SecurityToken,
		APIVersion:    c.APIVersion,
	}
}

// Handle returns the shared remote client handle. An injected client is
// returned as is; otherwise the handle logs in on first use.
func (c *Config) Handle() *remote.Handle {
	c.handleOnce.Do(func() {
		if c.client != nil {
			c.handle = remote.NewStaticHandle(c.client)
			return
		}
		c.handle = remote.NewHandle(remote.LoginBuilder(c.Credentials()))
	})
	return c.handle
}

// Client resolves the shared client now, logging in if needed.
func (c *Config) Client(ctx context.Context) (remote.Client, error) {
	return c.Handle().Get(ctx)
}
