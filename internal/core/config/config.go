// Package config handles configuration loading and validation for trunkreview.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/core/styles"
)

// Identity providers.
const (
	ProviderAuto   = "auto"
	ProviderGitHub = "github"
	ProviderGit    = "git"
	ProviderNone   = "none"
)

// Config holds the application configuration.
type Config struct {
	ReviewDir string         `yaml:"review_dir"`
	Layout    review.Layout  `yaml:"layout"` // layout used by init
	Identity  IdentityConfig `yaml:"identity"`
	Theme     string         `yaml:"theme"`
}

// IdentityConfig controls how comment authors are resolved.
type IdentityConfig struct {
	Provider    string       `yaml:"provider"`    // auto, github, git or none
	Placeholder string       `yaml:"placeholder"` // name used until a provider answers
	GitHub      GitHubConfig `yaml:"github"`
}

// GitHubConfig configures the GitHub identity provider.
type GitHubConfig struct {
	APIURL   string        `yaml:"api_url"`
	TokenEnv string        `yaml:"token_env"` // environment variable holding the token
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReviewDir: ".review",
		Layout:    review.LayoutSplit,
		Theme:     styles.DefaultTheme,
		Identity: IdentityConfig{
			Provider:    ProviderAuto,
			Placeholder: "vs-code",
			GitHub: GitHubConfig{
				APIURL:   "https://api.github.com",
				TokenEnv: "GITHUB_TOKEN",
				Timeout:  10 * time.Second,
			},
		},
	}
}

// Load reads configuration from the given path.
// If configPath is empty or doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.ReviewDir == "" {
		c.ReviewDir = defaults.ReviewDir
	}
	if c.Layout == "" {
		c.Layout = defaults.Layout
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
	if c.Identity.Provider == "" {
		c.Identity.Provider = defaults.Identity.Provider
	}
	if c.Identity.Placeholder == "" {
		c.Identity.Placeholder = defaults.Identity.Placeholder
	}
	if c.Identity.GitHub.APIURL == "" {
		c.Identity.GitHub.APIURL = defaults.Identity.GitHub.APIURL
	}
	if c.Identity.GitHub.TokenEnv == "" {
		c.Identity.GitHub.TokenEnv = defaults.Identity.GitHub.TokenEnv
	}
	if c.Identity.GitHub.Timeout == 0 {
		c.Identity.GitHub.Timeout = defaults.Identity.GitHub.Timeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ReviewDir == "" {
		return fmt.Errorf("review_dir cannot be empty")
	}

	if !c.Layout.IsValid() {
		return fmt.Errorf("layout must be %q or %q, got %q", review.LayoutSplit, review.LayoutLegacy, c.Layout)
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		return fmt.Errorf("theme %q not found, available: %v", c.Theme, styles.ThemeNames())
	}

	if !isValidProvider(c.Identity.Provider) {
		return fmt.Errorf("identity.provider has invalid value %q", c.Identity.Provider)
	}

	if c.Identity.GitHub.Timeout < 0 {
		return fmt.Errorf("identity.github.timeout cannot be negative")
	}

	return nil
}

func isValidProvider(p string) bool {
	switch p {
	case ProviderAuto, ProviderGitHub, ProviderGit, ProviderNone:
		return true
	default:
		return false
	}
}
