package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including file accessibility. The configPath argument specifies the config
// file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("review_dir", c.ReviewDir, isRelativeDir),
		c.validateGitHub(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	gh := c.Identity.GitHub
	if c.Identity.Provider == ProviderGitHub && os.Getenv(gh.TokenEnv) == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Identity",
			Item:     gh.TokenEnv,
			Message:  "github provider selected but the token variable is unset; comments keep the placeholder name",
		})
	}

	return warnings
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isRelativeDir validates that the review directory stays inside a workspace root.
func isRelativeDir(dir string) error {
	if filepath.IsAbs(dir) {
		return errors.New("must be relative to the workspace root")
	}
	clean := filepath.Clean(dir)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errors.New("must name a directory inside the workspace root")
	}
	return nil
}

func (c *Config) validateGitHub() error {
	gh := c.Identity.GitHub
	var errs criterio.FieldErrorsBuilder

	u, err := url.Parse(gh.APIURL)
	if err != nil {
		errs = errs.Append("identity.github.api_url", fmt.Errorf("invalid url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = errs.Append("identity.github.api_url", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	if strings.ContainsAny(gh.TokenEnv, " =") {
		errs = errs.Append("identity.github.token_env", fmt.Errorf("invalid environment variable name %q", gh.TokenEnv))
	}

	return errs.ToError()
}
