package trunkreview

import (
	"github.com/rs/zerolog"

	"github.com/colonyops/trunkreview/internal/core/config"
	"github.com/colonyops/trunkreview/internal/core/identity"
	"github.com/colonyops/trunkreview/internal/core/review"
)

// NewResolver builds the identity resolver described by cfg. Providers that
// cannot be constructed are skipped with a warning; with none left the
// placeholder is used for every comment.
func NewResolver(cfg config.IdentityConfig, root string, logger zerolog.Logger) *identity.Resolver {
	placeholder := review.Identity{Name: cfg.Placeholder}

	var chain identity.Chain

	if cfg.Provider == config.ProviderAuto || cfg.Provider == config.ProviderGitHub {
		gh, err := identity.NewGitHubProvider(cfg.GitHub.APIURL, cfg.GitHub.TokenEnv, cfg.GitHub.Timeout)
		switch {
		case err == nil:
			chain = append(chain, gh)
		case cfg.Provider == config.ProviderGitHub:
			logger.Warn().Err(err).Msg("github identity provider unavailable")
		default:
			logger.Debug().Err(err).Msg("skipping github identity provider")
		}
	}

	if cfg.Provider == config.ProviderAuto || cfg.Provider == config.ProviderGit {
		chain = append(chain, identity.NewGitConfigProvider(root))
	}

	var provider identity.Provider
	if len(chain) > 0 {
		provider = chain
	}

	return identity.NewResolver(placeholder, provider, logger)
}
