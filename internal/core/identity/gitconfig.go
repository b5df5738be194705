package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"

	"github.com/colonyops/trunkreview/internal/core/review"
)

// GitConfigProvider uses user.name from the git configuration visible to dir.
type GitConfigProvider struct {
	dir string
}

// NewGitConfigProvider creates a provider rooted at dir.
func NewGitConfigProvider(dir string) *GitConfigProvider {
	return &GitConfigProvider{dir: dir}
}

// Identity reads the repository config merged with the global one, falling
// back to the global config alone outside a repository.
func (p *GitConfigProvider) Identity(_ context.Context) (review.Identity, error) {
	cfg, err := p.load()
	if err != nil {
		return review.Identity{}, err
	}

	if cfg.User.Name == "" {
		return review.Identity{}, fmt.Errorf("git user.name: %w", ErrNoIdentity)
	}
	return review.Identity{Name: cfg.User.Name}, nil
}

func (p *GitConfigProvider) load() (*gitconfig.Config, error) {
	repo, err := git.PlainOpenWithOptions(p.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("open repository: %w", err)
		}
		cfg, err := gitconfig.LoadConfig(gitconfig.GlobalScope)
		if err != nil {
			return nil, fmt.Errorf("load global git config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := repo.ConfigScoped(gitconfig.GlobalScope)
	if err != nil {
		return nil, fmt.Errorf("load git config: %w", err)
	}
	return cfg, nil
}
