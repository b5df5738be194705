package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/colonyops/trunkreview/internal/core/review"
)

const (
	DefaultGitHubAPIURL   = "https://api.github.com"
	DefaultGitHubTokenEnv = "GITHUB_TOKEN"
)

// GitHubProvider resolves the authenticated GitHub user from a bearer token.
type GitHubProvider struct {
	token   string
	apiURL  string
	httpCli *http.Client
}

// NewGitHubProvider reads the token from tokenEnv. Returns ErrNoIdentity
// when the variable is unset.
func NewGitHubProvider(apiURL, tokenEnv string, timeout time.Duration) (*GitHubProvider, error) {
	if tokenEnv == "" {
		tokenEnv = DefaultGitHubTokenEnv
	}

	token := os.Getenv(tokenEnv)
	if token == "" {
		return nil, fmt.Errorf("%s is not set: %w", tokenEnv, ErrNoIdentity)
	}

	return newGitHubProvider(apiURL, token, timeout), nil
}

func newGitHubProvider(apiURL, token string, timeout time.Duration) *GitHubProvider {
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GitHubProvider{
		token:   token,
		apiURL:  strings.TrimRight(apiURL, "/"),
		httpCli: &http.Client{Timeout: timeout},
	}
}

type githubUser struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Identity fetches GET /user.
func (p *GitHubProvider) Identity(ctx context.Context) (review.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/user", nil)
	if err != nil {
		return review.Identity{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpCli.Do(req)
	if err != nil {
		return review.Identity{}, fmt.Errorf("fetching user: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return review.Identity{}, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return review.Identity{}, fmt.Errorf("authentication failed: %s", strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		return review.Identity{}, fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user githubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return review.Identity{}, fmt.Errorf("parsing response: %w", err)
	}
	if user.Login == "" {
		return review.Identity{}, ErrNoIdentity
	}

	return review.Identity{Name: user.Login, IconPath: user.AvatarURL}, nil
}
