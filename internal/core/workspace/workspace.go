// Package workspace resolves workspace roots and root-relative paths.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/colonyops/trunkreview/internal/core/review"
)

// ErrOutsideRoot is returned for paths that do not live under the root.
var ErrOutsideRoot = errors.New("path is outside the workspace root")

// DetectRoot returns the top of the git worktree containing dir, or dir
// itself when it is not inside a repository.
func DetectRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return abs, nil
		}
		return "", fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// bare repositories have no worktree to anchor comments in
		return abs, nil
	}

	return wt.Filesystem.Root(), nil
}

// Rel converts path (absolute, or relative to root) into a slash-separated
// path relative to root.
func Rel(root, path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, path)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}

	return filepath.ToSlash(rel), nil
}

// ParseRange parses "startLine:startChar-endLine:endChar". A single
// "line:char" yields an empty range at that position; a bare "line" spans
// the start of that line.
func ParseRange(s string) (review.Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return review.Range{}, fmt.Errorf("empty range")
	}

	startStr, endStr, hasEnd := strings.Cut(s, "-")

	startLine, startChar, err := parsePosition(startStr)
	if err != nil {
		return review.Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}

	endLine, endChar := startLine, startChar
	if hasEnd {
		endLine, endChar, err = parsePosition(endStr)
		if err != nil {
			return review.Range{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
	}

	if endLine < startLine || (endLine == startLine && endChar < startChar) {
		return review.Range{}, fmt.Errorf("invalid range %q: end before start", s)
	}

	return review.NewRange(startLine, startChar, endLine, endChar), nil
}

func parsePosition(s string) (line, char int, err error) {
	lineStr, charStr, hasChar := strings.Cut(s, ":")

	line, err = strconv.Atoi(lineStr)
	if err != nil || line < 0 {
		return 0, 0, fmt.Errorf("bad line %q", lineStr)
	}

	if hasChar {
		char, err = strconv.Atoi(charStr)
		if err != nil || char < 0 {
			return 0, 0, fmt.Errorf("bad character %q", charStr)
		}
	}

	return line, char, nil
}

// FullDocument is the commenting range offered for a document with
// lineCount lines: every line is commentable.
func FullDocument(lineCount int) review.Range {
	last := lineCount - 1
	if last < 0 {
		last = 0
	}
	return review.NewRange(0, 0, last, 0)
}
