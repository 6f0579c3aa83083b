package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var shaPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// Source is a remote repository whose working tree gets audited.
type Source struct {
	URL      string // normalized git URL
	Ref      string // branch, tag, or SHA (empty = default branch)
	CloneDir string // temp directory after clone
}

// Parse detects if path names a remote repository.
// Returns nil if path exists on filesystem (local path takes precedence).
func Parse(path string) (*Source, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, nil
	}

	// scp-style SSH URLs carry an @ before the host, not a ref.
	if strings.HasPrefix(path, "git@") {
		return &Source{URL: path}, nil
	}

	ref := ""
	if idx := strings.LastIndex(path, "@"); idx != -1 {
		ref = path[idx+1:]
		path = path[:idx]
	}
	if path == "" {
		return nil, fmt.Errorf("missing repository before @%s", ref)
	}

	switch {
	case strings.HasPrefix(path, "https://"), strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "ssh://"):
		return &Source{URL: path, Ref: ref}, nil
	case isHostPath(path):
		return &Source{URL: "https://" + path, Ref: ref}, nil
	case isGitHubShorthand(path):
		return &Source{URL: "https://github.com/" + path, Ref: ref}, nil
	}
	return nil, nil
}

// isHostPath matches host.tld/owner/repo.
func isHostPath(path string) bool {
	parts := strings.Split(path, "/")
	if len(parts) < 3 || strings.HasPrefix(parts[0], ".") || !strings.Contains(parts[0], ".") {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// isGitHubShorthand returns true if path matches owner/repo pattern.
func isGitHubShorthand(path string) bool {
	slashIdx := strings.Index(path, "/")
	if slashIdx == -1 {
		return false
	}
	if strings.Count(path, "/") != 1 {
		return false
	}
	// A dot before the slash is a domain or a relative path.
	if strings.Contains(path[:slashIdx], ".") {
		return false
	}
	return slashIdx > 0 && slashIdx < len(path)-1
}

// Clone checks out the repository into a fresh temp directory and sets
// CloneDir. Progress from the transport is written to progress.
// A branch or tag ref is fetched directly; a commit SHA needs full history.
func (s *Source) Clone(ctx context.Context, progress io.Writer, shallow bool) error {
	dir, err := os.MkdirTemp("", "depaudit-clone-*")
	if err != nil {
		return fmt.Errorf("create clone dir: %w", err)
	}
	s.CloneDir = dir

	opts := &git.CloneOptions{
		URL:          s.URL,
		Progress:     progress,
		SingleBranch: true,
	}
	if shallow {
		opts.Depth = 1
	}

	if s.Ref == "" {
		_, err = git.PlainCloneContext(ctx, dir, false, opts)
		return s.wrap(err)
	}

	if shaPattern.MatchString(s.Ref) {
		return s.cloneAtCommit(ctx, progress)
	}

	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(s.Ref),
		plumbing.NewTagReferenceName(s.Ref),
	} {
		opts.ReferenceName = name
		_, err = git.PlainCloneContext(ctx, dir, false, opts)
		if err == nil {
			return nil
		}
		if !isMissingRef(err) {
			return s.wrap(err)
		}
		if err := s.resetDir(); err != nil {
			return err
		}
	}
	return s.wrap(fmt.Errorf("ref %q not found", s.Ref))
}

func (s *Source) cloneAtCommit(ctx context.Context, progress io.Writer) error {
	repo, err := git.PlainCloneContext(ctx, s.CloneDir, false, &git.CloneOptions{
		URL:      s.URL,
		Progress: progress,
	})
	if err != nil {
		return s.wrap(err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(s.Ref))
	if err != nil {
		return s.wrap(fmt.Errorf("resolve %s: %w", s.Ref, err))
	}
	wt, err := repo.Worktree()
	if err != nil {
		return s.wrap(err)
	}
	return s.wrap(wt.Checkout(&git.CheckoutOptions{Hash: *hash}))
}

func (s *Source) resetDir() error {
	if err := os.RemoveAll(s.CloneDir); err != nil {
		return err
	}
	return os.MkdirAll(s.CloneDir, 0o755)
}

func (s *Source) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("clone %s: %w", s.URL, err)
}

func isMissingRef(err error) bool {
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true
	}
	// Transports report unknown refs with differing error types.
	return strings.Contains(err.Error(), "couldn't find remote ref")
}

// Cleanup removes the clone directory.
func (s *Source) Cleanup() error {
	if s.CloneDir == "" {
		return nil
	}
	err := os.RemoveAll(s.CloneDir)
	s.CloneDir = ""
	return err
}
