// Package gitutil fetches remote repositories so they can be built: it
// clones a URL once per requested revision and checks each clone out.
package gitutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

var (
	ErrEmptyURL        = errors.New("repository url cannot be empty")
	ErrUnknownRevision = errors.New("unknown revision")
)

// Auth holds HTTP basic credentials. A personal access token goes in Token.
type Auth struct {
	Username string
	Token    string
}

func (a Auth) method() transport.AuthMethod {
	if a.Token == "" {
		return nil
	}
	user := a.Username
	if user == "" {
		user = "git" // any non-empty user works with a token
	}
	return &http.BasicAuth{Username: user, Password: a.Token}
}

// CloneOptions configures Clone.
type CloneOptions struct {
	URL string
	Auth
	// Dir is the destination; it must not exist or be empty.
	Dir string
}

// Revision is one cloned revision on disk.
type Revision struct {
	// Rev is the requested revision, empty for the default branch.
	Rev  string
	Dir  string
	Hash string
}

// Clone clones opts.URL into opts.Dir with all remote branches.
func Clone(ctx context.Context, opts CloneOptions) (*gogit.Repository, error) {
	if opts.URL == "" {
		return nil, ErrEmptyURL
	}
	repo, err := gogit.PlainCloneContext(ctx, opts.Dir, false, &gogit.CloneOptions{
		URL:  opts.URL,
		Auth: opts.Auth.method(),
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", opts.URL, err)
	}
	return repo, nil
}

// Checkout moves the worktree of repo to rev, which may be a local or
// remote branch, a tag or a commit hash. It returns the resolved commit.
func Checkout(repo *gogit.Repository, rev string) (string, error) {
	hash, err := resolve(repo, rev)
	if err != nil {
		return "", err
	}
	w, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}
	if err := w.Checkout(&gogit.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return "", fmt.Errorf("checkout %s: %w", rev, err)
	}
	return hash.String(), nil
}

func resolve(repo *gogit.Repository, rev string) (*plumbing.Hash, error) {
	candidates := []string{rev, "refs/remotes/origin/" + rev, "refs/tags/" + rev}
	for _, c := range candidates {
		if hash, err := repo.ResolveRevision(plumbing.Revision(c)); err == nil {
			return hash, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRevision, rev)
}

// Acquire clones url into base once per revision and checks each clone
// out. With no revisions the default branch is cloned once. The clone of
// revision r lives in base/<DirName(r)>, suffixed when r repeats.
func Acquire(ctx context.Context, url string, revs []string, auth Auth, base string) ([]Revision, error) {
	if len(revs) == 0 {
		revs = []string{""}
	}
	out := make([]Revision, 0, len(revs))
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}
	seen := make(map[string]int)
	for _, rev := range revs {
		name := DirName(url, rev)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		seen[DirName(url, rev)]++
		dir := filepath.Join(base, name)
		repo, err := Clone(ctx, CloneOptions{URL: url, Auth: auth, Dir: dir})
		if err != nil {
			return nil, err
		}
		co := Revision{Rev: rev, Dir: dir}
		if rev == "" {
			head, err := repo.Head()
			if err != nil {
				return nil, fmt.Errorf("head of %s: %w", url, err)
			}
			co.Hash = head.Hash().String()
		} else if co.Hash, err = Checkout(repo, rev); err != nil {
			return nil, err
		}
		out = append(out, co)
	}
	return out, nil
}

// RepoName returns the last path element of a repository URL without its
// .git suffix.
func RepoName(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, ":"); i >= 0 && !strings.Contains(url[i:], "/") {
		url = url[i+1:]
	}
	return strings.TrimSuffix(path.Base(filepath.ToSlash(url)), ".git")
}

// DirName is the directory name used for the clone of rev.
func DirName(url, rev string) string {
	name := RepoName(url)
	if rev == "" {
		return name
	}
	return name + "@" + strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(rev)
}
