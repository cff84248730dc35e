package source

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sirupsen/logrus"
)

// GitBackend is a read-only Backend for a YAML document inside a Git
// repository. The repository is cloned into memory on the first read and
// pulled on every following read.
type GitBackend struct {
	mu            sync.Mutex
	URL           *url.URL         // URL representing the Git repository URL
	Path          string           // Path to the YAML file within the Git repository
	Branch        string           // Branch to use when cloning the Git repository
	Auth          *http.BasicAuth  // BasicAuth to use when cloning the Git repository
	gitRepository *git.Repository  // Go-Git repository instance for the in-memory clone
	fs            billy.Filesystem // Filesystem to store the in-memory clone of the repository
}

// NewGitRepository creates a read-only DocumentStore for the file at path
// inside the Git repository at gitURL.
func NewGitRepository(name, gitURL, path, branch string) (*DocumentStore, error) {
	parsed, err := url.Parse(gitURL)
	if err != nil {
		return nil, err
	}
	return NewDocumentStore(name, &GitBackend{URL: parsed, Path: path, Branch: branch}), nil
}

// Kind returns "git".
func (g *GitBackend) Kind() string {
	return "git"
}

// Write always fails: documents in Git are changed through commits, not
// through the console.
func (g *GitBackend) Write(_ context.Context, _ []byte) error {
	return ErrReadOnly
}

// Read syncs the in-memory clone and returns the document content.
func (g *GitBackend) Read(ctx context.Context) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.sync(ctx); err != nil {
		return nil, err
	}

	file, err := g.fs.Open(g.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte{}, nil
	}
	if err != nil {
		logrus.Debug("error opening file")
		return nil, err
	}
	defer func(file billy.File) {
		err := file.Close()
		if err != nil {
			logrus.WithError(err).Error("error closing file")
		}
	}(file)

	return io.ReadAll(file)
}

func (g *GitBackend) sync(ctx context.Context) error {
	// If the in-memory clone of the Git repository does not exist, create it.
	if g.gitRepository == nil {
		fs := memfs.New()
		logrus.Debugf("Cloning %s into memory", g.URL.String())
		r, err := git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{
			URL:  g.URL.String(),
			Auth: g.authMethod(),
		})
		if err != nil {
			return err
		}

		if g.Branch != "" {
			w, err := r.Worktree()
			if err != nil {
				return err
			}

			err = r.FetchContext(ctx, &git.FetchOptions{
				RefSpecs: []config.RefSpec{"refs/*:refs/*", "HEAD:refs/heads/HEAD"},
				Auth:     g.authMethod(),
			})
			if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
				return err
			}

			err = w.Checkout(&git.CheckoutOptions{
				Branch: plumbing.NewBranchReferenceName(g.Branch),
				Force:  true,
			})
			if err != nil {
				return err
			}
		}

		logrus.Debug("Cloned")
		g.gitRepository = r
		g.fs = fs
		return nil
	}

	w, err := g.gitRepository.Worktree()
	if err != nil {
		return err
	}
	logrus.Debug("Pulling")

	pullOptions := &git.PullOptions{
		Auth: g.authMethod(),
	}
	if g.Branch != "" {
		pullOptions = &git.PullOptions{
			ReferenceName: plumbing.NewBranchReferenceName(g.Branch),
			Force:         true,
			SingleBranch:  true,
			Auth:          g.authMethod(),
		}
	}

	err = w.PullContext(ctx, pullOptions)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		logrus.Debug("Already up to date")
		return nil
	}
	if err != nil {
		return err
	}
	logrus.Debug("Pulled")
	return nil
}

// authMethod avoids handing go-git a typed nil *BasicAuth.
func (g *GitBackend) authMethod() transport.AuthMethod {
	if g.Auth == nil {
		return nil
	}
	return g.Auth
}
