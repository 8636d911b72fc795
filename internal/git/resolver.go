// Package git resolves repository references into authenticated fetch
// URLs, identifies the remote HEAD commit without cloning, and clones
// into a job workspace.
package git

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gitsight/go-vcsurl"
	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/complyscan/complyscan/internal/logger"
)

// Resolver turns (repository URL, token) pairs into something the
// pipeline can fetch. The persisted repository reference is never
// mutated; only the transient authenticated URL carries the credential.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// AuthURL embeds the token as URL credentials when one is supplied and
// the URL targets a recognized hosted-git provider. Anything else is
// returned unmodified.
func (r *Resolver) AuthURL(repoURL, token string) string {
	if token == "" || !recognizedHost(repoURL) {
		return repoURL
	}
	u, err := url.Parse(repoURL)
	if err != nil || u.Scheme != "https" {
		return repoURL
	}
	u.User = url.UserPassword("x-access-token", token)
	return u.String()
}

// HeadCommit queries the remote for its HEAD hash via a reference
// listing, the equivalent of git ls-remote. No clone is performed.
func (r *Resolver) HeadCommit(ctx context.Context, authURL string) (string, error) {
	start := time.Now()
	defer logger.Trace("HeadCommit", start)

	rem := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{authURL},
	})
	refs, err := rem.ListContext(ctx, &gogit.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list remote refs: %w", sanitize(err, authURL))
	}

	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, ref := range refs {
		byName[ref.Name()] = ref
	}

	if head, ok := byName[plumbing.HEAD]; ok {
		if head.Type() == plumbing.HashReference {
			return head.Hash().String(), nil
		}
		if target, ok := byName[head.Target()]; ok {
			return target.Hash().String(), nil
		}
	}
	for _, name := range []plumbing.ReferenceName{"refs/heads/main", "refs/heads/master"} {
		if ref, ok := byName[name]; ok {
			return ref.Hash().String(), nil
		}
	}
	return "", fmt.Errorf("remote has no resolvable HEAD")
}

// Clone fetches the repository into dir. The caller owns dir; it is
// expected to live inside the job workspace.
func (r *Resolver) Clone(ctx context.Context, authURL, dir string) error {
	start := time.Now()
	defer logger.Trace("Clone", start)

	if _, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL: authURL,
	}); err != nil {
		return fmt.Errorf("git clone failed: %w", sanitize(err, authURL))
	}
	return nil
}

// sanitize masks the embedded credential in transport errors. go-git
// reproduces the full request URL, credentials included, in its error
// strings; the raw token must not escape this package.
func sanitize(err error, authURL string) error {
	if err == nil {
		return nil
	}
	u, perr := url.Parse(authURL)
	if perr != nil || u.User == nil {
		return err
	}
	msg := err.Error()
	if pw, ok := u.User.Password(); ok && pw != "" {
		msg = strings.ReplaceAll(msg, pw, "REDACTED")
	}
	return errors.New(msg)
}

func recognizedHost(repoURL string) bool {
	info, err := vcsurl.Parse(repoURL)
	if err != nil {
		return false
	}
	switch info.Host {
	case vcsurl.GitHub, vcsurl.GitLab, vcsurl.Bitbucket:
		return true
	}
	return false
}
