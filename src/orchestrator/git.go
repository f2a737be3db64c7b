package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"stackline/src/contracts"
	"stackline/src/pipeline"
	"stackline/src/secrets"
)

// GitSourceRunner clones the source repository into the source action's
// output directory and reports the checked out commit.
type GitSourceRunner struct {
	// Secrets resolves the source action's token. Nil clones anonymously.
	Secrets secrets.Provider
	// CloneURL overrides the repository URL, e.g. to clone a local mirror.
	CloneURL func(*pipeline.SourceAction) string
}

func (r *GitSourceRunner) Run(ctx context.Context, job Job) (Result, error) {
	src, ok := job.Action.(*pipeline.SourceAction)
	if !ok {
		return Result{}, fmt.Errorf("git runner cannot run %s action %s", job.Action.Category(), job.Action.Name())
	}
	props := src.Props()

	url := src.RepositoryURL() + ".git"
	if r.CloneURL != nil {
		url = r.CloneURL(src)
	}

	opts := &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(props.Branch),
		SingleBranch:  true,
	}
	if job.Revision == "" {
		opts.Depth = 1
	}
	if r.Secrets != nil && props.OAuthSecret != "" {
		token, err := r.Secrets.GetSecret(ctx, props.OAuthSecret)
		if err != nil {
			return Result{}, err
		}
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: strings.TrimSpace(token)}
	}

	dir := job.Workspace.Dir(src.Output().Name())
	if err := os.RemoveAll(dir); err != nil {
		return Result{}, err
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to clone %s: %w", url, err)
	}

	if job.Revision != "" {
		wt, err := repo.Worktree()
		if err != nil {
			return Result{}, err
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(job.Revision)}); err != nil {
			return Result{}, fmt.Errorf("failed to check out %s: %w", job.Revision, err)
		}
	}

	rev, err := headRevision(repo, src)
	if err != nil {
		return Result{}, err
	}
	res := outputsOf(job)
	res.Revision = rev
	res.Message = fmt.Sprintf("cloned %s@%s", props.Branch, shortSHA(rev.RevisionID))
	return res, nil
}

// headRevision describes the commit HEAD points at.
func headRevision(repo *git.Repository, src *pipeline.SourceAction) (*contracts.SourceRevision, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", head.Hash(), err)
	}
	sha := head.Hash().String()
	return &contracts.SourceRevision{
		ActionName:  src.Name(),
		RevisionID:  sha,
		RevisionURL: src.RepositoryURL() + "/commit/" + sha,
		Summary:     strings.SplitN(strings.TrimSpace(commit.Message), "\n", 2)[0],
	}, nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
