package driven

import (
	"context"

	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/pagination"
)

// DashboardSource is the subset of the GitHub API the dashboard needs.
type DashboardSource interface {
	// ListOwnedRepositories lazily lists the authenticated user's own
	// repositories, most recently updated first.
	ListOwnedRepositories() *pagination.Stream[model.RepositoryDetail]
	// GetLatestCommit returns the newest commit on the default branch, or
	// nil, nil when the repository has no commits.
	GetLatestCommit(ctx context.Context, id model.RepoID) (*model.Commit, error)
	// FetchCheckRuns returns all check runs for the given ref (commit SHA or branch).
	FetchCheckRuns(ctx context.Context, id model.RepoID, ref string) ([]model.CheckRun, error)
}

// GitHubClient defines the driven port for interacting with the GitHub API.
type GitHubClient interface {
	DashboardSource

	// AuthenticatedUser returns the login of the token's owner.
	AuthenticatedUser(ctx context.Context) (string, error)
	// GetRepository returns the repository detail. Returns ErrRepoNotFound
	// when the repository does not exist or is not visible.
	GetRepository(ctx context.Context, id model.RepoID) (*model.RepositoryDetail, error)
	// UpdateRepositorySettings applies the merge settings to the repository.
	UpdateRepositorySettings(ctx context.Context, id model.RepoID, settings model.RepositorySettings) error
	// CreateFork forks the repository into the authenticated user's account.
	// Forking is asynchronous on GitHub's side; the returned detail may
	// describe a fork that is still being created.
	CreateFork(ctx context.Context, id model.RepoID) (*model.RepositoryDetail, error)
	// ListStarredRepositories lazily lists repositories starred by the user.
	ListStarredRepositories() *pagination.Stream[model.RepositoryDetail]
	// ListWorkflowRuns lazily lists every workflow run of the repository.
	ListWorkflowRuns(id model.RepoID) *pagination.Stream[model.WorkflowRun]
	// DeleteWorkflowRun deletes a single workflow run.
	DeleteWorkflowRun(ctx context.Context, id model.RepoID, runID int64) error
}
