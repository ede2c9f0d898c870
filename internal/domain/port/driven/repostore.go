package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/shub/internal/domain/model"
)

// Sentinel errors returned by driven adapters.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrNotConfigured indicates a required setting (token, username,
	// workspace) is missing.
	ErrNotConfigured = errors.New("not configured")
)

// RepoStore defines the driven port for the local repository cache.
// Every bulk operation runs in a single transaction: it is applied
// completely or not at all.
type RepoStore interface {
	// PutRepositories upserts the records keyed by (owner, name). On conflict
	// the stored row is replaced wholesale, including build_status.
	PutRepositories(ctx context.Context, repos []model.Repository) error
	// GetRepositories returns every cached record for the owner, ordered by name.
	GetRepositories(ctx context.Context, owner string) ([]model.Repository, error)
	// SetBuildStatuses updates only the build_status column of the matching
	// records. Pairs without a matching record are ignored.
	SetBuildStatuses(ctx context.Context, statuses []model.RepoStatus) error
}

// PreserveBuildStatuses copies the build status of each cached record onto
// the matching fresh record that carries no status of its own. Use it before
// PutRepositories when refreshing the listing should not clobber statuses.
func PreserveBuildStatuses(fresh, cached []model.Repository) []model.Repository {
	known := make(map[model.RepoID]model.BuildStatus, len(cached))
	for _, r := range cached {
		if r.BuildStatus.Known() {
			known[r.ID()] = r.BuildStatus
		}
	}

	out := make([]model.Repository, len(fresh))
	for i, r := range fresh {
		if !r.BuildStatus.Known() {
			r.BuildStatus = known[r.ID()]
		}
		out[i] = r
	}
	return out
}
