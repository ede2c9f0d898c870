package model

import (
	"fmt"
	"strings"
	"time"
)

// RepoID identifies a GitHub repository by owner and name. It is comparable
// and safe to use as a map key.
type RepoID struct {
	Owner string
	Name  string
}

// String returns the namespaced form "owner/name".
func (id RepoID) String() string {
	return id.Owner + "/" + id.Name
}

// ParseRepoID parses a namespaced "owner/name" string. The split happens at
// the first slash, so "owner/a/b" yields the name "a/b".
func ParseRepoID(s string) (RepoID, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" {
		return RepoID{}, fmt.Errorf("invalid repository %q: expected owner/name", s)
	}
	return RepoID{Owner: owner, Name: name}, nil
}

// PartialRepoID is a repository reference whose owner may be omitted on the
// command line. Use Complete to turn it into a RepoID.
type PartialRepoID struct {
	Owner string // Empty when the user typed only a name.
	Name  string
}

// ParsePartialRepoID parses either "name" or "owner/name".
func ParsePartialRepoID(s string) (PartialRepoID, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok {
		if s == "" {
			return PartialRepoID{}, fmt.Errorf("invalid repository %q: expected [owner/]name", s)
		}
		return PartialRepoID{Name: s}, nil
	}
	if owner == "" || name == "" {
		return PartialRepoID{}, fmt.Errorf("invalid repository %q: expected [owner/]name", s)
	}
	return PartialRepoID{Owner: owner, Name: name}, nil
}

// Complete fills in defaultOwner when the owner was omitted.
func (p PartialRepoID) Complete(defaultOwner string) RepoID {
	owner := p.Owner
	if owner == "" {
		owner = defaultOwner
	}
	return RepoID{Owner: owner, Name: p.Name}
}

// Repository is the cached view of an owned repository shown on the dashboard.
type Repository struct {
	Owner       string
	Name        string
	IsFork      bool
	IsArchived  bool
	BuildStatus BuildStatus // BuildStatusNone until a status has been fetched.
}

// ID returns the repository identity.
func (r Repository) ID() RepoID {
	return RepoID{Owner: r.Owner, Name: r.Name}
}

// String returns the namespaced form "owner/name".
func (r Repository) String() string {
	return r.ID().String()
}

// OnDashboard reports whether the repository belongs on the build dashboard.
// Forks and archived repositories are never shown.
func (r Repository) OnDashboard() bool {
	return !r.IsFork && !r.IsArchived
}

// RepoStatus pairs a repository with a freshly fetched build status.
type RepoStatus struct {
	ID     RepoID
	Status BuildStatus
}

// RepositoryDetail carries the remote attributes used by listing commands.
// It is not persisted.
type RepositoryDetail struct {
	ID          RepoID
	Description string
	Language    string
	HTMLURL     string
	CloneURL    string
	SSHURL      string
	IsPrivate   bool
	IsFork      bool
	IsArchived  bool
	PushedAt    time.Time
	Settings    RepositorySettings
	// UpstreamURL is the parent repository's page when this is a fork. Only
	// single-repository lookups populate it.
	UpstreamURL string
}

// Repository converts the detail into a cache record with no build status.
func (d RepositoryDetail) Repository() Repository {
	return Repository{
		Owner:      d.ID.Owner,
		Name:       d.ID.Name,
		IsFork:     d.IsFork,
		IsArchived: d.IsArchived,
	}
}

// RepositorySettings holds the merge-related settings that can be copied
// between repositories.
type RepositorySettings struct {
	AllowRebaseMerge    bool `yaml:"allow_rebase_merge"`
	AllowSquashMerge    bool `yaml:"allow_squash_merge"`
	AllowAutoMerge      bool `yaml:"allow_auto_merge"`
	DeleteBranchOnMerge bool `yaml:"delete_branch_on_merge"`
	AllowMergeCommit    bool `yaml:"allow_merge_commit"`
}
