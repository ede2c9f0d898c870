package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
	"github.com/ericfisherdev/shub/internal/fanout"
	"github.com/ericfisherdev/shub/internal/pagination"
)

// RepositoryStatus is the build state of a repository's latest commit.
type RepositoryStatus struct {
	ID     model.RepoID
	Commit *model.Commit // Nil when the repository has no commits.
	Runs   []model.CheckRun
	Status model.BuildStatus
}

// RepositoryService implements the single-repository commands: listing,
// cloning, forking, browsing and merge settings.
type RepositoryService struct {
	gh        driven.GitHubClient
	cloner    driven.Cloner
	browser   driven.Browser
	username  string
	workspace string
	workers   int
}

// NewRepositoryService creates a RepositoryService. Partial repository ids
// are completed with username; clones land under workspace.
func NewRepositoryService(
	gh driven.GitHubClient,
	cloner driven.Cloner,
	browser driven.Browser,
	username string,
	workspace string,
	workers int,
) *RepositoryService {
	return &RepositoryService{
		gh:        gh,
		cloner:    cloner,
		browser:   browser,
		username:  username,
		workspace: workspace,
		workers:   workers,
	}
}

// Resolve completes a partial repository id with the configured user.
func (s *RepositoryService) Resolve(p model.PartialRepoID) (model.RepoID, error) {
	if p.Owner == "" && s.username == "" {
		return model.RepoID{}, fmt.Errorf("repository %q has no owner and no username is set: %w", p.Name, driven.ErrNotConfigured)
	}
	return p.Complete(s.username), nil
}

// ListOwned returns every repository owned by the authenticated user, most
// recently updated first.
func (s *RepositoryService) ListOwned(ctx context.Context) ([]model.RepositoryDetail, error) {
	repos, err := pagination.Collect(ctx, s.gh.ListOwnedRepositories())
	if err != nil {
		return nil, fmt.Errorf("listing owned repositories: %w", err)
	}
	return repos, nil
}

// BuildStatus fetches the check runs of the latest commit and reduces them.
func (s *RepositoryService) BuildStatus(ctx context.Context, id model.RepoID) (*RepositoryStatus, error) {
	commit, err := s.gh.GetLatestCommit(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &RepositoryStatus{ID: id, Commit: commit}
	if commit == nil {
		return result, nil
	}

	runs, err := s.gh.FetchCheckRuns(ctx, id, commit.SHA)
	if err != nil {
		return nil, err
	}

	result.Runs = runs
	result.Status = ReduceBuildStatus(runs)
	return result, nil
}

// ClonePath returns the directory a repository is cloned into:
// <workspace>/<owner>/<name>.
func (s *RepositoryService) ClonePath(id model.RepoID) (string, error) {
	if s.workspace == "" {
		return "", fmt.Errorf("workspace directory: %w", driven.ErrNotConfigured)
	}
	return filepath.Join(s.workspace, id.Owner, id.Name), nil
}

// Clone clones the repository into the workspace and returns the directory.
// The SSH URL is used when ssh is true.
func (s *RepositoryService) Clone(ctx context.Context, id model.RepoID, ssh bool) (string, error) {
	dir, err := s.ClonePath(id)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("clone %s: %s already exists", id, dir)
	}

	repo, err := s.gh.GetRepository(ctx, id)
	if err != nil {
		return "", err
	}

	url := repo.CloneURL
	if ssh {
		url = repo.SSHURL
	}

	if err := s.cloner.Clone(ctx, url, dir); err != nil {
		return "", err
	}

	slog.Info("repository cloned", "repo", id.String(), "dir", dir)
	return dir, nil
}

// Fork forks the repository into the authenticated user's account.
func (s *RepositoryService) Fork(ctx context.Context, id model.RepoID) (*model.RepositoryDetail, error) {
	fork, err := s.gh.CreateFork(ctx, id)
	if err != nil {
		return nil, err
	}

	slog.Info("repository forked", "repo", id.String(), "fork", fork.ID.String())
	return fork, nil
}

// Browse opens the repository page, or the parent's page when upstream is
// set and the repository is a fork. It returns the opened URL.
func (s *RepositoryService) Browse(ctx context.Context, id model.RepoID, upstream bool) (string, error) {
	repo, err := s.gh.GetRepository(ctx, id)
	if err != nil {
		return "", err
	}

	url := repo.HTMLURL
	if upstream {
		if repo.UpstreamURL == "" {
			return "", fmt.Errorf("%s is not a fork", id)
		}
		url = repo.UpstreamURL
	}

	if err := s.browser.Browse(url); err != nil {
		return "", fmt.Errorf("opening %s: %w", url, err)
	}
	return url, nil
}

// Settings returns the repository's merge settings.
func (s *RepositoryService) Settings(ctx context.Context, id model.RepoID) (model.RepositorySettings, error) {
	repo, err := s.gh.GetRepository(ctx, id)
	if err != nil {
		return model.RepositorySettings{}, err
	}
	return repo.Settings, nil
}

// DownloadSettings writes the repository's merge settings to a YAML file.
func (s *RepositoryService) DownloadSettings(ctx context.Context, id model.RepoID, path string) error {
	settings, err := s.Settings(ctx, id)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings to %s: %w", path, err)
	}

	slog.Debug("settings downloaded", "repo", id.String(), "path", path)
	return nil
}

// ReadSettings loads merge settings from a YAML file. Every setting must be
// present so that applying the file never silently disables one.
func ReadSettings(path string) (model.RepositorySettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RepositorySettings{}, fmt.Errorf("reading settings: %w", err)
	}

	var raw map[string]*bool
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return model.RepositorySettings{}, fmt.Errorf("decoding settings %s: %w", path, err)
	}

	var settings model.RepositorySettings
	fields := []struct {
		key string
		dst *bool
	}{
		{"allow_rebase_merge", &settings.AllowRebaseMerge},
		{"allow_squash_merge", &settings.AllowSquashMerge},
		{"allow_auto_merge", &settings.AllowAutoMerge},
		{"delete_branch_on_merge", &settings.DeleteBranchOnMerge},
		{"allow_merge_commit", &settings.AllowMergeCommit},
	}

	var missing []string
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || v == nil {
			missing = append(missing, f.key)
			continue
		}
		*f.dst = *v
	}
	if len(missing) > 0 {
		return model.RepositorySettings{}, fmt.Errorf("settings %s: missing %v", path, missing)
	}

	return settings, nil
}

// ApplySettings applies the settings file to every target repository
// concurrently. Failures are isolated per repository and returned together.
func (s *RepositoryService) ApplySettings(ctx context.Context, path string, targets []model.RepoID) ([]model.RepoID, error) {
	settings, err := ReadSettings(path)
	if err != nil {
		return nil, err
	}

	return s.applyAll(ctx, settings, targets)
}

// CopySettings copies the merge settings of one repository to others.
func (s *RepositoryService) CopySettings(ctx context.Context, from model.RepoID, to []model.RepoID) ([]model.RepoID, error) {
	settings, err := s.Settings(ctx, from)
	if err != nil {
		return nil, err
	}

	return s.applyAll(ctx, settings, to)
}

func (s *RepositoryService) applyAll(ctx context.Context, settings model.RepositorySettings, targets []model.RepoID) ([]model.RepoID, error) {
	if len(targets) == 0 {
		return nil, errors.New("no target repositories")
	}

	pairs, err := fanout.Map(ctx, targets, func(ctx context.Context, id model.RepoID) (struct{}, bool, error) {
		if err := s.gh.UpdateRepositorySettings(ctx, id, settings); err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, true, nil
	}, fanout.Options{Workers: s.workers, Policy: fanout.Isolate})

	updated := make([]model.RepoID, 0, len(pairs))
	for _, p := range pairs {
		updated = append(updated, p.Item)
	}

	slog.Info("settings applied", "updated", len(updated), "targets", len(targets))
	return updated, err
}

// Projects lists the repositories cloned into the workspace, that is every
// <workspace>/<owner>/<name> directory holding a .git entry, sorted by owner
// and name.
func (s *RepositoryService) Projects() ([]model.RepoID, error) {
	if s.workspace == "" {
		return nil, fmt.Errorf("workspace directory: %w", driven.ErrNotConfigured)
	}

	owners, err := os.ReadDir(s.workspace)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading workspace: %w", err)
	}

	var projects []model.RepoID
	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		names, err := os.ReadDir(filepath.Join(s.workspace, owner.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading workspace: %w", err)
		}
		for _, name := range names {
			if !name.IsDir() {
				continue
			}
			gitDir := filepath.Join(s.workspace, owner.Name(), name.Name(), ".git")
			if _, err := os.Stat(gitDir); err != nil {
				continue
			}
			projects = append(projects, model.RepoID{Owner: owner.Name(), Name: name.Name()})
		}
	}

	return projects, nil
}

// Locate returns the workspace directory of a cloned project. A bare name
// matches a project of any owner, preferring the configured user's.
func (s *RepositoryService) Locate(p model.PartialRepoID) (string, error) {
	projects, err := s.Projects()
	if err != nil {
		return "", err
	}

	var matches []model.RepoID
	for _, id := range projects {
		if id.Name != p.Name {
			continue
		}
		if p.Owner != "" && id.Owner != p.Owner {
			continue
		}
		if p.Owner == "" && id.Owner == s.username {
			return s.ClonePath(id)
		}
		matches = append(matches, id)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("project %s: %w", p.Name, driven.ErrRepoNotFound)
	case 1:
		return s.ClonePath(matches[0])
	default:
		return "", fmt.Errorf("project %s is ambiguous: %v", p.Name, matches)
	}
}
