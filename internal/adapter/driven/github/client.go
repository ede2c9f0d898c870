// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
	"github.com/ericfisherdev/shub/internal/pagination"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// perPage is the maximum page size accepted by the REST API.
const perPage = 100

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
//
// An empty token yields an anonymous client limited to public data.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// AuthenticatedUser returns the login of the token's owner.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("fetching authenticated user: %w", err)
	}

	logRateLimit(resp, "user", 0, 1)

	return user.GetLogin(), nil
}

// ListOwnedRepositories lazily lists repositories owned by the authenticated
// user, 100 per page, most recently updated first.
func (c *Client) ListOwnedRepositories() *pagination.Stream[model.RepositoryDetail] {
	return pagination.New(func(ctx context.Context, cursor pagination.Cursor) (pagination.Page[model.RepositoryDetail], error) {
		opts := &gh.RepositoryListByAuthenticatedUserOptions{
			Affiliation: "owner",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: gh.ListOptions{
				PerPage: perPage,
				Page:    cursor.Page(),
			},
		}

		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return pagination.Page[model.RepositoryDetail]{}, fmt.Errorf("listing owned repositories (page %d): %w", opts.Page, err)
		}

		logRateLimit(resp, "user/repos", opts.Page, len(repos))

		items := make([]model.RepositoryDetail, 0, len(repos))
		for _, r := range repos {
			items = append(items, mapRepository(r))
		}

		return pagination.Page[model.RepositoryDetail]{Items: items, HasMore: resp.NextPage != 0}, nil
	})
}

// GetLatestCommit returns the newest commit on the default branch. It returns
// nil, nil when the repository has no commits; GitHub reports an empty
// repository with 409 Conflict.
func (c *Client) GetLatestCommit(ctx context.Context, id model.RepoID) (*model.Commit, error) {
	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, id.Owner, id.Name, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, nil
		}
		if isNotFound(resp) {
			return nil, fmt.Errorf("listing commits for %s: %w", id, driven.ErrRepoNotFound)
		}
		return nil, fmt.Errorf("listing commits for %s: %w", id, err)
	}

	logRateLimit(resp, id.String()+"/commits", 0, len(commits))

	if len(commits) == 0 {
		return nil, nil
	}

	commit := mapCommit(commits[0])
	return &commit, nil
}

// FetchCheckRuns retrieves all check runs for a specific git ref (commit SHA or branch name).
func (c *Client) FetchCheckRuns(ctx context.Context, id model.RepoID, ref string) ([]model.CheckRun, error) {
	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var allRuns []model.CheckRun

	for {
		result, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, id.Owner, id.Name, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("listing check runs for %s@%s (page %d): %w", id, ref, opts.Page, err)
		}

		logRateLimit(resp, id.String()+"/check-runs", opts.Page, len(result.CheckRuns))

		for _, cr := range result.CheckRuns {
			allRuns = append(allRuns, mapCheckRun(cr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allRuns == nil {
		allRuns = []model.CheckRun{}
	}

	return allRuns, nil
}

// GetRepository returns the repository detail, including its merge settings.
func (c *Client) GetRepository(ctx context.Context, id model.RepoID) (*model.RepositoryDetail, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, id.Owner, id.Name)
	if err != nil {
		if isNotFound(resp) {
			return nil, fmt.Errorf("fetching repository %s: %w", id, driven.ErrRepoNotFound)
		}
		return nil, fmt.Errorf("fetching repository %s: %w", id, err)
	}

	logRateLimit(resp, id.String(), 0, 1)

	detail := mapRepository(repo)
	return &detail, nil
}

// UpdateRepositorySettings applies the merge settings to the repository.
// All five flags are sent explicitly so false values are applied too.
func (c *Client) UpdateRepositorySettings(ctx context.Context, id model.RepoID, settings model.RepositorySettings) error {
	patch := &gh.Repository{
		AllowRebaseMerge:    gh.Ptr(settings.AllowRebaseMerge),
		AllowSquashMerge:    gh.Ptr(settings.AllowSquashMerge),
		AllowAutoMerge:      gh.Ptr(settings.AllowAutoMerge),
		DeleteBranchOnMerge: gh.Ptr(settings.DeleteBranchOnMerge),
		AllowMergeCommit:    gh.Ptr(settings.AllowMergeCommit),
	}

	_, resp, err := c.gh.Repositories.Edit(ctx, id.Owner, id.Name, patch)
	if err != nil {
		if isNotFound(resp) {
			return fmt.Errorf("updating settings for %s: %w", id, driven.ErrRepoNotFound)
		}
		return fmt.Errorf("updating settings for %s: %w", id, err)
	}

	logRateLimit(resp, id.String()+"/settings", 0, 1)

	return nil
}

// CreateFork forks the repository into the authenticated user's account.
// GitHub answers 202 Accepted while the fork is being created; that is not
// treated as an error.
func (c *Client) CreateFork(ctx context.Context, id model.RepoID) (*model.RepositoryDetail, error) {
	fork, resp, err := c.gh.Repositories.CreateFork(ctx, id.Owner, id.Name, &gh.RepositoryCreateForkOptions{})
	if err != nil {
		var accepted *gh.AcceptedError
		switch {
		case errors.As(err, &accepted):
			slog.Debug("fork scheduled", "repo", id.String())
		case isNotFound(resp):
			return nil, fmt.Errorf("forking %s: %w", id, driven.ErrRepoNotFound)
		default:
			return nil, fmt.Errorf("forking %s: %w", id, err)
		}
	}

	logRateLimit(resp, id.String()+"/forks", 0, 1)

	detail := mapRepository(fork)
	return &detail, nil
}

// ListStarredRepositories lazily lists repositories starred by the
// authenticated user, most recently updated first.
func (c *Client) ListStarredRepositories() *pagination.Stream[model.RepositoryDetail] {
	return pagination.New(func(ctx context.Context, cursor pagination.Cursor) (pagination.Page[model.RepositoryDetail], error) {
		opts := &gh.ActivityListStarredOptions{
			Sort:      "updated",
			Direction: "desc",
			ListOptions: gh.ListOptions{
				PerPage: perPage,
				Page:    cursor.Page(),
			},
		}

		starred, resp, err := c.gh.Activity.ListStarred(ctx, "", opts)
		if err != nil {
			return pagination.Page[model.RepositoryDetail]{}, fmt.Errorf("listing starred repositories (page %d): %w", opts.Page, err)
		}

		logRateLimit(resp, "user/starred", opts.Page, len(starred))

		items := make([]model.RepositoryDetail, 0, len(starred))
		for _, s := range starred {
			if s.Repository == nil {
				continue
			}
			items = append(items, mapRepository(s.Repository))
		}

		return pagination.Page[model.RepositoryDetail]{Items: items, HasMore: resp.NextPage != 0}, nil
	})
}

// ListWorkflowRuns lazily lists every workflow run of the repository.
func (c *Client) ListWorkflowRuns(id model.RepoID) *pagination.Stream[model.WorkflowRun] {
	return pagination.New(func(ctx context.Context, cursor pagination.Cursor) (pagination.Page[model.WorkflowRun], error) {
		opts := &gh.ListWorkflowRunsOptions{
			ListOptions: gh.ListOptions{
				PerPage: perPage,
				Page:    cursor.Page(),
			},
		}

		runs, resp, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, id.Owner, id.Name, opts)
		if err != nil {
			if isNotFound(resp) {
				return pagination.Page[model.WorkflowRun]{}, fmt.Errorf("listing workflow runs for %s: %w", id, driven.ErrRepoNotFound)
			}
			return pagination.Page[model.WorkflowRun]{}, fmt.Errorf("listing workflow runs for %s (page %d): %w", id, opts.Page, err)
		}

		logRateLimit(resp, id.String()+"/actions/runs", opts.Page, len(runs.WorkflowRuns))

		items := make([]model.WorkflowRun, 0, len(runs.WorkflowRuns))
		for _, run := range runs.WorkflowRuns {
			items = append(items, mapWorkflowRun(run))
		}

		return pagination.Page[model.WorkflowRun]{Items: items, HasMore: resp.NextPage != 0}, nil
	})
}

// DeleteWorkflowRun deletes a single workflow run.
func (c *Client) DeleteWorkflowRun(ctx context.Context, id model.RepoID, runID int64) error {
	resp, err := c.gh.Actions.DeleteWorkflowRun(ctx, id.Owner, id.Name, runID)
	if err != nil {
		return fmt.Errorf("deleting workflow run %d of %s: %w", runID, id, err)
	}

	logRateLimit(resp, id.String()+"/actions/runs/delete", 0, 1)

	return nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func isNotFound(resp *gh.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// mapRepository converts a go-github Repository to a domain RepositoryDetail.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapRepository(r *gh.Repository) model.RepositoryDetail {
	return model.RepositoryDetail{
		ID: model.RepoID{
			Owner: r.GetOwner().GetLogin(),
			Name:  r.GetName(),
		},
		Description: r.GetDescription(),
		Language:    r.GetLanguage(),
		HTMLURL:     r.GetHTMLURL(),
		CloneURL:    r.GetCloneURL(),
		SSHURL:      r.GetSSHURL(),
		IsPrivate:   r.GetPrivate(),
		IsFork:      r.GetFork(),
		IsArchived:  r.GetArchived(),
		PushedAt:    r.GetPushedAt().Time,
		Settings: model.RepositorySettings{
			AllowRebaseMerge:    r.GetAllowRebaseMerge(),
			AllowSquashMerge:    r.GetAllowSquashMerge(),
			AllowAutoMerge:      r.GetAllowAutoMerge(),
			DeleteBranchOnMerge: r.GetDeleteBranchOnMerge(),
			AllowMergeCommit:    r.GetAllowMergeCommit(),
		},
		UpstreamURL: r.GetParent().GetHTMLURL(),
	}
}

func mapCommit(rc *gh.RepositoryCommit) model.Commit {
	return model.Commit{
		SHA:     rc.GetSHA(),
		Message: rc.GetCommit().GetMessage(),
		Author:  rc.GetCommit().GetAuthor().GetName(),
		Date:    rc.GetCommit().GetAuthor().GetDate().Time,
	}
}

func mapCheckRun(cr *gh.CheckRun) model.CheckRun {
	var startedAt, completedAt time.Time
	if cr.StartedAt != nil {
		startedAt = cr.GetStartedAt().Time
	}
	if cr.CompletedAt != nil {
		completedAt = cr.GetCompletedAt().Time
	}

	return model.CheckRun{
		ID:          cr.GetID(),
		Name:        cr.GetName(),
		Status:      cr.GetStatus(),
		Conclusion:  cr.GetConclusion(),
		DetailsURL:  cr.GetDetailsURL(),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
}

func mapWorkflowRun(run *gh.WorkflowRun) model.WorkflowRun {
	return model.WorkflowRun{
		ID:         run.GetID(),
		Name:       run.GetName(),
		Status:     run.GetStatus(),
		Conclusion: run.GetConclusion(),
		CreatedAt:  run.GetCreatedAt().Time,
	}
}
