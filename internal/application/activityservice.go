package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
	"github.com/ericfisherdev/shub/internal/fanout"
	"github.com/ericfisherdev/shub/internal/pagination"
)

// LanguageFilter selects repositories by primary language. A leading "!"
// negates the match. The zero value matches everything.
type LanguageFilter struct {
	Language string
	Negate   bool
}

// ParseLanguageFilter parses "Go" or "!Go". An empty string matches everything.
func ParseLanguageFilter(s string) (LanguageFilter, error) {
	negate := strings.HasPrefix(s, "!")
	lang := strings.TrimSpace(strings.TrimPrefix(s, "!"))
	if negate && lang == "" {
		return LanguageFilter{}, fmt.Errorf("invalid language filter %q", s)
	}
	return LanguageFilter{Language: lang, Negate: negate}, nil
}

// Match reports whether the repository passes the filter. Languages compare
// case-insensitively.
func (f LanguageFilter) Match(r model.RepositoryDetail) bool {
	if f.Language == "" {
		return true
	}
	return strings.EqualFold(r.Language, f.Language) != f.Negate
}

// ActivityService implements commands over the user's activity: stars and
// workflow runs.
type ActivityService struct {
	gh      driven.GitHubClient
	workers int
}

// NewActivityService creates an ActivityService.
func NewActivityService(gh driven.GitHubClient, workers int) *ActivityService {
	return &ActivityService{gh: gh, workers: workers}
}

// Starred returns the starred repositories that pass the filter.
func (s *ActivityService) Starred(ctx context.Context, filter LanguageFilter) ([]model.RepositoryDetail, error) {
	stars, err := pagination.Collect(ctx, pagination.Filter(s.gh.ListStarredRepositories(), filter.Match))
	if err != nil {
		return nil, fmt.Errorf("listing starred repositories: %w", err)
	}
	return stars, nil
}

// DeleteWorkflowRuns deletes every workflow run of the repository and returns
// how many were deleted. A failed deletion does not stop the others; the
// count then covers the successful ones and the errors are returned
// together. The run list is read completely first so deletions
// cannot shift the pages still to be read.
func (s *ActivityService) DeleteWorkflowRuns(ctx context.Context, id model.RepoID) (int, error) {
	runs, err := pagination.Collect(ctx, s.gh.ListWorkflowRuns(id))
	if err != nil {
		return 0, fmt.Errorf("listing workflow runs: %w", err)
	}

	pairs, err := fanout.Map(ctx, runs, func(ctx context.Context, run model.WorkflowRun) (int64, bool, error) {
		if err := s.gh.DeleteWorkflowRun(ctx, id, run.ID); err != nil {
			return 0, false, err
		}
		return run.ID, true, nil
	}, fanout.Options{Workers: s.workers, Policy: fanout.Isolate})

	slog.Info("workflow runs deleted", "repo", id.String(), "count", len(pairs), "total", len(runs))
	if err != nil {
		return len(pairs), fmt.Errorf("deleting workflow runs of %s: %w", id, err)
	}
	return len(pairs), nil
}
