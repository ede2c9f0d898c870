// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
	"github.com/ericfisherdev/shub/internal/fanout"
	"github.com/ericfisherdev/shub/internal/pagination"
)

// DashboardStage is the position of a refresh cycle.
type DashboardStage int

const (
	StageIdle DashboardStage = iota
	StageListLoaded
	StageStatusesFetched
	StagePersisted
	StageRendered
)

// String returns a human-readable name for the stage.
func (s DashboardStage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageListLoaded:
		return "list_loaded"
	case StageStatusesFetched:
		return "statuses_fetched"
	case StagePersisted:
		return "persisted"
	case StageRendered:
		return "rendered"
	default:
		return "unknown"
	}
}

// RefreshOptions tunes a single refresh cycle.
type RefreshOptions struct {
	// Resync pulls the remote listing even when the cache already holds
	// repositories. Cached statuses are carried over.
	Resync bool
	// Policy decides whether one failed status lookup aborts the batch.
	Policy fanout.Policy
	// Workers overrides the service's concurrency bound when positive.
	Workers int
}

// DashboardReport summarizes a refresh cycle.
type DashboardReport struct {
	Stage        DashboardStage
	Synced       bool // The remote listing was pulled during this cycle.
	Repositories int
	Statuses     int
}

// DashboardService drives the build status dashboard: it loads the owner's
// repositories, fetches their build statuses concurrently, stores them in the
// local cache and renders the result.
type DashboardService struct {
	source  driven.DashboardSource
	store   driven.RepoStore
	printer driven.DashboardPrinter
	owner   string
	workers int
}

// NewDashboardService creates a DashboardService for the given owner.
func NewDashboardService(
	source driven.DashboardSource,
	store driven.RepoStore,
	printer driven.DashboardPrinter,
	owner string,
	workers int,
) *DashboardService {
	return &DashboardService{
		source:  source,
		store:   store,
		printer: printer,
		owner:   owner,
		workers: workers,
	}
}

// Refresh runs one full cycle: Idle, ListLoaded, StatusesFetched, Persisted,
// Rendered. The returned report carries the last stage reached, also when an
// error is returned.
//
// Under fanout.FailFast any failed status lookup aborts the cycle before
// anything is persisted. Under fanout.Isolate the successful statuses are
// persisted and rendered, and the aggregated lookup errors are returned.
func (s *DashboardService) Refresh(ctx context.Context, opts RefreshOptions) (DashboardReport, error) {
	report := DashboardReport{Stage: StageIdle}
	if err := s.checkOwner(); err != nil {
		return report, err
	}

	synced, err := s.loadList(ctx, opts.Resync)
	if err != nil {
		return report, err
	}
	report.Synced = synced
	s.advance(&report, StageListLoaded)

	repos, err := s.dashboardRepositories(ctx)
	if err != nil {
		return report, err
	}
	report.Repositories = len(repos)

	workers := s.workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	pairs, fetchErr := fanout.Map(ctx, repos, s.fetchBuildStatus, fanout.Options{
		Workers: workers,
		Policy:  opts.Policy,
	})
	if fetchErr != nil && opts.Policy == fanout.FailFast {
		return report, fmt.Errorf("fetching build statuses: %w", fetchErr)
	}
	s.advance(&report, StageStatusesFetched)

	statuses := make([]model.RepoStatus, 0, len(pairs))
	for _, p := range pairs {
		statuses = append(statuses, model.RepoStatus{ID: p.Item.ID(), Status: p.Value})
	}
	report.Statuses = len(statuses)

	if err := s.store.SetBuildStatuses(ctx, statuses); err != nil {
		return report, fmt.Errorf("storing build statuses: %w", err)
	}
	s.advance(&report, StagePersisted)

	if err := s.Print(ctx); err != nil {
		return report, err
	}
	s.advance(&report, StageRendered)

	slog.Info("dashboard refreshed",
		"owner", s.owner,
		"repositories", report.Repositories,
		"statuses", report.Statuses,
		"synced", report.Synced,
	)

	if fetchErr != nil {
		return report, fmt.Errorf("fetching build statuses: %w", fetchErr)
	}
	return report, nil
}

// Watch runs an immediate refresh, then refreshes on the given interval until
// the context is canceled. A failed cycle is logged and the next one still
// runs. before is called ahead of each cycle, e.g. to clear the screen.
func (s *DashboardService) Watch(ctx context.Context, interval time.Duration, opts RefreshOptions, before func()) error {
	cycle := func() {
		if before != nil {
			before()
		}
		if _, err := s.Refresh(ctx, opts); err != nil && ctx.Err() == nil {
			slog.Error("dashboard refresh failed", "error", err)
		}
	}

	cycle()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("dashboard watch stopped")
			return nil
		case <-ticker.C:
			cycle()
		}
	}
}

// Print renders whatever is cached without calling the remote API or
// writing to the cache.
func (s *DashboardService) Print(ctx context.Context) error {
	if err := s.checkOwner(); err != nil {
		return err
	}

	repos, err := s.dashboardRepositories(ctx)
	if err != nil {
		return err
	}

	if err := s.printer.PrintDashboard(repos); err != nil {
		return fmt.Errorf("rendering dashboard: %w", err)
	}
	return nil
}

// Sync pulls the remote listing into the cache unconditionally, carrying
// cached build statuses over. Rows missing from the listing are kept.
func (s *DashboardService) Sync(ctx context.Context) (int, error) {
	if err := s.checkOwner(); err != nil {
		return 0, err
	}
	return s.syncFromRemote(ctx)
}

func (s *DashboardService) checkOwner() error {
	if s.owner == "" {
		return fmt.Errorf("dashboard owner: set SHUB_USERNAME or a token: %w", driven.ErrNotConfigured)
	}
	return nil
}

func (s *DashboardService) advance(report *DashboardReport, stage DashboardStage) {
	report.Stage = stage
	slog.Debug("dashboard stage", "stage", stage.String(), "owner", s.owner)
}

// loadList makes sure the cache holds the owner's repositories. It reports
// whether the remote listing was pulled.
func (s *DashboardService) loadList(ctx context.Context, resync bool) (bool, error) {
	if !resync {
		cached, err := s.store.GetRepositories(ctx, s.owner)
		if err != nil {
			return false, fmt.Errorf("reading cached repositories: %w", err)
		}
		if len(cached) > 0 {
			return false, nil
		}
	}

	if _, err := s.syncFromRemote(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *DashboardService) syncFromRemote(ctx context.Context) (int, error) {
	listing := pagination.Filter(s.source.ListOwnedRepositories(), func(d model.RepositoryDetail) bool {
		return strings.EqualFold(d.ID.Owner, s.owner) && d.Repository().OnDashboard()
	})

	var fresh []model.Repository
	for listing.Next(ctx) {
		fresh = append(fresh, listing.Item().Repository())
	}
	if err := listing.Err(); err != nil {
		return 0, fmt.Errorf("listing remote repositories: %w", err)
	}

	cached, err := s.store.GetRepositories(ctx, s.owner)
	if err != nil {
		return 0, fmt.Errorf("reading cached repositories: %w", err)
	}

	if err := s.store.PutRepositories(ctx, driven.PreserveBuildStatuses(fresh, cached)); err != nil {
		return 0, fmt.Errorf("storing repositories: %w", err)
	}

	slog.Debug("repository listing synced", "owner", s.owner, "count", len(fresh))
	return len(fresh), nil
}

func (s *DashboardService) dashboardRepositories(ctx context.Context) ([]model.Repository, error) {
	cached, err := s.store.GetRepositories(ctx, s.owner)
	if err != nil {
		return nil, fmt.Errorf("reading cached repositories: %w", err)
	}

	repos := make([]model.Repository, 0, len(cached))
	for _, r := range cached {
		if r.OnDashboard() {
			repos = append(repos, r)
		}
	}
	return repos, nil
}

// fetchBuildStatus looks up the latest commit and reduces its check runs.
// A repository without commits, or whose runs are all queued, contributes
// no status.
func (s *DashboardService) fetchBuildStatus(ctx context.Context, repo model.Repository) (model.BuildStatus, bool, error) {
	id := repo.ID()

	commit, err := s.source.GetLatestCommit(ctx, id)
	if err != nil {
		return model.BuildStatusNone, false, fmt.Errorf("fetching latest commit: %w", err)
	}
	if commit == nil {
		slog.Debug("no commits", "repo", id.String())
		return model.BuildStatusNone, false, nil
	}

	runs, err := s.source.FetchCheckRuns(ctx, id, commit.SHA)
	if err != nil {
		return model.BuildStatusNone, false, fmt.Errorf("fetching check runs at %s: %w", commit.SHA, err)
	}

	status := ReduceBuildStatus(runs)
	slog.Debug("build status fetched", "repo", id.String(), "sha", commit.SHA, "runs", len(runs), "status", status.String())

	return status, status.Known(), nil
}
