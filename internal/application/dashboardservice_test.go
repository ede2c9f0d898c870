package application_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/shub/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/shub/internal/adapter/driven/terminal"
	"github.com/ericfisherdev/shub/internal/application"
	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
	"github.com/ericfisherdev/shub/internal/fanout"
)

func TestRefresh_EndToEnd(t *testing.T) {
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "shub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer))

	store := sqlite.NewRepoRepo(db)

	gh := newFakeGitHub()
	gh.owned = []model.RepositoryDetail{ownedDetail("a"), ownedDetail("bbb")}
	gh.withBuild(repoID("a"), checkRun("completed", "success"))
	gh.withBuild(repoID("bbb"), checkRun("completed", "failure"), checkRun("in_progress", ""))

	var out bytes.Buffer
	printer := terminal.NewPrinter(&out, false, 80)

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	report, err := svc.Refresh(ctx, application.RefreshOptions{})
	require.NoError(t, err)

	assert.Equal(t, application.StageRendered, report.Stage)
	assert.True(t, report.Synced)
	assert.Equal(t, 2, report.Repositories)
	assert.Equal(t, 2, report.Statuses)

	cached, err := store.GetRepositories(ctx, "octocat")
	require.NoError(t, err)
	statuses := map[string]model.BuildStatus{}
	for _, r := range cached {
		statuses[r.Name] = r.BuildStatus
	}
	assert.Equal(t, map[string]model.BuildStatus{
		"a":   model.BuildStatusSuccess,
		"bbb": model.BuildStatusFailure,
	}, statuses)

	// Render order is not part of the contract; compare as a set.
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	assert.ElementsMatch(t, []string{
		"a    success",
		"bbb  failure",
	}, lines)
}

func TestRefresh_UsesCacheWhenPopulated(t *testing.T) {
	gh := newFakeGitHub()
	gh.owned = []model.RepositoryDetail{ownedDetail("remote-only")}
	gh.withBuild(repoID("cached"), checkRun("completed", "success"))

	store := newMemStore(model.Repository{Owner: "octocat", Name: "cached"})
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	report, err := svc.Refresh(context.Background(), application.RefreshOptions{})
	require.NoError(t, err)

	assert.False(t, report.Synced)
	assert.Equal(t, int32(0), gh.listCalls.Load(), "non-empty cache skips the remote listing")
	assert.Equal(t, 0, store.puts)
	assert.Equal(t, model.BuildStatusSuccess, store.status("octocat", "cached"))

	require.Len(t, printer.printed, 1)
	require.Len(t, printer.printed[0], 1)
	assert.Equal(t, "cached", printer.printed[0][0].Name)
}

func TestRefresh_ListingFiltersForksAndArchived(t *testing.T) {
	gh := newFakeGitHub()
	gh.pageSize = 1
	gh.owned = []model.RepositoryDetail{
		ownedDetail("keep"),
		{ID: repoID("forked"), IsFork: true},
		{ID: repoID("old"), IsArchived: true},
		{ID: model.RepoID{Owner: "someone-else", Name: "theirs"}},
		ownedDetail("also-keep"),
	}

	store := newMemStore()
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	report, err := svc.Refresh(context.Background(), application.RefreshOptions{})
	require.NoError(t, err)

	assert.True(t, report.Synced)
	assert.Equal(t, 2, report.Repositories)

	cached, err := store.GetRepositories(context.Background(), "octocat")
	require.NoError(t, err)
	var names []string
	for _, r := range cached {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"also-keep", "keep"}, names)
}

func TestRefresh_ResyncPreservesStatuses(t *testing.T) {
	gh := newFakeGitHub()
	gh.owned = []model.RepositoryDetail{ownedDetail("existing"), ownedDetail("new")}
	// "existing" has no commits any more, so no fresh status is fetched for it.

	store := newMemStore(model.Repository{Owner: "octocat", Name: "existing", BuildStatus: model.BuildStatusFailure})
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	report, err := svc.Refresh(context.Background(), application.RefreshOptions{Resync: true})
	require.NoError(t, err)

	assert.True(t, report.Synced)
	assert.Equal(t, int32(1), gh.listCalls.Load())
	assert.Equal(t, model.BuildStatusFailure, store.status("octocat", "existing"), "resync must not clobber a cached status")
	assert.Equal(t, model.BuildStatusNone, store.status("octocat", "new"))
}

func TestRefresh_AbsentStatusLeavesCacheUntouched(t *testing.T) {
	gh := newFakeGitHub()
	gh.withBuild(repoID("queued"), checkRun("queued", ""))

	store := newMemStore(
		model.Repository{Owner: "octocat", Name: "empty", BuildStatus: model.BuildStatusSuccess},
		model.Repository{Owner: "octocat", Name: "queued", BuildStatus: model.BuildStatusInProgress},
	)

	svc := application.NewDashboardService(gh, store, &recordingPrinter{}, "octocat", 2)
	report, err := svc.Refresh(context.Background(), application.RefreshOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Statuses)
	assert.Equal(t, model.BuildStatusSuccess, store.status("octocat", "empty"))
	assert.Equal(t, model.BuildStatusInProgress, store.status("octocat", "queued"))
}

func TestRefresh_SkipsForksAndArchivedInCache(t *testing.T) {
	gh := newFakeGitHub()
	gh.withBuild(repoID("active"), checkRun("completed", "success"))

	store := newMemStore(
		model.Repository{Owner: "octocat", Name: "active"},
		model.Repository{Owner: "octocat", Name: "fork", IsFork: true},
		model.Repository{Owner: "octocat", Name: "archived", IsArchived: true},
	)
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	_, err := svc.Refresh(context.Background(), application.RefreshOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), gh.commitCalls.Load())
	require.Len(t, printer.printed, 1)
	require.Len(t, printer.printed[0], 1)
	assert.Equal(t, "active", printer.printed[0][0].Name)
}

func TestRefresh_FailFastPersistsNothing(t *testing.T) {
	gh := newFakeGitHub()
	gh.withBuild(repoID("good"), checkRun("completed", "success"))
	gh.commitErr[repoID("bad")] = errors.New("502 bad gateway")

	store := newMemStore(
		model.Repository{Owner: "octocat", Name: "bad"},
		model.Repository{Owner: "octocat", Name: "good"},
	)
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 1)
	report, err := svc.Refresh(context.Background(), application.RefreshOptions{Policy: fanout.FailFast})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "octocat/bad")
	assert.Contains(t, err.Error(), "502 bad gateway")
	assert.Equal(t, application.StageListLoaded, report.Stage)
	assert.Equal(t, 0, store.sets, "no partial commit")
	assert.Equal(t, model.BuildStatusNone, store.status("octocat", "good"))
	assert.Empty(t, printer.printed)
}

func TestRefresh_IsolatePersistsSuccessfulStatuses(t *testing.T) {
	gh := newFakeGitHub()
	gh.withBuild(repoID("good"), checkRun("completed", "success"))
	gh.commitErr[repoID("bad")] = errors.New("502 bad gateway")

	store := newMemStore(
		model.Repository{Owner: "octocat", Name: "bad", BuildStatus: model.BuildStatusFailure},
		model.Repository{Owner: "octocat", Name: "good"},
	)
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	report, err := svc.Refresh(context.Background(), application.RefreshOptions{Policy: fanout.Isolate})

	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 1)

	assert.Equal(t, application.StageRendered, report.Stage)
	assert.Equal(t, 1, report.Statuses)
	assert.Equal(t, model.BuildStatusSuccess, store.status("octocat", "good"))
	assert.Equal(t, model.BuildStatusFailure, store.status("octocat", "bad"), "failed lookups keep the previous status")
	assert.Len(t, printer.printed, 1)
}

func TestRefresh_ListingErrorAborts(t *testing.T) {
	gh := newFakeGitHub()
	gh.listErr = errors.New("401 bad credentials")

	store := newMemStore()
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	report, err := svc.Refresh(context.Background(), application.RefreshOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing remote repositories")
	assert.Equal(t, application.StageIdle, report.Stage)
	assert.Equal(t, 0, store.puts)
	assert.Empty(t, printer.printed)
}

func TestRefresh_StoreErrorIsFatal(t *testing.T) {
	gh := newFakeGitHub()
	gh.withBuild(repoID("a"), checkRun("completed", "success"))

	store := newMemStore(model.Repository{Owner: "octocat", Name: "a"})
	store.setErr = errors.New("disk I/O error")
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	report, err := svc.Refresh(context.Background(), application.RefreshOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Equal(t, application.StageStatusesFetched, report.Stage)
	assert.Empty(t, printer.printed)
}

func TestPrint_DisplayOnly(t *testing.T) {
	gh := newFakeGitHub()
	store := newMemStore(
		model.Repository{Owner: "octocat", Name: "a", BuildStatus: model.BuildStatusSuccess},
		model.Repository{Owner: "octocat", Name: "b"},
	)
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)
	require.NoError(t, svc.Print(context.Background()))

	assert.Equal(t, int32(0), gh.listCalls.Load())
	assert.Equal(t, int32(0), gh.commitCalls.Load())
	assert.Equal(t, 0, store.puts)
	assert.Equal(t, 0, store.sets)
	require.Len(t, printer.printed, 1)
	assert.Len(t, printer.printed[0], 2)
}

func TestSync_KeepsStaleRows(t *testing.T) {
	gh := newFakeGitHub()
	gh.owned = []model.RepositoryDetail{ownedDetail("current")}

	store := newMemStore(model.Repository{Owner: "octocat", Name: "deleted-upstream", BuildStatus: model.BuildStatusSuccess})

	svc := application.NewDashboardService(gh, store, &recordingPrinter{}, "octocat", 2)
	n, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cached, err := store.GetRepositories(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestWatch_RefreshesUntilCancelled(t *testing.T) {
	gh := newFakeGitHub()
	gh.withBuild(repoID("a"), checkRun("completed", "success"))
	store := newMemStore(model.Repository{Owner: "octocat", Name: "a"})
	printer := &recordingPrinter{}

	svc := application.NewDashboardService(gh, store, printer, "octocat", 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cycles atomic.Int32
	before := func() {
		if cycles.Add(1) == 3 {
			cancel()
		}
	}

	err := svc.Watch(ctx, 5*time.Millisecond, application.RefreshOptions{}, before)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cycles.Load(), int32(3))
	assert.GreaterOrEqual(t, len(printer.printed), 2)
}

func TestDashboardStage_String(t *testing.T) {
	tests := []struct {
		stage application.DashboardStage
		want  string
	}{
		{application.StageIdle, "idle"},
		{application.StageListLoaded, "list_loaded"},
		{application.StageStatusesFetched, "statuses_fetched"},
		{application.StagePersisted, "persisted"},
		{application.StageRendered, "rendered"},
		{application.DashboardStage(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.stage.String())
	}
}

func TestDashboard_RequiresOwner(t *testing.T) {
	gh := newFakeGitHub()
	svc := application.NewDashboardService(gh, newMemStore(), &recordingPrinter{}, "", 2)

	report, err := svc.Refresh(context.Background(), application.RefreshOptions{})
	assert.ErrorIs(t, err, driven.ErrNotConfigured)
	assert.Equal(t, application.StageIdle, report.Stage)

	assert.ErrorIs(t, svc.Print(context.Background()), driven.ErrNotConfigured)

	_, err = svc.Sync(context.Background())
	assert.ErrorIs(t, err, driven.ErrNotConfigured)
	assert.Zero(t, gh.listCalls.Load())
}
