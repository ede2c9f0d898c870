package application_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
	"github.com/ericfisherdev/shub/internal/pagination"
)

// --- Mock implementations ---

// fakeGitHub is an in-memory GitHubClient. It is safe for concurrent use.
type fakeGitHub struct {
	mu sync.Mutex

	owned    []model.RepositoryDetail
	starred  []model.RepositoryDetail
	pageSize int
	listErr  error

	commits   map[model.RepoID]*model.Commit
	commitErr map[model.RepoID]error
	runs      map[string][]model.CheckRun // Keyed by commit SHA.

	details  map[model.RepoID]*model.RepositoryDetail
	updated  map[model.RepoID]model.RepositorySettings
	updErr   map[model.RepoID]error
	forked   []model.RepoID
	workflow []model.WorkflowRun
	deleted  []int64
	delErr   map[int64]error

	listCalls   atomic.Int32
	commitCalls atomic.Int32
}

var _ driven.GitHubClient = (*fakeGitHub)(nil)

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		pageSize:  2,
		commits:   map[model.RepoID]*model.Commit{},
		commitErr: map[model.RepoID]error{},
		runs:      map[string][]model.CheckRun{},
		details:   map[model.RepoID]*model.RepositoryDetail{},
		updated:   map[model.RepoID]model.RepositorySettings{},
		updErr:    map[model.RepoID]error{},
		delErr:    map[int64]error{},
	}
}

// withBuild registers a latest commit for id with the given check runs.
func (f *fakeGitHub) withBuild(id model.RepoID, runs ...model.CheckRun) {
	sha := "sha-" + id.Name
	f.commits[id] = &model.Commit{SHA: sha}
	f.runs[sha] = runs
}

func pagedStream[T any](items []T, size int, err error) *pagination.Stream[T] {
	return pagination.New(func(_ context.Context, cursor pagination.Cursor) (pagination.Page[T], error) {
		if err != nil {
			return pagination.Page[T]{}, err
		}
		page := cursor.Page()
		if page == 0 {
			page = 1
		}
		start := min((page-1)*size, len(items))
		end := min(start+size, len(items))
		return pagination.Page[T]{Items: items[start:end], HasMore: end < len(items)}, nil
	})
}

func (f *fakeGitHub) ListOwnedRepositories() *pagination.Stream[model.RepositoryDetail] {
	f.listCalls.Add(1)
	return pagedStream(f.owned, f.pageSize, f.listErr)
}

func (f *fakeGitHub) GetLatestCommit(_ context.Context, id model.RepoID) (*model.Commit, error) {
	f.commitCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.commitErr[id]; err != nil {
		return nil, err
	}
	return f.commits[id], nil
}

func (f *fakeGitHub) FetchCheckRuns(_ context.Context, _ model.RepoID, ref string) ([]model.CheckRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[ref], nil
}

func (f *fakeGitHub) AuthenticatedUser(_ context.Context) (string, error) {
	return "octocat", nil
}

func (f *fakeGitHub) GetRepository(_ context.Context, id model.RepoID) (*model.RepositoryDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("fetching repository %s: %w", id, driven.ErrRepoNotFound)
	}
	return d, nil
}

func (f *fakeGitHub) UpdateRepositorySettings(_ context.Context, id model.RepoID, settings model.RepositorySettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updErr[id]; err != nil {
		return err
	}
	f.updated[id] = settings
	return nil
}

func (f *fakeGitHub) CreateFork(_ context.Context, id model.RepoID) (*model.RepositoryDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forked = append(f.forked, id)
	return &model.RepositoryDetail{ID: model.RepoID{Owner: "octocat", Name: id.Name}, IsFork: true}, nil
}

func (f *fakeGitHub) ListStarredRepositories() *pagination.Stream[model.RepositoryDetail] {
	return pagedStream(f.starred, f.pageSize, nil)
}

func (f *fakeGitHub) ListWorkflowRuns(_ model.RepoID) *pagination.Stream[model.WorkflowRun] {
	return pagedStream(f.workflow, f.pageSize, nil)
}

func (f *fakeGitHub) DeleteWorkflowRun(_ context.Context, _ model.RepoID, runID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.delErr[runID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, runID)
	return nil
}

// memStore is an in-memory RepoStore with the same replace and selective
// update semantics as the SQLite cache.
type memStore struct {
	mu     sync.Mutex
	rows   map[model.RepoID]model.Repository
	puts   int
	sets   int
	setErr error
}

var _ driven.RepoStore = (*memStore)(nil)

func newMemStore(repos ...model.Repository) *memStore {
	s := &memStore{rows: map[model.RepoID]model.Repository{}}
	for _, r := range repos {
		s.rows[r.ID()] = r
	}
	return s
}

func (s *memStore) PutRepositories(_ context.Context, repos []model.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	for _, r := range repos {
		s.rows[r.ID()] = r
	}
	return nil
}

func (s *memStore) GetRepositories(_ context.Context, owner string) ([]model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Repository
	for _, r := range s.rows {
		if strings.EqualFold(r.Owner, owner) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) SetBuildStatuses(_ context.Context, statuses []model.RepoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	for _, st := range statuses {
		if r, ok := s.rows[st.ID]; ok {
			r.BuildStatus = st.Status
			s.rows[st.ID] = r
		}
	}
	return nil
}

func (s *memStore) status(owner, name string) model.BuildStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[model.RepoID{Owner: owner, Name: name}].BuildStatus
}

// recordingPrinter captures every dashboard it is asked to print.
type recordingPrinter struct {
	printed [][]model.Repository
}

func (p *recordingPrinter) PrintDashboard(repos []model.Repository) error {
	p.printed = append(p.printed, repos)
	return nil
}

type fakeCloner struct {
	url, dir string
	err      error
}

func (c *fakeCloner) Clone(_ context.Context, url, dir string) error {
	c.url, c.dir = url, dir
	return c.err
}

type fakeBrowser struct {
	opened []string
}

func (b *fakeBrowser) Browse(url string) error {
	b.opened = append(b.opened, url)
	return nil
}

func repoID(name string) model.RepoID {
	return model.RepoID{Owner: "octocat", Name: name}
}

func ownedDetail(name string) model.RepositoryDetail {
	return model.RepositoryDetail{ID: repoID(name)}
}

func checkRun(status, conclusion string) model.CheckRun {
	return model.CheckRun{Name: "ci", Status: status, Conclusion: conclusion}
}
