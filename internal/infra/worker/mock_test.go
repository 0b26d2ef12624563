//go:build !integration

package worker

import (
	"context"
	"fmt"
	"sync"

	"heystak-spider/internal/domain"
	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
)

// --- In-memory job repository ---

type memJobRepo struct {
	mu    sync.Mutex
	jobs  map[string]*model.Job
	queue []string
	seq   int

	failClaims bool
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*model.Job)}
}

func (m *memJobRepo) Create(ctx context.Context, spec model.JobSpec) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job := model.NewJob(fmt.Sprintf("job-%d", m.seq), spec)
	m.jobs[job.ID] = job
	m.queue = append(m.queue, job.ID)
	return cloneJob(job), nil
}

func (m *memJobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (m *memJobRepo) ClaimNextQueued(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failClaims {
		return "", domain.ErrStoreUnavailable
	}
	if len(m.queue) == 0 {
		return "", nil
	}
	id := m.queue[0]
	m.queue = m.queue[1:]
	return id, nil
}

func (m *memJobRepo) Update(ctx context.Context, id string, patch model.JobPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Apply(patch)
	return nil
}

func (m *memJobRepo) UpdateProgress(ctx context.Context, id string, patch model.ProgressPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.ApplyProgress(patch)
	return nil
}

func (m *memJobRepo) SetRunning(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !job.Status.CanTransition(model.JobStatusRunning) {
		return domain.ErrNotQueued
	}
	job.Status = model.JobStatusRunning
	return nil
}

func (m *memJobRepo) SetCompleted(ctx context.Context, id string, result *model.RunSummary, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = model.JobStatusCompleted
	job.Result = result
	job.Message = message
	job.Error = ""
	return nil
}

func (m *memJobRepo) SetFailed(ctx context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = model.JobStatusFailed
	job.Error = errMsg
	return nil
}

func (m *memJobRepo) List(ctx context.Context, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, cloneJob(j))
	}
	return out, nil
}

func (m *memJobRepo) Stats(ctx context.Context) (model.Stats, error) {
	return model.Stats{}, nil
}

func (m *memJobRepo) Cancel(ctx context.Context, id string) error  { return nil }
func (m *memJobRepo) Requeue(ctx context.Context, id string) error { return nil }
func (m *memJobRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}
func (m *memJobRepo) ClearTerminal(ctx context.Context, status model.JobStatus) (int, error) {
	return 0, nil
}

func (m *memJobRepo) status(id string) model.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		return j.Status
	}
	return ""
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	return &c
}

// --- Scrape provider fake ---

type fakeScraper struct {
	mu        sync.Mutex
	submitErr error
	statuses  []adapter.RunStatus // consumed one per poll; last repeats
	pollErr   error
	items     []*model.AdItem
	fetchErr  error
	polls     int
}

func (f *fakeScraper) Submit(ctx context.Context, req adapter.ScrapeRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "run-1", nil
}

func (f *fakeScraper) PollStatus(ctx context.Context, runID string) (adapter.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return adapter.RunStatus{}, f.pollErr
	}
	f.polls++
	if len(f.statuses) == 0 {
		return adapter.RunStatus{State: adapter.RunStateRunning}, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st, nil
}

func (f *fakeScraper) FetchResults(ctx context.Context, runID string) ([]*model.AdItem, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.items, nil
}

// --- Analyzer fake ---

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool // 1-based call index -> return error
	result *model.AdAnalysis
}

func (f *fakeAnalyzer) AnalyzeAd(ctx context.Context, item *model.AdItem, mode model.AnalysisMode) (*model.AdAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn[f.calls] {
		return nil, fmt.Errorf("analysis blew up on call %d", f.calls)
	}
	if f.result != nil {
		return f.result, nil
	}
	return &model.AdAnalysis{Mode: mode, Hook: "hook for " + item.AdArchiveID}, nil
}

// --- Ad store fake ---

type fakeAdStore struct {
	mu         sync.Mutex
	brands     map[string]string
	inserted   []string
	insertErrs map[string]error
	markedDone []string
	upsertErr  error
}

func newFakeAdStore() *fakeAdStore {
	return &fakeAdStore{brands: make(map[string]string), insertErrs: make(map[string]error)}
}

func (f *fakeAdStore) UpsertBrand(ctx context.Context, pageID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	id, ok := f.brands[pageID]
	if !ok {
		id = "brand-" + pageID
		f.brands[pageID] = id
	}
	return id, nil
}

func (f *fakeAdStore) InsertAd(ctx context.Context, brandID string, item *model.AdItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertErrs[item.AdArchiveID]; err != nil {
		return err
	}
	f.inserted = append(f.inserted, item.AdArchiveID)
	return nil
}

func (f *fakeAdStore) MarkScrapeRequestDone(ctx context.Context, pageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedDone = append(f.markedDone, pageID)
	return nil
}

// --- Raw store fake ---

type fakeRawStore struct {
	mu      sync.Mutex
	batches map[string]int
	err     error
}

func newFakeRawStore() *fakeRawStore {
	return &fakeRawStore{batches: make(map[string]int)}
}

func (f *fakeRawStore) SaveBatch(ctx context.Context, jobID string, items []*model.AdItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches[jobID] = len(items)
	return nil
}

// --- Notifier fake ---

type fakeNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (f *fakeNotifier) NotifyJobCompleted(ctx context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, job.ID)
	return nil
}

func (f *fakeNotifier) NotifyJobFailed(ctx context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, job.ID)
	return nil
}
