//go:build !integration

package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"heystak-spider/internal/domain"
	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func makeItems(n, pageCount int) []*model.AdItem {
	items := make([]*model.AdItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &model.AdItem{
			AdArchiveID: string(rune('a'+i)) + "-ad",
			PageID:      string(rune('A' + i%pageCount)),
			PageName:    "Brand " + string(rune('A'+i%pageCount)),
			Body:        "some ad copy",
		})
	}
	return items
}

func newTestPipeline(repo *memJobRepo, sc *fakeScraper, an adapter.Analyzer, raw adapter.RawStore, ads adapter.AdStore, nf adapter.Notifier) *Pipeline {
	return NewPipeline(repo, sc, an, raw, ads, nf, time.Millisecond, 10, testLogger())
}

func TestPipelineHappyPath(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{
		URL: "https://example.com/ads", MaxItems: 10,
		SaveRaw: true, SaveStore: true, AutoAnalyze: true,
	})

	sc := &fakeScraper{
		statuses: []adapter.RunStatus{
			{State: adapter.RunStateRunning, ItemsProcessed: 4},
			{State: adapter.RunStateSucceeded},
		},
		items: makeItems(10, 2),
	}
	an := &fakeAnalyzer{failOn: map[int]bool{3: true, 7: true}}
	raw := newFakeRawStore()
	ads := newFakeAdStore()
	nf := &fakeNotifier{}

	p := newTestPipeline(repo, sc, an, raw, ads, nf)
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.Get(context.Background(), job.ID)
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Result == nil || got.Result.Scraped != 10 || got.Result.Analyzed != 8 || got.Result.Inserted != 10 {
		t.Fatalf("result = %+v", got.Result)
	}
	if !strings.Contains(got.Message, "10 scraped") || !strings.Contains(got.Message, "8 analyzed") {
		t.Fatalf("message = %q", got.Message)
	}
	if raw.batches[job.ID] != 10 {
		t.Fatalf("raw batch = %d items", raw.batches[job.ID])
	}
	if len(ads.inserted) != 10 {
		t.Fatalf("inserted %d ads", len(ads.inserted))
	}
	if len(nf.completed) != 1 || nf.completed[0] != job.ID {
		t.Fatalf("completion notifications: %v", nf.completed)
	}
}

func TestPipelineZeroResultsIsFailure(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{URL: "https://example.com", MaxItems: 5})

	sc := &fakeScraper{
		statuses: []adapter.RunStatus{{State: adapter.RunStateSucceeded}},
		items:    nil,
	}
	nf := &fakeNotifier{}
	p := newTestPipeline(repo, sc, nil, nil, nil, nf)

	err := p.Run(context.Background(), job)
	if !errors.Is(err, domain.ErrNoAdsFound) {
		t.Fatalf("err = %v, want ErrNoAdsFound", err)
	}
	if err.Error() != "No ads found" {
		t.Fatalf("error text = %q", err.Error())
	}
	if len(nf.failed) != 1 {
		t.Fatalf("failure notifications: %v", nf.failed)
	}
}

func TestPipelinePollTimeout(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{URL: "https://example.com", MaxItems: 5})

	sc := &fakeScraper{} // always running
	p := NewPipeline(repo, sc, nil, nil, nil, nil, time.Millisecond, 3, testLogger())

	err := p.Run(context.Background(), job)
	if !errors.Is(err, domain.ErrScrapeTimeout) {
		t.Fatalf("err = %v, want ErrScrapeTimeout", err)
	}
	if sc.polls != 3 {
		t.Fatalf("polled %d times, want 3", sc.polls)
	}
}

func TestPipelineRunFailureSurfacesProviderMessage(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{URL: "https://example.com", MaxItems: 5})

	sc := &fakeScraper{
		statuses: []adapter.RunStatus{{State: adapter.RunStateFailed, Message: "actor crashed"}},
	}
	p := newTestPipeline(repo, sc, nil, nil, nil, nil)

	err := p.Run(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "actor crashed") {
		t.Fatalf("err = %v", err)
	}
}

func TestPipelineUsageLimitMapsToQuotaMessage(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{URL: "https://example.com", MaxItems: 5})

	sc := &fakeScraper{submitErr: domain.ErrUsageLimit}
	p := newTestPipeline(repo, sc, nil, nil, nil, nil)

	err := p.Run(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("err = %v, want quota message", err)
	}
}

func TestPipelineContextCancelledDuringPoll(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{URL: "https://example.com", MaxItems: 5})

	sc := &fakeScraper{} // never finishes
	p := NewPipeline(repo, sc, nil, nil, nil, nil, 50*time.Millisecond, 100, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx, job); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPipelineRawStoreFailureDoesNotFailJob(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{
		URL: "https://example.com", MaxItems: 5, SaveRaw: true,
	})

	sc := &fakeScraper{
		statuses: []adapter.RunStatus{{State: adapter.RunStateSucceeded}},
		items:    makeItems(3, 1),
	}
	raw := newFakeRawStore()
	raw.err = errors.New("bucket gone")

	p := newTestPipeline(repo, sc, nil, raw, nil, nil)
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("raw store failure must not fail the job: %v", err)
	}
	got, _ := repo.Get(context.Background(), job.ID)
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestPipelinePerItemInsertFailuresAreCounted(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{
		URL: "https://example.com", MaxItems: 5, SaveStore: true,
	})

	items := makeItems(5, 1)
	sc := &fakeScraper{
		statuses: []adapter.RunStatus{{State: adapter.RunStateSucceeded}},
		items:    items,
	}
	ads := newFakeAdStore()
	ads.insertErrs[items[1].AdArchiveID] = errors.New("constraint violation")

	p := newTestPipeline(repo, sc, nil, nil, ads, nil)
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.Get(context.Background(), job.ID)
	if got.Result.Inserted != 4 {
		t.Fatalf("inserted = %d, want 4", got.Result.Inserted)
	}
	if !strings.Contains(got.Message, "1 failed") {
		t.Fatalf("message = %q", got.Message)
	}
}

func TestPipelineSideEffectsFireForPageJobs(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{
		URL: "https://example.com", MaxItems: 5, SaveStore: true, PageID: "A",
	})

	sc := &fakeScraper{
		statuses: []adapter.RunStatus{{State: adapter.RunStateSucceeded}},
		items:    makeItems(2, 1),
	}
	ads := newFakeAdStore()

	p := newTestPipeline(repo, sc, nil, nil, ads, nil)
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if len(ads.markedDone) != 1 || ads.markedDone[0] != "A" {
		t.Fatalf("marked done: %v", ads.markedDone)
	}
}

func TestPipelineNoSideEffectsWithoutInserts(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{
		URL: "https://example.com", MaxItems: 5, PageID: "A", // SaveStore off
	})

	sc := &fakeScraper{
		statuses: []adapter.RunStatus{{State: adapter.RunStateSucceeded}},
		items:    makeItems(2, 1),
	}
	ads := newFakeAdStore()

	p := newTestPipeline(repo, sc, nil, nil, ads, nil)
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if len(ads.markedDone) != 0 {
		t.Fatalf("side effects fired without inserts: %v", ads.markedDone)
	}
}

func TestAnalysisModeSelection(t *testing.T) {
	video := &model.AdItem{VideoURLs: []string{"v"}}
	image := &model.AdItem{ImageURLs: []string{"i"}}
	text := &model.AdItem{}
	both := &model.AdItem{VideoURLs: []string{"v"}, ImageURLs: []string{"i"}}

	tests := []struct {
		name    string
		jobMode string
		item    *model.AdItem
		want    model.AnalysisMode
	}{
		{"explicit text wins over video asset", "text", video, model.AnalysisModeText},
		{"explicit video", "video", text, model.AnalysisModeVideo},
		{"invalid mode falls back to assets", "bogus", image, model.AnalysisModeImage},
		{"video beats image", "", both, model.AnalysisModeVideo},
		{"image when no video", "", image, model.AnalysisModeImage},
		{"text when no assets", "", text, model.AnalysisModeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &model.Job{AnalysisMode: tt.jobMode}
			if got := analysisModeFor(job, tt.item); got != tt.want {
				t.Fatalf("mode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAnalyzeSkippedWhenDisabled(t *testing.T) {
	repo := newMemJobRepo()
	job, _ := repo.Create(context.Background(), model.JobSpec{
		URL: "https://example.com", MaxItems: 5, // AutoAnalyze off
	})

	an := &fakeAnalyzer{}
	sc := &fakeScraper{
		statuses: []adapter.RunStatus{{State: adapter.RunStateSucceeded}},
		items:    makeItems(3, 1),
	}
	p := newTestPipeline(repo, sc, an, nil, nil, nil)
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if an.calls != 0 {
		t.Fatalf("analyzer called %d times with auto_analyze off", an.calls)
	}
}
