package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/dlbar/internal/progress"
	"github.com/tanq16/dlbar/internal/transfer"
	"github.com/tanq16/dlbar/internal/utils"
)

type outcomeReporter struct {
	mu       sync.Mutex
	inits    map[string]int
	outcomes map[string]progress.Outcome
}

func newOutcomeReporter() *outcomeReporter {
	return &outcomeReporter{inits: map[string]int{}, outcomes: map[string]progress.Outcome{}}
}

func (r *outcomeReporter) Init(id string, total int64, count int, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits[id] = count
}
func (r *outcomeReporter) Progress(id string, transferred, total int64, now time.Time) {}
func (r *outcomeReporter) Retry(id string, now time.Time, cause error) {}
func (r *outcomeReporter) Complete(id string, final int64, now time.Time, outcome progress.Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[id] = outcome
}

type fakeSource struct {
	active  atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
	failIDs map[string]bool
}

func (f *fakeSource) Download(ctx context.Context, job transfer.Job, r transfer.Reporter) error {
	f.calls.Add(1)
	n := f.active.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer f.active.Add(-1)
	r.Init(job.ID, 10, job.Count, time.Now())
	time.Sleep(10 * time.Millisecond)
	if f.failIDs[job.ID] {
		r.Complete(job.ID, 0, time.Now(), progress.OutcomeFailed, errors.New("boom"))
		return errors.New("boom")
	}
	r.Complete(job.ID, 10, time.Now(), progress.OutcomeOK, nil)
	return nil
}

func TestRun(t *testing.T) {
	entries := []utils.DownloadEntry{
		{OutputPath: "a", URL: "https://example.com/a"},
		{OutputPath: "b", URL: "http://example.com/b"},
		{OutputPath: "c", URL: "https://example.com/c"},
		{OutputPath: "d", URL: "https://example.com/d"},
	}
	src := &fakeSource{failIDs: map[string]bool{"c": true}}
	rep := newOutcomeReporter()
	err := Run(context.Background(), BuildJobs(entries), 2, map[string]transfer.Source{"http": src, "https": src}, rep)

	require.Error(t, err)
	assert.ErrorContains(t, err, "c: boom")
	assert.Equal(t, int32(4), src.calls.Load())
	assert.LessOrEqual(t, src.peak.Load(), int32(2))
	assert.Equal(t, progress.OutcomeOK, rep.outcomes["a"])
	assert.Equal(t, progress.OutcomeFailed, rep.outcomes["c"])
	assert.Equal(t, 4, rep.inits["d"])
}

func TestRunUnknownScheme(t *testing.T) {
	rep := newOutcomeReporter()
	jobs := BuildJobs([]utils.DownloadEntry{{OutputPath: "x", URL: "ftp://example.com/x"}})
	err := Run(context.Background(), jobs, 4, map[string]transfer.Source{}, rep)
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.Equal(t, progress.OutcomeFailed, rep.outcomes["x"])
}

func TestRunCancelledSkipsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{}
	jobs := BuildJobs([]utils.DownloadEntry{{OutputPath: "a", URL: "https://example.com/a"}})
	require.NoError(t, Run(ctx, jobs, 1, map[string]transfer.Source{"https": src}, newOutcomeReporter()))
	assert.Zero(t, src.calls.Load())
}

func TestBuildJobs(t *testing.T) {
	jobs := BuildJobs([]utils.DownloadEntry{
		{OutputPath: "same.bin", URL: "https://a/1"},
		{OutputPath: "same.bin", URL: "https://a/2"},
		{OutputPath: "other.bin", URL: "https://a/3"},
	})
	require.Len(t, jobs, 3)
	assert.Equal(t, "same.bin", jobs[0].ID)
	assert.Equal(t, "same.bin#2", jobs[1].ID)
	assert.Equal(t, 3, jobs[2].Index)
	assert.Equal(t, 3, jobs[2].Count)
}
