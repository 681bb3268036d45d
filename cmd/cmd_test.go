package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/dlbar/internal/progress"
	"github.com/tanq16/dlbar/internal/transfer"
)

type countingReporter struct {
	outcomes map[string]progress.Outcome
	retries  int
}

func (c *countingReporter) Init(id string, total int64, count int, now time.Time) {}
func (c *countingReporter) Progress(id string, transferred, total int64, now time.Time) {}
func (c *countingReporter) Retry(id string, now time.Time, cause error) { c.retries++ }
func (c *countingReporter) Complete(id string, final int64, now time.Time, outcome progress.Outcome, err error) {
	c.outcomes[id] = outcome
}

func TestLoadDisplayConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "display.yaml")
	require.NoError(t, os.WriteFile(path, []byte("total_width: 100\nsample_interval: 500ms\nshow_total: true\n"), 0644))

	cfg, err := loadDisplayConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.TotalWidth)
	assert.Equal(t, 500*time.Millisecond, cfg.SampleInterval)
	assert.True(t, cfg.ShowTotal)
	assert.Equal(t, progress.DefaultSmoothingWeight, cfg.SmoothingWeight)
	assert.True(t, cfg.PromoteCompleted)

	_, err = loadDisplayConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestCollectEntries(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "taken.bin")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))

	outputPath = existing
	t.Cleanup(func() { outputPath = "" })
	entries, err := collectEntries([]string{"https://example.com/taken.bin"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(dir, "taken-(1).bin"), entries[0].OutputPath)

	_, err = collectEntries([]string{"https://example.com/a", "https://example.com/b"})
	assert.Error(t, err)
}

func TestSyntheticSource(t *testing.T) {
	src := &syntheticSource{tick: time.Millisecond, failures: true}
	rep := &countingReporter{outcomes: map[string]progress.Outcome{}}
	jobs := []transfer.Job{
		{ID: "ok", URL: "demo://ok", Index: 1, Count: 5},
		{ID: "retry", URL: "demo://retry", Index: 3, Count: 5},
		{ID: "fail", URL: "demo://fail", Index: 5, Count: 5},
	}
	for _, job := range jobs {
		_ = src.Download(context.Background(), job, rep)
	}
	assert.Equal(t, progress.OutcomeOK, rep.outcomes["ok"])
	assert.Equal(t, progress.OutcomeOK, rep.outcomes["retry"])
	assert.Equal(t, progress.OutcomeFailed, rep.outcomes["fail"])
	assert.Equal(t, 1, rep.retries)
}
