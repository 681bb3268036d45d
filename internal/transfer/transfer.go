package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tanq16/dlbar/internal/progress"
	"github.com/tanq16/dlbar/internal/utils"
)

const progressInterval = 100 * time.Millisecond

var ErrRetriesExhausted = errors.New("download failed after retries")

// Reporter receives the lifecycle of each download. Implementations must be
// safe for concurrent use.
type Reporter interface {
	Init(id string, total int64, count int, now time.Time)
	Progress(id string, transferred, total int64, now time.Time)
	Retry(id string, now time.Time, cause error)
	Complete(id string, final int64, now time.Time, outcome progress.Outcome, err error)
}

type Job struct {
	ID         string
	URL        string
	OutputPath string
	Index      int
	Count      int
}

type Source interface {
	Download(ctx context.Context, job Job, r Reporter) error
}

// progressWriter counts bytes and forwards a running total to the reporter at
// most once per progressInterval.
type progressWriter struct {
	mu      sync.Mutex
	id      string
	total   int64
	written int64
	last    time.Time
	report  Reporter
	now     func() time.Time
}

func newProgressWriter(id string, total, written int64, r Reporter, now func() time.Time) *progressWriter {
	return &progressWriter{id: id, total: total, written: written, report: r, now: now}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.add(int64(len(b)))
	return len(b), nil
}

func (p *progressWriter) add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written += n
	now := p.now()
	if now.Sub(p.last) < progressInterval {
		return
	}
	p.last = now
	p.report.Progress(p.id, p.written, p.total, now)
}

func (p *progressWriter) flush() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.report.Progress(p.id, p.written, p.total, p.now())
	return p.written
}


func tempPartPath(outputPath string) (string, error) {
	tempDir := filepath.Join(filepath.Dir(outputPath), utils.TempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", fmt.Errorf("error creating temp directory: %v", err)
	}
	return filepath.Join(tempDir, uuid.NewString()+".part"), nil
}

// finish moves a completed part into place and reports the outcome.
func finish(ctx context.Context, job Job, r Reporter, tempPath string, final int64, now time.Time, err error) error {
	if err == nil {
		if dir := filepath.Dir(job.OutputPath); dir != "." {
			if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
				err = fmt.Errorf("error creating output directory: %v", mkErr)
			}
		}
	}
	if err == nil {
		if renameErr := os.Rename(tempPath, job.OutputPath); renameErr != nil {
			err = fmt.Errorf("error renaming (finalizing) output file: %v", renameErr)
		}
	}
	if err == nil {
		r.Complete(job.ID, final, now, progress.OutcomeOK, nil)
		return nil
	}
	os.Remove(tempPath)
	outcome := progress.OutcomeFailed
	if ctx.Err() != nil {
		outcome = progress.OutcomeAborted
		err = ctx.Err()
	}
	r.Complete(job.ID, final, now, outcome, err)
	return err
}
