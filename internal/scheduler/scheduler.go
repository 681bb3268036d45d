package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/dlbar/internal/output"
	"github.com/tanq16/dlbar/internal/progress"
	"github.com/tanq16/dlbar/internal/transfer"
	"github.com/tanq16/dlbar/internal/utils"
)

var ErrUnknownSource = errors.New("no source for URL scheme")

// Run downloads jobs on numWorkers goroutines. Each job goes to the source
// registered for its URL scheme. Failures are joined into the returned error.
func Run(ctx context.Context, jobs []transfer.Job, numWorkers int, sources map[string]transfer.Source, reporter transfer.Reporter) error {
	log := output.GetLogger("scheduler")
	numWorkers = max(min(numWorkers, len(jobs)), 1)

	jobCh := make(chan transfer.Job, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup
	for i := range numWorkers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobCh {
				if ctx.Err() != nil {
					log.Debug().Int("worker", workerID).Str("id", job.ID).Msg("skipping job after cancellation")
					continue
				}
				log.Debug().Int("worker", workerID).Str("id", job.ID).Int("index", job.Index).Msg("starting job")
				if err := processJob(ctx, job, sources, reporter); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", job.ID, err))
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func processJob(ctx context.Context, job transfer.Job, sources map[string]transfer.Source, reporter transfer.Reporter) error {
	scheme := ""
	if parsed, err := url.Parse(job.URL); err == nil {
		scheme = strings.ToLower(parsed.Scheme)
	}
	source, ok := sources[scheme]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownSource, scheme)
		now := time.Now()
		reporter.Init(job.ID, progress.UnknownSize, job.Count, now)
		reporter.Complete(job.ID, 0, now, progress.OutcomeFailed, err)
		return err
	}
	return source.Download(ctx, job, reporter)
}

// BuildJobs numbers entries for the "(i/n)" labels of a batch. Job IDs are
// the output paths, suffixed when a path repeats.
func BuildJobs(entries []utils.DownloadEntry) []transfer.Job {
	jobs := make([]transfer.Job, len(entries))
	seen := make(map[string]int)
	for i, e := range entries {
		id := e.OutputPath
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s#%d", id, n)
		}
		jobs[i] = transfer.Job{
			ID:         id,
			URL:        e.URL,
			OutputPath: e.OutputPath,
			Index:      i + 1,
			Count:      len(entries),
		}
	}
	return jobs
}
