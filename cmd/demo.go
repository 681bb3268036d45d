package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/dlbar/internal/output"
	"github.com/tanq16/dlbar/internal/progress"
	"github.com/tanq16/dlbar/internal/scheduler"
	"github.com/tanq16/dlbar/internal/transfer"
	"github.com/tanq16/dlbar/internal/utils"
)

var errSyntheticReset = errors.New("synthetic connection reset")

// syntheticSource feeds made-up transfers through the same reporter path as
// real downloads.
type syntheticSource struct {
	tick     time.Duration
	failures bool
}

func (s *syntheticSource) Download(ctx context.Context, job transfer.Job, r transfer.Reporter) error {
	rng := rand.New(rand.NewPCG(uint64(job.Index), uint64(len(job.ID))))
	size := int64(rng.IntN(400)+50) * 1024 * 1024
	reported := size
	if job.Index%4 == 0 {
		reported = progress.UnknownSize
	}
	r.Init(job.ID, reported, job.Count, time.Now())

	step := size / int64(rng.IntN(50)+30)
	failAt := int64(-1)
	if s.failures && job.Index%5 == 0 {
		failAt = size / 3
	}
	retried := false
	var done int64
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for done < size {
		select {
		case <-ctx.Done():
			r.Complete(job.ID, done, time.Now(), progress.OutcomeAborted, ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
		done = min(done+step/2+rng.Int64N(step+1), size)
		if !retried && job.Index%3 == 0 && done > size/2 {
			retried = true
			r.Retry(job.ID, time.Now(), errSyntheticReset)
		}
		if failAt >= 0 && done >= failAt {
			r.Complete(job.ID, done, time.Now(), progress.OutcomeFailed, errSyntheticReset)
			return errSyntheticReset
		}
		r.Progress(job.ID, done, reported, time.Now())
	}
	r.Complete(job.ID, size, time.Now(), progress.OutcomeOK, nil)
	return nil
}

func newDemoCmd() *cobra.Command {
	var count, workers int
	var failures bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run synthetic downloads to preview the progress display",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := displayConfig(cmd)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			entries := make([]utils.DownloadEntry, count)
			for i := range entries {
				name := fmt.Sprintf("sample-%02d.iso", i+1)
				entries[i] = utils.DownloadEntry{URL: "demo://" + name, OutputPath: name}
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			display, err := output.NewDisplay(cfg, os.Stdout, logFile == "")
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			sources := map[string]transfer.Source{"demo": &syntheticSource{tick: 100 * time.Millisecond, failures: failures}}
			display.Start()
			err = scheduler.Run(ctx, scheduler.BuildJobs(entries), workers, sources, display)
			display.Stop()
			display.ShowSummary()
			if err != nil {
				output.PrintWarning("Demo finished with simulated failures")
			}
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 6, "Number of synthetic downloads")
	cmd.Flags().IntVarP(&workers, "workers", "w", 3, "Number of downloads running at once")
	cmd.Flags().BoolVar(&failures, "failures", true, "Make some downloads fail")
	return cmd
}
