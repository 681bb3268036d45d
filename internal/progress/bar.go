package progress

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column widths of the fixed part of a rendered line.
const (
	sizeCol    = 10
	rateCol    = 12
	etaCol     = 8
	percentCol = 4
	// separators: name|size|rate|eta|" ["bar"] "|percent
	fixedCols = 1 + sizeCol + 1 + rateCol + 1 + etaCol + 2 + 2 + percentCol
)

// ProgressBar is the state of one download. Once completed it is frozen.
type ProgressBar struct {
	ID string

	index int // 1-based position in the batch
	count int // size of the batch, 0 when unknown

	transferred int64
	totalSize   int64

	createdAt time.Time
	startTime time.Time
	started   bool

	rate     float64
	eta      time.Duration
	etaKnown bool

	completed bool
	outcome   Outcome
	avgRate   float64
	elapsed   time.Duration

	estimator *RateEstimator
}

// NewProgressBar creates an active bar with nothing transferred. The start
// time is only recorded once bytes start flowing.
func NewProgressBar(id string, totalSize int64, totalCount int, now time.Time, estimator *RateEstimator) *ProgressBar {
	if estimator == nil {
		estimator = NewRateEstimator(DefaultSmoothingWeight, DefaultSampleInterval)
	}
	if totalSize < 0 {
		totalSize = UnknownSize
	}
	return &ProgressBar{
		ID:        id,
		count:     max(totalCount, 0),
		totalSize: totalSize,
		createdAt: now,
		estimator: estimator,
	}
}

// Reinit overwrites size and batch count but keeps the transferred bytes.
func (b *ProgressBar) Reinit(totalSize int64, totalCount int) error {
	if b.completed {
		return fmt.Errorf("%w: init for completed download %q", ErrInvalidTransition, b.ID)
	}
	if totalSize < 0 {
		totalSize = UnknownSize
	}
	b.totalSize = totalSize
	b.count = max(totalCount, 0)
	b.eta, b.etaKnown = remaining(b.rate, b.transferred, b.totalSize)
	return nil
}

// DiscoverSize fills in the total size if it was not known yet.
func (b *ProgressBar) DiscoverSize(totalSize int64) {
	if b.completed || b.totalSize >= 0 || totalSize < 0 {
		return
	}
	b.totalSize = totalSize
	b.eta, b.etaKnown = remaining(b.rate, b.transferred, b.totalSize)
}

// Advance records the cumulative byte count at now. A value lower than the
// current one is clamped and reported with ErrNonMonotonicProgress.
func (b *ProgressBar) Advance(transferred int64, now time.Time) error {
	if b.completed {
		return fmt.Errorf("%w: progress for completed download %q", ErrInvalidTransition, b.ID)
	}
	var errs []error
	if transferred < b.transferred {
		errs = append(errs, fmt.Errorf("%w: %q went from %d to %d", ErrNonMonotonicProgress, b.ID, b.transferred, transferred))
		transferred = b.transferred
	}
	if !b.started && transferred > 0 {
		b.started = true
		b.startTime = now
	}
	b.transferred = transferred
	est, err := b.estimator.Sample(now, transferred, b.totalSize)
	if err != nil {
		errs = append(errs, err)
	}
	b.rate = est.Rate
	b.eta, b.etaKnown = est.ETA, est.ETAKnown
	return errors.Join(errs...)
}

// Retry drops the timing baseline so the pause before a retry is not counted
// against the rate. Transferred bytes are kept.
func (b *ProgressBar) Retry(now time.Time) error {
	if b.completed {
		return fmt.Errorf("%w: retry for completed download %q", ErrInvalidTransition, b.ID)
	}
	b.estimator.Reset()
	b.rate = 0
	b.eta, b.etaKnown = 0, false
	b.startTime = now
	b.started = b.transferred > 0
	return nil
}

// Complete freezes the bar. Rate and ETA keep their last values; the average
// rate and elapsed time are computed for the final line.
func (b *ProgressBar) Complete(final int64, now time.Time, outcome Outcome) error {
	if b.completed {
		return fmt.Errorf("%w: download %q already completed", ErrInvalidTransition, b.ID)
	}
	var err error
	if final < b.transferred {
		err = fmt.Errorf("%w: %q completed at %d below %d", ErrNonMonotonicProgress, b.ID, final, b.transferred)
		final = b.transferred
	}
	b.transferred = final
	if outcome == OutcomeOK && b.totalSize < 0 {
		b.totalSize = final
	}
	start := b.createdAt
	if b.started {
		start = b.startTime
	}
	b.elapsed = max(now.Sub(start), 0)
	if b.elapsed > 0 {
		b.avgRate = float64(final) / b.elapsed.Seconds()
	} else {
		b.avgRate = b.rate
	}
	b.completed = true
	b.outcome = outcome
	return err
}

func (b *ProgressBar) Index() int { return b.index }
func (b *ProgressBar) Count() int { return b.count }
func (b *ProgressBar) Transferred() int64 { return b.transferred }
func (b *ProgressBar) TotalSize() int64 { return b.totalSize }
func (b *ProgressBar) Rate() float64 { return b.rate }
func (b *ProgressBar) ETA() (time.Duration, bool) { return b.eta, b.etaKnown }
func (b *ProgressBar) Completed() bool { return b.completed }
func (b *ProgressBar) Outcome() Outcome { return b.outcome }
func (b *ProgressBar) AverageRate() float64 { return b.avgRate }
func (b *ProgressBar) Elapsed() time.Duration { return b.elapsed }

func (b *ProgressBar) label() string {
	if b.count <= 0 {
		return b.ID
	}
	n := strconv.Itoa(b.count)
	return fmt.Sprintf("(%*d/%s) %s", len(n), b.index, n, b.ID)
}

// Render formats the bar as one line of exactly width columns. It has no side
// effects and may be called any number of times.
func (b *ProgressBar) Render(width int) string {
	width = max(width, MinTotalWidth)
	if b.completed && b.outcome != OutcomeOK {
		msg := "failed to download"
		if b.outcome == OutcomeAborted {
			msg = "download aborted"
		}
		return fitRight(b.label()+" "+msg, width)
	}

	flexible := width - fixedCols
	nameWidth := flexible * 55 / 100
	fillWidth := flexible - nameWidth

	rate, eta, etaKnown := b.rate, b.eta, b.etaKnown
	if b.completed {
		rate, eta, etaKnown = b.avgRate, b.elapsed, true
	}

	var fraction float64
	percent := "---%"
	switch {
	case b.totalSize > 0:
		fraction = float64(b.transferred) / float64(b.totalSize)
		percent = fmt.Sprintf("%3d%%", min(int(fraction*100), 100))
	case b.totalSize == 0 || b.completed:
		fraction = 1
		percent = "100%"
	}

	var sb strings.Builder
	sb.WriteString(fitLeft(b.label(), nameWidth))
	fmt.Fprintf(&sb, " %*s", sizeCol, FormatBytes(b.transferred))
	fmt.Fprintf(&sb, " %*s", rateCol, FormatRate(rate))
	fmt.Fprintf(&sb, " %*s", etaCol, FormatETA(eta, etaKnown))
	sb.WriteString(" [")
	sb.WriteString(fillBar(fraction, fillWidth))
	sb.WriteString("] ")
	sb.WriteString(percent)
	return sb.String()
}

// Snapshot is a read-only copy of a bar.
type Snapshot struct {
	ID          string
	Index       int
	Count       int
	Transferred int64
	TotalSize   int64
	Rate        float64
	ETA         time.Duration
	ETAKnown    bool
	Completed   bool
	Outcome     Outcome
	AverageRate float64
	Elapsed     time.Duration
}

func (b *ProgressBar) Snapshot() Snapshot {
	return Snapshot{
		ID:          b.ID,
		Index:       b.index,
		Count:       b.count,
		Transferred: b.transferred,
		TotalSize:   b.totalSize,
		Rate:        b.rate,
		ETA:         b.eta,
		ETAKnown:    b.etaKnown,
		Completed:   b.completed,
		Outcome:     b.outcome,
		AverageRate: b.avgRate,
		Elapsed:     b.elapsed,
	}
}
