package progress

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

const totalBarID = "Total"

// Coordinator owns the bars of one display session and turns events into the
// minimal set of line redraws. It is not safe for concurrent use: callers must
// serialize events.
type Coordinator struct {
	cfg      Config
	renderer Renderer
	log      zerolog.Logger

	bars  []*ProgressBar // arena, one slot per download ever seen
	index map[string]int // id -> arena slot
	order []int          // arena slots of active bars, top line first

	needsReorder bool
	promoteFrom  int

	// cursorLine is relative to the first active bar. The park line,
	// len(order)+footer, is where non-bar output may be written.
	cursorLine int
	inits      int
	completed  int

	totalBar *ProgressBar
	degraded bool
}

func NewCoordinator(cfg Config, renderer Renderer, logger zerolog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		cfg:      cfg,
		renderer: renderer,
		log:      logger,
		index:    make(map[string]int),
	}
	if cfg.ShowTotal {
		c.totalBar = NewProgressBar(totalBarID, 0, 0, time.Time{}, NewRateEstimator(cfg.SmoothingWeight, cfg.SampleInterval))
	}
	return c, nil
}

// HandleEvent applies one event and redraws what changed. Events that target
// an unknown or completed download are dropped without drawing anything and
// reported as ErrInvalidTransition. Clamped progress and clock anomalies are
// applied and reported alongside. A renderer failure is returned as
// ErrRenderTargetUnavailable and turns all later drawing into a no-op.
func (c *Coordinator) HandleEvent(ev Event) error {
	c.settle()

	var dirty []int
	var err error
	switch ev.Kind {
	case EventInit:
		dirty, err = c.onInit(ev)
	case EventProgress:
		dirty, err = c.onProgress(ev)
	case EventRetry:
		dirty, err = c.onRetry(ev)
	case EventComplete:
		dirty, err = c.onComplete(ev)
	default:
		err = fmt.Errorf("%w: unknown event kind %d for %q", ErrInvalidTransition, int(ev.Kind), ev.ID)
	}
	if err != nil {
		c.log.Debug().Str("id", ev.ID).Str("event", ev.Kind.String()).Err(err).Msg("event anomaly")
	}
	if errors.Is(err, ErrInvalidTransition) {
		return err
	}
	if c.needsReorder {
		dirty = c.promote()
	}
	c.updateTotal(ev.Time)
	return errors.Join(err, c.redraw(dirty))
}

func (c *Coordinator) onInit(ev Event) ([]int, error) {
	if slot, ok := c.index[ev.ID]; ok {
		bar := c.bars[slot]
		if err := bar.Reinit(ev.Total, ev.Count); err != nil {
			return nil, err
		}
		return c.dirtyLine(slot), nil
	}
	c.inits++
	bar := NewProgressBar(ev.ID, ev.Total, ev.Count, ev.Time, NewRateEstimator(c.cfg.SmoothingWeight, c.cfg.SampleInterval))
	bar.index = c.inits
	c.bars = append(c.bars, bar)
	slot := len(c.bars) - 1
	c.index[ev.ID] = slot
	c.order = append(c.order, slot)
	return []int{len(c.order) - 1}, nil
}

func (c *Coordinator) onProgress(ev Event) ([]int, error) {
	bar, slot, err := c.lookup(ev)
	if err != nil {
		return nil, err
	}
	if ev.Total > 0 {
		bar.DiscoverSize(ev.Total)
	}
	if err := bar.Advance(ev.Transferred, ev.Time); err != nil {
		return c.dirtyLine(slot), err
	}
	return c.dirtyLine(slot), nil
}

func (c *Coordinator) onRetry(ev Event) ([]int, error) {
	bar, slot, err := c.lookup(ev)
	if err != nil {
		return nil, err
	}
	if err := bar.Retry(ev.Time); err != nil {
		return nil, err
	}
	c.log.Debug().Str("id", ev.ID).Int64("transferred", bar.Transferred()).Msg("download retrying")
	return c.dirtyLine(slot), nil
}

func (c *Coordinator) onComplete(ev Event) ([]int, error) {
	bar, slot, err := c.lookup(ev)
	if err != nil {
		return nil, err
	}
	cerr := bar.Complete(ev.Transferred, ev.Time, ev.Outcome)
	if errors.Is(cerr, ErrInvalidTransition) {
		return nil, cerr
	}
	c.completed++
	pos := slices.Index(c.order, slot)
	if c.cfg.PromoteCompleted && pos > 0 {
		c.needsReorder = true
		c.promoteFrom = pos
	}
	return []int{pos}, cerr
}

func (c *Coordinator) lookup(ev Event) (*ProgressBar, int, error) {
	slot, ok := c.index[ev.ID]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s for unknown download %q", ErrInvalidTransition, ev.Kind, ev.ID)
	}
	bar := c.bars[slot]
	if bar.completed {
		return nil, 0, fmt.Errorf("%w: %s for completed download %q", ErrInvalidTransition, ev.Kind, ev.ID)
	}
	return bar, slot, nil
}

func (c *Coordinator) dirtyLine(slot int) []int {
	if pos := slices.Index(c.order, slot); pos >= 0 {
		return []int{pos}
	}
	return nil
}

// promote rotates the completed bar to line 0. Every bar above it shifts down
// one line and keeps its relative order. All touched lines are returned.
func (c *Coordinator) promote() []int {
	k := c.promoteFrom
	c.needsReorder = false
	slot := c.order[k]
	copy(c.order[1:k+1], c.order[:k])
	c.order[0] = slot
	lines := make([]int, k+1)
	for i := range lines {
		lines[i] = i
	}
	c.log.Debug().Str("id", c.bars[slot].ID).Int("from", k).Msg("completed bar promoted")
	return lines
}

// settle drops the leading run of completed bars. They were drawn for the last
// time when they completed and stay on screen above the active region, so the
// cursor offset shrinks by the same number of lines.
func (c *Coordinator) settle() {
	n := 0
	for n < len(c.order) && c.bars[c.order[n]].completed {
		n++
	}
	if n == 0 {
		return
	}
	c.order = c.order[n:]
	c.cursorLine -= n
}

func (c *Coordinator) footer() int {
	if c.totalBar != nil && c.inits > 0 {
		return 1
	}
	return 0
}

func (c *Coordinator) parkLine() int {
	return len(c.order) + c.footer()
}

func (c *Coordinator) updateTotal(now time.Time) {
	if c.totalBar == nil || c.inits == 0 {
		return
	}
	var transferred, size int64
	known := false
	for _, bar := range c.bars {
		transferred += bar.transferred
		if bar.totalSize >= 0 {
			size += bar.totalSize
			known = true
		}
	}
	if !known {
		size = UnknownSize
	}
	c.totalBar.index = c.completed
	if err := c.totalBar.Reinit(size, c.inits); err != nil {
		return
	}
	if err := c.totalBar.Advance(transferred, now); err != nil {
		c.log.Debug().Err(err).Msg("total bar sample skipped")
	}
}

func (c *Coordinator) redraw(dirty []int) error {
	park := c.parkLine()
	if !c.cfg.DisplayEnabled || c.degraded || c.renderer == nil {
		c.cursorLine = park
		return nil
	}
	lines := slices.Clone(dirty)
	if c.footer() == 1 {
		lines = append(lines, len(c.order))
	}
	slices.Sort(lines)
	lines = slices.Compact(lines)

	for _, line := range lines {
		if line < 0 {
			continue
		}
		if err := c.renderer.DrawLine(line-c.cursorLine, c.lineText(line)); err != nil {
			return c.fail(err)
		}
		c.cursorLine = line
		if err := c.renderer.ClearToEndOfLine(); err != nil {
			return c.fail(err)
		}
	}
	if park != c.cursorLine {
		if err := c.renderer.MoveCursor(park - c.cursorLine); err != nil {
			return c.fail(err)
		}
		c.cursorLine = park
	}
	if err := c.renderer.Flush(); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Coordinator) lineText(line int) string {
	if line < len(c.order) {
		return c.bars[c.order[line]].Render(c.cfg.TotalWidth)
	}
	return c.totalBar.Render(c.cfg.TotalWidth)
}

func (c *Coordinator) fail(err error) error {
	c.degraded = true
	c.log.Warn().Err(err).Msg("progress display disabled")
	return fmt.Errorf("%w: %w", ErrRenderTargetUnavailable, err)
}

// Order returns the ids of the active bars, top line first.
func (c *Coordinator) Order() []string {
	ids := make([]string, len(c.order))
	for i, slot := range c.order {
		ids[i] = c.bars[slot].ID
	}
	return ids
}

func (c *Coordinator) ActiveCount() int { return len(c.order) }

func (c *Coordinator) CursorLine() int { return c.cursorLine }

func (c *Coordinator) Degraded() bool { return c.degraded }

// Snapshot returns a copy of the state of one download.
func (c *Coordinator) Snapshot(id string) (Snapshot, bool) {
	slot, ok := c.index[id]
	if !ok {
		return Snapshot{}, false
	}
	return c.bars[slot].Snapshot(), true
}

// Snapshots returns every download seen in this session, in init order.
func (c *Coordinator) Snapshots() []Snapshot {
	out := make([]Snapshot, len(c.bars))
	for i, bar := range c.bars {
		out[i] = bar.Snapshot()
	}
	return out
}

// TotalSnapshot reports the aggregate bar, if enabled.
func (c *Coordinator) TotalSnapshot() (Snapshot, bool) {
	if c.totalBar == nil {
		return Snapshot{}, false
	}
	return c.totalBar.Snapshot(), true
}
