package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tanq16/dlbar/internal/progress"
)

const eventBuffer = 256

type ErrorReport struct {
	Name  string
	Error error
	Time  time.Time
}

// Display is one progress session. Transfer goroutines report through it from
// any goroutine; a single consumer applies events to the coordinator in the
// order they were queued.
type Display struct {
	cfg   progress.Config
	coord *progress.Coordinator
	term  *Terminal
	out   io.Writer
	log   zerolog.Logger
	held  *heldWriter

	events    chan progress.Event
	mutex     sync.RWMutex
	closed    bool
	displayWg sync.WaitGroup

	warned   map[error]bool
	errMutex sync.Mutex
	errors   []ErrorReport
}

// NewDisplay builds a session drawing to out. With holdLogs set and the
// display enabled, log output is buffered until Stop so it cannot tear the bars.
func NewDisplay(cfg progress.Config, out io.Writer, holdLogs bool) (*Display, error) {
	d := &Display{
		cfg:    cfg,
		term:   NewTerminal(out),
		out:    out,
		events: make(chan progress.Event, eventBuffer),
		warned: make(map[error]bool),
	}
	if holdLogs && cfg.DisplayEnabled {
		d.held = newHeldWriter(os.Stderr)
		SetLogOutput(d.held)
	}
	session := uuid.NewString()
	d.log = GetLogger("display").With().Str("session", session[:8]).Logger()
	coord, err := progress.NewCoordinator(cfg, d.term, GetLogger("multibar").With().Str("session", session[:8]).Logger())
	if err != nil {
		if d.held != nil {
			_ = d.held.Release()
		}
		return nil, fmt.Errorf("invalid display config: %w", err)
	}
	d.coord = coord
	return d, nil
}

func (d *Display) Start() {
	d.displayWg.Add(1)
	go func() {
		defer d.displayWg.Done()
		for ev := range d.events {
			d.handle(ev)
		}
	}()
}

// Stop drains queued events, waits for the consumer and releases held logs.
// Events sent afterwards are discarded.
func (d *Display) Stop() {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mutex.Unlock()
	d.displayWg.Wait()
	if d.held != nil {
		if err := d.held.Release(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to release logs: %v\n", err)
		}
	}
}

func (d *Display) Send(ev progress.Event) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if d.closed {
		return
	}
	d.events <- ev
}

func (d *Display) handle(ev progress.Event) {
	_, known := d.coord.Snapshot(ev.ID)
	err := d.coord.HandleEvent(ev)
	d.noteError(ev, err)
	if d.cfg.DisplayEnabled || errors.Is(err, progress.ErrInvalidTransition) {
		return
	}
	// without bars, print one line per start and finish
	switch ev.Kind {
	case progress.EventInit:
		if !known {
			fmt.Fprintf(d.out, " %s %s downloading...\n", FPending(StyleSymbols["pending"]), ev.ID)
		}
	case progress.EventComplete:
		fmt.Fprintf(d.out, " %s %s\n", d.statusSymbol(ev.Outcome), ev.ID)
	}
}

var reportedKinds = []error{
	progress.ErrRenderTargetUnavailable,
	progress.ErrClockAnomaly,
	progress.ErrNonMonotonicProgress,
	progress.ErrInvalidTransition,
}

// noteError logs the first occurrence of each error kind; the coordinator
// already logs every occurrence at debug level.
func (d *Display) noteError(ev progress.Event, err error) {
	if err == nil {
		return
	}
	for _, kind := range reportedKinds {
		if !errors.Is(err, kind) || d.warned[kind] {
			continue
		}
		d.warned[kind] = true
		if kind == progress.ErrRenderTargetUnavailable {
			d.log.Warn().Err(err).Msg("progress display stopped, downloads continue")
			continue
		}
		d.log.Info().Str("id", ev.ID).Str("event", ev.Kind.String()).Err(err).Msg("progress event not applied cleanly")
	}
}

func (d *Display) statusSymbol(outcome progress.Outcome) string {
	switch outcome {
	case progress.OutcomeOK:
		return FSuccess(StyleSymbols["pass"])
	case progress.OutcomeAborted:
		return FWarning(StyleSymbols["warning"])
	default:
		return FError(StyleSymbols["fail"])
	}
}

// Init, Progress, Retry and Complete let the display act as a transfer reporter.

func (d *Display) Init(id string, total int64, count int, now time.Time) {
	d.Send(progress.InitEvent(id, total, count, now))
}

func (d *Display) Progress(id string, transferred, total int64, now time.Time) {
	ev := progress.ProgressEvent(id, transferred, now)
	ev.Total = total
	d.Send(ev)
}

func (d *Display) Retry(id string, now time.Time, cause error) {
	d.log.Debug().Str("id", id).Err(cause).Msg("retry reported")
	d.Send(progress.RetryEvent(id, now))
}

func (d *Display) Complete(id string, final int64, now time.Time, outcome progress.Outcome, err error) {
	if err != nil {
		d.errMutex.Lock()
		d.errors = append(d.errors, ErrorReport{Name: id, Error: err, Time: now})
		d.errMutex.Unlock()
	}
	d.Send(progress.CompleteEvent(id, final, now, outcome))
}

// Snapshots is only safe to call after Stop.
func (d *Display) Snapshots() []progress.Snapshot {
	return d.coord.Snapshots()
}

func (d *Display) Errors() []ErrorReport {
	d.errMutex.Lock()
	defer d.errMutex.Unlock()
	return append([]ErrorReport(nil), d.errors...)
}
