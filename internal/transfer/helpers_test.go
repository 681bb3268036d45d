package transfer

import (
	"sync"
	"time"

	"github.com/tanq16/dlbar/internal/progress"
)

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
	causes []error
	errs   map[string]error
}

func newRecorder() *recorder {
	return &recorder{errs: make(map[string]error)}
}

func (r *recorder) Init(id string, total int64, count int, now time.Time) {
	r.add(progress.InitEvent(id, total, count, now))
}

func (r *recorder) Progress(id string, transferred, total int64, now time.Time) {
	ev := progress.ProgressEvent(id, transferred, now)
	ev.Total = total
	r.add(ev)
}

func (r *recorder) Retry(id string, now time.Time, cause error) {
	r.mu.Lock()
	r.causes = append(r.causes, cause)
	r.mu.Unlock()
	r.add(progress.RetryEvent(id, now))
}

func (r *recorder) Complete(id string, final int64, now time.Time, outcome progress.Outcome, err error) {
	r.mu.Lock()
	r.errs[id] = err
	r.mu.Unlock()
	r.add(progress.CompleteEvent(id, final, now, outcome))
}

func (r *recorder) add(ev progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds(id string) []progress.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.EventKind
	for _, ev := range r.events {
		if ev.ID == id && (len(out) == 0 || out[len(out)-1] != ev.Kind) {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func (r *recorder) first(id string, kind progress.EventKind) (progress.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.ID == id && ev.Kind == kind {
			return ev, true
		}
	}
	return progress.Event{}, false
}

func (r *recorder) last(id string, kind progress.EventKind) (progress.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if ev := r.events[i]; ev.ID == id && ev.Kind == kind {
			return ev, true
		}
	}
	return progress.Event{}, false
}
