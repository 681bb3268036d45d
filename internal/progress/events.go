package progress

import "time"

type EventKind int

const (
	EventInit EventKind = iota
	EventProgress
	EventRetry
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventInit:
		return "init"
	case EventProgress:
		return "progress"
	case EventRetry:
		return "retry"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Outcome is how a download ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeAborted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAborted:
		return "aborted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UnknownSize marks a total size the transfer engine has not discovered yet.
const UnknownSize int64 = -1

// Event is one notification from the transfer engine. Which fields matter
// depends on Kind.
type Event struct {
	Kind        EventKind
	ID          string
	Time        time.Time
	Total       int64 // init; progress may carry a positive total to fill in an unknown size
	Count       int   // init: number of downloads in the batch
	Transferred int64 // progress, complete
	Outcome     Outcome
}

func InitEvent(id string, total int64, count int, now time.Time) Event {
	return Event{Kind: EventInit, ID: id, Total: total, Count: count, Time: now}
}

func ProgressEvent(id string, transferred int64, now time.Time) Event {
	return Event{Kind: EventProgress, ID: id, Transferred: transferred, Total: UnknownSize, Time: now}
}

func RetryEvent(id string, now time.Time) Event {
	return Event{Kind: EventRetry, ID: id, Time: now}
}

func CompleteEvent(id string, final int64, now time.Time, outcome Outcome) Event {
	return Event{Kind: EventComplete, ID: id, Transferred: final, Time: now, Outcome: outcome}
}
