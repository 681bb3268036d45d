package progress

import "errors"

// Every error the engine returns is recoverable. The display is an observability
// layer and must never abort a transfer.
var (
	// ErrInvalidTransition is returned for events targeting an unknown or completed download.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNonMonotonicProgress is returned when a progress value goes backwards; the value is clamped.
	ErrNonMonotonicProgress = errors.New("non-monotonic progress")
	// ErrClockAnomaly is returned when a sample is older than the previous one; the rate is kept.
	ErrClockAnomaly = errors.New("clock anomaly")
	// ErrRenderTargetUnavailable is returned when the renderer fails; drawing stops afterwards.
	ErrRenderTargetUnavailable = errors.New("render target unavailable")
)
