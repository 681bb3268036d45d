package progress

import (
	"errors"
	"fmt"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return t0.Add(time.Duration(seconds * float64(time.Second)))
}

// screen emulates a terminal that only understands relative motion.
type screen struct {
	rows    []string
	row     int
	ops     []string
	flushes int
	bad     bool // cursor moved above the first row
	failOn  string
}

func newScreen() *screen {
	return &screen{rows: []string{""}}
}

func (s *screen) move(offset int) {
	s.row += offset
	if s.row < 0 {
		s.bad = true
		s.row = 0
	}
	for s.row >= len(s.rows) {
		s.rows = append(s.rows, "")
	}
}

func (s *screen) DrawLine(offset int, text string) error {
	if s.failOn == "draw" {
		return errors.New("terminal gone")
	}
	s.ops = append(s.ops, fmt.Sprintf("draw %+d", offset))
	s.move(offset)
	s.rows[s.row] = text
	return nil
}

func (s *screen) ClearToEndOfLine() error {
	s.ops = append(s.ops, "clear")
	return nil
}

func (s *screen) MoveCursor(offset int) error {
	s.ops = append(s.ops, fmt.Sprintf("move %+d", offset))
	s.move(offset)
	return nil
}

func (s *screen) Flush() error {
	s.ops = append(s.ops, "flush")
	s.flushes++
	return nil
}

func (s *screen) reset() {
	s.ops = nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleInterval = 0
	return cfg
}
