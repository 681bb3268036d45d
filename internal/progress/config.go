package progress

import (
	"fmt"
	"time"
)

const (
	DefaultSmoothingWeight = 0.5
	DefaultTotalWidth      = 80
	DefaultSampleInterval  = 200 * time.Millisecond
	MinTotalWidth          = 60
)

// Config holds the options the engine recognizes. Field tags allow the host to
// decode it straight from a YAML file.
type Config struct {
	DisplayEnabled bool `yaml:"display_enabled"`
	// SmoothingWeight is the EMA weight given to the newest instantaneous rate.
	SmoothingWeight float64 `yaml:"smoothing_weight"`
	TotalWidth      int     `yaml:"total_width"`
	// SampleInterval is the minimum gap between two rate samples. Shorter gaps
	// accumulate into the next window. Zero disables the gate.
	SampleInterval time.Duration `yaml:"sample_interval"`
	// PromoteCompleted moves a finished bar to the top line.
	PromoteCompleted bool `yaml:"promote_completed"`
	// ShowTotal draws an aggregate bar below all download bars.
	ShowTotal bool `yaml:"show_total"`
}

func DefaultConfig() Config {
	return Config{
		DisplayEnabled:   true,
		SmoothingWeight:  DefaultSmoothingWeight,
		TotalWidth:       DefaultTotalWidth,
		SampleInterval:   DefaultSampleInterval,
		PromoteCompleted: true,
		ShowTotal:        false,
	}
}

func (c Config) Validate() error {
	if c.SmoothingWeight <= 0 || c.SmoothingWeight >= 1 {
		return fmt.Errorf("smoothing weight must be in (0,1), got %v", c.SmoothingWeight)
	}
	if c.TotalWidth < MinTotalWidth {
		return fmt.Errorf("total width must be at least %d, got %d", MinTotalWidth, c.TotalWidth)
	}
	if c.SampleInterval < 0 {
		return fmt.Errorf("sample interval must not be negative, got %s", c.SampleInterval)
	}
	return nil
}
