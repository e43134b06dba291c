package scan

import (
	"fmt"
	"image/color"
)

// PoseConfig holds the empirical landmark-to-degree constants.
type PoseConfig struct {
	YawScale   float64 `yaml:"yaw_scale"`   // Nose offset / cheek width → degrees
	PitchBias  float64 `yaml:"pitch_bias"`  // Subtracted from the nose ratio before scaling
	PitchScale float64 `yaml:"pitch_scale"` // Nose ratio → degrees
	MinSpan    float64 `yaml:"min_span"`    // Below this normalized width the pose is undefined
}

// QualityConfig holds lighting and stability thresholds.
type QualityConfig struct {
	SampleSize       int     `yaml:"sample_size"`       // Frames are downsampled to SampleSize² pixels
	DarkThreshold    float64 `yaml:"dark_threshold"`    // Mean luminance below this is dark
	BrightThreshold  float64 `yaml:"bright_threshold"`  // Mean luminance above this is bright
	StabilityDegrees float64 `yaml:"stability_degrees"` // Max pose change per frame to count as stable
}

// MachineConfig holds progress and tolerance parameters.
type MachineConfig struct {
	Increment     int     `yaml:"increment"`      // Progress per good frame
	Decrement     int     `yaml:"decrement"`      // Progress lost per bad frame
	RollTolerance float64 `yaml:"roll_tolerance"` // Degrees, shared by all face steps
}

// OverlayConfig controls the hair highlight.
type OverlayConfig struct {
	Enabled       bool       `yaml:"enabled"`
	HairCategory  uint8      `yaml:"hair_category"`
	Tint          color.RGBA `yaml:"-"`
	ExcludeBeard  bool       `yaml:"exclude_beard"`
	BeardMargin   float64    `yaml:"beard_margin"`    // Extends the exclusion below the chin, as a fraction of cheek-to-chin height
	SegmentPerSec float64    `yaml:"segment_per_sec"` // Segmentation rate limit
}

// Config holds all tunable parameters for a capture session.
type Config struct {
	Pose    PoseConfig    `yaml:"pose"`
	Quality QualityConfig `yaml:"quality"`
	Machine MachineConfig `yaml:"machine"`
	Overlay OverlayConfig `yaml:"overlay"`

	// DegradeOnDetectorFailure runs face steps as manual steps when the
	// landmark detector cannot be loaded, instead of failing setup.
	DegradeOnDetectorFailure bool `yaml:"degrade_on_detector_failure"`

	// UpdateBuffer is the capacity of the update channel.
	UpdateBuffer int `yaml:"update_buffer"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Pose: PoseConfig{
			YawScale:   250,
			PitchBias:  0.4,
			PitchScale: 150,
			MinSpan:    1e-4,
		},
		Quality: QualityConfig{
			SampleSize:       100,
			DarkThreshold:    40,
			BrightThreshold:  230,
			StabilityDegrees: 4,
		},
		Machine: MachineConfig{
			Increment:     8,
			Decrement:     10,
			RollTolerance: 15,
		},
		Overlay: OverlayConfig{
			Enabled:       false,
			HairCategory:  1,
			Tint:          color.RGBA{R: 0, G: 180, B: 255, A: 110},
			ExcludeBeard:  true,
			BeardMargin:   0.25,
			SegmentPerSec: 10,
		},
		DegradeOnDetectorFailure: true,
		UpdateBuffer:             64,
	}
}

// StrictConfig tightens the roll window and slows progress.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.Machine.Increment = 5
	cfg.Machine.Decrement = 15
	cfg.Machine.RollTolerance = 8
	cfg.DegradeOnDetectorFailure = false
	return cfg
}

// RelaxedConfig is for low-end devices with noisy landmarks. It enables
// the segmentation overlay.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.Machine.Increment = 10
	cfg.Machine.Decrement = 5
	cfg.Machine.RollTolerance = 20
	cfg.Overlay.Enabled = true
	return cfg
}

// Validate checks the configuration and returns a list of problems.
func (c *Config) Validate() []string {
	var errors []string

	if c.Pose.YawScale == 0 || c.Pose.PitchScale == 0 {
		errors = append(errors, "pose scales must be non-zero")
	}
	if c.Quality.SampleSize < 1 || c.Quality.SampleSize > 1024 {
		errors = append(errors, "quality sample_size must be between 1 and 1024")
	}
	if c.Quality.DarkThreshold < 0 || c.Quality.BrightThreshold > 255 || c.Quality.DarkThreshold >= c.Quality.BrightThreshold {
		errors = append(errors, "lighting thresholds must satisfy 0 <= dark < bright <= 255")
	}
	if c.Machine.Increment < 1 || c.Machine.Increment > 100 {
		errors = append(errors, "machine increment must be between 1 and 100")
	}
	if c.Machine.Decrement < 0 || c.Machine.Decrement > 100 {
		errors = append(errors, "machine decrement must be between 0 and 100")
	}
	if c.Machine.RollTolerance <= 0 {
		errors = append(errors, "machine roll_tolerance must be positive")
	}
	if c.Overlay.Enabled && c.Overlay.SegmentPerSec <= 0 {
		errors = append(errors, "overlay segment_per_sec must be positive when enabled")
	}
	if c.UpdateBuffer < 0 {
		errors = append(errors, "update_buffer must not be negative")
	}

	return errors
}

// validateErr wraps Validate into a single error.
func (c *Config) validateErr() error {
	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("scan: invalid config: %v", errs)
	}
	return nil
}
