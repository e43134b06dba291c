// Package camera provides runtime-configurable capture device settings.
// This follows the same pattern as pkg/scan for tunable parameters.
package camera

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// === Device ===
	Device     int    `json:"device"`      // OpenCV device index
	FacingMode string `json:"facing_mode"` // "user" or "environment"

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // Snapshot JPEG quality 1-100

	// === Snapshot Filters ===
	// Applied to captured stills so they match the live preview.

	// Brightness adjustment (-1.0 to +1.0), added as an offset of up to 255.
	Brightness float64 `json:"brightness"`

	// Contrast is a linear gain (0.5 to 2.0). 1.0 is unchanged.
	Contrast float64 `json:"contrast"`

	// Mirror flips stills horizontally. The user-facing preview is mirrored
	// so snapshots are too.
	Mirror bool `json:"mirror"`
}

// Device limits
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 60
	MinContrast  = 0.5
	MaxContrast  = 2.0
)

// DefaultConfig returns the recommended front-camera configuration.
// Uses 1280x720 for a balance of landmark accuracy and frame rate.
func DefaultConfig() Config {
	return Config{
		Device:     0,
		FacingMode: "user",

		Width:     1280,
		Height:    720,
		Framerate: 30,
		Quality:   90,

		Brightness: 0.0,
		Contrast:   1.0,
		Mirror:     true,
	}
}

// LegacyConfig returns a 640x480 configuration for older webcams.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	validFacing := map[string]bool{"user": true, "environment": true}
	if c.FacingMode != "" && !validFacing[c.FacingMode] {
		errors = append(errors, "facing_mode must be user or environment")
	}

	// Resolution
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	// Filters
	if c.Brightness < -1.0 || c.Brightness > 1.0 {
		errors = append(errors, "brightness must be between -1.0 and 1.0")
	}
	if c.Contrast < MinContrast || c.Contrast > MaxContrast {
		errors = append(errors, "contrast must be between 0.5 and 2.0")
	}

	return errors
}

// Capabilities returns the supported ranges for the camera API.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"contrast":      []float64{MinContrast, MaxContrast},
		"brightness":    []float64{-1.0, 1.0},
		"facing_modes":  []string{"user", "environment"},
		"presets":       PresetNames(),
	}
}
