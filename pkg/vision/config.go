// Package vision runs the OpenCV face landmark and hair segmentation models.
package vision

import "fmt"

// Config holds detector and segmenter configuration.
type Config struct {
	FaceModelPath    string  // YuNet ONNX model
	ConfidenceThresh float64 // Minimum face score (default 0.6)
	NMSThresh        float64
	InputWidth       int // Initial detector input size, updated per frame
	InputHeight      int

	// PitchBias is the nose-ratio of a level head for YuNet keypoints.
	// Sessions using this detector should copy it into scan.PoseConfig.
	PitchBias float64

	SegmentModelPath string // Optional multiclass selfie segmentation ONNX model
	SegmentWidth     int
	SegmentHeight    int
	SegmentClasses   int
	ChannelsLast     bool // Output layout of the segmentation model
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FaceModelPath:    "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		NMSThresh:        0.3,
		InputWidth:       320,
		InputHeight:      320,
		PitchBias:        0.85,

		SegmentModelPath: "models/selfie_multiclass_256x256.onnx",
		SegmentWidth:     256,
		SegmentHeight:    256,
		SegmentClasses:   6,
		ChannelsLast:     true,
	}
}

// Validate checks the configuration and returns a list of problems.
func (c *Config) Validate() []string {
	var errors []string

	if c.FaceModelPath == "" {
		errors = append(errors, "face model path is required")
	}
	if c.ConfidenceThresh <= 0 || c.ConfidenceThresh >= 1 {
		errors = append(errors, fmt.Sprintf("confidence threshold %.2f must be between 0 and 1", c.ConfidenceThresh))
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		errors = append(errors, "detector input size must be positive")
	}
	if c.SegmentModelPath != "" {
		if c.SegmentWidth <= 0 || c.SegmentHeight <= 0 {
			errors = append(errors, "segmenter input size must be positive")
		}
		if c.SegmentClasses < 2 || c.SegmentClasses > 255 {
			errors = append(errors, "segmenter classes must be between 2 and 255")
		}
	}

	return errors
}
