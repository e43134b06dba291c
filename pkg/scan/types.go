package scan

import (
	"image"
	"time"

	"github.com/teslashibe/go-scalpscan/pkg/facemesh"
)

// Pose is a head orientation estimate in degrees.
type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Lighting classifies frame brightness.
type Lighting string

const (
	LightingDark   Lighting = "dark"
	LightingGood   Lighting = "good"
	LightingBright Lighting = "bright"
)

// Stability reports whether the head is holding still.
type Stability string

const (
	Stable   Stability = "stable"
	Unstable Stability = "unstable"
)

// QualitySignal is the per-frame quality evaluation.
type QualitySignal struct {
	FaceDetected bool      `json:"face_detected"`
	Lighting     Lighting  `json:"lighting"`
	Stability    Stability `json:"stability"`
	Luminance    float64   `json:"luminance"`
}

// Status is the capture state machine state.
type Status string

const (
	StatusSearching Status = "searching"
	StatusAligning  Status = "aligning"
	StatusLocked    Status = "locked"
	StatusCapturing Status = "capturing"
)

// CapturedPhoto is one accepted shot. Preview is a data URI.
type CapturedPhoto struct {
	ID         string    `json:"id"`
	Preview    string    `json:"preview"`
	Type       string    `json:"type"`
	CapturedAt time.Time `json:"captured_at"`
}

// Frame is one camera frame delivered to a session.
//
// Image is preferred; JPEG is decoded when Image is nil. When
// DetectionIncluded is set, Landmarks is authoritative (nil means no face)
// and the session's own detector is not consulted.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Image     image.Image
	JPEG      []byte

	Landmarks         *facemesh.Landmarks
	DetectionIncluded bool
}

// UpdateKind tags session updates.
type UpdateKind string

const (
	UpdateFrame     UpdateKind = "frame"
	UpdateRejected  UpdateKind = "rejected"
	UpdateCaptured  UpdateKind = "captured"
	UpdateComplete  UpdateKind = "complete"
	UpdateCancelled UpdateKind = "cancelled"
	UpdateError     UpdateKind = "error"
)

// Update is one event on a session's state stream.
type Update struct {
	Kind      UpdateKind      `json:"kind"`
	Seq       uint64          `json:"seq,omitempty"`
	StepIndex int             `json:"step_index"`
	StepID    string          `json:"step_id,omitempty"`
	Status    Status          `json:"status,omitempty"`
	Progress  int             `json:"progress"`
	Pose      *Pose           `json:"pose,omitempty"`
	Quality   QualitySignal   `json:"quality"`
	Hint      string          `json:"hint,omitempty"`
	Degraded  bool            `json:"degraded,omitempty"`
	Photo     *CapturedPhoto  `json:"photo,omitempty"`
	Photos    []CapturedPhoto `json:"photos,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Terminal reports whether no further updates follow.
func (u Update) Terminal() bool {
	switch u.Kind {
	case UpdateComplete, UpdateCancelled, UpdateError:
		return true
	}
	return false
}
