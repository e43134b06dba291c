package scan

import (
	"fmt"
	"math"
)

// State is the capture state for the current step.
type State struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// Observation is everything the machine needs from one frame.
type Observation struct {
	Quality   QualitySignal
	Pose      Pose
	PoseKnown bool
}

// Decision is the machine's instruction to the session.
type Decision int

const (
	// DecisionNone means keep feeding frames.
	DecisionNone Decision = iota
	// DecisionCapture means progress is full and a capture should be attempted.
	DecisionCapture
)

// Machine applies the per-frame transition rules. It holds only
// configuration; Advance is a pure function of (state, step, observation).
type Machine struct {
	cfg MachineConfig
}

// NewMachine creates a state machine with the given parameters.
func NewMachine(cfg MachineConfig) Machine {
	return Machine{cfg: cfg}
}

// Initial returns the state at the start of every step.
func (m Machine) Initial() State {
	return State{Status: StatusSearching, Progress: 0}
}

// Advance computes the next state for one frame.
func (m Machine) Advance(st State, step Step, obs Observation) (State, Decision) {
	if st.Status == StatusCapturing {
		return st, DecisionNone
	}

	var next State
	if step.Manual() {
		next = m.advanceManual(st, step, obs)
	} else {
		next = m.advanceFace(st, step, obs)
	}

	if next.Progress >= 100 && next.Status == StatusLocked {
		return next, DecisionCapture
	}
	return next, DecisionNone
}

func (m Machine) advanceFace(st State, step Step, obs Observation) State {
	if !obs.Quality.FaceDetected {
		return State{Status: StatusSearching, Progress: 0}
	}
	if obs.PoseKnown && m.InWindow(step, obs.Pose) {
		return m.gain(st)
	}
	return m.lose(st)
}

func (m Machine) advanceManual(st State, step Step, obs Observation) State {
	if step.RejectFace && obs.Quality.FaceDetected {
		return m.lose(st)
	}
	if obs.Quality.Lighting == LightingGood {
		return m.gain(st)
	}
	return m.lose(st)
}

func (m Machine) gain(st State) State {
	p := st.Progress + m.cfg.Increment
	if p > 100 {
		p = 100
	}
	return State{Status: StatusLocked, Progress: p}
}

func (m Machine) lose(st State) State {
	p := st.Progress - m.cfg.Decrement
	if p < 0 {
		p = 0
	}
	return State{Status: StatusAligning, Progress: p}
}

// InWindow reports whether pose satisfies the step's target window.
func (m Machine) InWindow(step Step, pose Pose) bool {
	t := step.Target
	if t == nil {
		return true
	}
	return math.Abs(pose.Yaw-t.Yaw) < t.YawTolerance &&
		math.Abs(pose.Pitch-t.Pitch) < t.PitchTolerance &&
		math.Abs(pose.Roll-t.Roll) < m.cfg.RollTolerance
}

// Validate re-checks the step's acceptance rule at the instant of capture.
// It returns a *RejectError with a correction hint when the frame no
// longer qualifies.
func (m Machine) Validate(step Step, obs Observation) error {
	reject := func(reason, hint string) error {
		return &RejectError{StepID: step.ID, Reason: reason, Hint: hint}
	}

	if step.Manual() {
		if step.RejectFace && obs.Quality.FaceDetected {
			return reject("face visible", HintTurnAround)
		}
		switch obs.Quality.Lighting {
		case LightingDark:
			return reject("too dark", HintMoreLight)
		case LightingBright:
			return reject("too bright", HintLessLight)
		}
		return nil
	}

	if !obs.Quality.FaceDetected || !obs.PoseKnown {
		return reject("no face", HintFindFace)
	}
	if !m.InWindow(step, obs.Pose) {
		return reject(fmt.Sprintf("pose drifted (yaw %.0f, pitch %.0f, roll %.0f)",
			obs.Pose.Yaw, obs.Pose.Pitch, obs.Pose.Roll), m.Hint(step, obs.Pose))
	}
	return nil
}

// Reject resets the state after a failed capture validation.
func (m Machine) Reject(State) State {
	return m.Initial()
}

// User-facing correction hints.
const (
	HintFindFace   = "Center your face in the frame"
	HintTurnLeft   = "Turn your head a little to the left"
	HintTurnRight  = "Turn your head a little to the right"
	HintChinUp     = "Lift your chin slightly"
	HintChinDown   = "Lower your chin slightly"
	HintLevelHead  = "Keep your head level"
	HintTurnAround = "Turn around so the back of your head faces the camera"
	HintMoreLight  = "Move somewhere brighter"
	HintLessLight  = "Avoid direct light on the camera"
	HintHoldStill  = "Hold still"
)

// Hint picks the correction for the largest out-of-window axis. The
// direction comes from the sign of target minus pose.
func (m Machine) Hint(step Step, pose Pose) string {
	t := step.Target
	if t == nil {
		return HintHoldStill
	}

	dYaw := t.Yaw - pose.Yaw
	dPitch := t.Pitch - pose.Pitch
	dRoll := t.Roll - pose.Roll

	// Normalize by tolerance so the worst axis wins.
	yawErr := math.Abs(dYaw) / t.YawTolerance
	pitchErr := math.Abs(dPitch) / t.PitchTolerance
	rollErr := math.Abs(dRoll) / m.cfg.RollTolerance

	switch {
	case yawErr >= pitchErr && yawErr >= rollErr && yawErr >= 1:
		if dYaw < 0 {
			return HintTurnLeft
		}
		return HintTurnRight
	case pitchErr >= rollErr && pitchErr >= 1:
		if dPitch < 0 {
			return HintChinUp
		}
		return HintChinDown
	case rollErr >= 1:
		return HintLevelHead
	}
	return HintHoldStill
}
