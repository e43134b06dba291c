package scan

import "fmt"

// GuideType selects how a step decides alignment.
type GuideType string

const (
	// GuideFace steps compare the estimated head pose to a target window.
	GuideFace GuideType = "face"
	// GuideManual steps skip pose comparison and gate on lighting.
	GuideManual GuideType = "manual"
)

// Target is the pose window a face-guided step must hold.
type Target struct {
	Yaw            float64 `json:"yaw" yaml:"yaw"`
	Pitch          float64 `json:"pitch" yaml:"pitch"`
	Roll           float64 `json:"roll" yaml:"roll"`
	YawTolerance   float64 `json:"yaw_tolerance" yaml:"yaw_tolerance"`
	PitchTolerance float64 `json:"pitch_tolerance" yaml:"pitch_tolerance"`
}

// Step is one required shot angle.
type Step struct {
	ID          string    `json:"id" yaml:"id"`
	Label       string    `json:"label" yaml:"label"`
	Instruction string    `json:"instruction" yaml:"instruction"`
	Target      *Target   `json:"target,omitempty" yaml:"target,omitempty"`
	Guide       GuideType `json:"guide" yaml:"guide"`

	// RejectFace marks steps where the subject must face away from the
	// camera. A detected face blocks progress and capture.
	RejectFace bool `json:"reject_face,omitempty" yaml:"reject_face,omitempty"`
}

// Manual reports whether the step skips pose comparison.
func (s Step) Manual() bool {
	return s.Guide == GuideManual || s.Target == nil
}

// Validate checks a single step definition.
func (s Step) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scan: step has no id")
	}
	switch s.Guide {
	case GuideFace:
		if s.Target == nil {
			return fmt.Errorf("scan: face step %q has no target", s.ID)
		}
		if s.Target.YawTolerance <= 0 || s.Target.PitchTolerance <= 0 {
			return fmt.Errorf("scan: step %q tolerances must be positive", s.ID)
		}
	case GuideManual:
		if s.Target != nil {
			return fmt.Errorf("scan: manual step %q must not have a target", s.ID)
		}
	default:
		return fmt.Errorf("scan: step %q has unknown guide type %q", s.ID, s.Guide)
	}
	return nil
}

// ValidateSteps checks an ordered step list: non-empty, valid entries,
// unique ids.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.ID] {
			return fmt.Errorf("scan: duplicate step id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// SelectSteps returns the steps whose ids appear in ids, keeping the
// configured order. An empty ids list selects everything.
func SelectSteps(steps []Step, ids []string) ([]Step, error) {
	if len(ids) == 0 {
		out := make([]Step, len(steps))
		copy(out, steps)
		return out, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Step
	for _, s := range steps {
		if want[s.ID] {
			out = append(out, s)
			delete(want, s.ID)
		}
	}
	for id := range want {
		return nil, fmt.Errorf("scan: unknown step %q", id)
	}
	return out, nil
}

// DefaultSteps returns the standard hair-restoration shot list.
func DefaultSteps() []Step {
	return []Step{
		{
			ID:          "front",
			Label:       "Front",
			Instruction: "Look straight at the camera",
			Target:      &Target{Yaw: 0, Pitch: 0, Roll: 0, YawTolerance: 12, PitchTolerance: 15},
			Guide:       GuideFace,
		},
		{
			ID:          "left",
			Label:       "Left side",
			Instruction: "Slowly turn your head to the left",
			Target:      &Target{Yaw: -40, Pitch: 0, Roll: 0, YawTolerance: 15, PitchTolerance: 20},
			Guide:       GuideFace,
		},
		{
			ID:          "right",
			Label:       "Right side",
			Instruction: "Slowly turn your head to the right",
			Target:      &Target{Yaw: 40, Pitch: 0, Roll: 0, YawTolerance: 15, PitchTolerance: 20},
			Guide:       GuideFace,
		},
		{
			ID:          "top",
			Label:       "Top of head",
			Instruction: "Tilt your head down so the camera sees your crown",
			Guide:       GuideManual,
		},
		{
			ID:          "back",
			Label:       "Donor area",
			Instruction: "Turn around so the back of your head faces the camera",
			Guide:       GuideManual,
			RejectFace:  true,
		},
	}
}
