package scan

import "fmt"

// Sequencer walks the ordered step list and owns the accepted photos.
// It never regresses, never skips a step and never holds two photos of the
// same type.
type Sequencer struct {
	steps  []Step
	index  int
	photos []CapturedPhoto
}

// NewSequencer validates steps and returns a sequencer at the first step.
func NewSequencer(steps []Step) (*Sequencer, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	s := make([]Step, len(steps))
	copy(s, steps)
	return &Sequencer{
		steps:  s,
		photos: make([]CapturedPhoto, 0, len(steps)),
	}, nil
}

// Steps returns the configured steps.
func (s *Sequencer) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// Index returns the current step index. It equals len(steps) once done.
func (s *Sequencer) Index() int {
	return s.index
}

// Current returns the step awaiting a capture.
func (s *Sequencer) Current() (Step, bool) {
	if s.Done() {
		return Step{}, false
	}
	return s.steps[s.index], true
}

// Done reports whether every step has a photo.
func (s *Sequencer) Done() bool {
	return s.index >= len(s.steps)
}

// Accept appends a photo for the current step and advances. It returns
// true when the photo completed the sequence.
func (s *Sequencer) Accept(p CapturedPhoto) (bool, error) {
	cur, ok := s.Current()
	if !ok {
		return true, ErrSequenceComplete
	}
	for _, existing := range s.photos {
		if existing.Type == p.Type {
			return false, fmt.Errorf("%w: %s", ErrDuplicatePhoto, p.Type)
		}
	}
	if p.Type != cur.ID {
		return false, fmt.Errorf("%w: got %q, want %q", ErrWrongStep, p.Type, cur.ID)
	}

	s.photos = append(s.photos, p)
	s.index++
	return s.Done(), nil
}

// Photos returns a copy of the accepted photos in step order.
func (s *Sequencer) Photos() []CapturedPhoto {
	out := make([]CapturedPhoto, len(s.photos))
	copy(out, s.photos)
	return out
}

// Reset discards all photos and returns to the first step.
func (s *Sequencer) Reset() {
	s.photos = s.photos[:0]
	s.index = 0
}

// VerifySequence checks a delivered photo list against the step list: same
// length, no duplicate type, configuration order.
func VerifySequence(steps []Step, photos []CapturedPhoto) error {
	if len(photos) != len(steps) {
		return fmt.Errorf("scan: %d photos for %d steps", len(photos), len(steps))
	}
	seen := make(map[string]bool, len(photos))
	for i, p := range photos {
		if seen[p.Type] {
			return fmt.Errorf("%w: %s", ErrDuplicatePhoto, p.Type)
		}
		seen[p.Type] = true
		if p.Type != steps[i].ID {
			return fmt.Errorf("scan: photo %d is %q, want %q", i, p.Type, steps[i].ID)
		}
		if p.ID == "" {
			return fmt.Errorf("scan: photo %d has no id", i)
		}
	}
	return nil
}
