package scan

import (
	"errors"
	"testing"
)

func photo(id, typ string) CapturedPhoto {
	return CapturedPhoto{ID: id, Preview: "data:image/jpeg;base64,AA==", Type: typ}
}

func TestSequencer_AcceptInOrder(t *testing.T) {
	steps := sessionSteps()
	s, err := NewSequencer(steps)
	if err != nil {
		t.Fatalf("NewSequencer: %v", err)
	}

	for i, step := range steps {
		cur, ok := s.Current()
		if !ok || cur.ID != step.ID {
			t.Fatalf("step %d: expected current %q, got %q", i, step.ID, cur.ID)
		}
		done, err := s.Accept(photo(step.ID+"-id", step.ID))
		if err != nil {
			t.Fatalf("Accept(%s): %v", step.ID, err)
		}
		if done != (i == len(steps)-1) {
			t.Errorf("step %d: unexpected done=%v", i, done)
		}
		if s.Index() != i+1 {
			t.Errorf("Expected index %d, got %d", i+1, s.Index())
		}
	}

	if err := VerifySequence(steps, s.Photos()); err != nil {
		t.Errorf("VerifySequence: %v", err)
	}
	if _, err := s.Accept(photo("x", "front")); !errors.Is(err, ErrSequenceComplete) {
		t.Errorf("Expected ErrSequenceComplete, got %v", err)
	}
}

func TestSequencer_RejectsOutOfOrder(t *testing.T) {
	s, _ := NewSequencer(sessionSteps())

	if _, err := s.Accept(photo("1", "left")); !errors.Is(err, ErrWrongStep) {
		t.Errorf("Expected ErrWrongStep, got %v", err)
	}
	if s.Index() != 0 {
		t.Errorf("Expected index to stay at 0, got %d", s.Index())
	}

	s.Accept(photo("1", "front"))
	if _, err := s.Accept(photo("2", "front")); !errors.Is(err, ErrDuplicatePhoto) {
		t.Errorf("Expected ErrDuplicatePhoto, got %v", err)
	}
	if len(s.Photos()) != 1 {
		t.Errorf("Expected 1 photo, got %d", len(s.Photos()))
	}
}

func TestSequencer_Reset(t *testing.T) {
	s, _ := NewSequencer(sessionSteps())
	s.Accept(photo("1", "front"))
	s.Reset()

	if s.Index() != 0 || len(s.Photos()) != 0 {
		t.Errorf("Expected empty sequencer after reset, got index %d photos %d", s.Index(), len(s.Photos()))
	}
}

func TestNewSequencer_Invalid(t *testing.T) {
	if _, err := NewSequencer(nil); !errors.Is(err, ErrNoSteps) {
		t.Errorf("Expected ErrNoSteps, got %v", err)
	}

	dup := []Step{DefaultSteps()[0], DefaultSteps()[0]}
	if _, err := NewSequencer(dup); err == nil {
		t.Error("Expected duplicate ids to fail")
	}

	bad := []Step{{ID: "x", Guide: GuideFace}}
	if _, err := NewSequencer(bad); err == nil {
		t.Error("Expected face step without target to fail")
	}
}

func TestVerifySequence(t *testing.T) {
	steps := sessionSteps()
	good := []CapturedPhoto{photo("1", "front"), photo("2", "left"), photo("3", "right"), photo("4", "back")}

	tests := []struct {
		name    string
		photos  []CapturedPhoto
		wantErr bool
	}{
		{"ok", good, false},
		{"short", good[:3], true},
		{"swapped", []CapturedPhoto{good[1], good[0], good[2], good[3]}, true},
		{"duplicate", []CapturedPhoto{good[0], good[0], good[2], good[3]}, true},
		{"missing id", []CapturedPhoto{good[0], photo("", "left"), good[2], good[3]}, true},
	}
	for _, tc := range tests {
		err := VerifySequence(steps, tc.photos)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: wantErr=%v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestSelectSteps(t *testing.T) {
	got, err := SelectSteps(DefaultSteps(), []string{"back", "front"})
	if err != nil {
		t.Fatalf("SelectSteps: %v", err)
	}
	if len(got) != 2 || got[0].ID != "front" || got[1].ID != "back" {
		t.Errorf("Expected [front back] in configured order, got %v", got)
	}

	if _, err := SelectSteps(DefaultSteps(), []string{"crown"}); err == nil {
		t.Error("Expected unknown step to fail")
	}
}
