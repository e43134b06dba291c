package facemesh

import (
	"math"
	"testing"
)

func TestLandmarks_Get(t *testing.T) {
	lm := FromKeypoints(map[int]Point{
		NoseTip: {X: 0.5, Y: 0.5},
		EyeLeft: {X: math.NaN(), Y: 0.4},
	}, 0.9)

	if _, ok := lm.Get(NoseTip); !ok {
		t.Error("expected nose tip to be present")
	}
	if _, ok := lm.Get(EyeLeft); ok {
		t.Error("NaN landmark should be treated as missing")
	}
	if _, ok := lm.Get(Chin); ok {
		t.Error("unset landmark should be missing")
	}

	var nilLm *Landmarks
	if _, ok := nilLm.Get(NoseTip); ok {
		t.Error("nil landmarks should report missing")
	}
	if nilLm.Len() != 0 {
		t.Errorf("nil Len: got %d, want 0", nilLm.Len())
	}
}

func TestLandmarks_Has(t *testing.T) {
	mesh := make([]Point, MeshSize)
	lm := FromMesh(mesh)

	if !lm.Has(PoseIndices...) {
		t.Error("full mesh should contain all pose indices")
	}
	if lm.Len() != MeshSize {
		t.Errorf("Len: got %d, want %d", lm.Len(), MeshSize)
	}

	if FromMesh(nil) != nil {
		t.Error("empty mesh should produce nil landmarks")
	}
}

func TestMidpoint(t *testing.T) {
	m := Midpoint(Point{X: 0.2, Y: 0.4}, Point{X: 0.6, Y: 0.8})
	if math.Abs(m.X-0.4) > 1e-9 || math.Abs(m.Y-0.6) > 1e-9 {
		t.Errorf("Midpoint: got %+v", m)
	}
}

func TestMask(t *testing.T) {
	m := NewMask(4, 3)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	m.Set(1, 1, CategoryHair)
	m.Set(9, 9, CategoryHair) // ignored

	if m.At(1, 1) != CategoryHair {
		t.Error("expected hair at (1,1)")
	}
	if m.At(-1, 0) != CategoryBackground {
		t.Error("out of range should read as background")
	}
	if got := m.Count(CategoryHair); got != 1 {
		t.Errorf("Count: got %d, want 1", got)
	}

	bad := &Mask{Width: 2, Height: 2, Categories: []uint8{0}}
	if bad.Validate() == nil {
		t.Error("expected size mismatch error")
	}
}
