package scan

import (
	"image"
	"math"
	"testing"
)

func TestQualityMonitor_Lighting(t *testing.T) {
	q := NewQualityMonitor(DefaultConfig().Quality)

	tests := []struct {
		name string
		luma uint8
		want Lighting
	}{
		{"black", 0, LightingDark},
		{"dim", 30, LightingDark},
		{"mid", 128, LightingGood},
		{"blown out", 245, LightingBright},
		{"white", 255, LightingBright},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sig := q.Evaluate(grayImage(tc.luma), false, nil)
			if sig.Lighting != tc.want {
				t.Errorf("luma %d: expected %s, got %s (mean %.2f)", tc.luma, tc.want, sig.Lighting, sig.Luminance)
			}
			if math.Abs(sig.Luminance-float64(tc.luma)) > 1 {
				t.Errorf("Expected luminance ≈ %d, got %.2f", tc.luma, sig.Luminance)
			}
		})
	}
}

func TestQualityMonitor_ClassifyThresholds(t *testing.T) {
	q := NewQualityMonitor(DefaultConfig().Quality)

	tests := []struct {
		lum  float64
		want Lighting
	}{
		{39.9, LightingDark},
		{40, LightingGood},
		{230, LightingGood},
		{230.1, LightingBright},
	}
	for _, tc := range tests {
		if got := q.Classify(tc.lum); got != tc.want {
			t.Errorf("Classify(%v): expected %s, got %s", tc.lum, tc.want, got)
		}
	}
}

func TestQualityMonitor_NoImage(t *testing.T) {
	q := NewQualityMonitor(DefaultConfig().Quality)

	sig := q.Evaluate(nil, true, nil)
	if sig.Lighting != LightingDark {
		t.Errorf("Expected dark without an image, got %s", sig.Lighting)
	}
	if !sig.FaceDetected {
		t.Error("Expected face flag to pass through")
	}

	sig = q.Evaluate(image.NewRGBA(image.Rect(0, 0, 0, 0)), false, nil)
	if sig.Lighting != LightingDark {
		t.Errorf("Expected dark for empty image, got %s", sig.Lighting)
	}
}

func TestQualityMonitor_Stability(t *testing.T) {
	q := NewQualityMonitor(DefaultConfig().Quality)
	img := grayImage(128)

	first := q.Evaluate(img, true, &Pose{Yaw: 0})
	if first.Stability != Unstable {
		t.Error("Expected first pose to be unstable (no history)")
	}

	steady := q.Evaluate(img, true, &Pose{Yaw: 1, Pitch: 1})
	if steady.Stability != Stable {
		t.Error("Expected small change to be stable")
	}

	jump := q.Evaluate(img, true, &Pose{Yaw: 20, Pitch: 1})
	if jump.Stability != Unstable {
		t.Error("Expected large change to be unstable")
	}

	q.Evaluate(img, false, nil)
	after := q.Evaluate(img, true, &Pose{Yaw: 20, Pitch: 1})
	if after.Stability != Unstable {
		t.Error("Expected history to reset when the face is lost")
	}
}
