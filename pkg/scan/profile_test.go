package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPresets(t *testing.T) {
	for _, name := range []string{"default", "strict", "relaxed"} {
		cfg := Preset(name)
		if cfg == nil {
			t.Fatalf("Preset(%q) is nil", name)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("%s: %v", name, errs)
		}
	}
	if Preset("turbo") != nil {
		t.Error("Expected unknown preset to be nil")
	}

	if StrictConfig().Machine.RollTolerance >= DefaultConfig().Machine.RollTolerance {
		t.Error("Expected strict roll tolerance to be tighter")
	}
	if !RelaxedConfig().Overlay.Enabled {
		t.Error("Expected relaxed preset to enable the overlay")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Machine.Increment = 0
	cfg.Quality.DarkThreshold = 240
	if errs := cfg.Validate(); len(errs) != 2 {
		t.Errorf("Expected 2 problems, got %v", errs)
	}
}

func TestParseProfile(t *testing.T) {
	doc := `
name: clinic
preset: strict
config:
  machine:
    increment: 20
steps:
  - id: front
    label: Front
    guide: face
    target: {yaw: 0, pitch: 0, yaw_tolerance: 10, pitch_tolerance: 10}
  - id: crown
    label: Crown
    guide: manual
`
	p, err := ParseProfile([]byte(doc))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if p.Name != "clinic" || len(p.Steps) != 2 {
		t.Errorf("Unexpected profile %+v", p)
	}
	if p.Config.Machine.Increment != 20 {
		t.Errorf("Expected increment override 20, got %d", p.Config.Machine.Increment)
	}
	// Untouched fields keep the strict preset.
	if p.Config.Machine.RollTolerance != StrictConfig().Machine.RollTolerance {
		t.Errorf("Expected strict roll tolerance, got %v", p.Config.Machine.RollTolerance)
	}
	if !p.Steps[1].Manual() {
		t.Error("Expected crown to be manual")
	}
}

func TestParseProfile_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown preset": "preset: turbo\n",
		"bad yaml":       "steps: [\n",
		"bad config":     "config:\n  machine:\n    increment: 0\n",
		"bad step":       "steps:\n  - id: x\n    guide: face\n",
	}
	for name, doc := range tests {
		if _, err := ParseProfile([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadProfile_DefaultsSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("name: quick\n"), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if len(p.Steps) != len(DefaultSteps()) {
		t.Errorf("Expected default steps, got %d", len(p.Steps))
	}
	if p.Config.Machine.Increment != DefaultConfig().Machine.Increment {
		t.Error("Expected default preset")
	}
}

func TestDataURI(t *testing.T) {
	uri := EncodeDataURI("image/png", []byte("png!"))
	mime, data, err := DecodeDataURI(uri)
	if err != nil || mime != "image/png" || string(data) != "png!" {
		t.Errorf("DecodeDataURI(%q) = %q %q %v", uri, mime, data, err)
	}

	mime, data, err = DecodeDataURI("anBlZw==")
	if err != nil || mime != "image/jpeg" || string(data) != "jpeg" {
		t.Errorf("Expected bare base64 as jpeg, got %q %q %v", mime, data, err)
	}

	for _, bad := range []string{"data:image/png;base64", "data:image/png,abc", "!!!"} {
		if _, _, err := DecodeDataURI(bad); err == nil {
			t.Errorf("Expected %q to fail", bad)
		}
	}
}
