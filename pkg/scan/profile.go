package scan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile bundles a step list with the session parameters tuned for it.
// Different capture flows are different profiles, not different code.
type Profile struct {
	Name   string `yaml:"name"`
	Preset string `yaml:"preset"` // default, strict, relaxed
	Config Config `yaml:"config"`
	Steps  []Step `yaml:"steps"`
}

// Preset returns a named preset config, or nil if unknown.
func Preset(name string) *Config {
	var cfg Config
	switch name {
	case "", "default":
		cfg = DefaultConfig()
	case "strict":
		cfg = StrictConfig()
	case "relaxed":
		cfg = RelaxedConfig()
	default:
		return nil
	}
	return &cfg
}

// DefaultProfile returns the built-in profile.
func DefaultProfile() Profile {
	return Profile{
		Name:   "default",
		Preset: "default",
		Config: DefaultConfig(),
		Steps:  DefaultSteps(),
	}
}

// ParseProfile decodes a YAML profile. Fields omitted from the document keep
// the values of the named preset, and an omitted step list keeps
// DefaultSteps.
func ParseProfile(data []byte) (Profile, error) {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Profile{}, fmt.Errorf("scan: parse profile: %w", err)
	}
	base := Preset(head.Preset)
	if base == nil {
		return Profile{}, fmt.Errorf("scan: unknown preset %q", head.Preset)
	}

	p := Profile{Preset: head.Preset, Config: *base}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("scan: parse profile: %w", err)
	}
	if len(p.Steps) == 0 {
		p.Steps = DefaultSteps()
	}
	if err := p.Config.validateErr(); err != nil {
		return Profile{}, err
	}
	if err := ValidateSteps(p.Steps); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadProfile reads a YAML profile from disk.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("scan: read profile: %w", err)
	}
	return ParseProfile(data)
}
