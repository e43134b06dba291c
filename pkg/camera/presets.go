package camera

// Preset names for common configurations
const (
	PresetDefault  = "default"
	PresetLegacy   = "legacy"
	Preset1080p    = "1080p"
	PresetLowLight = "lowlight"
	PresetBright   = "bright"
	PresetRear     = "rear"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetLegacy:   LegacyConfig(),
		Preset1080p:    HD1080Config(),
		PresetLowLight: LowLightConfig(),
		PresetBright:   BrightConfig(),
		PresetRear:     RearConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLegacy,
		Preset1080p,
		PresetLowLight,
		PresetBright,
		PresetRear,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// HD1080Config returns 1080p Full HD configuration.
// Sharper stills for density analysis, higher CPU usage.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// LowLightConfig lifts brightness for dim rooms.
func LowLightConfig() Config {
	cfg := DefaultConfig()
	cfg.Framerate = 15 // Longer exposure per frame
	cfg.Brightness = 0.2
	cfg.Contrast = 1.15
	return cfg
}

// BrightConfig holds back highlights under direct light.
func BrightConfig() Config {
	cfg := DefaultConfig()
	cfg.Brightness = -0.15
	cfg.Contrast = 0.9
	return cfg
}

// RearConfig is for a helper holding the phone behind the patient.
// The rear camera preview is not mirrored.
func RearConfig() Config {
	cfg := HD1080Config()
	cfg.FacingMode = "environment"
	cfg.Mirror = false
	return cfg
}
