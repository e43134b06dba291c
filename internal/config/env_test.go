package config

import "testing"

func TestEnv(t *testing.T) {
	t.Setenv("SCALPSCAN_PORT", "")
	if got := Port(); got != DefaultPort {
		t.Errorf("Port() = %q, want %q", got, DefaultPort)
	}
	t.Setenv("SCALPSCAN_PORT", "9090")
	if got := Port(); got != "9090" {
		t.Errorf("Port() = %q, want 9090", got)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("CAMERA_DEVICE", "2")
	if got := CameraDevice(); got != 2 {
		t.Errorf("CameraDevice() = %d, want 2", got)
	}
	t.Setenv("CAMERA_DEVICE", "usb")
	if got := CameraDevice(); got != 0 {
		t.Errorf("CameraDevice() with invalid value = %d, want 0", got)
	}
}

func TestGeminiAPIKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	if got := GeminiAPIKey(); got != "google-key" {
		t.Errorf("GeminiAPIKey() = %q, want google-key", got)
	}
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	if got := GeminiAPIKey(); got != "gemini-key" {
		t.Errorf("GeminiAPIKey() = %q, want gemini-key", got)
	}
}
