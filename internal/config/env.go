// Package config provides environment helpers for scalpscan commands.
package config

import (
	"os"
	"strconv"
)

// Defaults used when the corresponding variable is unset.
const (
	DefaultPort             = "8080"
	DefaultLeadsPath        = "data/leads.json"
	DefaultFaceModelPath    = "models/face_detection_yunet.onnx"
	DefaultSegmentModelPath = "models/selfie_multiclass_256x256.onnx"
)

// Env returns the value of key, or def if unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns key parsed as an int, or def if unset or invalid.
func EnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GeminiAPIKey returns GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
func GeminiAPIKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// OpenAIAPIKey returns OPENAI_API_KEY.
func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// Port returns SCALPSCAN_PORT or DefaultPort.
func Port() string {
	return Env("SCALPSCAN_PORT", DefaultPort)
}

// CameraDevice returns CAMERA_DEVICE as a device index, default 0.
func CameraDevice() int {
	return EnvInt("CAMERA_DEVICE", 0)
}

// FaceModelPath returns FACE_MODEL_PATH or the bundled default.
func FaceModelPath() string {
	return Env("FACE_MODEL_PATH", DefaultFaceModelPath)
}

// SegmentModelPath returns SEGMENT_MODEL_PATH or the bundled default.
func SegmentModelPath() string {
	return Env("SEGMENT_MODEL_PATH", DefaultSegmentModelPath)
}

// LeadsPath returns LEADS_PATH or DefaultLeadsPath.
func LeadsPath() string {
	return Env("LEADS_PATH", DefaultLeadsPath)
}

// Supabase returns the Supabase project URL and service key. Lead
// forwarding is disabled when either is empty.
func Supabase() (url, key string) {
	return os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_KEY")
}
