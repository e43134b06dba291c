package webcam

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/teslashibe/go-scalpscan/pkg/camera"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

func TestSnapshot_EncodesDataURI(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	s := NewSnapshotter(camera.NewManager(camera.DefaultConfig()))
	uri, err := s.Snapshot(scan.Frame{Image: img})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/jpeg;base64,") {
		t.Errorf("Expected JPEG data URI, got %.40s", uri)
	}

	mime, data, err := scan.DecodeDataURI(uri)
	if err != nil || mime != "image/jpeg" || len(data) < 4 || data[0] != 0xff || data[1] != 0xd8 {
		t.Errorf("Expected JPEG payload, got %q %d bytes %v", mime, len(data), err)
	}
}

func TestSnapshot_NoImage(t *testing.T) {
	s := NewSnapshotter(camera.NewManager(camera.DefaultConfig()))
	if _, err := s.Snapshot(scan.Frame{}); err == nil {
		t.Error("Expected error for empty frame")
	}
}
