package webcam

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-scalpscan/pkg/camera"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

// Snapshotter renders stills the way the preview shows them: mirrored for
// the front camera, with brightness and contrast applied, JPEG encoded.
type Snapshotter struct {
	manager *camera.Manager
}

// NewSnapshotter creates a snapshotter reading settings from manager.
func NewSnapshotter(manager *camera.Manager) *Snapshotter {
	return &Snapshotter{manager: manager}
}

// Snapshot implements scan.Snapshotter.
func (s *Snapshotter) Snapshot(f scan.Frame) (string, error) {
	src, err := frameMat(f)
	if err != nil {
		return "", err
	}
	defer src.Close()

	data, err := s.Encode(src)
	if err != nil {
		return "", err
	}
	return scan.EncodeDataURI("image/jpeg", data), nil
}

// Encode applies the still filters to src and returns JPEG bytes.
func (s *Snapshotter) Encode(src gocv.Mat) ([]byte, error) {
	cfg := s.manager.GetConfig()

	out := gocv.NewMat()
	defer out.Close()

	// dst = src*contrast + brightness*255
	src.ConvertToWithParams(&out, gocv.MatTypeCV8UC3, float32(cfg.Contrast), float32(cfg.Brightness*255))

	if cfg.Mirror {
		gocv.Flip(out, &out, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{int(gocv.IMWriteJpegQuality), cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("webcam: encode snapshot: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

func frameMat(f scan.Frame) (gocv.Mat, error) {
	if f.Image != nil {
		m, err := gocv.ImageToMatRGB(f.Image)
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("webcam: convert frame: %w", err)
		}
		return m, nil
	}
	if len(f.JPEG) == 0 {
		return gocv.Mat{}, fmt.Errorf("webcam: frame has no image")
	}
	m, err := gocv.IMDecode(f.JPEG, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("webcam: decode frame: %w", err)
	}
	if m.Empty() {
		m.Close()
		return gocv.Mat{}, fmt.Errorf("webcam: empty frame")
	}
	return m, nil
}
