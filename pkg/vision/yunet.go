package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-scalpscan/pkg/debug"
	"github.com/teslashibe/go-scalpscan/pkg/facemesh"
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face landmarks
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a new YuNet landmark detector using GoCV's built-in FaceDetectorYN
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.FaceModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.FaceModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.FaceModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		float32(cfg.NMSThresh),
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// DetectLandmarks returns the highest-scoring face, or nil if none
func (d *YuNetDetector) DetectLandmarks(img image.Image) (*facemesh.Landmarks, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	return d.detectMat(mat)
}

// DetectJPEG decodes a JPEG and returns the highest-scoring face
func (d *YuNetDetector) DetectJPEG(jpeg []byte) (*facemesh.Landmarks, error) {
	mat, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer mat.Close()

	return d.detectMat(mat)
}

func (d *YuNetDetector) detectMat(img gocv.Mat) (*facemesh.Landmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(img, &faces)

	boxes := make([]facemesh.FaceBox, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-13: 5 facial landmarks (x,y pairs)
		// 14: face score
		b := facemesh.FaceBox{
			X:     float64(faces.GetFloatAt(r, 0)),
			Y:     float64(faces.GetFloatAt(r, 1)),
			W:     float64(faces.GetFloatAt(r, 2)),
			H:     float64(faces.GetFloatAt(r, 3)),
			Score: float64(faces.GetFloatAt(r, 14)),
		}
		for k := 0; k < 5; k++ {
			b.Keypoints[k] = facemesh.Point{
				X: float64(faces.GetFloatAt(r, 4+2*k)),
				Y: float64(faces.GetFloatAt(r, 5+2*k)),
			}
		}
		boxes = append(boxes, b)
	}

	best := SelectBest(boxes)
	if best == nil {
		return nil, nil
	}
	debug.FrameLog("yunet: found %d face(s), best %.2f\n", len(boxes), best.Score)

	return facemesh.FromFaceBox(*best, imgW, imgH), nil
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
