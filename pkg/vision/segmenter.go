package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-scalpscan/pkg/facemesh"
)

// HairSegmenter runs a multiclass selfie segmentation ONNX model
type HairSegmenter struct {
	net       gocv.Net
	config    Config
	mu        sync.Mutex
	inputSize image.Point
}

// NewHairSegmenter loads the segmentation model
func NewHairSegmenter(cfg Config) (*HairSegmenter, error) {
	if _, err := os.Stat(cfg.SegmentModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.SegmentModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.SegmentModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load segmentation model from %s", cfg.SegmentModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &HairSegmenter{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.SegmentWidth, cfg.SegmentHeight),
	}, nil
}

// Segment returns a category mask at model resolution
func (s *HairSegmenter) Segment(img image.Image) (*facemesh.Mask, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, s.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")

	output := s.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	mask := facemesh.MaskFromScores(data, s.config.SegmentWidth, s.config.SegmentHeight,
		s.config.SegmentClasses, s.config.ChannelsLast)
	if mask == nil {
		return nil, fmt.Errorf("unexpected output size %d", len(data))
	}
	return mask, nil
}

// Close releases the network
func (s *HairSegmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}
