package scan

import (
	"errors"
	"image"
	"sync"

	"github.com/teslashibe/go-scalpscan/pkg/facemesh"
)

// grayImage returns a uniform frame with the given luma.
func grayImage(v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 0xff
	}
	return img
}

// poseFrame builds a well-lit frame with landmarks for the given pose.
func poseFrame(seq uint64, p Pose) Frame {
	return Frame{
		Seq:               seq,
		Image:             grayImage(128),
		Landmarks:         SyntheticLandmarks(p, DefaultConfig().Pose),
		DetectionIncluded: true,
	}
}

// noFaceFrame builds a frame with detection included and no face.
func noFaceFrame(seq uint64, luma uint8) Frame {
	return Frame{Seq: seq, Image: grayImage(luma), DetectionIncluded: true}
}

type fakeSnapshotter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSnapshotter) Snapshot(Frame) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return EncodeDataURI("image/jpeg", []byte{0xff, 0xd8, 0xff}), nil
}

type fakeDetector struct {
	lm     *facemesh.Landmarks
	closed int
}

func (d *fakeDetector) DetectLandmarks(image.Image) (*facemesh.Landmarks, error) {
	return d.lm, nil
}

func (d *fakeDetector) Close() error {
	d.closed++
	return nil
}

type fakeSegmenter struct {
	mask   *facemesh.Mask
	panics bool
	calls  int
	closed int
}

func (s *fakeSegmenter) Segment(image.Image) (*facemesh.Mask, error) {
	s.calls++
	if s.panics {
		panic("segmenter exploded")
	}
	if s.mask == nil {
		return nil, errors.New("no model")
	}
	return s.mask, nil
}

func (s *fakeSegmenter) Close() error {
	s.closed++
	return nil
}

// sessionSteps is the four-step flow used across scenario tests.
func sessionSteps() []Step {
	all := DefaultSteps()
	return []Step{all[0], all[1], all[2], all[4]}
}

