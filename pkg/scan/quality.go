package scan

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// QualityMonitor classifies frame lighting and head stability.
// Each frame is evaluated on its own; the only carried state is the
// previous pose for the informational stability flag.
type QualityMonitor struct {
	cfg    QualityConfig
	sample *image.RGBA
	lum    []float64

	lastPose *Pose
}

// NewQualityMonitor creates a monitor with the given thresholds.
func NewQualityMonitor(cfg QualityConfig) *QualityMonitor {
	n := cfg.SampleSize
	if n < 1 {
		n = 1
	}
	return &QualityMonitor{
		cfg:    cfg,
		sample: image.NewRGBA(image.Rect(0, 0, n, n)),
		lum:    make([]float64, 0, n*n),
	}
}

// Evaluate returns the quality signal for one frame. pose may be nil when
// no face was found.
func (q *QualityMonitor) Evaluate(img image.Image, faceDetected bool, pose *Pose) QualitySignal {
	sig := QualitySignal{
		FaceDetected: faceDetected,
		Lighting:     LightingDark,
		Stability:    Unstable,
	}

	if img != nil && !img.Bounds().Empty() {
		sig.Luminance = q.Luminance(img)
		sig.Lighting = q.Classify(sig.Luminance)
	}

	if pose != nil {
		if q.lastPose != nil &&
			math.Abs(pose.Yaw-q.lastPose.Yaw) < q.cfg.StabilityDegrees &&
			math.Abs(pose.Pitch-q.lastPose.Pitch) < q.cfg.StabilityDegrees &&
			math.Abs(pose.Roll-q.lastPose.Roll) < q.cfg.StabilityDegrees {
			sig.Stability = Stable
		}
		p := *pose
		q.lastPose = &p
	} else {
		q.lastPose = nil
	}

	return sig
}

// Classify maps a mean luminance to a lighting class.
func (q *QualityMonitor) Classify(lum float64) Lighting {
	switch {
	case lum < q.cfg.DarkThreshold:
		return LightingDark
	case lum > q.cfg.BrightThreshold:
		return LightingBright
	default:
		return LightingGood
	}
}

// Luminance downsamples img and returns its mean Rec. 601 luma (0-255).
func (q *QualityMonitor) Luminance(img image.Image) float64 {
	xdraw.ApproxBiLinear.Scale(q.sample, q.sample.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	q.lum = q.lum[:0]
	pix := q.sample.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])
		q.lum = append(q.lum, 0.299*r+0.587*g+0.114*b)
	}
	if len(q.lum) == 0 {
		return 0
	}
	return stat.Mean(q.lum, nil)
}
