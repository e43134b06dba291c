package scan

import (
	"math"

	"github.com/teslashibe/go-scalpscan/pkg/facemesh"
)

// EstimatePose converts face landmarks into a yaw/pitch/roll estimate.
//
// These are 2D heuristics, not a calibrated camera model. ok is false when
// the landmarks are missing or degenerate; callers must treat the pose as
// undefined rather than zero.
func EstimatePose(lm *facemesh.Landmarks, cfg PoseConfig) (Pose, bool) {
	if !lm.Has(facemesh.PoseIndices...) {
		return Pose{}, false
	}

	nose, _ := lm.Get(facemesh.NoseTip)
	mouth, _ := lm.Get(facemesh.MouthCenter)
	eyeL, _ := lm.Get(facemesh.EyeLeft)
	eyeR, _ := lm.Get(facemesh.EyeRight)
	cheekL, _ := lm.Get(facemesh.CheekLeft)
	cheekR, _ := lm.Get(facemesh.CheekRight)

	eyeMid := facemesh.Midpoint(eyeL, eyeR)

	cheekWidth := math.Abs(cheekR.X - cheekL.X)
	noseToMouth := math.Abs(mouth.Y - nose.Y)
	if cheekWidth < cfg.MinSpan || noseToMouth < cfg.MinSpan {
		return Pose{}, false
	}

	yaw := (nose.X - eyeMid.X) / cheekWidth * cfg.YawScale
	pitch := ((nose.Y-eyeMid.Y)/noseToMouth - cfg.PitchBias) * cfg.PitchScale
	roll := math.Atan2(eyeR.Y-eyeL.Y, eyeR.X-eyeL.X) * 180 / math.Pi

	return Pose{Yaw: yaw, Pitch: pitch, Roll: roll}, true
}

// SyntheticLandmarks builds a landmark set that EstimatePose maps back to
// the given pose under cfg. Used by simulators and tests.
func SyntheticLandmarks(p Pose, cfg PoseConfig) *facemesh.Landmarks {
	const (
		midX, midY  = 0.5, 0.4
		eyeSpan     = 0.2
		cheekWidth  = 0.4
		noseToMouth = 0.1
	)

	r := p.Roll * math.Pi / 180
	dx, dy := eyeSpan/2*math.Cos(r), eyeSpan/2*math.Sin(r)

	noseX := midX + p.Yaw/cfg.YawScale*cheekWidth
	noseY := midY + (p.Pitch/cfg.PitchScale+cfg.PitchBias)*noseToMouth

	return facemesh.FromKeypoints(map[int]facemesh.Point{
		facemesh.EyeLeft:     {X: midX - dx, Y: midY - dy},
		facemesh.EyeRight:    {X: midX + dx, Y: midY + dy},
		facemesh.NoseTip:     {X: noseX, Y: noseY},
		facemesh.MouthCenter: {X: noseX, Y: noseY + noseToMouth},
		facemesh.CheekLeft:   {X: midX - cheekWidth/2, Y: midY + 0.1},
		facemesh.CheekRight:  {X: midX + cheekWidth/2, Y: midY + 0.1},
		facemesh.Chin:        {X: noseX, Y: noseY + 0.25},
	}, 1)
}
