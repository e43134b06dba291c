package facemesh

// FaceBox is a face detector result in pixels: a bounding box plus the five
// keypoints (two eyes, nose tip, two mouth corners) in detector order.
type FaceBox struct {
	X, Y, W, H float64
	Keypoints  [5]Point
	Score      float64
}

// FromFaceBox maps a five-keypoint detection onto the mesh indices used for
// pose estimation. Cheeks sit on the box edges at nose height and the chin
// on the box bottom, below the nose.
func FromFaceBox(b FaceBox, imgW, imgH float64) *Landmarks {
	if imgW <= 0 || imgH <= 0 || b.W <= 0 || b.H <= 0 {
		return nil
	}
	norm := func(p Point) Point {
		return Point{X: p.X / imgW, Y: p.Y / imgH}
	}

	eyeA, eyeB := b.Keypoints[0], b.Keypoints[1]
	if eyeB.X < eyeA.X {
		eyeA, eyeB = eyeB, eyeA
	}
	nose := b.Keypoints[2]
	mouth := Midpoint(b.Keypoints[3], b.Keypoints[4])

	return FromKeypoints(map[int]Point{
		EyeLeft:     norm(eyeA),
		EyeRight:    norm(eyeB),
		NoseTip:     norm(nose),
		MouthCenter: norm(mouth),
		CheekLeft:   norm(Point{X: b.X, Y: nose.Y}),
		CheekRight:  norm(Point{X: b.X + b.W, Y: nose.Y}),
		Chin:        norm(Point{X: nose.X, Y: b.Y + b.H}),
	}, b.Score)
}

// MaskFromScores takes the per-pixel argmax of a segmentation model output.
// scores holds width*height*classes values, either channels-last (HWC) or
// channels-first (CHW).
func MaskFromScores(scores []float32, width, height, classes int, channelsLast bool) *Mask {
	if width <= 0 || height <= 0 || classes <= 0 || len(scores) < width*height*classes {
		return nil
	}
	m := NewMask(width, height)
	plane := width * height

	for i := 0; i < plane; i++ {
		best, bestScore := 0, float32(0)
		for c := 0; c < classes; c++ {
			var s float32
			if channelsLast {
				s = scores[i*classes+c]
			} else {
				s = scores[c*plane+i]
			}
			if c == 0 || s > bestScore {
				best, bestScore = c, s
			}
		}
		m.Categories[i] = uint8(best)
	}
	return m
}
