package vision

import "github.com/teslashibe/go-scalpscan/pkg/facemesh"

// SelectBest picks the subject from multiple detections.
// Priority: score * 0.7 + relative area * 0.3
func SelectBest(boxes []facemesh.FaceBox) *facemesh.FaceBox {
	if len(boxes) == 0 {
		return nil
	}
	if len(boxes) == 1 {
		return &boxes[0]
	}

	maxArea := 0.0
	for _, b := range boxes {
		if a := b.W * b.H; a > maxArea {
			maxArea = a
		}
	}
	if maxArea <= 0 {
		maxArea = 1
	}

	bestScore := -1.0
	var best *facemesh.FaceBox
	for i := range boxes {
		score := boxes[i].Score*0.7 + (boxes[i].W*boxes[i].H/maxArea)*0.3
		if score > bestScore {
			bestScore = score
			best = &boxes[i]
		}
	}
	return best
}
