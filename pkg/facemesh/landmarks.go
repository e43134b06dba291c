// Package facemesh holds the landmark and mask types exchanged with external
// face-mesh and segmentation models.
//
// Indices follow the 468-point canonical face mesh. Coordinates are
// normalized to the frame (0-1), with the origin at the top-left corner.
package facemesh

import "math"

// Canonical mesh indices used by pose estimation and overlay exclusion.
// Left and right refer to the image, not the subject.
const (
	NoseTip     = 1
	MouthCenter = 13
	Chin        = 152
	EyeLeft     = 33
	EyeRight    = 263
	CheekLeft   = 234
	CheekRight  = 454

	MeshSize = 468
)

// PoseIndices are the landmarks a detector must report for pose estimation.
var PoseIndices = []int{NoseTip, MouthCenter, EyeLeft, EyeRight, CheekLeft, CheekRight}

// Point is a normalized landmark position. Z is depth relative to the face
// center and is carried through but unused by the 2D heuristics.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Landmarks is one detected face. Detectors that only produce a few
// keypoints fill the indices they know; lookups of missing indices fail.
type Landmarks struct {
	Points map[int]Point `json:"points"`
	Score  float64       `json:"score,omitempty"`
}

// FromMesh builds landmarks from a full mesh slice, as produced by
// browser-side face mesh models.
func FromMesh(mesh []Point) *Landmarks {
	if len(mesh) == 0 {
		return nil
	}
	lm := &Landmarks{Points: make(map[int]Point, len(mesh))}
	for i, p := range mesh {
		lm.Points[i] = p
	}
	return lm
}

// FromKeypoints builds sparse landmarks from indexed keypoints.
func FromKeypoints(points map[int]Point, score float64) *Landmarks {
	lm := &Landmarks{Points: make(map[int]Point, len(points)), Score: score}
	for i, p := range points {
		lm.Points[i] = p
	}
	return lm
}

// Get returns the landmark at index i.
func (l *Landmarks) Get(i int) (Point, bool) {
	if l == nil || l.Points == nil {
		return Point{}, false
	}
	p, ok := l.Points[i]
	if !ok || math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return Point{}, false
	}
	return p, true
}

// Has reports whether every listed index is present.
func (l *Landmarks) Has(indices ...int) bool {
	for _, i := range indices {
		if _, ok := l.Get(i); !ok {
			return false
		}
	}
	return true
}

// Len returns the number of known landmarks.
func (l *Landmarks) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Points)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
}
