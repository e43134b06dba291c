package scan

import (
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/teslashibe/go-scalpscan/pkg/facemesh"
)

// Compositor tints hair pixels of a segmentation mask onto a guidance
// layer. It has no effect on capture decisions.
type Compositor struct {
	cfg OverlayConfig
}

// NewCompositor creates a compositor.
func NewCompositor(cfg OverlayConfig) *Compositor {
	return &Compositor{cfg: cfg}
}

// Compose draws the hair highlight onto dst. lm may be nil, in which case
// no beard exclusion is applied.
func (c *Compositor) Compose(dst *image.RGBA, mask *facemesh.Mask, lm *facemesh.Landmarks) error {
	if dst == nil {
		return fmt.Errorf("scan: nil overlay target")
	}
	if err := mask.Validate(); err != nil {
		return err
	}

	alpha := c.HairAlpha(mask, lm)

	// Stretch the mask-resolution alpha to the target.
	bounds := dst.Bounds()
	scaled := image.NewAlpha(bounds)
	xdraw.NearestNeighbor.Scale(scaled, bounds, alpha, alpha.Bounds(), xdraw.Src, nil)

	xdraw.DrawMask(dst, bounds, image.NewUniform(c.cfg.Tint), image.Point{}, scaled, bounds.Min, xdraw.Over)
	return nil
}

// HairAlpha returns an opaque-where-hair alpha mask at mask resolution,
// with the lower-face region cleared.
func (c *Compositor) HairAlpha(mask *facemesh.Mask, lm *facemesh.Landmarks) *image.Alpha {
	alpha := image.NewAlpha(image.Rect(0, 0, mask.Width, mask.Height))

	exclude := image.Rectangle{}
	if c.cfg.ExcludeBeard {
		exclude = LowerFaceRegion(lm, mask.Width, mask.Height, c.cfg.BeardMargin)
	}

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) != c.cfg.HairCategory {
				continue
			}
			if image.Pt(x, y).In(exclude) {
				continue
			}
			alpha.SetAlpha(x, y, color.Alpha{A: 0xff})
		}
	}
	return alpha
}

// LowerFaceRegion returns the pixel rectangle between the cheeks, from
// cheek height down past the chin, where facial hair is often mistaken for
// scalp hair. It is empty when the landmarks are missing.
func LowerFaceRegion(lm *facemesh.Landmarks, width, height int, margin float64) image.Rectangle {
	if !lm.Has(facemesh.CheekLeft, facemesh.CheekRight, facemesh.Chin) {
		return image.Rectangle{}
	}
	cl, _ := lm.Get(facemesh.CheekLeft)
	cr, _ := lm.Get(facemesh.CheekRight)
	chin, _ := lm.Get(facemesh.Chin)

	top := (cl.Y + cr.Y) / 2
	bottom := chin.Y + (chin.Y-top)*margin
	if bottom <= top {
		return image.Rectangle{}
	}

	r := image.Rect(
		int(math.Floor(math.Min(cl.X, cr.X)*float64(width))),
		int(math.Floor(top*float64(height))),
		int(math.Ceil(math.Max(cl.X, cr.X)*float64(width))),
		int(math.Ceil(bottom*float64(height))),
	)
	return r.Intersect(image.Rect(0, 0, width, height))
}
