package scan

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// ImageSnapshotter takes stills without native image libraries. Frames that
// arrive as JPEG and need no mirroring or filtering are passed through
// unchanged.
type ImageSnapshotter struct {
	Mirror     bool
	Quality    int     // JPEG quality, 1-100; 0 uses 90
	Brightness float64 // Offset in [-1, 1], scaled to 255
	Contrast   float64 // Linear gain; 0 means unchanged
}

func (s ImageSnapshotter) filtered() bool {
	return s.Brightness != 0 || (s.Contrast != 0 && s.Contrast != 1)
}

// Snapshot implements Snapshotter.
func (s ImageSnapshotter) Snapshot(f Frame) (string, error) {
	if !s.Mirror && !s.filtered() && len(f.JPEG) > 0 {
		return EncodeDataURI("image/jpeg", f.JPEG), nil
	}

	img := f.Image
	if img == nil {
		if len(f.JPEG) == 0 {
			return "", fmt.Errorf("scan: frame %d has no image", f.Seq)
		}
		decoded, _, err := image.Decode(bytes.NewReader(f.JPEG))
		if err != nil {
			return "", fmt.Errorf("scan: decode frame %d: %w", f.Seq, err)
		}
		img = decoded
	}
	if s.Mirror {
		img = mirror(img)
	}
	if s.filtered() {
		img = adjust(img, s.Contrast, s.Brightness)
	}

	q := s.Quality
	if q <= 0 || q > 100 {
		q = 90
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return "", fmt.Errorf("scan: encode snapshot: %w", err)
	}
	return EncodeDataURI("image/jpeg", buf.Bytes()), nil
}

// mirror flips img horizontally.
func mirror(img image.Image) *image.RGBA {
	b := img.Bounds()
	src := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	out := image.NewRGBA(src.Bounds())
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w; x++ {
			copy(dst[(w-1-x)*4:(w-x)*4], row[x*4:x*4+4])
		}
	}
	return out
}

// adjust returns img with v*contrast + brightness*255 applied per channel.
func adjust(img image.Image, contrast, brightness float64) *image.RGBA {
	if contrast == 0 {
		contrast = 1
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	offset := brightness * 255
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(out.Pix[i+c])*contrast + offset
			switch {
			case v < 0:
				v = 0
			case v > 255:
				v = 255
			}
			out.Pix[i+c] = uint8(v + 0.5)
		}
	}
	return out
}
