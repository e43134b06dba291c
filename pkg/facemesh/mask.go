package facemesh

import "fmt"

// Category values of the multiclass selfie segmentation model.
const (
	CategoryBackground uint8 = 0
	CategoryHair       uint8 = 1
	CategoryBodySkin   uint8 = 2
	CategoryFaceSkin   uint8 = 3
	CategoryClothes    uint8 = 4
	CategoryOther      uint8 = 5
)

// Mask is a per-pixel category map in row-major order.
type Mask struct {
	Width      int
	Height     int
	Categories []uint8
}

// NewMask allocates a mask filled with CategoryBackground.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:      width,
		Height:     height,
		Categories: make([]uint8, width*height),
	}
}

// Validate checks that the category buffer matches the dimensions.
func (m *Mask) Validate() error {
	if m == nil {
		return fmt.Errorf("facemesh: nil mask")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("facemesh: invalid mask size %dx%d", m.Width, m.Height)
	}
	if len(m.Categories) != m.Width*m.Height {
		return fmt.Errorf("facemesh: mask has %d values, want %d", len(m.Categories), m.Width*m.Height)
	}
	return nil
}

// At returns the category at (x, y). Out-of-range reads return background.
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return CategoryBackground
	}
	return m.Categories[y*m.Width+x]
}

// Set stores a category at (x, y).
func (m *Mask) Set(x, y int, c uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Categories[y*m.Width+x] = c
}

// Count returns how many pixels carry category c.
func (m *Mask) Count(c uint8) int {
	n := 0
	for _, v := range m.Categories {
		if v == c {
			n++
		}
	}
	return n
}
