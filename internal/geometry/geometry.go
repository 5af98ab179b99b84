// Package geometry converts between rendered pixel coordinates and the
// percent-of-container coordinates stored on text blocks.
package geometry

// Size is a measured container size in pixels.
type Size struct {
	Width, Height float64
}

// Nominal is used in place of an unmeasured (zero or negative) dimension.
var Nominal = Size{Width: 1200, Height: 675}

// Normalized replaces any non-positive dimension with the nominal one.
func (s Size) Normalized() Size {
	if s.Width <= 0 {
		s.Width = Nominal.Width
	}
	if s.Height <= 0 {
		s.Height = Nominal.Height
	}
	return s
}

// ToPercent returns px as a percentage of dim.
func ToPercent(px, dim float64) float64 {
	if dim <= 0 {
		dim = Nominal.Width
	}
	return px / dim * 100
}

// ToPixels returns pct percent of dim.
func ToPixels(pct, dim float64) float64 {
	if dim <= 0 {
		dim = Nominal.Width
	}
	return pct * dim / 100
}

// PixelRect is a rectangle in rendered pixels, as reported by drag and resize handles.
type PixelRect struct {
	X, Y, Width, Height float64
}

// Placement is a rectangle in percent of the container.
type Placement struct {
	X, Y, Width, Height float64
}

// ToPlacement maps a pixel rectangle into percent using the live container size.
func ToPlacement(r PixelRect, size Size) Placement {
	size = size.Normalized()
	return Placement{
		X:      ToPercent(r.X, size.Width),
		Y:      ToPercent(r.Y, size.Height),
		Width:  ToPercent(r.Width, size.Width),
		Height: ToPercent(r.Height, size.Height),
	}
}

// ToPixelRect is the inverse of ToPlacement.
func ToPixelRect(p Placement, size Size) PixelRect {
	size = size.Normalized()
	return PixelRect{
		X:      ToPixels(p.X, size.Width),
		Y:      ToPixels(p.Y, size.Height),
		Width:  ToPixels(p.Width, size.Width),
		Height: ToPixels(p.Height, size.Height),
	}
}

// Position maps a dragged pixel position into percent.
func Position(px, py float64, size Size) (x, y float64) {
	size = size.Normalized()
	return ToPercent(px, size.Width), ToPercent(py, size.Height)
}

// DefaultBlock is where a new text block lands, in pixels.
var DefaultBlock = PixelRect{X: 50, Y: 50, Width: 300, Height: 100}

// DefaultPlacement converts DefaultBlock with the current measurement.
func DefaultPlacement(size Size) Placement {
	return ToPlacement(DefaultBlock, size)
}

// Viewport reports the live rendered size of the slide container.
type Viewport interface {
	Size() Size
}

// Fixed is a Viewport with a constant size.
type Fixed Size

func (f Fixed) Size() Size { return Size(f) }

// ViewportFunc adapts a measuring function to Viewport.
type ViewportFunc func() Size

func (f ViewportFunc) Size() Size { return f() }
