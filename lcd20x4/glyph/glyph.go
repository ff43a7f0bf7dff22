package glyph

import (
	"image"
	"image/color"
	"image/draw"
)

// Glyph dimensions in pixels.
const (
	Width  = 5
	Height = 8
)

// Bit represents one pixel, lit or dark.
type Bit bool

const (
	On  Bit = true
	Off Bit = false
)

// RGBA converts the bit to standard RGBA, white for On and black for Off.
func (b Bit) RGBA() (r, g, bl, a uint32) {
	if b {
		return 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF
	}
	return 0, 0, 0, 0xFFFF
}

func (b Bit) String() string {
	if b {
		return "On"
	}
	return "Off"
}

// toBit converts any color.Color to Bit. A pixel is lit when its luminance
// reaches half scale.
func toBit(c color.Color) color.Color {
	if b, ok := c.(Bit); ok {
		return b
	}
	r, g, b, _ := c.RGBA()
	// Standard grayscale conversion: 0.299R + 0.587G + 0.114B
	y := (299*r + 587*g + 114*b + 500) / 1000
	return Bit(y >= 0x8000)
}

// BitModel converts colors to Bit.
var BitModel = color.ModelFunc(toBit)

// Bitmap is one 5x8 glyph in the controller's CGRAM layout: row y lives in
// Rows[y] with column 0 at bit 4 and column 4 at bit 0. The three high bits
// of each row are ignored by the hardware.
type Bitmap struct {
	Rows [Height]byte
}

// ColorModel returns the color model of the glyph.
func (b *Bitmap) ColorModel() color.Model {
	return BitModel
}

// Bounds returns the fixed 5x8 bounds.
func (b *Bitmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (b *Bitmap) At(x, y int) color.Color {
	return b.BitAt(x, y)
}

// BitAt returns the Bit of the pixel at (x, y).
func (b *Bitmap) BitAt(x, y int) Bit {
	if !(image.Point{X: x, Y: y}.In(b.Bounds())) {
		return Off
	}
	return Bit(b.Rows[y]&rowMask(x) != 0)
}

// Set sets the color of the pixel at (x, y).
func (b *Bitmap) Set(x, y int, c color.Color) {
	b.SetBit(x, y, BitModel.Convert(c).(Bit))
}

// SetBit sets the pixel at (x, y). It is faster than Set() as it doesn't
// require color conversion.
func (b *Bitmap) SetBit(x, y int, bit Bit) {
	if !(image.Point{X: x, Y: y}.In(b.Bounds())) {
		return
	}
	if bit {
		b.Rows[y] |= rowMask(x)
	} else {
		b.Rows[y] &^= rowMask(x)
	}
}

// RowBytes returns the glyph's CGRAM row encoding with the unused high bits
// cleared.
func (b *Bitmap) RowBytes() [Height]byte {
	rows := b.Rows
	for i := range rows {
		rows[i] &= 1<<Width - 1
	}
	return rows
}

// rowMask returns the row-byte bit for column x: the leftmost column sits at
// bit 4.
func rowMask(x int) byte {
	return 1 << uint(Width-1-x)
}

var (
	_ image.Image = &Bitmap{}
	_ draw.Image  = &Bitmap{}
)
