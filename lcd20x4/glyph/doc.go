// Package glyph provides the 5x8 single-bit bitmap format used for the
// display's custom characters.
//
// The display controller keeps eight user-definable glyphs in CGRAM. Each
// glyph is eight rows of five pixels, stored as one byte per row with the
// pixel columns in the low five bits, leftmost column at bit 4.
//
// Memory layout example for an up arrow:
//
//	Row 0: ..X..  0x04
//	Row 1: .XXX.  0x0E
//	Row 2: X.X.X  0x15
//	Row 3: ..X..  0x04
//	Row 4: ..X..  0x04
//	Row 5: ..X..  0x04
//	Row 6: ..X..  0x04
//	Row 7: .....  0x00
//
// This package provides:
//
// - Bit: a color type representing one pixel, On or Off
// - BitModel: a color model converting standard Go colors to Bit
// - Bitmap: an image.Image and draw.Image implementation over the CGRAM layout
//
// Example usage:
//
//	// Build a glyph from its row encoding
//	up := &glyph.Bitmap{Rows: [8]byte{0x04, 0x0E, 0x15, 0x04, 0x04, 0x04, 0x04, 0x00}}
//
//	// Or draw it pixel by pixel
//	b := &glyph.Bitmap{}
//	b.SetBit(2, 0, glyph.On)
//
//	// Use with standard Go image operations
//	draw.Draw(b, b.Bounds(), image.NewUniform(glyph.On), image.Point{}, draw.Src)
package glyph
