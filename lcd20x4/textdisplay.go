package lcd20x4

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
)

// The display.TextDisplay surface. Rows and columns are 1-based there, while
// the rest of this package counts from 0.

// Cols returns the number of characters per row.
func (d *Dev) Cols() int {
	return Columns
}

// Rows returns the number of display rows.
func (d *Dev) Rows() int {
	return Lines
}

// MinCol returns the first addressable column.
func (d *Dev) MinCol() int {
	return 1
}

// MinRow returns the first addressable row.
func (d *Dev) MinRow() int {
	return 1
}

// MoveTo moves the cursor to the 1-based row and column.
func (d *Dev) MoveTo(row, col int) error {
	return d.SetCursorPosition(row-1, col-1)
}

// Move shifts the cursor one cell forward or backward. The display has no
// vertical cursor moves.
func (d *Dev) Move(dir display.CursorDirection) error {
	if d.halted {
		return errHalted
	}
	b := cmdShift
	switch dir {
	case display.Forward:
		b |= shiftRight
	case display.Backward:
	default:
		return fmt.Errorf("lcd20x4: %w", display.ErrNotImplemented)
	}
	if err := d.command(b, writeSettle); err != nil {
		return err
	}
	switch {
	case dir == display.Forward && d.col < Columns:
		d.col++
	case dir == display.Backward && d.col > 0:
		d.col--
	}
	return nil
}

// Cursor sets the cursor shape. CursorUnderline draws the underline,
// CursorBlock and CursorBlink the blinking block, and CursorOff hides the
// cursor again; modes combine.
func (d *Dev) Cursor(modes ...display.CursorMode) error {
	if d.halted {
		return errHalted
	}
	cursor, blink := false, false
	for _, m := range modes {
		switch m {
		case display.CursorOff:
			cursor, blink = false, false
		case display.CursorUnderline:
			cursor = true
		case display.CursorBlock, display.CursorBlink:
			blink = true
		default:
			return fmt.Errorf("lcd20x4: unknown cursor mode %d", m)
		}
	}
	return d.setControl(d.on, cursor, blink)
}

// Display switches the panel on or off. Contents and cursor shape are kept.
func (d *Dev) Display(on bool) error {
	if on {
		return d.DisplayOn()
	}
	return d.DisplayOff()
}

// AutoScroll is not supported by this driver.
func (d *Dev) AutoScroll(enabled bool) error {
	return display.ErrNotImplemented
}

// Write forwards every byte to the display at the current position. Bytes
// are not interpreted and lines do not wrap; past the end of a line the
// display's own address order decides where output lands while the cached
// column stays saturated. Use WriteLine for clipped output.
func (d *Dev) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := d.WriteChar(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// WriteString writes s like Write does.
func (d *Dev) WriteString(s string) (int, error) {
	return d.Write([]byte(s))
}

var (
	_ conn.Resource       = &Dev{}
	_ display.TextDisplay = &Dev{}
)
