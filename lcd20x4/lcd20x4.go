package lcd20x4

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/lab-coding-de/rpi-electronics/lcd20x4/glyph"
)

// Display geometry.
const (
	// Lines is the number of display lines.
	Lines = 4
	// Columns is the number of characters per line.
	Columns = 20
)

var (
	// ErrInvalidPosition is returned when a line or column falls outside the
	// 20x4 character matrix.
	ErrInvalidPosition = errors.New("lcd20x4: invalid position")
	// ErrInvalidPinConfiguration is returned when the wiring description
	// cannot drive the display, such as a data bus that is neither 4 nor 8
	// lines wide.
	ErrInvalidPinConfiguration = errors.New("lcd20x4: invalid pin configuration")
)

var errHalted = errors.New("lcd20x4: halted")

// Instruction bytes of the display controller.
const (
	cmdClearDisplay   byte = 0x01
	cmdReturnHome     byte = 0x02
	cmdEntryModeSet   byte = 0x04
	cmdDisplayControl byte = 0x08
	cmdShift          byte = 0x10
	cmdFunctionSet    byte = 0x20
	cmdSetCGRAMAddr   byte = 0x40
	cmdSetDDRAMAddr   byte = 0x80
)

// Instruction option bits.
const (
	entryIncrement byte = 0x02 // cursor moves right after each write

	displayOn byte = 0x04
	cursorOn  byte = 0x02
	blinkOn   byte = 0x01

	shiftRight byte = 0x04

	functionEightBit byte = 0x10
	functionTwoLines byte = 0x08
)

// Settle delays. The controller is driven write-only, so instead of polling
// the busy flag every write holds for the instruction's worst-case execution
// time.
const (
	writeSettle  = 37 * time.Microsecond   // ordinary instruction or character
	clearSettle  = 15 * time.Millisecond   // clear display and return home
	resetSettle  = 4100 * time.Microsecond // function-set while leaving reset
	primerSettle = 100 * time.Microsecond  // second 4-bit reset primer
)

// lineOffsets maps each display line to its DDRAM base address. Lines 0 and 2
// share the first address range, lines 1 and 3 the second.
var lineOffsets = [Lines]byte{0x00, 0x40, 0x14, 0x54}

var blankLine = strings.Repeat(" ", Columns)

// Opts holds the construction policies of the controller.
type Opts struct {
	// DisplayOn powers the display panel once initialization completes. The
	// display always comes up cleared with the cursor at the origin; without
	// DisplayOn it stays dark until a DisplayOn call.
	DisplayOn bool
}

// Dev is a handle to an initialized 20x4 character display.
//
// Dev is not safe for concurrent use; callers serialize access themselves.
type Dev struct {
	t     Transport
	width int

	line   int
	col    int
	on     bool
	cursor bool
	blink  bool
	halted bool
}

// New initializes the display behind t and returns a controller for it. Any
// transport driving 4 or 8 data lines can be substituted; NewGPIO and
// NewExpander cover the two supported wirings.
func New(t Transport, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	w := t.Width()
	if w != 4 && w != 8 {
		return nil, fmt.Errorf("%w: transport drives %d data lines, expected 4 or 8", ErrInvalidPinConfiguration, w)
	}
	d := &Dev{t: t, width: w}
	if err := d.init(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// init walks the controller out of reset: bus width locked in, left-to-right
// entry, display cleared and dark unless the DisplayOn policy asks otherwise.
func (d *Dev) init(opts *Opts) error {
	if d.width == 4 {
		// The controller powers up expecting 8-bit transfers. The 0x33/0x32
		// primer pair walks it into 4-bit mode from any reset state; each
		// primer is an ordinary nibble-split write.
		if err := d.command(0x33, resetSettle); err != nil {
			return err
		}
		if err := d.command(0x32, primerSettle); err != nil {
			return err
		}
		if err := d.command(cmdFunctionSet|functionTwoLines, writeSettle); err != nil {
			return err
		}
	} else {
		fs := cmdFunctionSet | functionEightBit | functionTwoLines
		for i := 0; i < 3; i++ {
			if err := d.command(fs, resetSettle); err != nil {
				return err
			}
		}
	}
	if err := d.command(cmdEntryModeSet|entryIncrement, writeSettle); err != nil {
		return err
	}
	if err := d.setControl(false, false, false); err != nil {
		return err
	}
	if err := d.Clear(); err != nil {
		return err
	}
	if opts.DisplayOn {
		return d.DisplayOn()
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("lcd20x4.Dev{%d-bit}", d.width)
}

// Halt powers the display panel off and releases the transport's lines. Halt
// may be called more than once; every other method fails once the controller
// is halted.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	// Best effort, the panel should go dark even when the bus is on its way
	// out.
	_ = d.setControl(false, d.cursor, d.blink)
	d.halted = true
	return d.t.Halt()
}

// DisplayOn powers the display panel. DDRAM content is preserved while the
// panel is dark, so whatever was written before reappears.
func (d *Dev) DisplayOn() error {
	if d.halted {
		return errHalted
	}
	return d.setControl(true, d.cursor, d.blink)
}

// DisplayOff blanks the display panel without losing its content.
func (d *Dev) DisplayOff() error {
	if d.halted {
		return errHalted
	}
	return d.setControl(false, d.cursor, d.blink)
}

// setControl writes the display-control instruction and records the new
// panel state once the write went through.
func (d *Dev) setControl(on, cursor, blink bool) error {
	b := cmdDisplayControl
	if on {
		b |= displayOn
	}
	if cursor {
		b |= cursorOn
	}
	if blink {
		b |= blinkOn
	}
	if err := d.command(b, writeSettle); err != nil {
		return err
	}
	d.on, d.cursor, d.blink = on, cursor, blink
	return nil
}

// SetCursorPosition moves the write position to line 0..3 and column 0..19.
// The cached position only changes when the display accepted the move.
func (d *Dev) SetCursorPosition(line, col int) error {
	if d.halted {
		return errHalted
	}
	if line < 0 || line >= Lines || col < 0 || col >= Columns {
		return fmt.Errorf("%w: line %d column %d", ErrInvalidPosition, line, col)
	}
	if err := d.command(cmdSetDDRAMAddr|(lineOffsets[line]+byte(col)), writeSettle); err != nil {
		return err
	}
	d.line, d.col = line, col
	return nil
}

// CursorPosition reports the cached write position. The column advances with
// every written character and saturates at Columns once the line is full; it
// never wraps to the next line.
func (d *Dev) CursorPosition() (line, col int) {
	return d.line, d.col
}

// WriteChar writes one character at the current position and advances the
// column. Bytes 0x00..0x07 select the glyphs loaded with CreateChar,
// everything else indexes the controller's character ROM.
func (d *Dev) WriteChar(b byte) error {
	if d.halted {
		return errHalted
	}
	if err := d.data(b); err != nil {
		return err
	}
	if d.col < Columns {
		d.col++
	}
	return nil
}

// WriteLine writes text starting at the given position. Text running past
// the end of the line is silently dropped.
func (d *Dev) WriteLine(line, col int, text string) error {
	if err := d.SetCursorPosition(line, col); err != nil {
		return err
	}
	if len(text) > Columns-col {
		text = text[:Columns-col]
	}
	for i := 0; i < len(text); i++ {
		if err := d.WriteChar(text[i]); err != nil {
			return err
		}
	}
	return nil
}

// ClearLine overwrites the line with spaces from the given column to its
// end, leaving the rest of the line alone.
func (d *Dev) ClearLine(line, col int) error {
	if d.halted {
		return errHalted
	}
	if col < 0 || col >= Columns {
		return fmt.Errorf("%w: line %d column %d", ErrInvalidPosition, line, col)
	}
	return d.WriteLine(line, col, blankLine[col:])
}

// Clear blanks the whole display and moves the cursor to the origin.
func (d *Dev) Clear() error {
	if d.halted {
		return errHalted
	}
	if err := d.command(cmdClearDisplay, clearSettle); err != nil {
		return err
	}
	d.line, d.col = 0, 0
	return nil
}

// Home moves the cursor to the origin and undoes any display shift. Like
// Clear it needs the long settle.
func (d *Dev) Home() error {
	if d.halted {
		return errHalted
	}
	if err := d.command(cmdReturnHome, clearSettle); err != nil {
		return err
	}
	d.line, d.col = 0, 0
	return nil
}

// CreateChar loads a 5x8 glyph into CGRAM slot 0..7. The glyph shows up
// wherever the slot's byte value is written afterwards. The write position
// is re-addressed at the end, so a following WriteChar continues where it
// left off.
func (d *Dev) CreateChar(slot int, g *glyph.Bitmap) error {
	if d.halted {
		return errHalted
	}
	if slot < 0 || slot > 7 {
		return fmt.Errorf("lcd20x4: CGRAM slot %d outside 0..7", slot)
	}
	if g == nil {
		return errors.New("lcd20x4: nil glyph")
	}
	if err := d.command(cmdSetCGRAMAddr|byte(slot)<<3, writeSettle); err != nil {
		return err
	}
	for _, row := range g.RowBytes() {
		if err := d.data(row); err != nil {
			return err
		}
	}
	// Point the address counter back from CGRAM to DDRAM. The cached cursor
	// is exactly where the hardware would sit after writing the cell before
	// it, so the saturated column needs no special case.
	return d.command(cmdSetDDRAMAddr|(lineOffsets[d.line]+byte(d.col)), writeSettle)
}

// command writes one instruction byte and settles for its execution time.
func (d *Dev) command(b byte, settle time.Duration) error {
	return d.write(b, gpio.Low, settle)
}

// data writes one character byte.
func (d *Dev) data(b byte) error {
	return d.write(b, gpio.High, writeSettle)
}

// write moves one byte over the interface: register select first, then a
// single 8-bit transfer or the high nibble followed by the low one.
func (d *Dev) write(b byte, rs gpio.Level, settle time.Duration) error {
	err := d.t.SetLines(
		LineLevel{Line: E, Level: gpio.Low},
		LineLevel{Line: RS, Level: rs},
		LineLevel{Line: RW, Level: gpio.Low},
	)
	if err != nil {
		return err
	}
	if d.width == 8 {
		return d.transfer(b, settle)
	}
	if err := d.transfer(b>>4, settle); err != nil {
		return err
	}
	return d.transfer(b&0x0f, settle)
}

// transfer drives the data lines with the low bits of v, latches them with
// an enable strobe and holds for the settle delay.
func (d *Dev) transfer(v byte, settle time.Duration) error {
	updates := make([]LineLevel, d.width)
	for i := 0; i < d.width; i++ {
		updates[i] = LineLevel{Line: D0 + Line(i), Level: gpio.Level(v&(1<<uint(i)) != 0)}
	}
	if err := d.t.SetLines(updates...); err != nil {
		return err
	}
	if err := d.t.PulseEnable(); err != nil {
		return err
	}
	d.t.Sleep(settle)
	return nil
}
