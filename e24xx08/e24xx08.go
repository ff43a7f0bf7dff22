// Package e24xx08 reads and writes a Microchip 24AA08 / 24LC08B serial
// EEPROM over I²C.
//
// The chip holds 1 KiB arranged as four 256-byte blocks. The two block bits
// ride in the I²C device address, so the driver claims four consecutive bus
// addresses starting at the base address. Writes move at most one 16-byte
// page per bus transaction and hold for the chip's internal write cycle
// after each one; reads of any size cost one transaction per block touched.
//
// Dev implements io.ReaderAt and io.WriterAt, so the usual io helpers work
// on it, for example io.SectionReader for a window into the array.
//
// Datasheet: https://ww1.microchip.com/downloads/en/DeviceDoc/21710K.pdf
package e24xx08

import (
	"errors"
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

// Size is the capacity of the array in bytes.
const Size = 1024

// DefaultAddress is the base bus address with the A2 strap tied low. The A2
// strap high moves the chip to 0x54.
const DefaultAddress uint16 = 0x50

// ErrInvalidAddress is returned when an offset or a write range falls
// outside the array.
var ErrInvalidAddress = errors.New("e24xx08: invalid address")

const (
	blockSize = 256
	pageSize  = 16

	defaultWriteCycle = 5 * time.Millisecond
)

// Opts holds the construction options.
type Opts struct {
	// WriteCycle is how long the driver holds after each page write while
	// the chip commits it internally. Zero selects the datasheet's 5 ms.
	WriteCycle time.Duration
}

// Dev is a handle to the EEPROM.
//
// Dev is not safe for concurrent use.
type Dev struct {
	blocks [4]i2c.Dev
	wait   time.Duration
}

// New returns a driver for the EEPROM at the given base address, which must
// be 0x50 or 0x54 as selected by the A2 strap. The two addresses above the
// base belong to the same chip and must not be claimed by other devices.
func New(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if addr != 0x50 && addr != 0x54 {
		return nil, fmt.Errorf("%w: base address %#x, expected 0x50 or 0x54", ErrInvalidAddress, addr)
	}
	if opts == nil {
		opts = &Opts{}
	}
	d := &Dev{wait: opts.WriteCycle}
	if d.wait == 0 {
		d.wait = defaultWriteCycle
	}
	for i := range d.blocks {
		d.blocks[i] = i2c.Dev{Bus: b, Addr: addr | uint16(i)}
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("e24xx08{%s}", &d.blocks[0])
}

// Halt is a no-op; the chip holds no shared line state.
func (d *Dev) Halt() error {
	return nil
}

// ReadByte reads the byte at offset off.
func (d *Dev) ReadByte(off int64) (byte, error) {
	if off < 0 || off >= Size {
		return 0, fmt.Errorf("%w: offset %d outside 0..%d", ErrInvalidAddress, off, Size-1)
	}
	var buf [1]byte
	o := int(off)
	if err := d.blocks[o/blockSize].Tx([]byte{byte(o)}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteByte writes b at offset off and waits out the write cycle.
func (d *Dev) WriteByte(off int64, b byte) error {
	var buf [1]byte
	buf[0] = b
	_, err := d.WriteAt(buf[:], off)
	return err
}

// ReadAt implements io.ReaderAt. Reads crossing a block boundary are split,
// one bus transaction per block. A read running past the end of the array
// returns the bytes before it with io.EOF.
func (d *Dev) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", ErrInvalidAddress, off)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= Size {
		return 0, io.EOF
	}
	o := int(off)
	n := 0
	for n < len(p) && o < Size {
		chunk := len(p) - n
		if room := blockSize - o%blockSize; chunk > room {
			chunk = room
		}
		if rem := Size - o; chunk > rem {
			chunk = rem
		}
		if err := d.blocks[o/blockSize].Tx([]byte{byte(o)}, p[n:n+chunk]); err != nil {
			return n, err
		}
		n += chunk
		o += chunk
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes crossing a page boundary are split
// into page-sized bus transactions, each followed by the write-cycle hold.
// A range that does not fit the array entirely is rejected before anything
// is written.
func (d *Dev) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off > Size || int64(len(p)) > Size-off {
		return 0, fmt.Errorf("%w: %d bytes at offset %d", ErrInvalidAddress, len(p), off)
	}
	o := int(off)
	n := 0
	for n < len(p) {
		chunk := len(p) - n
		if room := pageSize - o%pageSize; chunk > room {
			chunk = room
		}
		w := make([]byte, 0, 1+chunk)
		w = append(w, byte(o))
		w = append(w, p[n:n+chunk]...)
		if err := d.blocks[o/blockSize].Tx(w, nil); err != nil {
			return n, err
		}
		time.Sleep(d.wait)
		n += chunk
		o += chunk
	}
	return n, nil
}

var (
	_ conn.Resource = &Dev{}
	_ io.ReaderAt   = &Dev{}
	_ io.WriterAt   = &Dev{}
)
