// Package mcp23017 controls a Microchip MCP23017 16-bit I/O expander over I²C.
//
// The expander exposes sixteen GPIO lines split over two 8-bit ports, A and B.
// Pins are numbered 0 to 15, with 0..7 on port A and 8..15 on port B. The
// driver mirrors every chip register in memory and transmits only the bytes
// whose value actually changed, so toggling a line on one port costs a single
// byte on the bus and re-asserting a settled state costs no transaction at
// all.
//
// The interrupt subsystem, input pull-ups and preloaded output latches are not
// programmed by this driver; requests for them fail with ErrUnsupported.
//
// Datasheet: https://ww1.microchip.com/downloads/en/DeviceDoc/20001952C.pdf
package mcp23017

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/mmr"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the bus address with the A0..A2 straps tied low.
const DefaultAddress uint16 = 0x20

var (
	// ErrInvalidRegisterValue is returned when a register update names a bit
	// outside the 16-bit word or pairs mismatched pin and level batches.
	ErrInvalidRegisterValue = errors.New("mcp23017: invalid register value")
	// ErrUnsupported is returned for chip features this driver does not
	// program, such as input pull-ups, preloaded output latches and
	// interrupts.
	ErrUnsupported = errors.New("mcp23017: unsupported operation")
)

// Direction configures an expander pin as output or input. The values match
// the chip's direction register encoding.
type Direction uint8

const (
	// Output drives the pin from the output latch.
	Output Direction = 0
	// Input leaves the pin high impedance.
	Input Direction = 1
)

// reg addresses one 16-bit register pair in the chip's power-on bank layout.
// Port A occupies the low byte at the base address and port B the high byte
// one above it.
type reg uint8

const (
	regDirection  reg = 0x00 // IODIR, 1 = input
	regPolarity   reg = 0x02 // IPOL, 1 = inverted input
	regIntEnable  reg = 0x04 // GPINTEN, interrupt on change
	regDefault    reg = 0x06 // DEFVAL, interrupt compare value
	regIntControl reg = 0x08 // INTCON, compare against DEFVAL
	regConfig     reg = 0x0A // IOCON, shared configuration byte
	regPullUp     reg = 0x0C // GPPU, 100 kΩ pull-up on inputs
	regIntFlag    reg = 0x0E // INTF, read only
	regIntCapture reg = 0x10 // INTCAP, read only
	regLevel      reg = 0x12 // GPIO, pin levels
	regLatch      reg = 0x14 // OLAT, output latch
)

// regs lists every register pair in address order.
var regs = [...]reg{
	regDirection,
	regPolarity,
	regIntEnable,
	regDefault,
	regIntControl,
	regConfig,
	regPullUp,
	regIntFlag,
	regIntCapture,
	regLevel,
	regLatch,
}

// configSeqOp disables sequential addressing so that, with the power-on bank
// layout, the address pointer toggles within an A/B register pair. Both
// single-byte and 16-bit word transfers then land on the intended pair.
const configSeqOp = 1 << 5

// SetupOpts requests optional pin behaviour during Setup. The zero value
// requests nothing.
type SetupOpts struct {
	// Initial would preload the output latch before the direction switch.
	Initial *gpio.Level
	// PullUp would enable the internal 100 kΩ pull-up.
	PullUp bool
}

// Dev is a handle to an MCP23017 on an I²C bus.
//
// Methods on Dev are safe for concurrent use, but batches from separate
// goroutines interleave at the batch boundary.
type Dev struct {
	// Pins holds a gpio.PinIO adapter per expander pin. The adapters are
	// also registered with gpioreg under "MCP23017_<addr>_<pin>".
	Pins []gpio.PinIO

	c    mmr.Dev8
	name string

	mu    sync.Mutex
	cache map[reg]uint16
}

// New returns a driver for the expander at addr, which must be in 0x20..0x27
// as selected by the A0..A2 straps.
//
// The chip is switched to paired byte addressing and every register pair is
// read once to seed the in-memory mirror.
func New(b i2c.Bus, addr uint16) (*Dev, error) {
	if addr < 0x20 || addr > 0x27 {
		return nil, fmt.Errorf("mcp23017: address %#x outside 0x20..0x27", addr)
	}
	d := &Dev{
		c:     mmr.Dev8{Conn: &i2c.Dev{Bus: b, Addr: addr}, Order: binary.LittleEndian},
		name:  fmt.Sprintf("MCP23017_%x", addr),
		cache: make(map[reg]uint16, len(regs)),
	}
	if err := d.c.WriteUint8(uint8(regConfig), configSeqOp); err != nil {
		return nil, err
	}
	for _, r := range regs {
		if _, err := d.readWord(r); err != nil {
			return nil, err
		}
	}
	d.Pins = make([]gpio.PinIO, 16)
	for i := range d.Pins {
		d.Pins[i] = &expanderPin{dev: d, number: i, name: fmt.Sprintf("%s_%d", d.name, i)}
		_ = gpioreg.Register(d.Pins[i])
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("mcp23017{%s}", d.c.Conn)
}

// Halt drops the pin adapters. The chip keeps its configuration; there is no
// shared line state to release.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.Pins {
		_ = gpioreg.Unregister(p.Name())
	}
	d.Pins = nil
	return nil
}

// Setup configures the direction of a batch of pins in at most one bus
// transaction.
//
// A nil opts selects the plain direction change. Requesting a pull-up or an
// initial latch value fails with ErrUnsupported before anything is written.
func (d *Dev) Setup(pins []int, dir Direction, opts *SetupOpts) error {
	if opts != nil && (opts.PullUp || opts.Initial != nil) {
		return ErrUnsupported
	}
	levels := make([]gpio.Level, len(pins))
	for i := range levels {
		levels[i] = dir == Input
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeBits(regDirection, pins, levels)
}

// Out drives a batch of output pins to the given levels in at most one bus
// transaction. pins and levels pair up index by index and must have the same
// length.
func (d *Dev) Out(pins []int, levels []gpio.Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeBits(regLevel, pins, levels)
}

// Read samples pin n, refreshing the mirrored level word from the chip.
func (d *Dev) Read(n int) (gpio.Level, error) {
	if n < 0 || n > 15 {
		return gpio.Low, fmt.Errorf("%w: bit %d outside 0..15", ErrInvalidRegisterValue, n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.readWord(regLevel)
	if err != nil {
		return gpio.Low, err
	}
	return gpio.Level(w&(1<<uint(n)) != 0), nil
}

// Direction reports whether pin n is an input or an output, refreshing the
// mirrored direction word from the chip.
func (d *Dev) Direction(n int) (Direction, error) {
	if n < 0 || n > 15 {
		return Output, fmt.Errorf("%w: bit %d outside 0..15", ErrInvalidRegisterValue, n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.readWord(regDirection)
	if err != nil {
		return Output, err
	}
	if w&(1<<uint(n)) != 0 {
		return Input, nil
	}
	return Output, nil
}

// writeBits folds a batch of single-bit updates into register r and transmits
// only the bytes whose value changed: one word write when both bytes moved,
// one byte write when a single byte moved, nothing when the mirror already
// matches. The mirror is updated whenever the chip is known to hold the new
// word, including when no transaction was needed.
func (d *Dev) writeBits(r reg, bits []int, levels []gpio.Level) error {
	if len(bits) != len(levels) {
		return fmt.Errorf("%w: %d pins against %d levels", ErrInvalidRegisterValue, len(bits), len(levels))
	}
	cur := d.cache[r]
	next := cur
	for i, b := range bits {
		if b < 0 || b > 15 {
			return fmt.Errorf("%w: bit %d outside 0..15", ErrInvalidRegisterValue, b)
		}
		if levels[i] {
			next |= 1 << uint(b)
		} else {
			next &^= 1 << uint(b)
		}
	}
	switch diff := next ^ cur; {
	case diff == 0:
		// The chip already holds this word.
	case diff&0x00ff != 0 && diff&0xff00 != 0:
		if err := d.c.WriteUint16(uint8(r), next); err != nil {
			return err
		}
	case diff&0x00ff != 0:
		if err := d.c.WriteUint8(uint8(r), uint8(next)); err != nil {
			return err
		}
	default:
		if err := d.c.WriteUint8(uint8(r)+1, uint8(next>>8)); err != nil {
			return err
		}
	}
	d.cache[r] = next
	return nil
}

// readWord fetches one register pair and refreshes the mirror.
func (d *Dev) readWord(r reg) (uint16, error) {
	w, err := d.c.ReadUint16(uint8(r))
	if err != nil {
		return 0, err
	}
	d.cache[r] = w
	return w, nil
}

// expanderPin adapts a single expander pin to gpio.PinIO.
type expanderPin struct {
	dev    *Dev
	number int
	name   string
}

func (p *expanderPin) String() string {
	return p.name
}

func (p *expanderPin) Name() string {
	return p.name
}

func (p *expanderPin) Number() int {
	return p.number
}

func (p *expanderPin) Function() string {
	dir, err := p.dev.Direction(p.number)
	if err != nil {
		return "ERR"
	}
	if dir == Input {
		return "In"
	}
	return "Out"
}

func (p *expanderPin) Halt() error {
	return nil
}

// In switches the pin to an input. The chip's pull-ups are not programmed by
// this driver and there is no interrupt wiring, so any pull other than
// gpio.Float or gpio.PullNoChange and any edge other than gpio.NoEdge fail
// with ErrUnsupported.
func (p *expanderPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if pull != gpio.Float && pull != gpio.PullNoChange {
		return ErrUnsupported
	}
	if edge != gpio.NoEdge {
		return ErrUnsupported
	}
	return p.dev.Setup([]int{p.number}, Input, nil)
}

// Read returns the sampled level, or gpio.Low when the bus transaction fails.
func (p *expanderPin) Read() gpio.Level {
	l, err := p.dev.Read(p.number)
	if err != nil {
		return gpio.Low
	}
	return l
}

func (p *expanderPin) WaitForEdge(timeout time.Duration) bool {
	return false
}

func (p *expanderPin) Pull() gpio.Pull {
	return gpio.Float
}

func (p *expanderPin) DefaultPull() gpio.Pull {
	return gpio.Float
}

func (p *expanderPin) Out(l gpio.Level) error {
	return p.dev.Out([]int{p.number}, []gpio.Level{l})
}

func (p *expanderPin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrUnsupported
}

var (
	_ conn.Resource = &Dev{}
	_ gpio.PinIO    = &expanderPin{}
)
