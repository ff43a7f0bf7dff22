package lcd20x4

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Line identifies one logical signal of the display interface.
type Line int

const (
	// RS selects between the instruction register (low) and the data
	// register (high).
	RS Line = iota
	// E latches the data lines on its falling edge.
	E
	// RW selects between write (low) and read (high). The controller only
	// ever writes; wirings that strap the line to ground simply leave it
	// unmapped.
	RW
	// D0 is the least significant configured data line. A 4-bit bus wires
	// D0..D3 to the display's upper data pins and the controller splits
	// every byte into nibbles.
	D0
	D1
	D2
	D3
	D4
	D5
	D6
	D7
)

func (l Line) String() string {
	switch l {
	case RS:
		return "RS"
	case E:
		return "E"
	case RW:
		return "RW"
	default:
		return fmt.Sprintf("D%d", int(l-D0))
	}
}

// LineLevel pairs one interface line with the logic level to drive.
type LineLevel struct {
	Line  Line
	Level gpio.Level
}

// Transport moves line updates to the display. The two implementations in
// this package drive host GPIO pins directly or pins behind an MCP23017 I/O
// expander; any other implementation with 4 or 8 data lines works as well.
//
// Transports are not safe for concurrent use. The controller owns the
// transport it was built with.
type Transport interface {
	// SetLines applies every update before returning. Updates sharing an
	// underlying bus transaction may be coalesced into one. Transports
	// without an RW line ignore RW updates; updates for any other unwired
	// line fail.
	SetLines(updates ...LineLevel) error
	// PulseEnable strobes E high then low, latching the data lines.
	PulseEnable() error
	// Sleep pauses for at least d so the display can settle.
	Sleep(d time.Duration)
	// Width returns the number of data lines driven, 4 or 8.
	Width() int
	// Halt releases the lines held by the transport.
	Halt() error
}

// GPIOOpts describes a display wired directly to host GPIO pins.
type GPIOOpts struct {
	Opts

	// RS and E are required.
	RS gpio.PinOut
	E  gpio.PinOut
	// RW is optional; leave it nil when the line is strapped to ground.
	RW gpio.PinOut
	// Data holds the data line pins, least significant first: the display's
	// D4..D7 for a 4-bit bus, D0..D7 for an 8-bit bus.
	Data []gpio.PinOut
}

// NewGPIO returns a display controller driving host GPIO pins directly.
func NewGPIO(opts *GPIOOpts) (*Dev, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: missing options", ErrInvalidPinConfiguration)
	}
	t, err := newGPIOTransport(opts)
	if err != nil {
		return nil, err
	}
	return New(t, &opts.Opts)
}

type gpioTransport struct {
	rs, e, rw gpio.PinOut // rw is nil when the line is not wired
	data      []gpio.PinOut
}

func newGPIOTransport(opts *GPIOOpts) (*gpioTransport, error) {
	if opts.RS == nil || opts.E == nil {
		return nil, fmt.Errorf("%w: RS and E pins are required", ErrInvalidPinConfiguration)
	}
	if n := len(opts.Data); n != 4 && n != 8 {
		return nil, fmt.Errorf("%w: %d data pins, expected 4 or 8", ErrInvalidPinConfiguration, n)
	}
	for i, p := range opts.Data {
		if p == nil {
			return nil, fmt.Errorf("%w: data pin %d is nil", ErrInvalidPinConfiguration, i)
		}
	}
	t := &gpioTransport{
		rs:   opts.RS,
		e:    opts.E,
		rw:   opts.RW,
		data: append([]gpio.PinOut(nil), opts.Data...),
	}
	// Idle every line before the first strobe.
	for _, p := range t.pins() {
		if err := p.Out(gpio.Low); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *gpioTransport) pins() []gpio.PinOut {
	ps := []gpio.PinOut{t.rs, t.e}
	if t.rw != nil {
		ps = append(ps, t.rw)
	}
	return append(ps, t.data...)
}

// SetLines drives each pin in turn; on a direct GPIO wiring there is nothing
// to batch.
func (t *gpioTransport) SetLines(updates ...LineLevel) error {
	for _, u := range updates {
		var p gpio.PinOut
		switch u.Line {
		case RS:
			p = t.rs
		case E:
			p = t.e
		case RW:
			if t.rw == nil {
				continue
			}
			p = t.rw
		default:
			if i := int(u.Line - D0); i >= 0 && i < len(t.data) {
				p = t.data[i]
			}
		}
		if p == nil {
			return fmt.Errorf("%w: line %s is not wired", ErrInvalidPinConfiguration, u.Line)
		}
		if err := p.Out(u.Level); err != nil {
			return err
		}
	}
	return nil
}

// PulseEnable holds the strobe high for a microsecond, comfortably past the
// 450 ns the display needs.
func (t *gpioTransport) PulseEnable() error {
	if err := t.e.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(time.Microsecond)
	return t.e.Out(gpio.Low)
}

func (t *gpioTransport) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (t *gpioTransport) Width() int {
	return len(t.data)
}

// Halt halts every pin of the interface.
func (t *gpioTransport) Halt() error {
	var first error
	for _, p := range t.pins() {
		if err := p.Halt(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
