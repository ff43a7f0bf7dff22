package lcd20x4

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/lab-coding-de/rpi-electronics/mcp23017"
)

// NoRW marks the read/write line as not wired in ExpanderOpts.
const NoRW = -1

// ExpanderOpts describes a display wired to an MCP23017 I/O expander. Pin
// values are expander pin numbers, 0..15 across ports A and B, and must all
// be distinct.
type ExpanderOpts struct {
	Opts

	// RS and E are required.
	RS int
	E  int
	// RW is the pin driving the read/write line. Set it to NoRW when the
	// line is strapped to ground; the zero value claims expander pin 0.
	RW int
	// Data holds the data line pins, least significant first: the display's
	// D4..D7 for a 4-bit bus, D0..D7 for an 8-bit bus.
	Data []int
}

// NewExpander returns a display controller driving the display through the
// expander. Line updates that land in one batch reach the expander as a
// single register update, so a full nibble plus its strobe costs two bus
// transactions.
func NewExpander(exp *mcp23017.Dev, opts *ExpanderOpts) (*Dev, error) {
	if exp == nil || opts == nil {
		return nil, fmt.Errorf("%w: missing expander or options", ErrInvalidPinConfiguration)
	}
	t, err := newExpanderTransport(exp, opts)
	if err != nil {
		return nil, err
	}
	return New(t, &opts.Opts)
}

type expanderTransport struct {
	exp  *mcp23017.Dev
	rs   int
	e    int
	rw   int // NoRW when not wired
	data []int
}

func newExpanderTransport(exp *mcp23017.Dev, opts *ExpanderOpts) (*expanderTransport, error) {
	if n := len(opts.Data); n != 4 && n != 8 {
		return nil, fmt.Errorf("%w: %d data pins, expected 4 or 8", ErrInvalidPinConfiguration, n)
	}
	t := &expanderTransport{
		exp:  exp,
		rs:   opts.RS,
		e:    opts.E,
		rw:   opts.RW,
		data: append([]int(nil), opts.Data...),
	}
	all := []int{t.rs, t.e}
	if t.rw != NoRW {
		all = append(all, t.rw)
	}
	all = append(all, t.data...)
	var seen [16]bool
	for _, p := range all {
		if p < 0 || p > 15 {
			return nil, fmt.Errorf("%w: expander pin %d outside 0..15", ErrInvalidPinConfiguration, p)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: expander pin %d mapped twice", ErrInvalidPinConfiguration, p)
		}
		seen[p] = true
	}
	// One direction batch and one level batch idle the whole interface.
	if err := exp.Setup(all, mcp23017.Output, nil); err != nil {
		return nil, err
	}
	if err := exp.Out(all, make([]gpio.Level, len(all))); err != nil {
		return nil, err
	}
	return t, nil
}

// SetLines folds the whole batch into at most one expander register update.
func (t *expanderTransport) SetLines(updates ...LineLevel) error {
	pins := make([]int, 0, len(updates))
	levels := make([]gpio.Level, 0, len(updates))
	for _, u := range updates {
		switch u.Line {
		case RS:
			pins = append(pins, t.rs)
		case E:
			pins = append(pins, t.e)
		case RW:
			if t.rw == NoRW {
				continue
			}
			pins = append(pins, t.rw)
		default:
			i := int(u.Line - D0)
			if i < 0 || i >= len(t.data) {
				return fmt.Errorf("%w: line %s is not wired", ErrInvalidPinConfiguration, u.Line)
			}
			pins = append(pins, t.data[i])
		}
		levels = append(levels, u.Level)
	}
	if len(pins) == 0 {
		return nil
	}
	return t.exp.Out(pins, levels)
}

// PulseEnable toggles the strobe with two single-bit updates. Each one is a
// full bus transaction, far longer than the display's minimum pulse width,
// so no extra hold is needed.
func (t *expanderTransport) PulseEnable() error {
	if err := t.exp.Out([]int{t.e}, []gpio.Level{gpio.High}); err != nil {
		return err
	}
	return t.exp.Out([]int{t.e}, []gpio.Level{gpio.Low})
}

func (t *expanderTransport) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (t *expanderTransport) Width() int {
	return len(t.data)
}

// Halt leaves the expander to its owner; no exclusively held line state
// needs releasing.
func (t *expanderTransport) Halt() error {
	return nil
}
