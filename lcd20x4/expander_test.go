package lcd20x4

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/lab-coding-de/rpi-electronics/mcp23017"
)

// recBus is an i2c.Bus that records every pure write and answers every read
// with zeros.
type recBus struct {
	writes [][]byte
}

func (b *recBus) String() string {
	return "recbus"
}

func (b *recBus) SetSpeed(f physic.Frequency) error {
	return nil
}

func (b *recBus) Tx(addr uint16, w, r []byte) error {
	if len(r) > 0 {
		for i := range r {
			r[i] = 0
		}
		return nil
	}
	b.writes = append(b.writes, append([]byte(nil), w...))
	return nil
}

func (b *recBus) take() [][]byte {
	w := b.writes
	b.writes = nil
	return w
}

// decodeExpanderWrites replays the recorded register writes into a shadow of
// the expander's level word and reassembles the byte stream the display would
// have latched on each rising enable edge.
func decodeExpanderWrites(t *testing.T, writes [][]byte, opts *ExpanderOpts) []busWrite {
	t.Helper()
	var word uint16
	var lastE, hasNib bool
	var nib byte
	var out []busWrite
	for _, w := range writes {
		switch {
		case len(w) == 2 && (w[0] == 0x0A || w[0] == 0x0B):
			continue // configuration
		case (len(w) == 2 || len(w) == 3) && (w[0] == 0x00 || w[0] == 0x01):
			continue // direction
		case len(w) == 3 && w[0] == 0x12:
			word = uint16(w[1]) | uint16(w[2])<<8
		case len(w) == 2 && w[0] == 0x12:
			word = word&0xFF00 | uint16(w[1])
		case len(w) == 2 && w[0] == 0x13:
			word = word&0x00FF | uint16(w[1])<<8
		default:
			t.Fatalf("unexpected bus write % X", w)
		}
		e := word&(1<<uint(opts.E)) != 0
		if e && !lastE {
			var v byte
			for i, p := range opts.Data {
				if word&(1<<uint(p)) != 0 {
					v |= 1 << uint(i)
				}
			}
			rs := word&(1<<uint(opts.RS)) != 0
			switch {
			case len(opts.Data) == 8:
				out = append(out, busWrite{rs, v})
			case !hasNib:
				nib, hasNib = v, true
			default:
				out = append(out, busWrite{rs, nib<<4 | v})
				hasNib = false
			}
		}
		lastE = e
	}
	return out
}

func newTestExpander(t *testing.T) (*mcp23017.Dev, *recBus) {
	t.Helper()
	bus := &recBus{}
	exp, err := mcp23017.New(bus, mcp23017.DefaultAddress)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := exp.Halt(); err != nil {
			t.Error(err)
		}
	})
	return exp, bus
}

func TestNewExpander(t *testing.T) {
	exp, bus := newTestExpander(t)
	opts := &ExpanderOpts{RS: 10, E: 8, RW: 9, Data: []int{0, 1, 2, 3}}
	d, err := NewExpander(exp, opts)
	if err != nil {
		t.Fatal(err)
	}
	assertWrites(t, decodeExpanderWrites(t, bus.take(), opts), []busWrite{
		cmd(0x33), cmd(0x32), cmd(0x28),
		cmd(0x06),
		cmd(0x08),
		cmd(0x01),
	})
	if err := d.WriteLine(0, 0, "Hi"); err != nil {
		t.Fatal(err)
	}
	assertWrites(t, decodeExpanderWrites(t, bus.take(), opts), []busWrite{
		cmd(0x80), char('H'), char('i'),
	})
}

func TestNewExpander_eightBit(t *testing.T) {
	exp, bus := newTestExpander(t)
	opts := &ExpanderOpts{RS: 10, E: 8, RW: 9, Data: []int{0, 1, 2, 3, 4, 5, 6, 7}}
	if _, err := NewExpander(exp, opts); err != nil {
		t.Fatal(err)
	}
	assertWrites(t, decodeExpanderWrites(t, bus.take(), opts), []busWrite{
		cmd(0x38), cmd(0x38), cmd(0x38),
		cmd(0x06),
		cmd(0x08),
		cmd(0x01),
	})
}

func TestExpanderTransport_coalesces(t *testing.T) {
	exp, bus := newTestExpander(t)
	opts := &ExpanderOpts{RS: 10, E: 8, RW: 9, Data: []int{0, 1, 2, 3}}
	d, err := NewExpander(exp, opts)
	if err != nil {
		t.Fatal(err)
	}
	bus.take()
	// 'D' is 0x44, so both nibbles drive the same data pattern. The select
	// batch and the first nibble fold into one single-byte transaction each,
	// the repeated nibble costs nothing and only the strobe edges remain.
	if err := d.WriteChar('D'); err != nil {
		t.Fatal(err)
	}
	w := bus.take()
	if len(w) != 6 {
		t.Fatalf("first character cost %d transactions % X, want 6", len(w), w)
	}
	for _, op := range w {
		if len(op) != 2 {
			t.Errorf("transaction % X touches more than one register byte", op)
		}
	}
	// Repeating the character leaves select and data matching the mirrored
	// state; only the four strobe edges hit the bus.
	if err := d.WriteChar('D'); err != nil {
		t.Fatal(err)
	}
	if w := bus.take(); len(w) != 4 {
		t.Fatalf("repeated character cost %d transactions % X, want 4", len(w), w)
	}
}

func TestNewExpander_validation(t *testing.T) {
	exp, _ := newTestExpander(t)
	cases := []struct {
		name string
		opts *ExpanderOpts
	}{
		{"nil options", nil},
		{"three data pins", &ExpanderOpts{RS: 10, E: 8, RW: 9, Data: []int{0, 1, 2}}},
		{"pin out of range", &ExpanderOpts{RS: 10, E: 8, RW: 9, Data: []int{0, 1, 2, 16}}},
		{"negative pin", &ExpanderOpts{RS: -2, E: 8, RW: 9, Data: []int{0, 1, 2, 3}}},
		{"pin mapped twice", &ExpanderOpts{RS: 8, E: 8, RW: 9, Data: []int{0, 1, 2, 3}}},
		{"data pin repeats RS", &ExpanderOpts{RS: 3, E: 8, RW: 9, Data: []int{0, 1, 2, 3}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewExpander(exp, c.opts); !errors.Is(err, ErrInvalidPinConfiguration) {
				t.Fatalf("got %v", err)
			}
		})
	}
	t.Run("nil expander", func(t *testing.T) {
		opts := &ExpanderOpts{RS: 10, E: 8, RW: 9, Data: []int{0, 1, 2, 3}}
		if _, err := NewExpander(nil, opts); !errors.Is(err, ErrInvalidPinConfiguration) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestNewExpander_noRW(t *testing.T) {
	exp, bus := newTestExpander(t)
	// Pin 0 is a data line here; construction only passes if NoRW really
	// leaves the zero-valued RW field unclaimed.
	opts := &ExpanderOpts{RS: 4, E: 5, RW: NoRW, Data: []int{0, 1, 2, 3}}
	if _, err := NewExpander(exp, opts); err != nil {
		t.Fatal(err)
	}
	assertWrites(t, decodeExpanderWrites(t, bus.take(), opts), []busWrite{
		cmd(0x33), cmd(0x32), cmd(0x28),
		cmd(0x06),
		cmd(0x08),
		cmd(0x01),
	})
}

func TestExpanderTransport_unwiredDataLine(t *testing.T) {
	exp, _ := newTestExpander(t)
	tr, err := newExpanderTransport(exp, &ExpanderOpts{RS: 10, E: 8, RW: 9, Data: []int{0, 1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	err = tr.SetLines(LineLevel{Line: D6, Level: gpio.High})
	if !errors.Is(err, ErrInvalidPinConfiguration) {
		t.Fatalf("got %v", err)
	}
}

func TestExpanderTransport_emptyBatch(t *testing.T) {
	exp, bus := newTestExpander(t)
	tr, err := newExpanderTransport(exp, &ExpanderOpts{RS: 4, E: 5, RW: NoRW, Data: []int{0, 1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	bus.take()
	if err := tr.SetLines(); err != nil {
		t.Fatal(err)
	}
	// An RW update with no RW line folds down to nothing.
	if err := tr.SetLines(LineLevel{Line: RW, Level: gpio.High}); err != nil {
		t.Fatal(err)
	}
	if w := bus.take(); len(w) != 0 {
		t.Fatalf("empty batches reached the bus: %v", w)
	}
}
