package lcd20x4

import (
	"errors"
	"fmt"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// recPin records the levels driven on a single pin.
type recPin struct {
	name     string
	levels   []gpio.Level
	halted   bool
	failOut  error
	failHalt error
}

func (p *recPin) String() string {
	return p.name
}

func (p *recPin) Halt() error {
	p.halted = true
	return p.failHalt
}

func (p *recPin) Name() string {
	return p.name
}

func (p *recPin) Number() int {
	return 0
}

func (p *recPin) Function() string {
	return "Out"
}

func (p *recPin) Out(l gpio.Level) error {
	if p.failOut != nil {
		return p.failOut
	}
	p.levels = append(p.levels, l)
	return nil
}

func (p *recPin) PWM(d gpio.Duty, f physic.Frequency) error {
	return errors.New("pwm not supported")
}

var _ gpio.PinOut = &recPin{}

// recHarness wires a set of recording pins into GPIOOpts.
type recHarness struct {
	rs, e, rw *recPin
	data      []*recPin
}

func newRecHarness(n int, withRW bool) *recHarness {
	h := &recHarness{rs: &recPin{name: "RS"}, e: &recPin{name: "E"}}
	if withRW {
		h.rw = &recPin{name: "RW"}
	}
	for i := 0; i < n; i++ {
		h.data = append(h.data, &recPin{name: fmt.Sprintf("D%d", i)})
	}
	return h
}

func (h *recHarness) opts() *GPIOOpts {
	o := &GPIOOpts{RS: h.rs, E: h.e}
	if h.rw != nil {
		o.RW = h.rw
	}
	for _, p := range h.data {
		o.Data = append(o.Data, p)
	}
	return o
}

func assertLevels(t *testing.T, name string, got, want []gpio.Level) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d levels %v, want %d %v", name, len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: level %d = %s, want %s", name, i, got[i], want[i])
		}
	}
}

func TestGPIOTransport_idlesPins(t *testing.T) {
	h := newRecHarness(4, true)
	if _, err := newGPIOTransport(h.opts()); err != nil {
		t.Fatal(err)
	}
	for _, p := range append([]*recPin{h.rs, h.e, h.rw}, h.data...) {
		assertLevels(t, p.name, p.levels, []gpio.Level{gpio.Low})
	}
}

func TestGPIOTransport_setLines(t *testing.T) {
	h := newRecHarness(4, true)
	tr, err := newGPIOTransport(h.opts())
	if err != nil {
		t.Fatal(err)
	}
	err = tr.SetLines(
		LineLevel{Line: RS, Level: gpio.High},
		LineLevel{Line: D2, Level: gpio.High},
		LineLevel{Line: RW, Level: gpio.High},
		LineLevel{Line: D0, Level: gpio.Low},
	)
	if err != nil {
		t.Fatal(err)
	}
	assertLevels(t, "RS", h.rs.levels, []gpio.Level{gpio.Low, gpio.High})
	assertLevels(t, "D2", h.data[2].levels, []gpio.Level{gpio.Low, gpio.High})
	assertLevels(t, "RW", h.rw.levels, []gpio.Level{gpio.Low, gpio.High})
	assertLevels(t, "D0", h.data[0].levels, []gpio.Level{gpio.Low, gpio.Low})
}

func TestGPIOTransport_ignoresRWWhenUnwired(t *testing.T) {
	h := newRecHarness(4, false)
	tr, err := newGPIOTransport(h.opts())
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.SetLines(LineLevel{Line: RW, Level: gpio.High}); err != nil {
		t.Fatal(err)
	}
	for _, p := range append([]*recPin{h.rs, h.e}, h.data...) {
		assertLevels(t, p.name, p.levels, []gpio.Level{gpio.Low})
	}
}

func TestGPIOTransport_unwiredDataLine(t *testing.T) {
	h := newRecHarness(4, false)
	tr, err := newGPIOTransport(h.opts())
	if err != nil {
		t.Fatal(err)
	}
	err = tr.SetLines(LineLevel{Line: D7, Level: gpio.High})
	if !errors.Is(err, ErrInvalidPinConfiguration) {
		t.Fatalf("got %v", err)
	}
}

func TestGPIOTransport_pulseEnable(t *testing.T) {
	h := newRecHarness(4, false)
	tr, err := newGPIOTransport(h.opts())
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.PulseEnable(); err != nil {
		t.Fatal(err)
	}
	assertLevels(t, "E", h.e.levels, []gpio.Level{gpio.Low, gpio.High, gpio.Low})
}

func TestGPIOTransport_width(t *testing.T) {
	for _, n := range []int{4, 8} {
		h := newRecHarness(n, false)
		tr, err := newGPIOTransport(h.opts())
		if err != nil {
			t.Fatal(err)
		}
		if got := tr.Width(); got != n {
			t.Errorf("Width() = %d, want %d", got, n)
		}
	}
}

func TestGPIOTransport_halt(t *testing.T) {
	h := newRecHarness(4, true)
	tr, err := newGPIOTransport(h.opts())
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	h.rs.failHalt = boom
	h.e.failHalt = errors.New("later")
	if err := tr.Halt(); !errors.Is(err, boom) {
		t.Fatalf("got %v, want the first pin's error", err)
	}
	for _, p := range append([]*recPin{h.rs, h.e, h.rw}, h.data...) {
		if !p.halted {
			t.Errorf("%s was not halted", p.name)
		}
	}
}

func TestGPIOTransport_pinError(t *testing.T) {
	h := newRecHarness(4, false)
	tr, err := newGPIOTransport(h.opts())
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	h.data[1].failOut = boom
	if err := tr.SetLines(LineLevel{Line: D1, Level: gpio.High}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want the pin's error", err)
	}
}

func TestNewGPIO_validation(t *testing.T) {
	valid := func() *GPIOOpts { return newRecHarness(4, false).opts() }
	cases := []struct {
		name string
		opts *GPIOOpts
	}{
		{"nil options", nil},
		{"missing RS", func() *GPIOOpts { o := valid(); o.RS = nil; return o }()},
		{"missing E", func() *GPIOOpts { o := valid(); o.E = nil; return o }()},
		{"three data pins", func() *GPIOOpts { o := valid(); o.Data = o.Data[:3]; return o }()},
		{"nil data pin", func() *GPIOOpts { o := valid(); o.Data[2] = nil; return o }()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewGPIO(c.opts); !errors.Is(err, ErrInvalidPinConfiguration) {
				t.Fatalf("got %v", err)
			}
		})
	}
}

func TestNewGPIO(t *testing.T) {
	h := newRecHarness(4, true)
	d, err := NewGPIO(h.opts())
	if err != nil {
		t.Fatal(err)
	}
	// Initialization writes instructions only.
	for i, l := range h.rs.levels {
		if l != gpio.Low {
			t.Fatalf("RS level %d = %s during init", i, l)
		}
	}
	for i, l := range h.rw.levels {
		if l != gpio.Low {
			t.Fatalf("RW level %d = %s", i, l)
		}
	}
	strobes := 0
	for _, l := range h.e.levels {
		if l == gpio.High {
			strobes++
		}
	}
	// Six instruction bytes, two nibbles each.
	if strobes != 12 {
		t.Errorf("counted %d strobes, want 12", strobes)
	}
	if last := h.e.levels[len(h.e.levels)-1]; last != gpio.Low {
		t.Errorf("E left %s", last)
	}

	nRS := len(h.rs.levels)
	nD0 := len(h.data[0].levels)
	nD2 := len(h.data[2].levels)
	if err := d.WriteChar('A'); err != nil {
		t.Fatal(err)
	}
	assertLevels(t, "RS", h.rs.levels[nRS:], []gpio.Level{gpio.High})
	// 'A' is 0x41: high nibble 0x4, low nibble 0x1.
	assertLevels(t, "D2", h.data[2].levels[nD2:], []gpio.Level{gpio.High, gpio.Low})
	assertLevels(t, "D0", h.data[0].levels[nD0:], []gpio.Level{gpio.Low, gpio.High})
}
