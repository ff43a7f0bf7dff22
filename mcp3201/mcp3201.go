// Package mcp3201 reads the Microchip MCP3201 12-bit analog-to-digital
// converter over SPI.
//
// The chip has a single pseudo-differential input and starts a conversion on
// every chip-select assertion, so one 2-byte transfer returns one sample and
// needs no request framing. Readings are noisy at the LSB level; the driver
// averages a configurable number of conversions per reading, 50 unless
// overridden, like the vendor applications do.
//
// Dev implements analog.PinADC.
//
// Datasheet: https://ww1.microchip.com/downloads/en/DeviceDoc/21290F.pdf
package mcp3201

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// steps is the number of quantization steps of the converter.
const steps = 4096

const (
	defaultRef     = 3300 * physic.MilliVolt
	defaultSamples = 50
)

// Opts holds the construction options.
type Opts struct {
	// Ref is the electric potential on the VREF pin, used to convert raw
	// readings into voltages. Zero selects 3.3 V.
	Ref physic.ElectricPotential
	// Samples is how many conversions are averaged into one reading. Zero
	// selects 50.
	Samples int
}

// Dev is a handle to an MCP3201.
//
// Dev is not safe for concurrent use.
type Dev struct {
	c       conn.Conn
	ref     physic.ElectricPotential
	samples int
}

// New returns a driver for the converter behind p.
//
// The port is configured for 800 kHz, Mode0, 8-bit transfers. 800 kHz keeps
// the conversion clock within the datasheet limit across the whole 2.7 V to
// 5.5 V supply range.
func New(p spi.Port, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if opts.Ref < 0 {
		return nil, fmt.Errorf("mcp3201: negative reference %s", opts.Ref)
	}
	if opts.Samples < 0 {
		return nil, fmt.Errorf("mcp3201: negative sample count %d", opts.Samples)
	}
	c, err := p.Connect(800*physic.KiloHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}
	d := &Dev{c: c, ref: opts.Ref, samples: opts.Samples}
	if d.ref == 0 {
		d.ref = defaultRef
	}
	if d.samples == 0 {
		d.samples = defaultSamples
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("mcp3201{%s}", d.c)
}

// Halt is a no-op; the chip converts only while selected.
func (d *Dev) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (d *Dev) Name() string {
	return "MCP3201"
}

// Number implements pin.Pin. The chip has a single input channel.
func (d *Dev) Number() int {
	return 0
}

// Function implements pin.Pin.
func (d *Dev) Function() string {
	return "ADC"
}

// Range returns the readable range, from 0 V to the reference potential.
func (d *Dev) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{Raw: steps - 1, V: d.ref}
}

// Read runs the configured number of conversions and returns their mean. The
// voltage is computed from the un-truncated sum, so it keeps sub-step
// precision; Raw is the rounded mean.
func (d *Dev) Read() (analog.Sample, error) {
	var sum int64
	for i := 0; i < d.samples; i++ {
		v, err := d.sample()
		if err != nil {
			return analog.Sample{}, err
		}
		sum += int64(v)
	}
	n := int64(d.samples)
	return analog.Sample{
		Raw: int32((sum + n/2) / n),
		V:   physic.ElectricPotential(sum * int64(d.ref) / (steps * n)),
	}, nil
}

// sample runs one conversion. The frame clocks out a null bit followed by
// the 12 data bits MSB first; the trailing bit repeats data and is dropped.
func (d *Dev) sample() (int32, error) {
	var buf [2]byte
	if err := d.c.Tx([]byte{0, 0}, buf[:]); err != nil {
		return 0, err
	}
	return int32(buf[0]&0x1F)<<7 | int32(buf[1]>>1), nil
}

var (
	_ conn.Resource = &Dev{}
	_ analog.PinADC = &Dev{}
)
