// Package lcd20x4 controls an HD44780-compatible 20x4 character LCD.
//
// The display is driven write-only over its parallel interface, either from
// host GPIO pins or through an MCP23017 I/O expander on I²C. One controller
// implementation serves both wirings; the transport behind it decides how
// line levels reach the display.
//
// # Display Characteristics
//
// - 4 lines of 20 characters, 5x8 dot matrix
// - 4-bit or 8-bit parallel interface, chosen by the wiring
// - 8 user-definable CGRAM glyphs (see the glyph subpackage)
// - Write-only operation: the busy flag is never polled, every instruction
// is followed by its worst-case settle delay
//
// # Hardware Connection
//
// Direct GPIO wiring (4-bit shown, the display's D0..D3 left open):
//
//	Display Pin → System Pin
//	VSS         → GND
//	VDD         → 5V
//	RS          → GPIO (any available pin)
//	RW          → GND (or a GPIO, always driven low)
//	E           → GPIO
//	D4..D7      → GPIO x4
//
// Through an MCP23017, every display line maps to one of the expander's 16
// pins instead; only the expander's SDA/SCL reach the host.
//
// # Basic Usage
//
//	package main
//
//	import (
//		"log"
//
//		"periph.io/x/conn/v3/gpio"
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/host/v3"
//
//		"github.com/lab-coding-de/rpi-electronics/lcd20x4"
//	)
//
//	func main() {
//		if _, err := host.Init(); err != nil {
//			log.Fatal(err)
//		}
//
//		dev, err := lcd20x4.NewGPIO(&lcd20x4.GPIOOpts{
//			Opts: lcd20x4.Opts{DisplayOn: true},
//			RS:   gpioreg.ByName("GPIO7"),
//			E:    gpioreg.ByName("GPIO8"),
//			Data: []gpio.PinOut{
//				gpioreg.ByName("GPIO25"), // display D4
//				gpioreg.ByName("GPIO24"), // display D5
//				gpioreg.ByName("GPIO23"), // display D6
//				gpioreg.ByName("GPIO18"), // display D7
//			},
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer dev.Halt()
//
//		if err := dev.WriteLine(0, 0, "Hello"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// # Using an MCP23017 Backpack
//
// With the display behind an expander, open the I²C bus, build the expander
// driver and describe which expander pin drives which display line:
//
//	bus, _ := i2creg.Open("")
//	exp, _ := mcp23017.New(bus, mcp23017.DefaultAddress)
//	dev, _ := lcd20x4.NewExpander(exp, &lcd20x4.ExpanderOpts{
//		Opts: lcd20x4.Opts{DisplayOn: true},
//		RS:   10,
//		E:    8,
//		RW:   9,
//		Data: []int{0, 1, 2, 3, 4, 5, 6, 7},
//	})
//
// Line updates that belong to one transfer are folded into a single expander
// register write, so an 8-bit character costs three bus transactions: data
// lines, strobe up, strobe down.
//
// # Positioning
//
// Lines and columns are 0-based: line 0..3, column 0..19. WriteLine clips
// text at the end of the line instead of wrapping:
//
//	dev.WriteLine(1, 18, "HELLO") // shows "HE", drops "LLO"
//
// The display.TextDisplay methods (MoveTo, Write, ...) follow periph.io's
// 1-based convention instead; MoveTo(1, 1) is the top-left cell.
//
// # Custom Characters
//
// Up to eight 5x8 glyphs can be loaded into CGRAM and shown by writing their
// slot number:
//
//	up := &glyph.Bitmap{Rows: [8]byte{0x04, 0x0E, 0x15, 0x04, 0x04, 0x04, 0x04, 0x00}}
//	dev.CreateChar(0, up)
//	dev.WriteChar(0)
//
// # Datasheet
//
// For instruction timings and the DDRAM layout, see:
// https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
//
// # Compatibility with periph.io
//
// Dev implements the display.TextDisplay interface from periph.io:
// https://pkg.go.dev/periph.io/x/conn/v3/display
package lcd20x4
