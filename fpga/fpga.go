// Interface to the microphone array FPGA.
//
// The FPGA reads a TDM line carrying several MEMS microphones, delays
// and sums them in BRAM according to the steering angle, and streams
// the beamformed result to the host over a UART.  Each 14-bit sample
// goes out as two bytes whose top bit marks the byte's position in the
// sample; see package frame for the byte layout.
//
// On the host the UART appears as a USB serial device.  Link wraps the
// open port so the capture code only ever sees an io.Reader.
package fpga

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

const (
	CLOCK_HZ         = 100e6                     // FPGA system clock, Hz
	BAUD_RATE        = 921600                    // UART baud rate used by the capture scripts
	MIC_SAMPLE_RATE  = 31250                     // mic sample rate out of the TDM receiver, Hz
	NUM_MICS         = 4                         // microphones on the array board
	BPS_MIC          = 14                        // bits per sample carried over the UART
	BYTES_PER_SAMPLE = 2                         // framed bytes per transmitted sample
	LUT_ANGLES       = 181                       // angle->delay LUT entries, 0..180 degrees
	DEFAULT_PORT     = "/dev/ttyUSB1"            // usual device node on a linux host
	DEFAULT_TIMEOUT  = 500 * time.Millisecond    // read timeout on the serial port
	UART_CYCLES      = int(CLOCK_HZ) / BAUD_RATE // FPGA clock cycles per UART bit, truncated
)

// Params describes the synthesis parameters shared between the FPGA
// design and these tools.  Fields must be integers and carry these tags:
//
//	param: name of the SystemVerilog localparam
//	desc:  human-readable description
//
// cmd/gen_sv turns this struct into a header that the design includes,
// so both sides agree on rates and sizes.
type Params struct {
	ClockHz      uint32 `param:"CLK_FREQ" desc:"system clock frequency, Hz"`
	BaudRate     uint32 `param:"BAUD_RATE" desc:"UART baud rate, bits per second"`
	SampleRate   uint32 `param:"SAMPLE_RATE" desc:"microphone sample rate, Hz"`
	NumMics      uint32 `param:"NUM_MICS" desc:"number of microphones on the TDM line"`
	SampleWidth  uint32 `param:"SAMPLE_WIDTH" desc:"bits per sample sent over the UART"`
	CyclesPerBit uint32 `param:"CYCLES_PER_BIT" desc:"system clock cycles per UART bit"`
	LUTAngles    uint32 `param:"LUT_ANGLES" desc:"entries in the angle to delay lookup table"`
	MaxDelay     uint32 `param:"MAX_DELAY" desc:"largest delay in samples the delay line must hold"`
	SpacingMicro uint32 `param:"MIC_SPACING_UM" desc:"distance between adjacent microphones, micrometres"`
}

// DefaultParams returns the parameters of the current board build.
// maxDelay is normally taken from the generated LUT.
func DefaultParams(spacing float64, maxDelay int) Params {
	return Params{
		ClockHz:      CLOCK_HZ,
		BaudRate:     BAUD_RATE,
		SampleRate:   MIC_SAMPLE_RATE,
		NumMics:      NUM_MICS,
		SampleWidth:  BPS_MIC,
		CyclesPerBit: uint32(UART_CYCLES),
		LUTAngles:    LUT_ANGLES,
		MaxDelay:     uint32(maxDelay),
		SpacingMicro: uint32(spacing*1e6 + 0.5),
	}
}

// LinkConfig selects and configures the serial device.
type LinkConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// Validate reports problems with a LinkConfig.
func (c LinkConfig) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("link.port is empty"))
	}
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("link.baud must be positive, got %d", c.Baud))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("link.read_timeout must not be negative, got %s", c.ReadTimeout))
	}
	return errors.Join(errs...)
}

// Link is an open UART connection to the FPGA.
type Link struct {
	Config LinkConfig
	port   io.ReadWriteCloser
}

// Open opens the serial port named in cfg.
func Open(cfg LinkConfig) (*Link, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fpga: %w", err)
	}
	p, err := serial.OpenPort(&serial.Config{Name: cfg.Port, Baud: cfg.Baud, ReadTimeout: cfg.ReadTimeout})
	if err != nil {
		return nil, fmt.Errorf("fpga: open %s: %w", cfg.Port, err)
	}
	return &Link{Config: cfg, port: p}, nil
}

// NewLink wraps an already open port; used for replaying captures and
// in tests.
func NewLink(cfg LinkConfig, port io.ReadWriteCloser) *Link {
	return &Link{Config: cfg, port: port}
}

// Read reads raw link bytes.  A serial port has no end of stream: the
// io.EOF a port returns when its read timeout expires with nothing
// received is reported as (0, nil), so callers see an idle read.
func (l *Link) Read(p []byte) (int, error) {
	if l.port == nil {
		return 0, io.ErrClosedPipe
	}
	n, err := l.port.Read(p)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// Write sends bytes to the FPGA (e.g. a steering angle command).
func (l *Link) Write(p []byte) (int, error) {
	if l.port == nil {
		return 0, io.ErrClosedPipe
	}
	return l.port.Write(p)
}

// Close frees the port.  Closing a closed Link is a no-op.
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}

// BytesPerSecond is the number of framed bytes the FPGA sends per
// second of audio at rate Hz.
func BytesPerSecond(rate int) int {
	return rate * BYTES_PER_SAMPLE
}

// LinkCapacity is the number of bytes per second the UART can carry at
// baud, assuming 8N1 framing (10 bits on the wire per byte).
func LinkCapacity(baud int) int {
	return baud / 10
}
