/*Package wavegen provides an interface to a two channel programmable waveform
generator exposed as eight 32-bit memory mapped registers.

Both output channels share the register file.  Most registers are packed,
channel A in bits [15:0] and channel B in bits [31:16]; MODE and RUN also
carry per-channel control bits and the phase words.  The layout lives in one
table (see Field and Lookup) and every register access goes through a Codec,
which performs the masked read-modify-write for one field at a time.

The register file is the only state.  Nothing is cached: every get reads the
hardware, every set writes it.

Basic usage is as follows:

	mem, err := devmem.Open("/dev/mem", devmem.DefaultBase)
	if err != nil {
		log.Fatal(err)
	}
	defer mem.Close()
	gen := wavegen.New(mem)
	wf := wavegen.Waveform{Mode: wavegen.Sine, Frequency: 1000, Amplitude: 1, Duty: 50}
	err = gen.Apply(wavegen.A, wf.State(true))

*/
package wavegen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Register is an index into the register file
type Register uint8

const (
	// MODE holds the waveform modes, Hilbert flags and the channel A phase
	MODE Register = iota

	// RUN holds the run and complement flags and the channel B phase
	RUN

	// FREQA is the channel A frequency tuning word
	FREQA

	// FREQB is the channel B frequency tuning word
	FREQB

	// OFFSET holds the signed DC offsets
	OFFSET

	// AMPLITUDE holds the unsigned amplitudes
	AMPLITUDE

	// DUTY holds the unsigned duty cycles
	DUTY

	// CYCLES holds the cycle counts, 0 is continuous
	CYCLES

	// NumRegisters is the number of registers in the file
	NumRegisters = 8

	// Span is the size of the register file in bytes
	Span = NumRegisters * 4
)

var registerNames = [NumRegisters]string{"MODE", "RUN", "FREQ_A", "FREQ_B", "OFFSET", "AMPLITUDE", "DUTY", "CYCLES"}

// Offset returns the byte offset of the register from the base of the file
func (r Register) Offset() uintptr {
	return uintptr(r) * 4
}

// Valid is true if the register is inside the file
func (r Register) Valid() bool {
	return r < NumRegisters
}

func (r Register) String() string {
	if !r.Valid() {
		return "Register(" + strconv.Itoa(int(r)) + ")"
	}
	return registerNames[r]
}

// Channel identifies an output.  AB is only meaningful where both channels
// can be commanded with one write (run, stop).
type Channel int

const (
	// A is the first output
	A Channel = iota

	// B is the second output
	B

	// AB is both outputs at once
	AB
)

// Channels is the list of single outputs, in order
var Channels = []Channel{A, B}

func (c Channel) String() string {
	switch c {
	case A:
		return "A"
	case B:
		return "B"
	case AB:
		return "AB"
	}
	return "Channel(" + strconv.Itoa(int(c)) + ")"
}

// Single is true for A and B
func (c Channel) Single() bool {
	return c == A || c == B
}

// ParseChannel converts a user string to a channel.
// "a"/"0", "b"/"1" and "ab"/"c"/"both" are accepted, case insensitive.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "0":
		return A, nil
	case "b", "1":
		return B, nil
	case "ab", "c", "both", "2":
		return AB, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidChannel, s)
}

// Mode is a waveform shape, a 3-bit code in the MODE register
type Mode uint8

const (
	// DC outputs the offset only
	DC Mode = iota

	// Sine is a sine wave
	Sine

	// Sawtooth is a rising ramp
	Sawtooth

	// Triangle is a symmetric ramp
	Triangle

	// Square is a square wave with programmable duty cycle
	Square

	// Arbitrary plays the arbitrary waveform table
	Arbitrary
)

var modeNames = map[Mode]string{
	DC:        "dc",
	Sine:      "sine",
	Sawtooth:  "sawtooth",
	Triangle:  "triangle",
	Square:    "square",
	Arbitrary: "arbitrary",
}

// Valid is true if m is one of the defined modes
func (m Mode) Valid() bool {
	return m <= Arbitrary
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// ParseMode converts a user string to a mode.  The short command line names
// (saw, tri, sq, arb) are accepted as well as the long ones.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dc":
		return DC, nil
	case "sine", "sin":
		return Sine, nil
	case "saw", "sawtooth":
		return Sawtooth, nil
	case "tri", "triangle":
		return Triangle, nil
	case "sq", "sqr", "square":
		return Square, nil
	case "arb", "arbitrary":
		return Arbitrary, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Transport reads and writes whole registers.  Implementations map
// directly to the hardware with no caching.
type Transport interface {
	Read32(Register) (uint32, error)
	Write32(Register, uint32) error
}

var (
	// ErrInvalidChannel is generated when a channel other than A or B is
	// given to a per-channel field, or a channel name is not understood
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrInvalidMode is generated for mode codes or names outside the defined set
	ErrInvalidMode = errors.New("invalid waveform mode")

	// ErrRegisterRange is generated by transports for offsets outside the file
	ErrRegisterRange = errors.New("register outside the 8 register span")
)
