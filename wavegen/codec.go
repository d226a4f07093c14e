package wavegen

import (
	"fmt"
	"sync"

	"github.com/nasa-jpl/wavegen/util"
)

// Codec encodes per-channel parameters into the register file.
// It is the only thing that should touch a Transport; the embedded mutex
// makes each masked read-modify-write atomic with respect to every other
// Codec call, so concurrent setters on A and B never lose each other's bits.
type Codec struct {
	sync.Mutex

	t Transport
}

// NewCodec returns a Codec writing through t
func NewCodec(t Transport) *Codec {
	return &Codec{t: t}
}

// Transport returns the underlying register transport
func (c *Codec) Transport() Transport {
	return c.t
}

// setField writes v into one field, preserving the rest of the register.
// Whole-register fields are written blind.
func (c *Codec) setField(f Field, v uint32) error {
	c.Lock()
	defer c.Unlock()
	if f.Whole() {
		return c.t.Write32(f.Reg, v)
	}
	word, err := c.t.Read32(f.Reg)
	if err != nil {
		return err
	}
	return c.t.Write32(f.Reg, f.Insert(word, v))
}

func (c *Codec) getField(f Field) (uint32, error) {
	c.Lock()
	defer c.Unlock()
	word, err := c.t.Read32(f.Reg)
	if err != nil {
		return 0, err
	}
	return f.Extract(word), nil
}

func (c *Codec) set(kind FieldKind, ch Channel, v uint32) error {
	f, err := Lookup(kind, ch)
	if err != nil {
		return err
	}
	return c.setField(f, v)
}

func (c *Codec) get(kind FieldKind, ch Channel) (uint32, error) {
	f, err := Lookup(kind, ch)
	if err != nil {
		return 0, err
	}
	return c.getField(f)
}

// setFlags sets or clears a one-bit field on one or both channels with a
// single read-modify-write
func (c *Codec) setFlags(kind FieldKind, ch Channel, on bool) error {
	var targets []Channel
	if ch == AB {
		targets = Channels
	} else {
		targets = []Channel{ch}
	}
	fields := make([]Field, 0, len(targets))
	for _, t := range targets {
		f, err := Lookup(kind, t)
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}

	c.Lock()
	defer c.Unlock()
	reg := fields[0].Reg
	word, err := c.t.Read32(reg)
	if err != nil {
		return err
	}
	for _, f := range fields {
		word = util.SetBit(word, f.Shift, on)
	}
	return c.t.Write32(reg, word)
}

func (c *Codec) getFlag(kind FieldKind, ch Channel) (bool, error) {
	f, err := Lookup(kind, ch)
	if err != nil {
		return false, err
	}
	c.Lock()
	defer c.Unlock()
	word, err := c.t.Read32(f.Reg)
	if err != nil {
		return false, err
	}
	return util.GetBit(word, f.Shift), nil
}

// ReadRegister returns the raw contents of one register
func (c *Codec) ReadRegister(r Register) (uint32, error) {
	if !r.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrRegisterRange, r)
	}
	c.Lock()
	defer c.Unlock()
	return c.t.Read32(r)
}

// Dump returns all eight registers in order
func (c *Codec) Dump() ([NumRegisters]uint32, error) {
	var out [NumRegisters]uint32
	c.Lock()
	defer c.Unlock()
	for i := Register(0); i < NumRegisters; i++ {
		v, err := c.t.Read32(i)
		if err != nil {
			return out, fmt.Errorf("reading %s: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// SetMode sets the waveform mode of a channel.  The other channel's mode,
// the Hilbert bits and the channel A phase word are preserved.
func (c *Codec) SetMode(ch Channel, m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: code %d", ErrInvalidMode, m)
	}
	return c.set(ModeField, ch, uint32(m))
}

// GetMode returns the raw MODE register; both channels' codes, the Hilbert
// bits and the channel A phase are all in it
func (c *Codec) GetMode() (uint32, error) {
	return c.ReadRegister(MODE)
}

// ChannelMode decodes the mode of one channel.  A code outside the defined
// set is returned along with ErrInvalidMode.
func (c *Codec) ChannelMode(ch Channel) (Mode, error) {
	v, err := c.get(ModeField, ch)
	if err != nil {
		return 0, err
	}
	m := Mode(v)
	if !m.Valid() {
		return m, fmt.Errorf("%w: register holds code %d", ErrInvalidMode, v)
	}
	return m, nil
}

// SetRun enables or disables output.  AB changes both run bits in one write.
func (c *Codec) SetRun(ch Channel, enabled bool) error {
	return c.setFlags(RunField, ch, enabled)
}

// GetRun returns the two run bits, bit 0 channel A and bit 1 channel B
func (c *Codec) GetRun() (uint32, error) {
	word, err := c.ReadRegister(RUN)
	return word & 0x3, err
}

// Running is true if the channel's run bit is set
func (c *Codec) Running(ch Channel) (bool, error) {
	return c.getFlag(RunField, ch)
}

// SetComplement sets the complement bit of a channel
func (c *Codec) SetComplement(ch Channel, on bool) error {
	return c.setFlags(ComplementField, ch, on)
}

// GetComplement reads the complement bit of a channel
func (c *Codec) GetComplement(ch Channel) (bool, error) {
	return c.getFlag(ComplementField, ch)
}

// SetHilbert sets the Hilbert bit of a channel
func (c *Codec) SetHilbert(ch Channel, on bool) error {
	return c.setFlags(HilbertField, ch, on)
}

// GetHilbert reads the Hilbert bit of a channel
func (c *Codec) GetHilbert(ch Channel) (bool, error) {
	return c.getFlag(HilbertField, ch)
}

// SetFrequency writes the 32-bit tuning word of a channel
func (c *Codec) SetFrequency(ch Channel, word uint32) error {
	return c.set(FrequencyField, ch, word)
}

// GetFrequency reads the 32-bit tuning word of a channel
func (c *Codec) GetFrequency(ch Channel) (uint32, error) {
	return c.get(FrequencyField, ch)
}

func (c *Codec) set16(kind FieldKind, ch Channel, v uint16) error {
	return c.set(kind, ch, uint32(v))
}

func (c *Codec) get16(kind FieldKind, ch Channel) (uint16, error) {
	v, err := c.get(kind, ch)
	return uint16(v), err
}

// SetOffset writes the two's complement offset field of a channel
func (c *Codec) SetOffset(ch Channel, v uint16) error { return c.set16(OffsetField, ch, v) }

// GetOffset reads the offset field of a channel, undecoded
func (c *Codec) GetOffset(ch Channel) (uint16, error) { return c.get16(OffsetField, ch) }

// SetAmplitude writes the amplitude field of a channel
func (c *Codec) SetAmplitude(ch Channel, v uint16) error { return c.set16(AmplitudeField, ch, v) }

// GetAmplitude reads the amplitude field of a channel
func (c *Codec) GetAmplitude(ch Channel) (uint16, error) { return c.get16(AmplitudeField, ch) }

// SetDuty writes the duty cycle field of a channel
func (c *Codec) SetDuty(ch Channel, v uint16) error { return c.set16(DutyField, ch, v) }

// GetDuty reads the duty cycle field of a channel
func (c *Codec) GetDuty(ch Channel) (uint16, error) { return c.get16(DutyField, ch) }

// SetCycles writes the cycle count of a channel, 0 for continuous
func (c *Codec) SetCycles(ch Channel, n uint16) error { return c.set16(CyclesField, ch, n) }

// GetCycles reads the cycle count of a channel
func (c *Codec) GetCycles(ch Channel) (uint16, error) { return c.get16(CyclesField, ch) }

// SetPhase writes the phase word of a channel.  A's lives in MODE[31:16],
// B's in RUN[31:16]; neither disturbs the control bits below it.
func (c *Codec) SetPhase(ch Channel, v uint16) error { return c.set16(PhaseField, ch, v) }

// GetPhase reads the phase word of a channel
func (c *Codec) GetPhase(ch Channel) (uint16, error) { return c.get16(PhaseField, ch) }
