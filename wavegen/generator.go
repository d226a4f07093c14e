package wavegen

import (
	"fmt"

	"github.com/nasa-jpl/wavegen/fixedpoint"
)

// ChannelState is the register-level configuration of one channel, every
// field in the units the hardware stores
type ChannelState struct {
	Mode       Mode   `json:"mode"`
	Frequency  uint32 `json:"frequency"`
	Amplitude  uint16 `json:"amplitude"`
	Offset     int16  `json:"offset"`
	Duty       uint16 `json:"duty"`
	Cycles     uint16 `json:"cycles"`
	Phase      uint16 `json:"phase"`
	Run        bool   `json:"run"`
	Complement bool   `json:"complement"`
	Hilbert    bool   `json:"hilbert"`
}

// Waveform is a channel configuration in engineering units.
// Amplitude and Offset are in volts, Duty in percent and Phase in degrees.
// Frequency is passed through as the raw tuning word.
type Waveform struct {
	Mode       Mode    `json:"mode" yaml:"mode"`
	Frequency  uint32  `json:"frequency" yaml:"frequency"`
	Amplitude  float64 `json:"amplitude" yaml:"amplitude"`
	Offset     float64 `json:"offset" yaml:"offset"`
	Duty       float64 `json:"duty" yaml:"duty"`
	Cycles     uint16  `json:"cycles" yaml:"cycles"`
	Phase      float64 `json:"phase" yaml:"phase"`
	Complement bool    `json:"complement" yaml:"complement"`
	Hilbert    bool    `json:"hilbert" yaml:"hilbert"`
}

// State encodes the waveform into register units
func (w Waveform) State(run bool) ChannelState {
	return ChannelState{
		Mode:       w.Mode,
		Frequency:  w.Frequency,
		Amplitude:  fixedpoint.EncodeUnsigned(w.Amplitude, fixedpoint.Volts),
		Offset:     int16(fixedpoint.EncodeSigned(w.Offset, fixedpoint.Volts)),
		Duty:       fixedpoint.EncodeUnsigned(w.Duty, fixedpoint.Percent),
		Cycles:     w.Cycles,
		Phase:      fixedpoint.EncodeUnsigned(w.Phase, fixedpoint.Degrees),
		Run:        run,
		Complement: w.Complement,
		Hilbert:    w.Hilbert,
	}
}

// Waveform decodes the register units into engineering units
func (s ChannelState) Waveform() Waveform {
	return Waveform{
		Mode:       s.Mode,
		Frequency:  s.Frequency,
		Amplitude:  fixedpoint.DecodeUnsigned(s.Amplitude, fixedpoint.Volts),
		Offset:     fixedpoint.DecodeSigned(uint16(s.Offset), fixedpoint.Volts),
		Duty:       fixedpoint.DecodeUnsigned(s.Duty, fixedpoint.Percent),
		Cycles:     s.Cycles,
		Phase:      fixedpoint.DecodeUnsigned(s.Phase, fixedpoint.Degrees),
		Complement: s.Complement,
		Hilbert:    s.Hilbert,
	}
}

// RunState is the lifecycle of a channel as observed from the registers
type RunState int

const (
	// Stopped means mode, frequency, amplitude, offset, duty and run are all zero
	Stopped RunState = iota

	// Configured means some parameter is nonzero but the run bit is clear
	Configured

	// Running means the run bit is set
	Running
)

func (r RunState) String() string {
	switch r {
	case Stopped:
		return "stopped"
	case Configured:
		return "configured"
	case Running:
		return "running"
	}
	return fmt.Sprintf("RunState(%d)", int(r))
}

// RunState classifies a decoded channel state.  It is derived from the
// registers alone, so a channel configured as DC with every parameter zero
// reads back as Stopped, the same as after Stop.
func (s ChannelState) RunState() RunState {
	if s.Run {
		return Running
	}
	if s.Mode == DC && s.Frequency == 0 && s.Amplitude == 0 && s.Offset == 0 && s.Duty == 0 {
		return Stopped
	}
	return Configured
}

// Generator is the engineering unit view of the waveform generator
type Generator struct {
	*Codec
}

// New returns a Generator over the given transport
func New(t Transport) *Generator {
	return &Generator{Codec: NewCodec(t)}
}

// SetAmplitudeVolts sets the amplitude of a channel in volts
func (g *Generator) SetAmplitudeVolts(ch Channel, volts float64) error {
	return g.SetAmplitude(ch, fixedpoint.EncodeUnsigned(volts, fixedpoint.Volts))
}

// GetAmplitudeVolts reads the amplitude of a channel in volts
func (g *Generator) GetAmplitudeVolts(ch Channel) (float64, error) {
	v, err := g.GetAmplitude(ch)
	return fixedpoint.DecodeUnsigned(v, fixedpoint.Volts), err
}

// SetOffsetVolts sets the DC offset of a channel in volts.  Negative
// offsets are stored two's complement.
func (g *Generator) SetOffsetVolts(ch Channel, volts float64) error {
	return g.SetOffset(ch, fixedpoint.EncodeSigned(volts, fixedpoint.Volts))
}

// GetOffsetVolts reads the DC offset of a channel in volts
func (g *Generator) GetOffsetVolts(ch Channel) (float64, error) {
	v, err := g.GetOffset(ch)
	return fixedpoint.DecodeSigned(v, fixedpoint.Volts), err
}

// SetDutyPercent sets the duty cycle of a channel in percent
func (g *Generator) SetDutyPercent(ch Channel, pct float64) error {
	return g.SetDuty(ch, fixedpoint.EncodeUnsigned(pct, fixedpoint.Percent))
}

// GetDutyPercent reads the duty cycle of a channel in percent
func (g *Generator) GetDutyPercent(ch Channel) (float64, error) {
	v, err := g.GetDuty(ch)
	return fixedpoint.DecodeUnsigned(v, fixedpoint.Percent), err
}

// SetPhaseDegrees sets the phase of a channel in degrees
func (g *Generator) SetPhaseDegrees(ch Channel, deg float64) error {
	return g.SetPhase(ch, fixedpoint.EncodeUnsigned(deg, fixedpoint.Degrees))
}

// GetPhaseDegrees reads the phase of a channel in degrees
func (g *Generator) GetPhaseDegrees(ch Channel) (float64, error) {
	v, err := g.GetPhase(ch)
	return fixedpoint.DecodeUnsigned(v, fixedpoint.Degrees), err
}

// Configure clears the run bit and then writes mode, frequency, amplitude,
// offset and duty, in that order.  Cycles, phase, complement and Hilbert are
// not touched.  The channel is left Configured and never emits a half
// written waveform; Start or Apply sets run.
func (g *Generator) Configure(ch Channel, s ChannelState) error {
	if !ch.Single() {
		return fmt.Errorf("%w: configure needs A or B, got %s", ErrInvalidChannel, ch)
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: code %d", ErrInvalidMode, s.Mode)
	}
	return sequence(
		func() error { return g.SetRun(ch, false) },
		func() error { return g.SetMode(ch, s.Mode) },
		func() error { return g.SetFrequency(ch, s.Frequency) },
		func() error { return g.SetAmplitude(ch, s.Amplitude) },
		func() error { return g.SetOffset(ch, uint16(s.Offset)) },
		func() error { return g.SetDuty(ch, s.Duty) },
	)
}

// Apply configures the channel and then writes its run bit last
func (g *Generator) Apply(ch Channel, s ChannelState) error {
	if err := g.Configure(ch, s); err != nil {
		return err
	}
	return g.SetRun(ch, s.Run)
}

// ApplyAll is Apply preceded by cycles, phase, complement and Hilbert, so
// every field of the channel ends up equal to s
func (g *Generator) ApplyAll(ch Channel, s ChannelState) error {
	if !ch.Single() {
		return fmt.Errorf("%w: apply needs A or B, got %s", ErrInvalidChannel, ch)
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: code %d", ErrInvalidMode, s.Mode)
	}
	err := sequence(
		func() error { return g.SetRun(ch, false) },
		func() error { return g.SetCycles(ch, s.Cycles) },
		func() error { return g.SetPhase(ch, s.Phase) },
		func() error { return g.SetComplement(ch, s.Complement) },
		func() error { return g.SetHilbert(ch, s.Hilbert) },
	)
	if err != nil {
		return err
	}
	return g.Apply(ch, s)
}

func sequence(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Start sets the run bit of a channel, or both with AB
func (g *Generator) Start(ch Channel) error {
	return g.SetRun(ch, true)
}

// Stop returns a channel, or both with AB, to the Stopped state.
// Mode, frequency, amplitude, offset, duty and run are zeroed.  Cycles,
// phase, complement and Hilbert are deliberately left as they were, so a
// stopped channel keeps its timing setup; this differs from clearing the
// whole MODE and RUN words.
func (g *Generator) Stop(ch Channel) error {
	var targets []Channel
	switch ch {
	case A, B:
		targets = []Channel{ch}
	case AB:
		targets = Channels
	default:
		return fmt.Errorf("%w: %s", ErrInvalidChannel, ch)
	}
	if err := g.SetRun(ch, false); err != nil {
		return err
	}
	for _, c := range targets {
		err := sequence(
			func() error { return g.SetMode(c, DC) },
			func() error { return g.SetFrequency(c, 0) },
			func() error { return g.SetAmplitude(c, 0) },
			func() error { return g.SetOffset(c, 0) },
			func() error { return g.SetDuty(c, 0) },
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops both channels
func (g *Generator) StopAll() error {
	return g.Stop(AB)
}

// ReadState decodes the full configuration of one channel from the registers
func (g *Generator) ReadState(ch Channel) (ChannelState, error) {
	if !ch.Single() {
		return ChannelState{}, fmt.Errorf("%w: %s", ErrInvalidChannel, ch)
	}
	regs, err := g.Dump()
	if err != nil {
		return ChannelState{}, err
	}
	return decodeState(regs, ch), nil
}

// RunState reads the lifecycle state of a channel from the registers
func (g *Generator) RunState(ch Channel) (RunState, error) {
	s, err := g.ReadState(ch)
	if err != nil {
		return Stopped, err
	}
	return s.RunState(), nil
}

// Status is a snapshot of the whole register file, raw and decoded
type Status struct {
	Registers [NumRegisters]uint32 `json:"registers"`
	Channels  [2]ChannelState      `json:"channels"`
}

// Status reads all registers once and decodes both channels from the same
// snapshot
func (g *Generator) Status() (Status, error) {
	var st Status
	regs, err := g.Dump()
	if err != nil {
		return st, err
	}
	st.Registers = regs
	for _, ch := range Channels {
		st.Channels[ch] = decodeState(regs, ch)
	}
	return st, nil
}

func decodeState(regs [NumRegisters]uint32, ch Channel) ChannelState {
	field := func(kind FieldKind) uint32 {
		f := layout[kind][ch]
		return f.Extract(regs[f.Reg])
	}
	return ChannelState{
		Mode:       Mode(field(ModeField)),
		Frequency:  field(FrequencyField),
		Amplitude:  uint16(field(AmplitudeField)),
		Offset:     int16(field(OffsetField)),
		Duty:       uint16(field(DutyField)),
		Cycles:     uint16(field(CyclesField)),
		Phase:      uint16(field(PhaseField)),
		Run:        field(RunField) != 0,
		Complement: field(ComplementField) != 0,
		Hilbert:    field(HilbertField) != 0,
	}
}
