package wavegen

import "fmt"

// Field is a contiguous group of bits inside one register
type Field struct {
	Reg   Register
	Shift uint
	Width uint
}

// Mask returns the in-place bit mask of the field
func (f Field) Mask() uint32 {
	return ^uint32(0) >> (32 - f.Width) << f.Shift
}

// Insert replaces the field's bits of word with v, discarding bits of v
// that do not fit
func (f Field) Insert(word, v uint32) uint32 {
	m := f.Mask()
	return word&^m | (v<<f.Shift)&m
}

// Extract returns the field's bits of word, right aligned
func (f Field) Extract(word uint32) uint32 {
	return (word & f.Mask()) >> f.Shift
}

// Whole is true when the field covers the entire register
func (f Field) Whole() bool {
	return f.Shift == 0 && f.Width == 32
}

func (f Field) String() string {
	return fmt.Sprintf("%s[%d:%d]", f.Reg, f.Shift+f.Width-1, f.Shift)
}

// FieldKind names a logical per-channel parameter
type FieldKind int

const (
	// ModeField is the 3-bit waveform code
	ModeField FieldKind = iota

	// HilbertField selects the Hilbert transformed waveform
	HilbertField

	// PhaseField is the 16-bit phase word; MODE carries A's, RUN carries B's
	PhaseField

	// RunField enables output
	RunField

	// ComplementField inverts the channel relative to the other one
	ComplementField

	// FrequencyField is the 32-bit tuning word
	FrequencyField

	// OffsetField is the signed 16-bit offset
	OffsetField

	// AmplitudeField is the unsigned 16-bit amplitude
	AmplitudeField

	// DutyField is the unsigned 16-bit duty cycle
	DutyField

	// CyclesField is the 16-bit cycle count
	CyclesField

	numFieldKinds
)

var fieldKindNames = [numFieldKinds]string{
	"mode", "hilbert", "phase", "run", "complement",
	"frequency", "offset", "amplitude", "duty", "cycles",
}

func (k FieldKind) String() string {
	if k < 0 || k >= numFieldKinds {
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
	return fieldKindNames[k]
}

// layout is the register map, indexed by kind then channel.
// MODE and RUN are overloaded: flags low, a phase word high.
var layout = [numFieldKinds][2]Field{
	ModeField:       {{MODE, 0, 3}, {MODE, 3, 3}},
	HilbertField:    {{MODE, 6, 1}, {MODE, 7, 1}},
	PhaseField:      {{MODE, 16, 16}, {RUN, 16, 16}},
	RunField:        {{RUN, 0, 1}, {RUN, 1, 1}},
	ComplementField: {{RUN, 2, 1}, {RUN, 3, 1}},
	FrequencyField:  {{FREQA, 0, 32}, {FREQB, 0, 32}},
	OffsetField:     {{OFFSET, 0, 16}, {OFFSET, 16, 16}},
	AmplitudeField:  {{AMPLITUDE, 0, 16}, {AMPLITUDE, 16, 16}},
	DutyField:       {{DUTY, 0, 16}, {DUTY, 16, 16}},
	CyclesField:     {{CYCLES, 0, 16}, {CYCLES, 16, 16}},
}

// Lookup returns where a channel's field lives.
// the error is non-nil if ch is not A or B, or kind is unknown.
func Lookup(kind FieldKind, ch Channel) (Field, error) {
	if !ch.Single() {
		return Field{}, fmt.Errorf("%w: %s has no %s field", ErrInvalidChannel, ch, kind)
	}
	if kind < 0 || kind >= numFieldKinds {
		return Field{}, fmt.Errorf("unknown field kind %d", int(kind))
	}
	return layout[kind][ch], nil
}
