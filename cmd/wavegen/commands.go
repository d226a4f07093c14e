package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/nasa-jpl/wavegen/util"
	"github.com/nasa-jpl/wavegen/wavegen"
)

var (
	// ErrUsage is generated when a command has the wrong number of arguments
	ErrUsage = errors.New("usage")

	// ErrUnknownCommand is generated for a command that does not exist
	ErrUnknownCommand = errors.New("unknown command")

	// ErrArgument is generated when an argument cannot be parsed
	ErrArgument = errors.New("bad argument")
)

// Action is a fully parsed command, ready to run against a generator.
// Parsing happens before any transport is opened, so a command with a bad
// argument never touches the registers.
type Action func(gen *wavegen.Generator, out io.Writer) error

type command struct {
	usage    string
	min, max int
	parse    func(args []string) (Action, error)
}

var commands = map[string]command{
	"dc":         {"CH OFS", 2, 2, parseDC},
	"cycles":     {"CH N|continuous", 2, 2, parseCycles},
	"phase":      {"CH DEGREES", 2, 2, parsePhase},
	"complement": {"CH on|off", 2, 2, parseFlag((*wavegen.Generator).SetComplement)},
	"hilbert":    {"CH on|off", 2, 2, parseFlag((*wavegen.Generator).SetHilbert)},
	"run":        {"[a|b|ab]", 0, 1, parseRun},
	"stop":       {"[a|b|ab]", 0, 1, parseStop},
	"status":     {"", 0, 0, parseStatus},
}

// Commands lists the register commands Parse understands, waveforms first
func Commands() []string {
	out := []string{"sine", "saw", "tri", "sq", "arb"}
	names := make([]string, 0, len(commands))
	for k := range commands {
		names = append(names, k)
	}
	sort.Strings(names)
	return append(out, names...)
}

// Parse turns command line arguments, starting at the command name, into an Action
func Parse(args []string) (Action, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no command given", ErrUsage)
	}
	name := strings.ToLower(args[0])
	rest := args[1:]
	if m, err := wavegen.ParseMode(name); err == nil && m != wavegen.DC {
		if len(rest) < 3 || len(rest) > 5 {
			return nil, fmt.Errorf("%w: %s CH FREQ AMP [OFS [DUTY]]", ErrUsage, name)
		}
		return parseWaveform(m, rest)
	}
	cmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, expected one of %s", ErrUnknownCommand, args[0], strings.Join(Commands(), " "))
	}
	if len(rest) < cmd.min || len(rest) > cmd.max {
		return nil, fmt.Errorf("%w: %s %s", ErrUsage, name, cmd.usage)
	}
	return cmd.parse(rest)
}

func parseChannel(s string) (wavegen.Channel, error) {
	ch, err := wavegen.ParseChannel(s)
	if err != nil {
		return ch, err
	}
	if !ch.Single() {
		return ch, fmt.Errorf("%w: %s, need a or b", wavegen.ErrInvalidChannel, s)
	}
	return ch, nil
}

func parseFloat(what, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrArgument, what, s)
	}
	return f, nil
}

// parseUint reads a decimal integer, or hex with a 0x prefix.  A leading
// zero is not octal.
func parseUint(s string, bits int) (uint64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return strconv.ParseUint(s[2:], 16, bits)
	}
	return strconv.ParseUint(s, 10, bits)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not on or off", ErrArgument, s)
}

// parseWaveform handles CH FREQ AMP [OFS [DUTY]].  FREQ is the tuning word
// and may be given in hex.  A square wave without a duty runs at 50 %.
func parseWaveform(m wavegen.Mode, args []string) (Action, error) {
	ch, err := parseChannel(args[0])
	if err != nil {
		return nil, err
	}
	freq, err := parseUint(args[1], 32)
	if err != nil {
		return nil, fmt.Errorf("%w: frequency %q is not a 32-bit tuning word", ErrArgument, args[1])
	}
	wf := wavegen.Waveform{Mode: m, Frequency: uint32(freq)}
	if wf.Amplitude, err = parseFloat("amplitude", args[2]); err != nil {
		return nil, err
	}
	if len(args) > 3 {
		if wf.Offset, err = parseFloat("offset", args[3]); err != nil {
			return nil, err
		}
	}
	if len(args) > 4 {
		if wf.Duty, err = parseFloat("duty", args[4]); err != nil {
			return nil, err
		}
	} else if m == wavegen.Square {
		wf.Duty = 50
	}
	return func(gen *wavegen.Generator, out io.Writer) error {
		return gen.Apply(ch, wf.State(true))
	}, nil
}

func parseDC(args []string) (Action, error) {
	ch, err := parseChannel(args[0])
	if err != nil {
		return nil, err
	}
	ofs, err := parseFloat("offset", args[1])
	if err != nil {
		return nil, err
	}
	wf := wavegen.Waveform{Mode: wavegen.DC, Offset: ofs}
	return func(gen *wavegen.Generator, out io.Writer) error {
		return gen.Apply(ch, wf.State(true))
	}, nil
}

func parseCycles(args []string) (Action, error) {
	ch, err := parseChannel(args[0])
	if err != nil {
		return nil, err
	}
	var n uint64
	switch strings.ToLower(args[1]) {
	case "continuous", "cont", "inf":
	default:
		n, err = parseUint(args[1], 16)
		if err != nil {
			return nil, fmt.Errorf("%w: cycles %q is not in [0, 65535]", ErrArgument, args[1])
		}
	}
	return func(gen *wavegen.Generator, out io.Writer) error {
		return gen.SetCycles(ch, uint16(n))
	}, nil
}

func parsePhase(args []string) (Action, error) {
	ch, err := parseChannel(args[0])
	if err != nil {
		return nil, err
	}
	deg, err := parseFloat("phase", args[1])
	if err != nil {
		return nil, err
	}
	return func(gen *wavegen.Generator, out io.Writer) error {
		return gen.SetPhaseDegrees(ch, deg)
	}, nil
}

func parseFlag(set func(*wavegen.Generator, wavegen.Channel, bool) error) func([]string) (Action, error) {
	return func(args []string) (Action, error) {
		ch, err := parseChannel(args[0])
		if err != nil {
			return nil, err
		}
		on, err := parseOnOff(args[1])
		if err != nil {
			return nil, err
		}
		return func(gen *wavegen.Generator, out io.Writer) error {
			return set(gen, ch, on)
		}, nil
	}
}

// optionalChannel parses [a|b|ab], defaulting to both
func optionalChannel(args []string) (wavegen.Channel, error) {
	if len(args) == 0 {
		return wavegen.AB, nil
	}
	return wavegen.ParseChannel(args[0])
}

func parseRun(args []string) (Action, error) {
	ch, err := optionalChannel(args)
	if err != nil {
		return nil, err
	}
	return func(gen *wavegen.Generator, out io.Writer) error {
		return gen.Start(ch)
	}, nil
}

func parseStop(args []string) (Action, error) {
	ch, err := optionalChannel(args)
	if err != nil {
		return nil, err
	}
	return func(gen *wavegen.Generator, out io.Writer) error {
		return gen.Stop(ch)
	}, nil
}

func parseStatus(args []string) (Action, error) {
	return func(gen *wavegen.Generator, out io.Writer) error {
		st, err := gen.Status()
		if err != nil {
			return err
		}
		PrintStatus(out, st)
		return nil
	}, nil
}

func colorState(s wavegen.RunState) string {
	switch s {
	case wavegen.Running:
		return color.GreenString("%-10s", s)
	case wavegen.Configured:
		return color.YellowString("%-10s", s)
	}
	return color.RedString("%-10s", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// PrintStatus writes the raw registers followed by one decoded line per channel
func PrintStatus(out io.Writer, st wavegen.Status) {
	head := color.New(color.Bold).SprintFunc()
	for i, v := range st.Registers {
		fmt.Fprintf(out, "%-9s %s\n", wavegen.Register(i), util.Uint32SliceToHex([]uint32{v}))
	}
	for _, ch := range wavegen.Channels {
		s := st.Channels[ch]
		wf := s.Waveform()
		cycles := "continuous"
		if s.Cycles != 0 {
			cycles = strconv.Itoa(int(s.Cycles))
		}
		fmt.Fprintf(out, "%s %s %-9s freq %d amp %.4f V ofs %.4f V duty %.2f %% phase %.2f deg cycles %s complement %s hilbert %s\n",
			head(ch), colorState(s.RunState()), s.Mode, s.Frequency, wf.Amplitude, wf.Offset,
			wf.Duty, wf.Phase, cycles, onOff(s.Complement), onOff(s.Hilbert))
	}
}
