// Package tmc provides an HTTP interface to test and measurement devices,
// here a two channel waveform generator.
//
// Every per-channel attribute is a route under /{channel}/, readable with GET
// and writable with POST.  Each request goes straight to the registers;
// nothing is cached in the server.
package tmc

import (
	"encoding/json"
	"fmt"
	"go/types"
	"math"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/wavegen/generichttp"
	"github.com/nasa-jpl/wavegen/wavegen"
)

// FunctionGenerator describes an interface to a multi-channel function generator
type FunctionGenerator interface {
	// SetMode sets the waveform of a channel
	SetMode(wavegen.Channel, wavegen.Mode) error

	// ChannelMode returns the waveform of a channel
	ChannelMode(wavegen.Channel) (wavegen.Mode, error)

	// SetRun enables or disables output, one or both channels
	SetRun(wavegen.Channel, bool) error

	// Running queries if the channel output is enabled
	Running(wavegen.Channel) (bool, error)

	// SetFrequency writes the frequency tuning word
	SetFrequency(wavegen.Channel, uint32) error

	// GetFrequency reads the frequency tuning word
	GetFrequency(wavegen.Channel) (uint32, error)

	SetAmplitudeVolts(wavegen.Channel, float64) error
	GetAmplitudeVolts(wavegen.Channel) (float64, error)
	SetOffsetVolts(wavegen.Channel, float64) error
	GetOffsetVolts(wavegen.Channel) (float64, error)
	SetDutyPercent(wavegen.Channel, float64) error
	GetDutyPercent(wavegen.Channel) (float64, error)
	SetPhaseDegrees(wavegen.Channel, float64) error
	GetPhaseDegrees(wavegen.Channel) (float64, error)
	SetCycles(wavegen.Channel, uint16) error
	GetCycles(wavegen.Channel) (uint16, error)
	SetComplement(wavegen.Channel, bool) error
	GetComplement(wavegen.Channel) (bool, error)
	SetHilbert(wavegen.Channel, bool) error
	GetHilbert(wavegen.Channel) (bool, error)

	// RunState derives stopped/configured/running from the registers
	RunState(wavegen.Channel) (wavegen.RunState, error)

	// ReadState decodes every field of a channel
	ReadState(wavegen.Channel) (wavegen.ChannelState, error)

	// ApplyAll writes every field of a channel, run bit last
	ApplyAll(wavegen.Channel, wavegen.ChannelState) error

	// Start sets the run bit of one or both channels
	Start(wavegen.Channel) error

	// Stop returns one or both channels to the stopped state
	Stop(wavegen.Channel) error

	// Dump reads every register
	Dump() ([wavegen.NumRegisters]uint32, error)
}

// HTTPFunctionGenerator provides HTTP bindings on top of a FunctionGenerator
type HTTPFunctionGenerator struct {
	FunctionGenerator

	// RouteTable maps method-paths to http handlers
	RouteTable generichttp.RouteTable
}

// NewHTTPFunctionGenerator returns a wrapper with the route table pre-configured
func NewHTTPFunctionGenerator(fg FunctionGenerator) HTTPFunctionGenerator {
	h := HTTPFunctionGenerator{FunctionGenerator: fg, RouteTable: generichttp.RouteTable{}}
	HTTPAttributes(fg, h.RouteTable)
	return h
}

// RT satisfies generichttp.HTTPer
func (h HTTPFunctionGenerator) RT() generichttp.RouteTable {
	return h.RouteTable
}

func get(path string) generichttp.MethodPath {
	return generichttp.MethodPath{Method: http.MethodGet, Path: path}
}

func post(path string) generichttp.MethodPath {
	return generichttp.MethodPath{Method: http.MethodPost, Path: path}
}

// HTTPAttributes injects the per-channel attributes and the whole-device
// routes into a route table
func HTTPAttributes(fg FunctionGenerator, table generichttp.RouteTable) {
	rt := table
	rt[get("/{channel}/mode")] = GetMode(fg)
	rt[post("/{channel}/mode")] = SetMode(fg)
	rt[get("/{channel}/run")] = GetRun(fg)
	rt[post("/{channel}/run")] = SetRun(fg)

	rt[get("/{channel}/frequency")] = GetFrequency(fg)
	rt[post("/{channel}/frequency")] = SetFrequency(fg)
	rt[get("/{channel}/amplitude")] = perChannelFloat(fg.GetAmplitudeVolts)
	rt[post("/{channel}/amplitude")] = perChannelSetFloat(fg.SetAmplitudeVolts)
	rt[get("/{channel}/offset")] = perChannelFloat(fg.GetOffsetVolts)
	rt[post("/{channel}/offset")] = perChannelSetFloat(fg.SetOffsetVolts)
	rt[get("/{channel}/duty")] = perChannelFloat(fg.GetDutyPercent)
	rt[post("/{channel}/duty")] = perChannelSetFloat(fg.SetDutyPercent)
	rt[get("/{channel}/phase")] = perChannelFloat(fg.GetPhaseDegrees)
	rt[post("/{channel}/phase")] = perChannelSetFloat(fg.SetPhaseDegrees)

	rt[get("/{channel}/cycles")] = GetCycles(fg)
	rt[post("/{channel}/cycles")] = SetCycles(fg)
	rt[get("/{channel}/complement")] = perChannelBool(fg.GetComplement)
	rt[post("/{channel}/complement")] = perChannelSetBool(fg.SetComplement)
	rt[get("/{channel}/hilbert")] = perChannelBool(fg.GetHilbert)
	rt[post("/{channel}/hilbert")] = perChannelSetBool(fg.SetHilbert)

	rt[get("/{channel}/state")] = GetState(fg)
	rt[get("/{channel}/waveform")] = GetWaveform(fg)
	rt[post("/{channel}/waveform")] = SetWaveform(fg)

	rt[post("/run")] = Run(fg)
	rt[post("/stop")] = Stop(fg)
	rt[get("/status")] = Status(fg)
}

// channel extracts a single channel from the {channel} URL parameter,
// replying 400 if it is not one
func channel(w http.ResponseWriter, r *http.Request) (wavegen.Channel, bool) {
	ch, err := wavegen.ParseChannel(chi.URLParam(r, "channel"))
	if err == nil && !ch.Single() {
		err = fmt.Errorf("%w: %s is not a single channel", wavegen.ErrInvalidChannel, ch)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return ch, false
	}
	return ch, true
}

func perChannelFloat(fcn func(wavegen.Channel) (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		generichttp.GetFloat(func() (float64, error) { return fcn(ch) })(w, r)
	}
}

func perChannelSetFloat(fcn func(wavegen.Channel, float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		generichttp.SetFloat(func(f float64) error { return fcn(ch, f) })(w, r)
	}
}

func perChannelBool(fcn func(wavegen.Channel) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		generichttp.GetBool(func() (bool, error) { return fcn(ch) })(w, r)
	}
}

func perChannelSetBool(fcn func(wavegen.Channel, bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		generichttp.SetBool(func(b bool) error { return fcn(ch, b) })(w, r)
	}
}

// decodeInt reads {"int": n} and checks 0 <= n <= max, replying 400 otherwise
func decodeInt(w http.ResponseWriter, r *http.Request, max int64) (int64, bool) {
	i := generichttp.IntT{}
	err := json.NewDecoder(r.Body).Decode(&i)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	n := int64(i.Int)
	if n < 0 || n > max {
		http.Error(w, fmt.Sprintf("%d is outside [0, %d]", n, max), http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// GetMode returns the waveform of a channel as {"str": "sine"}
func GetMode(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		generichttp.GetString(func() (string, error) {
			m, err := fg.ChannelMode(ch)
			return m.String(), err
		})(w, r)
	}
}

// SetMode sets the waveform of a channel from {"str": "sine"}; the short
// names saw, tri, sq and arb are accepted
func SetMode(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		s := generichttp.StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m, err := wavegen.ParseMode(s.Str)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fg.SetMode(ch, m); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetRun returns the run bit of a channel as {"bool": b}
func GetRun(fg FunctionGenerator) http.HandlerFunc {
	return perChannelBool(fg.Running)
}

// SetRun sets the run bit of a channel from {"bool": b}
func SetRun(fg FunctionGenerator) http.HandlerFunc {
	return perChannelSetBool(fg.SetRun)
}

// GetFrequency returns the tuning word of a channel as {"int": word}
func GetFrequency(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		generichttp.GetInt(func() (int, error) {
			f, err := fg.GetFrequency(ch)
			return int(f), err
		})(w, r)
	}
}

// SetFrequency writes the tuning word of a channel from {"int": word}
func SetFrequency(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		n, ok := decodeInt(w, r, math.MaxUint32)
		if !ok {
			return
		}
		if err := fg.SetFrequency(ch, uint32(n)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetCycles returns the cycle count of a channel as {"int": n}, 0 is continuous
func GetCycles(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		generichttp.GetInt(func() (int, error) {
			n, err := fg.GetCycles(ch)
			return int(n), err
		})(w, r)
	}
}

// SetCycles writes the cycle count of a channel from {"int": n}
func SetCycles(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		n, ok := decodeInt(w, r, math.MaxUint16)
		if !ok {
			return
		}
		if err := fg.SetCycles(ch, uint16(n)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetState returns {"str": "stopped"|"configured"|"running"}
func GetState(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		st, err := fg.RunState(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := generichttp.HumanPayload{T: types.String, String: st.String()}
		hp.EncodeAndRespond(w, r)
	}
}

// waveformT is the JSON form of a whole channel configuration
type waveformT struct {
	wavegen.Waveform
	Mode string `json:"mode"`
	Run  bool   `json:"run"`
}

// GetWaveform returns every field of a channel in engineering units
func GetWaveform(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		st, err := fg.ReadState(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		generichttp.Reply(w, waveformT{Waveform: st.Waveform(), Mode: st.Mode.String(), Run: st.Run})
	}
}

// SetWaveform applies a whole channel configuration; run is written last
func SetWaveform(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := channel(w, r)
		if !ok {
			return
		}
		wt := waveformT{}
		err := json.NewDecoder(r.Body).Decode(&wt)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wt.Waveform.Mode, err = wavegen.ParseMode(wt.Mode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fg.ApplyAll(ch, wt.Waveform.State(wt.Run)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Run starts one or both channels from {"str": "a"|"b"|"ab"}
func Run(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := generichttp.StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ch, err := wavegen.ParseChannel(s.Str)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fg.Start(ch); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Stop stops both channels
func Stop(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fg.Stop(wavegen.AB); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Status returns the eight raw registers as a JSON array
func Status(fg FunctionGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		regs, err := fg.Dump()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		generichttp.Reply(w, regs[:])
	}
}
