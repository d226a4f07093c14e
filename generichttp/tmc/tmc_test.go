package tmc_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/google/go-cmp/cmp"

	"github.com/nasa-jpl/wavegen/generichttp/tmc"
	"github.com/nasa-jpl/wavegen/wavegen"
)

func setup() (*wavegen.Memory, http.Handler) {
	mem := wavegen.NewMemory()
	h := tmc.NewHTTPFunctionGenerator(wavegen.New(mem))
	r := chi.NewRouter()
	h.RT().Bind(r)
	return mem, r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestScenarioOverHTTP(t *testing.T) {
	mem, h := setup()
	posts := []struct{ path, body string }{
		{"/a/mode", `{"str":"sine"}`},
		{"/a/frequency", `{"int":1000}`},
		{"/a/amplitude", `{"f64":1.0}`},
		{"/a/offset", `{"f64":0}`},
		{"/a/duty", `{"f64":50}`},
		{"/a/run", `{"bool":true}`},
	}
	for _, p := range posts {
		if w := do(t, h, http.MethodPost, p.path, p.body); w.Code != http.StatusOK {
			t.Fatalf("POST %s: %d %s", p.path, w.Code, w.Body.String())
		}
	}
	want := [wavegen.NumRegisters]uint32{1, 1, 1000, 0, 0, 6554, 8192, 0}
	if diff := cmp.Diff(want, mem.Snapshot()); diff != "" {
		t.Errorf("registers (-want +got):\n%s", diff)
	}

	w := do(t, h, http.MethodGet, "/status", "")
	var regs []uint32
	if err := json.NewDecoder(w.Body).Decode(&regs); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want[:], regs); diff != "" {
		t.Errorf("status (-want +got):\n%s", diff)
	}

	if got := strings.TrimSpace(do(t, h, http.MethodGet, "/0/state", "").Body.String()); got != `{"str":"running"}` {
		t.Errorf("state: %s", got)
	}
	if got := strings.TrimSpace(do(t, h, http.MethodGet, "/A/mode", "").Body.String()); got != `{"str":"sine"}` {
		t.Errorf("mode: %s", got)
	}
}

func TestAttributesAreIndependentPerChannel(t *testing.T) {
	mem, h := setup()
	do(t, h, http.MethodPost, "/b/cycles", `{"int":7}`)
	do(t, h, http.MethodPost, "/a/cycles", `{"int":3}`)
	do(t, h, http.MethodPost, "/b/phase", `{"f64":90}`)
	do(t, h, http.MethodPost, "/1/hilbert", `{"bool":true}`)
	regs := mem.Snapshot()
	if regs[wavegen.CYCLES] != 0x00070003 {
		t.Errorf("CYCLES %#08x", regs[wavegen.CYCLES])
	}
	if regs[wavegen.RUN] != 4096<<16 {
		t.Errorf("RUN %#08x", regs[wavegen.RUN])
	}
	if regs[wavegen.MODE] != 0x80 {
		t.Errorf("MODE %#08x", regs[wavegen.MODE])
	}
	if got := strings.TrimSpace(do(t, h, http.MethodGet, "/b/cycles", "").Body.String()); got != `{"int":7}` {
		t.Errorf("cycles: %s", got)
	}
}

func TestBadInputWritesNothing(t *testing.T) {
	mem, h := setup()
	cases := []struct{ path, body string }{
		{"/c/amplitude", `{"f64":1}`},
		{"/ab/amplitude", `{"f64":1}`},
		{"/a/mode", `{"str":"noise"}`},
		{"/a/cycles", `{"int":70000}`},
		{"/a/frequency", `{"int":-1}`},
		{"/a/duty", `garbage`},
	}
	for _, c := range cases {
		if w := do(t, h, http.MethodPost, c.path, c.body); w.Code != http.StatusBadRequest {
			t.Errorf("POST %s %s: expected 400 got %d", c.path, c.body, w.Code)
		}
	}
	if mem.Writes != 0 {
		t.Errorf("expected no writes, got %d", mem.Writes)
	}
}

func TestRunAndStop(t *testing.T) {
	mem, h := setup()
	do(t, h, http.MethodPost, "/b/waveform", `{"mode":"tri","frequency":10,"amplitude":1.25,"duty":50,"cycles":2}`)
	if w := do(t, h, http.MethodPost, "/run", `{"str":"ab"}`); w.Code != http.StatusOK {
		t.Fatalf("run: %d", w.Code)
	}
	if run := mem.Snapshot()[wavegen.RUN] & 3; run != 3 {
		t.Errorf("expected both run bits, got %#x", run)
	}

	w := do(t, h, http.MethodGet, "/b/waveform", "")
	var got map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["mode"] != "triangle" || got["run"] != true || got["amplitude"] != 1.25 {
		t.Errorf("waveform: %v", got)
	}

	if w := do(t, h, http.MethodPost, "/stop", ""); w.Code != http.StatusOK {
		t.Fatalf("stop: %d", w.Code)
	}
	regs := mem.Snapshot()
	if regs[wavegen.RUN]&3 != 0 || regs[wavegen.MODE]&0x3F != 0 || regs[wavegen.FREQB] != 0 {
		t.Errorf("stop left %v", regs)
	}
	if regs[wavegen.CYCLES] != 2<<16 {
		t.Errorf("stop should keep cycles, CYCLES %#08x", regs[wavegen.CYCLES])
	}
	if got := strings.TrimSpace(do(t, h, http.MethodGet, "/b/state", "").Body.String()); got != `{"str":"stopped"}` {
		t.Errorf("state: %s", got)
	}
}
