package generichttp

import (
	"errors"
	"fmt"
	"go/types"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/google/go-cmp/cmp"
)

func ExampleSubMuxSanitize() {
	fmt.Println(SubMuxSanitize("wavegen/"), SubMuxSanitize(""), SubMuxSanitize("/a/b"))
	// Output: /wavegen / /a/b
}

func TestHumanPayloadEncoding(t *testing.T) {
	cases := []struct {
		hp   HumanPayload
		body string
	}{
		{HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
		{HumanPayload{T: types.Float64, Float: 1.5}, `{"f64":1.5}`},
		{HumanPayload{T: types.Int, Int: -3}, `{"int":-3}`},
		{HumanPayload{T: types.String, String: "sine"}, `{"str":"sine"}`},
		{HumanPayload{T: types.Uint32, Uint32: 7}, `{"u32":7}`},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		c.hp.EncodeAndRespond(w, nil)
		if got := strings.TrimSpace(w.Body.String()); got != c.body {
			t.Errorf("expected %s got %s", c.body, got)
		}
	}
}

func TestRouteTableBindAndEndpoints(t *testing.T) {
	var stored float64
	rt := RouteTable{
		{http.MethodGet, "/x"}:  GetFloat(func() (float64, error) { return stored, nil }),
		{http.MethodPost, "/x"}: SetFloat(func(f float64) error { stored = f; return nil }),
		{http.MethodGet, "/e"}:  GetBool(func() (bool, error) { return false, errors.New("boom") }),
	}
	r := chi.NewRouter()
	rt.Bind(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"f64": 2.25}`)))
	if w.Code != http.StatusOK || stored != 2.25 {
		t.Errorf("POST: code %d stored %v", w.Code, stored)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := strings.TrimSpace(w.Body.String()); got != `{"f64":2.25}` {
		t.Errorf("GET: %s", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`not json`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400 got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/e", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("failing getter: expected 500 got %d", w.Code)
	}

	want := []string{"GET /e", "GET /x", "POST /x"}
	if diff := cmp.Diff(want, rt.Endpoints()); diff != "" {
		t.Errorf("endpoints (-want +got):\n%s", diff)
	}
}
