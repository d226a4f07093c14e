package locker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/wavegen/generichttp"
)

type table generichttp.RouteTable

func (t table) RT() generichttp.RouteTable { return generichttp.RouteTable(t) }

func TestLockBouncesEverythingButLock(t *testing.T) {
	rt := table{
		{Method: http.MethodGet, Path: "/a/mode"}: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}
	l := New()
	Inject(rt, l)
	r := chi.NewRouter()
	r.Use(l.Check)
	rt.RT().Bind(r)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	if w := do(http.MethodGet, "/a/mode", ""); w.Code != http.StatusOK {
		t.Errorf("unlocked: expected 200 got %d", w.Code)
	}
	if w := do(http.MethodPost, "/lock", `{"bool":true}`); w.Code != http.StatusOK {
		t.Fatalf("lock: expected 200 got %d", w.Code)
	}
	if !l.Locked() {
		t.Fatal("expected locker to be locked")
	}
	if w := do(http.MethodGet, "/a/mode", ""); w.Code != http.StatusLocked {
		t.Errorf("locked: expected 423 got %d", w.Code)
	}
	w := do(http.MethodGet, "/lock", "")
	if got := strings.TrimSpace(w.Body.String()); w.Code != http.StatusOK || got != `{"bool":true}` {
		t.Errorf("get lock while locked: %d %s", w.Code, got)
	}
	do(http.MethodPost, "/lock", `{"bool":false}`)
	if w := do(http.MethodGet, "/a/mode", ""); w.Code != http.StatusOK {
		t.Errorf("after unlock: expected 200 got %d", w.Code)
	}
}
