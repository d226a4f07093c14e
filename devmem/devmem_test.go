//go:build linux
// +build linux

package devmem

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nasa-jpl/wavegen/wavegen"
)

// a regular file stands in for /dev/mem; MAP_SHARED writes land in it
func scratch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mem")
	if err := os.WriteFile(path, make([]byte, 2*os.Getpagesize()), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMappingWritesThroughAtUnalignedBase(t *testing.T) {
	path := scratch(t)
	const base = 0x40
	m, err := Open(path, base)
	if err != nil {
		t.Fatal(err)
	}
	if m.Device() != path || m.Base() != base {
		t.Errorf("mapping reports %s at %#x", m.Device(), m.Base())
	}
	if err := m.Write32(wavegen.AMPLITUDE, 0x2222199A); err != nil {
		t.Fatal(err)
	}
	v, err := m.Read32(wavegen.AMPLITUDE)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x2222199A {
		t.Errorf("expected 0x2222199a got %#08x", v)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	off := base + wavegen.AMPLITUDE.Offset()
	if got := binary.LittleEndian.Uint32(raw[off:]); got != 0x2222199A {
		t.Errorf("file at %#x: expected 0x2222199a got %#08x", off, got)
	}
}

func TestMappingDrivesGenerator(t *testing.T) {
	m, err := Open(scratch(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	gen := wavegen.New(m)
	gen.SetMode(wavegen.B, wavegen.Square)
	gen.SetRun(wavegen.AB, true)
	run, _ := gen.GetRun()
	if run != 0x3 {
		t.Errorf("expected run bits 0x3 got %#x", run)
	}
	mode, _ := gen.ChannelMode(wavegen.B)
	if mode != wavegen.Square {
		t.Errorf("expected square got %s", mode)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"), DefaultBase)
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Errorf("expected ErrTransportUnavailable got %v", err)
	}
}

func TestAccessAfterClose(t *testing.T) {
	m, err := Open(scratch(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	m.Close()
	if err := m.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if _, err := m.Read32(wavegen.MODE); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed got %v", err)
	}
}
