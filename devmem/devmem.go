/*Package devmem maps the waveform generator's register file into the process
through a memory device (normally /dev/mem) and implements wavegen.Transport
with 32-bit volatile loads and stores.

	m, err := devmem.Open(devmem.DefaultDevice, devmem.DefaultBase)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()
	gen := wavegen.New(m)

The base address does not need to be page aligned.  Opening requires write
access to the device, which on most systems means root.
*/
package devmem

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/nasa-jpl/wavegen/wavegen"
)

const (
	// DefaultDevice is the physical memory device
	DefaultDevice = "/dev/mem"

	// AXIBase is the start of the AXI4-Lite peripheral window
	AXIBase = 0x43C00000

	// GeneratorOffset is the offset of the generator inside the AXI window
	GeneratorOffset = 0x20000

	// DefaultBase is the physical address of the MODE register
	DefaultBase = AXIBase + GeneratorOffset
)

var (
	// ErrTransportUnavailable is generated when the device cannot be opened or mapped
	ErrTransportUnavailable = errors.New("register transport unavailable")

	// ErrClosed is generated by accesses after Close
	ErrClosed = errors.New("register mapping closed")
)

// Mapping is an open, mapped register file
type Mapping struct {
	mu     sync.RWMutex
	fd     int
	page   []byte
	regs   []byte
	device string
	base   int64
}

// Device returns the path of the mapped device
func (m *Mapping) Device() string {
	return m.device
}

// Base returns the physical address of the first register
func (m *Mapping) Base() int64 {
	return m.base
}

func (m *Mapping) check(r wavegen.Register) error {
	if !r.Valid() {
		return errors.Wrapf(wavegen.ErrRegisterRange, "register %d", r)
	}
	if m.regs == nil {
		return ErrClosed
	}
	return nil
}

// Read32 implements wavegen.Transport
func (m *Mapping) Read32(r wavegen.Register) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(r); err != nil {
		return 0, err
	}
	return load32(m.regs, r.Offset()), nil
}

// Write32 implements wavegen.Transport
func (m *Mapping) Write32(r wavegen.Register, v uint32) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(r); err != nil {
		return err
	}
	store32(m.regs, r.Offset(), v)
	return nil
}
