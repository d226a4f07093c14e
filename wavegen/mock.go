package wavegen

import (
	"fmt"
	"sync"
)

// Memory is an in-process register file.  It stands in for the hardware
// in tests and for the "mock" transport of the command line tool.
type Memory struct {
	mu   sync.Mutex
	regs [NumRegisters]uint32

	// Writes counts calls to Write32
	Writes int
}

// NewMemory returns a zeroed register file
func NewMemory() *Memory {
	return &Memory{}
}

// Read32 implements Transport
func (m *Memory) Read32(r Register) (uint32, error) {
	if !r.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrRegisterRange, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[r], nil
}

// Write32 implements Transport
func (m *Memory) Write32(r Register, v uint32) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %d", ErrRegisterRange, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[r] = v
	m.Writes++
	return nil
}

// Snapshot copies the register file
func (m *Memory) Snapshot() [NumRegisters]uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs
}
