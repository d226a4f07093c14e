//go:build !linux && !darwin && !freebsd
// +build !linux,!darwin,!freebsd

package devmem

import "github.com/pkg/errors"

// Open always fails on platforms without mmap of physical memory
func Open(device string, base int64) (*Mapping, error) {
	return nil, errors.Wrapf(ErrTransportUnavailable, "%s: memory mapped registers are not supported on this platform", device)
}

// Close is a no-op
func (m *Mapping) Close() error {
	return nil
}

func load32(b []byte, off uintptr) uint32 { return 0 }

func store32(b []byte, off uintptr, v uint32) {}
