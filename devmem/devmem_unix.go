//go:build linux || darwin || freebsd
// +build linux darwin freebsd

package devmem

import (
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/nasa-jpl/wavegen/wavegen"
)

// Open maps the register file at physical address base of device.
// the mapping covers whole pages; base may fall anywhere inside the first.
func Open(device string, base int64) (*Mapping, error) {
	if base < 0 {
		return nil, errors.Wrapf(ErrTransportUnavailable, "negative base address %d", base)
	}
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrapf(ErrTransportUnavailable, "open %s: %s", device, err)
	}
	pagesize := int64(unix.Getpagesize())
	pageBase := base &^ (pagesize - 1)
	delta := base - pageBase
	length := (delta + wavegen.Span + pagesize - 1) &^ (pagesize - 1)

	page, err := unix.Mmap(fd, pageBase, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(ErrTransportUnavailable, "mmap %s at %#x: %s", device, pageBase, err)
	}
	return &Mapping{
		fd:     fd,
		page:   page,
		regs:   page[delta : delta+wavegen.Span],
		device: device,
		base:   base,
	}, nil
}

// Close unmaps the registers and closes the device.  It is safe to call
// more than once.
func (m *Mapping) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page == nil {
		return nil
	}
	err := unix.Munmap(m.page)
	m.page, m.regs = nil, nil
	if cerr := unix.Close(m.fd); err == nil {
		err = cerr
	}
	return errors.Wrap(err, "closing register mapping")
}

// the compiler must not merge or elide register accesses, so every access
// is a single atomic 32-bit load or store
func load32(b []byte, off uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&b[off])))
}

func store32(b []byte, off uintptr, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&b[off])), v)
}
