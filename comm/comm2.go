package comm

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrPoolClosed is generated by Get after Close
var ErrPoolClosed = errors.New("connection pool closed")

// CreationFunc is a function which returns a new open connection.
// a closure should be used to encapsulate the variables needed.
type CreationFunc func() (Communicator, error)

// Pool holds one or more connections to a device that are closed when none
// has been used for the idle timeout, and re-opened as needed.
// it is concurrent safe.  Pools must be created with NewPool.
type Pool struct {
	maxSize int
	idle    time.Duration
	maker   CreationFunc

	mu      sync.Mutex
	free    []Communicator
	onLease int
	closed  bool
	timer   *time.Timer
	slots   chan struct{}
}

// NewPool returns a pool of at most maxSize connections which are closed
// idle after every connection has been returned
func NewPool(maxSize int, idle time.Duration, maker CreationFunc) *Pool {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Pool{
		maxSize: maxSize,
		idle:    idle,
		maker:   maker,
		slots:   make(chan struct{}, maxSize),
	}
}

// Get retrieves a connection, blocking until one is available if all are in
// use.  The caller has exclusive use of it until it is returned with Put,
// or discarded with Destroy if it has gone bad.
//
// If the error from Get is not nil, there is nothing to return.
func (p *Pool) Get() (Communicator, error) {
	p.slots <- struct{}{}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, ErrPoolClosed
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if n := len(p.free); n > 0 {
		c := p.free[n-1]
		p.free = p.free[:n-1]
		p.onLease++
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.maker()
	if err != nil {
		<-p.slots
		return nil, err
	}
	p.mu.Lock()
	p.onLease++
	p.mu.Unlock()
	return c, nil
}

// Put returns a connection to the pool for reuse
func (p *Pool) Put(c Communicator) {
	p.mu.Lock()
	p.onLease--
	if p.closed {
		c.Close()
	} else {
		p.free = append(p.free, c)
		if p.onLease == 0 && p.idle > 0 {
			p.timer = time.AfterFunc(p.idle, p.reclaim)
		}
	}
	p.mu.Unlock()
	<-p.slots
}

// Destroy immediately closes a connection that has gone bad instead of
// returning it to the pool
func (p *Pool) Destroy(c Communicator) {
	c.Close()
	p.mu.Lock()
	p.onLease--
	p.mu.Unlock()
	<-p.slots
}

func (p *Pool) reclaim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onLease > 0 {
		return
	}
	for _, c := range p.free {
		c.Close()
	}
	p.free = nil
	p.timer = nil
}

// Size returns the number of connections in the pool, or given out from it
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free) + p.onLease
}

// Active returns the number of connections currently given out
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onLease
}

// Close closes every idle connection; leased ones are closed when returned
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	var first error
	for _, c := range p.free {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.free = nil
	return first
}
