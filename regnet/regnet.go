/*Package regnet carries register reads and writes over a link as telegrams.

A Client is a wavegen.Transport for a generator on the far side of a TCP or
serial link.  A Server runs next to the hardware and answers telegrams from
any wavegen.Transport, normally a devmem.Mapping.  Nothing but register peek
and poke crosses the link; all field encoding stays in the client's Codec.
*/
package regnet

import (
	"bufio"
	"context"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/wavegen/comm"
	"github.com/nasa-jpl/wavegen/telegram"
	"github.com/nasa-jpl/wavegen/wavegen"
)

var (
	// ErrNack is generated when the server refuses a request
	ErrNack = errors.New("request not acknowledged by remote")

	// ErrBusy is generated when the server reports it is busy
	ErrBusy = errors.New("remote busy")

	// ErrUnexpectedReply is generated for a well formed reply of the wrong kind
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// Client is a wavegen.Transport over a remote link.
// One request is in flight at a time.
type Client struct {
	pool    *comm.Pool
	limiter *rate.Limiter
	timeout time.Duration
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithRate limits the client to perSecond telegrams per second.
// perSecond <= 0 means unlimited.
func WithRate(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithIdle closes the link after it has been unused for d.
// d = 0 keeps it open until Close.
func WithIdle(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient returns a client that dials addr when it first needs to
// and redials after a link error
func NewClient(addr string, serial bool, baud int, opts ...ClientOption) *Client {
	c := &Client{timeout: time.Minute}
	for _, o := range opts {
		o(c)
	}
	maker := func() (comm.Communicator, error) {
		rd := comm.NewRemoteDevice(addr, serial, baud)
		rd.Terminator = telegram.EOT
		if err := rd.Open(); err != nil {
			return nil, err
		}
		return rd, nil
	}
	c.pool = comm.NewPool(1, c.timeout, maker)
	return c
}

// Connect opens the link now instead of on first use, so the caller learns
// early if the remote is unreachable
func (c *Client) Connect() error {
	conn, err := c.pool.Get()
	if err != nil {
		return err
	}
	c.pool.Put(conn)
	return nil
}

// Close closes the link
func (c *Client) Close() error {
	return c.pool.Close()
}

func (c *Client) roundTrip(req telegram.Message) (telegram.Message, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(context.Background()); err != nil {
			return telegram.Message{}, err
		}
	}
	tele, err := telegram.Make(req)
	if err != nil {
		return telegram.Message{}, err
	}
	conn, err := c.pool.Get()
	if err != nil {
		return telegram.Message{}, err
	}
	resp, err := conn.SendRecv(tele)
	if err != nil {
		// the link state is unknown, drop it and redial next time
		c.pool.Destroy(conn)
		return telegram.Message{}, err
	}
	c.pool.Put(conn)

	msg, err := telegram.Decode(resp)
	if err != nil {
		return msg, err
	}
	switch msg.Type {
	case telegram.Nack:
		return msg, ErrNack
	case telegram.CRCError:
		return msg, errors.Wrap(telegram.ErrCRC, "remote reported")
	case telegram.Busy:
		return msg, ErrBusy
	}
	if msg.Register != req.Register {
		return msg, errors.Wrapf(ErrUnexpectedReply, "asked for register %d, reply is for %d", req.Register, msg.Register)
	}
	return msg, nil
}

// Read32 implements wavegen.Transport
func (c *Client) Read32(r wavegen.Register) (uint32, error) {
	if !r.Valid() {
		return 0, errors.Wrapf(wavegen.ErrRegisterRange, "register %d", r)
	}
	msg, err := c.roundTrip(telegram.Message{Type: telegram.Read, Register: byte(r)})
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", r)
	}
	v, ok := msg.Value()
	if msg.Type != telegram.Datagram || !ok {
		return 0, errors.Wrapf(ErrUnexpectedReply, "reading %s: %s with %d data bytes", r, msg.Type, len(msg.Data))
	}
	return v, nil
}

// Write32 implements wavegen.Transport
func (c *Client) Write32(r wavegen.Register, v uint32) error {
	if !r.Valid() {
		return errors.Wrapf(wavegen.ErrRegisterRange, "register %d", r)
	}
	msg, err := c.roundTrip(telegram.Message{Type: telegram.Write, Register: byte(r), Data: telegram.Word(v)})
	if err != nil {
		return errors.Wrapf(err, "writing %s", r)
	}
	if msg.Type != telegram.Ack {
		return errors.Wrapf(ErrUnexpectedReply, "writing %s: %s", r, msg.Type)
	}
	return nil
}

// Server answers register telegrams from a transport.
// Requests from all connections are serialized.
type Server struct {
	mu sync.Mutex
	t  wavegen.Transport

	// Verbose logs every request
	Verbose bool
}

// NewServer returns a Server backed by t
func NewServer(t wavegen.Transport) *Server {
	return &Server{t: t}
}

// Handle produces the reply to one raw telegram
func (s *Server) Handle(raw []byte) telegram.Message {
	req, err := telegram.Decode(raw)
	if err != nil {
		if errors.Is(err, telegram.ErrCRC) {
			return telegram.Message{Type: telegram.CRCError}
		}
		return telegram.Message{Type: telegram.Nack}
	}
	reg := wavegen.Register(req.Register)
	nack := telegram.Message{Type: telegram.Nack, Register: req.Register}
	if !reg.Valid() {
		return nack
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch req.Type {
	case telegram.Read:
		if len(req.Data) != 0 {
			return nack
		}
		v, err := s.t.Read32(reg)
		if err != nil {
			log.Printf("regnet: read %s: %s", reg, err)
			return nack
		}
		if s.Verbose {
			log.Printf("regnet: read %s = %#08x", reg, v)
		}
		return telegram.Message{Type: telegram.Datagram, Register: req.Register, Data: telegram.Word(v)}
	case telegram.Write:
		v, ok := req.Value()
		if !ok {
			return nack
		}
		if err := s.t.Write32(reg, v); err != nil {
			log.Printf("regnet: write %s: %s", reg, err)
			return nack
		}
		if s.Verbose {
			log.Printf("regnet: write %s = %#08x", reg, v)
		}
		return telegram.Message{Type: telegram.Ack, Register: req.Register}
	}
	return nack
}

// ServeConn answers telegrams on rw until it is closed or fails
func (s *Server) ServeConn(rw io.ReadWriter) error {
	rd := bufio.NewReader(rw)
	for {
		raw, err := rd.ReadBytes(telegram.EOT)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		reply, err := telegram.Make(s.Handle(raw))
		if err != nil {
			return err
		}
		if _, err := rw.Write(reply); err != nil {
			return err
		}
	}
}

// Serve accepts connections on l and serves each in its own goroutine.
// It returns when l is closed.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}
		go func() {
			defer conn.Close()
			if err := s.ServeConn(conn); err != nil {
				log.Printf("regnet: %s: %s", conn.RemoteAddr(), err)
			}
		}()
	}
}
