/*Package comm provides the byte level link to a remote waveform generator.

A RemoteDevice is one connection, over TCP or a serial port, that sends
frames and receives frames ending in a terminator byte.  A Pool keeps a small
number of RemoteDevices open while they are in use and closes them after a
period of inactivity, so an idle client does not hold the far end's socket.

	rd := comm.NewRemoteDevice("192.168.100.10:8765", false, 0)
	rd.Terminator = telegram.EOT
	if err := rd.Open(); err != nil {
		return err
	}
	defer rd.Close()
	resp, err := rd.SendRecv(frame)
*/
package comm

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

const (
	// DefaultTerminator ends a frame when none is configured
	DefaultTerminator = byte('\n')

	// DefaultTimeout bounds connect and every read or write
	DefaultTimeout = 3 * time.Second

	// DefaultBaud is used for serial links with Baud unset
	DefaultBaud = 115200
)

var (
	// ErrNotConnected is generated when .Conn is nil and Send or Recv is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Communicator can Open, Send, Recv and Close
type Communicator interface {
	io.Closer
	Open() error
	Send([]byte) error
	Recv() ([]byte, error)
	SendRecv([]byte) ([]byte, error)
}

/*RemoteDevice has an address and implements Communicator

If IsSerial is true, Addr is the name of the port (e.g. /dev/ttyUSB0) and Baud
its rate; otherwise Addr is a host:port.

A RemoteDevice is not safe for concurrent use; share it through a Pool or a
mutex.
*/
type RemoteDevice struct {
	Addr       string
	IsSerial   bool
	Baud       int
	Timeout    time.Duration
	Terminator byte

	Conn   io.ReadWriteCloser
	reader *bufio.Reader
}

// NewRemoteDevice creates a new RemoteDevice instance
func NewRemoteDevice(addr string, serial bool, baud int) *RemoteDevice {
	return &RemoteDevice{
		Addr:       addr,
		IsSerial:   serial,
		Baud:       baud,
		Timeout:    DefaultTimeout,
		Terminator: DefaultTerminator,
	}
}

// SerialConf yields a serial config object for use with serial.OpenPort
func (rd *RemoteDevice) SerialConf() *serial.Config {
	baud := rd.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	return &serial.Config{Name: rd.Addr, Baud: baud, ReadTimeout: rd.timeout()}
}

func (rd *RemoteDevice) timeout() time.Duration {
	if rd.Timeout <= 0 {
		return DefaultTimeout
	}
	return rd.Timeout
}

// Open the connection, setting the Conn variable
func (rd *RemoteDevice) Open() error {
	if rd.Conn != nil {
		return nil
	}
	// exponential backoff; a refused connection is final, anything else
	// (timeouts, a port not yet enumerated) is retried until time runs out
	var last error
	op := func() error {
		err := rd.open()
		if err == nil {
			return nil
		}
		last = err
		if strings.Contains(strings.ToLower(err.Error()), "refused") {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil {
		return nil
	}
	if last == nil {
		last = err
	}
	return errors.Wrapf(last, "connecting to %s", rd.Addr)
}

func (rd *RemoteDevice) open() error {
	var err error
	var conn io.ReadWriteCloser
	if rd.IsSerial {
		conn, err = serial.OpenPort(rd.SerialConf())
	} else {
		conn, err = TCPSetup(rd.Addr, rd.timeout())
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	rd.reader = bufio.NewReader(conn)
	return nil
}

// Close the connection, nil-ing the Conn variable
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	rd.Conn = nil
	rd.reader = nil
	return err
}

func (rd *RemoteDevice) deadline() {
	if c, ok := rd.Conn.(net.Conn); ok {
		c.SetDeadline(time.Now().Add(rd.timeout()))
	}
}

// Send writes data to the remote as is; frames carry their own terminator
func (rd *RemoteDevice) Send(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	rd.deadline()
	_, err := rd.Conn.Write(b)
	return err
}

// Recv receives data from the remote up to and including the terminator
func (rd *RemoteDevice) Recv() ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	rd.deadline()
	buf, err := rd.reader.ReadBytes(rd.Terminator)
	if err != nil {
		if err == io.EOF && len(buf) > 0 {
			return buf, ErrTerminatorNotFound
		}
		return buf, err
	}
	if !bytes.HasSuffix(buf, []byte{rd.Terminator}) {
		return buf, ErrTerminatorNotFound
	}
	return buf, nil
}

// SendRecv sends a buffer and returns the response
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	err := rd.Send(b)
	if err != nil {
		return nil, err
	}
	return rd.Recv()
}

// TCPSetup opens a new TCP connection with a timeout on connect
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}
