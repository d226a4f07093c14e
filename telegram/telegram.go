/*Package telegram encodes and decodes the frames used to peek and poke the
waveform generator's registers over a serial or TCP link.

Frames are encoded as [SOT][BODY][CRC][EOT].  The body is

	[TYPE] [REGISTER] [0 or 4 data bytes, little endian]

and the CRC is CRC-16/XMODEM of the body, big endian.  Any SOT, EOT or escape
byte inside the body or CRC is replaced by the escape byte followed by the
original value plus 0x40, so SOT and EOT only ever appear at the ends.
*/
package telegram

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/snksoft/crc"
)

const (
	// SOT is the start of telegram byte
	SOT = 0x0D

	// EOT is the end of telegram byte
	EOT = 0x0A

	// escape is the first byte used to replace a special character
	escape = 0x5E

	// escapeShift is the amount special characters are moved up.
	// special characters max out at 0x5E, so we will never overflow
	escapeShift = 0x40
)

// Type is the kind of message a telegram carries
type Type byte

const (
	// Nack is the reply to a request that could not be served
	Nack Type = 0

	// CRCError is the reply to a request whose CRC did not match
	CRCError Type = 1

	// Busy is the reply when the far end cannot serve the request now
	Busy Type = 2

	// Ack is the reply to a Write
	Ack Type = 3

	// Read asks for the contents of a register
	Read Type = 4

	// Write sets the contents of a register
	Write Type = 5

	// Datagram is the reply to a Read
	Datagram Type = 8
)

var typeNames = map[Type]string{
	Nack:     "Nack",
	CRCError: "CRC Error",
	Busy:     "Busy",
	Ack:      "Ack",
	Read:     "Read",
	Write:    "Write",
	Datagram: "Datagram",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

var (
	dataOrder = binary.LittleEndian

	specialChars = []byte{EOT, SOT, escape}

	crcTable = crc.NewTable(crc.XMODEM)

	// ErrCRC is generated when a telegram's CRC does not match its body
	ErrCRC = errors.New("CRC mismatch, data lost in transmission")

	// ErrFrame is generated when a telegram is truncated or missing its
	// start or end byte
	ErrFrame = errors.New("malformed telegram")

	// ErrType is generated for unknown message types
	ErrType = errors.New("unknown message type")
)

// Message is the content of a telegram before framing
type Message struct {
	Type     Type
	Register byte
	Data     []byte
}

// Value returns the data of the message as a 32-bit word.
// ok is false if the message does not carry exactly four bytes.
func (m Message) Value() (v uint32, ok bool) {
	if len(m.Data) != 4 {
		return 0, false
	}
	return dataOrder.Uint32(m.Data), true
}

// Word builds the four data bytes for a 32-bit value
func Word(v uint32) []byte {
	b := make([]byte, 4)
	dataOrder.PutUint32(b, v)
	return b
}

func sanitize(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	for _, b := range data {
		if bytes.IndexByte(specialChars, b) >= 0 {
			out = append(out, escape, b+escapeShift)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func reverseSanitize(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	subNext := false
	for _, b := range data {
		switch {
		case subNext:
			out = append(out, b-escapeShift)
			subNext = false
		case b == escape:
			subNext = true
		default:
			out = append(out, b)
		}
	}
	if subNext {
		return nil, errors.Wrap(ErrFrame, "dangling escape byte")
	}
	return out, nil
}

func crcHelper(data []byte) []byte {
	crc16 := crcTable.InitCrc()
	crc16 = crcTable.UpdateCrc(crc16, data)
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, crcTable.CRC16(crc16))
	return out
}

// Make produces a telegram from a message
func Make(m Message) ([]byte, error) {
	if _, ok := typeNames[m.Type]; !ok {
		return nil, errors.Wrapf(ErrType, "%d", byte(m.Type))
	}
	if n := len(m.Data); n != 0 && n != 4 {
		return nil, errors.Wrapf(ErrFrame, "data must be 0 or 4 bytes, got %d", n)
	}
	body := append([]byte{byte(m.Type), m.Register}, m.Data...)
	body = append(body, crcHelper(body)...)

	out := make([]byte, 0, len(body)+6)
	out = append(out, SOT)
	out = append(out, sanitize(body)...)
	out = append(out, EOT)
	return out, nil
}

// Decode renders a raw telegram into a Message.  Bytes before SOT are
// ignored and the EOT may be omitted, so the output of a reader that strips
// its terminator can be passed straight in.
func Decode(tele []byte) (Message, error) {
	iStart := bytes.IndexByte(tele, SOT)
	if iStart < 0 {
		return Message{}, errors.Wrapf(ErrFrame, "start byte %#02x not found", SOT)
	}
	tele = tele[iStart+1:]
	if iEnd := bytes.IndexByte(tele, EOT); iEnd >= 0 {
		tele = tele[:iEnd]
	}

	body, err := reverseSanitize(tele)
	if err != nil {
		return Message{}, err
	}
	// type, register, 2 CRC bytes
	if len(body) < 4 {
		return Message{}, errors.Wrapf(ErrFrame, "%d byte body is too short", len(body))
	}

	fidx := len(body) - 2
	crcRecv := body[fidx:]
	body = body[:fidx]
	if !bytes.Equal(crcRecv, crcHelper(body)) {
		return Message{}, ErrCRC
	}

	m := Message{Type: Type(body[0]), Register: body[1]}
	if len(body) > 2 {
		m.Data = append([]byte(nil), body[2:]...)
	}
	return m, nil
}
