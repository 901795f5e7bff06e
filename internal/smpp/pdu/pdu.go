// Package pdu implements the subset of the SMPP v3.4 wire codec this
// gateway needs: header framing and the handful of PDU bodies it sends
// and receives. Parsing follows the byte layout of the protocol literally
// rather than going through a general-purpose TLV/field library, since
// the gateway only ever needs a handful of fixed fields out of each PDU.
package pdu

import (
	"encoding/binary"
	"io"

	"github.com/smppgw/gateway/pkg/errors"
)

// Command IDs, and their |0x80000000 response forms.
const (
	BindReceiver        uint32 = 0x00000001
	BindReceiverResp    uint32 = 0x80000001
	BindTransmitter     uint32 = 0x00000002
	BindTransmitterResp uint32 = 0x80000002
	SubmitSM            uint32 = 0x00000004
	SubmitSMResp        uint32 = 0x80000004
	DeliverSM           uint32 = 0x00000005
	DeliverSMResp       uint32 = 0x80000005
	Unbind              uint32 = 0x00000006
	UnbindResp          uint32 = 0x80000006
	BindTransceiver     uint32 = 0x00000009
	BindTransceiverResp uint32 = 0x80000009
	EnquireLink         uint32 = 0x00000015
	EnquireLinkResp     uint32 = 0x80000015
)

// SMPP status codes this gateway emits.
const (
	ESMEROk         uint32 = 0x00000000
	ESMERInvBndSts  uint32 = 0x00000004
	ESMERSysErr     uint32 = 0x00000008
	ESMERInvDstAdr  uint32 = 0x0000000B
	ESMERInvPaswd   uint32 = 0x0000000E
)

const (
	headerLen    = 16
	maxPduLength = 64 * 1024
)

var (
	// ErrShortRead is returned when the stream ends before a full header
	// or body has been read.
	ErrShortRead = errors.New("smpp: short read")
	// ErrOversizedPdu is returned when command_length exceeds maxPduLength.
	ErrOversizedPdu = errors.New("smpp: oversized pdu")
	// ErrInvalidLength is returned when command_length is smaller than the header itself.
	ErrInvalidLength = errors.New("smpp: invalid command_length")
)

// Header is the fixed 16-byte SMPP PDU header.
type Header struct {
	CommandLength uint32
	CommandID     uint32
	CommandStatus uint32
	SequenceNum   uint32
}

// ReadPDU reads one complete PDU (header + body) from r.
func ReadPDU(r io.Reader) (Header, []byte, error) {
	var hdr Header

	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return hdr, nil, errors.Wrap(ErrShortRead, err)
	}

	hdr.CommandLength = binary.BigEndian.Uint32(raw[0:4])
	hdr.CommandID = binary.BigEndian.Uint32(raw[4:8])
	hdr.CommandStatus = binary.BigEndian.Uint32(raw[8:12])
	hdr.SequenceNum = binary.BigEndian.Uint32(raw[12:16])

	if hdr.CommandLength < headerLen {
		return hdr, nil, ErrInvalidLength
	}
	if hdr.CommandLength > maxPduLength {
		return hdr, nil, ErrOversizedPdu
	}

	bodyLen := hdr.CommandLength - headerLen
	if bodyLen == 0 {
		return hdr, nil, nil
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return hdr, nil, errors.Wrap(ErrShortRead, err)
	}

	return hdr, body, nil
}

// WritePDU writes one complete PDU to w as a single logical write. Callers
// on the same stream must serialize their calls to WritePDU themselves.
func WritePDU(w io.Writer, commandID, status, seq uint32, body []byte) error {
	buf := make([]byte, headerLen+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(headerLen+len(body)))
	binary.BigEndian.PutUint32(buf[4:8], commandID)
	binary.BigEndian.PutUint32(buf[8:12], status)
	binary.BigEndian.PutUint32(buf[12:16], seq)
	copy(buf[16:], body)

	_, err := w.Write(buf)
	return err
}

// cString reads a NUL-terminated string starting at offset off, returning
// the string and the offset just past its terminator.
func cString(body []byte, off int) (string, int, error) {
	for i := off; i < len(body); i++ {
		if body[i] == 0 {
			return string(body[off:i]), i + 1, nil
		}
	}
	return "", 0, errors.New("smpp: unterminated c-string field")
}
