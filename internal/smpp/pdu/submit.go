package pdu

import "github.com/smppgw/gateway/pkg/errors"

// ErrShortSubmitSM is returned when a submit_sm body ends before the
// fixed-size fields the parser needs have all been read.
var ErrShortSubmitSM = errors.New("smpp: short submit_sm body")

// SubmitSM is the subset of submit_sm fields the gateway cares about, plus
// enough of the fixed-size header fields to round-trip a PDU it built
// itself in tests.
type SubmitSM struct {
	ServiceType          string
	SourceAddrTON        byte
	SourceAddrNPI        byte
	SourceAddr           string
	DestAddrTON          byte
	DestAddrNPI          byte
	DestinationAddr      string
	ESMClass             byte
	ProtocolID           byte
	PriorityFlag         byte
	ScheduleDeliveryTime string
	ValidityPeriod       string
	RegisteredDelivery   byte
	ReplaceIfPresent     byte
	DataCoding           byte
	SMDefaultMsgID       byte
	ShortMessage         []byte
}

// ParseSubmitSM walks a submit_sm body field-by-field and records every
// mandatory field it passes; only the addresses and short_message affect
// the routing decision.
func ParseSubmitSM(body []byte) (SubmitSM, error) {
	var sm SubmitSM

	serviceType, off, err := cString(body, 0)
	if err != nil {
		return sm, errors.Wrap(ErrShortSubmitSM, err)
	}
	sm.ServiceType = serviceType

	if off+2 > len(body) {
		return sm, ErrShortSubmitSM
	}
	sm.SourceAddrTON, sm.SourceAddrNPI = body[off], body[off+1]
	off += 2

	sourceAddr, off2, err := cString(body, off)
	if err != nil {
		return sm, errors.Wrap(ErrShortSubmitSM, err)
	}
	sm.SourceAddr = sourceAddr
	off = off2

	if off+2 > len(body) {
		return sm, ErrShortSubmitSM
	}
	sm.DestAddrTON, sm.DestAddrNPI = body[off], body[off+1]
	off += 2

	destAddr, off3, err := cString(body, off)
	if err != nil {
		return sm, errors.Wrap(ErrShortSubmitSM, err)
	}
	sm.DestinationAddr = destAddr
	off = off3

	if off+3 > len(body) {
		return sm, ErrShortSubmitSM
	}
	sm.ESMClass, sm.ProtocolID, sm.PriorityFlag = body[off], body[off+1], body[off+2]
	off += 3

	scheduleTime, off4, err := cString(body, off)
	if err != nil {
		return sm, errors.Wrap(ErrShortSubmitSM, err)
	}
	sm.ScheduleDeliveryTime = scheduleTime
	off = off4

	validity, off5, err := cString(body, off)
	if err != nil {
		return sm, errors.Wrap(ErrShortSubmitSM, err)
	}
	sm.ValidityPeriod = validity
	off = off5

	if off+4 > len(body) {
		return sm, ErrShortSubmitSM
	}
	sm.RegisteredDelivery = body[off]
	sm.ReplaceIfPresent = body[off+1]
	sm.DataCoding = body[off+2]
	sm.SMDefaultMsgID = body[off+3]
	off += 4

	if off+1 > len(body) {
		return sm, ErrShortSubmitSM
	}
	smLength := int(body[off])
	off++

	if off+smLength > len(body) {
		return sm, ErrShortSubmitSM
	}
	sm.ShortMessage = append(make([]byte, 0, smLength), body[off:off+smLength]...)

	// Any trailing optional TLVs are ignored.
	return sm, nil
}

// BuildSubmitSM serializes fields into a submit_sm body, for use by tests
// exercising the round trip through ParseSubmitSM.
func BuildSubmitSM(sm SubmitSM) []byte {
	body := make([]byte, 0, 64+len(sm.ShortMessage))
	body = append(body, sm.ServiceType...)
	body = append(body, 0)
	body = append(body, sm.SourceAddrTON, sm.SourceAddrNPI)
	body = append(body, sm.SourceAddr...)
	body = append(body, 0)
	body = append(body, sm.DestAddrTON, sm.DestAddrNPI)
	body = append(body, sm.DestinationAddr...)
	body = append(body, 0)
	body = append(body, sm.ESMClass, sm.ProtocolID, sm.PriorityFlag)
	body = append(body, sm.ScheduleDeliveryTime...)
	body = append(body, 0)
	body = append(body, sm.ValidityPeriod...)
	body = append(body, 0)
	body = append(body, sm.RegisteredDelivery, sm.ReplaceIfPresent, sm.DataCoding, sm.SMDefaultMsgID)
	body = append(body, byte(len(sm.ShortMessage)))
	body = append(body, sm.ShortMessage...)
	return body
}
