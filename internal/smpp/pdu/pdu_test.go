package pdu_test

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smppgw/gateway/internal/smpp/pdu"
	"github.com/smppgw/gateway/pkg/errors"
)

func TestWriteReadPDURoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("hello")

	err := pdu.WritePDU(&buf, pdu.SubmitSM, pdu.ESMEROk, 42, body)
	require.NoError(t, err)

	hdr, gotBody, err := pdu.ReadPDU(&buf)
	require.NoError(t, err)
	assert.Equal(t, pdu.SubmitSM, hdr.CommandID)
	assert.Equal(t, pdu.ESMEROk, hdr.CommandStatus)
	assert.Equal(t, uint32(42), hdr.SequenceNum)
	assert.Equal(t, body, gotBody)
}

func TestReadPDUEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, pdu.WritePDU(&buf, pdu.EnquireLink, 0, 1, nil))

	hdr, body, err := pdu.ReadPDU(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), hdr.CommandLength)
	assert.Empty(t, body)
}

func TestReadPDUShortRead(t *testing.T) {
	_, _, err := pdu.ReadPDU(bytes.NewReader([]byte{0, 0, 0, 20}))
	assert.True(t, errors.Contains(err, pdu.ErrShortRead))
}

func TestReadPDUInvalidLength(t *testing.T) {
	header := []byte{0, 0, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	_, _, err := pdu.ReadPDU(bytes.NewReader(header))
	assert.ErrorIs(t, err, pdu.ErrInvalidLength)
}

func TestReadPDUOversized(t *testing.T) {
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 4, 0, 0, 0, 0, 0, 0, 0, 1}
	_, _, err := pdu.ReadPDU(bytes.NewReader(header))
	assert.ErrorIs(t, err, pdu.ErrOversizedPdu)
}

func TestParseBind(t *testing.T) {
	body := pdu.BuildBind("gw-user", "gw-pass", "", 0x34, 0, 0, "")

	systemID, password, err := pdu.ParseBind(body)
	require.NoError(t, err)
	assert.Equal(t, "gw-user", systemID)
	assert.Equal(t, "gw-pass", password)
}

func TestParseSubmitSMRoundTrip(t *testing.T) {
	cases := []pdu.SubmitSM{
		{
			SourceAddr:      "12025550179",
			DestinationAddr: "13476841841",
			ShortMessage:    []byte("test message"),
		},
		{
			SourceAddr:      "1",
			DestinationAddr: "40722570240999",
			ShortMessage:    []byte{},
		},
		{
			SourceAddr:      "1",
			DestinationAddr: "2",
			ShortMessage:    bytes.Repeat([]byte{'x'}, 254),
		},
	}

	for _, want := range cases {
		body := pdu.BuildSubmitSM(want)
		got, err := pdu.ParseSubmitSM(body)
		require.NoError(t, err)
		assert.Equal(t, want.SourceAddr, got.SourceAddr)
		assert.Equal(t, want.DestinationAddr, got.DestinationAddr)
		assert.Equal(t, want.ShortMessage, got.ShortMessage)
	}
}

func TestParseSubmitSMShortBody(t *testing.T) {
	_, err := pdu.ParseSubmitSM([]byte{0})
	assert.Error(t, err)
}

func TestBuildDeliverSM(t *testing.T) {
	body := pdu.BuildDeliverSM("13476841841", "12025550179", []byte("id:abc stat:DELIVRD"))

	// service_type is an empty C-string, immediately followed by TON/NPI.
	assert.Equal(t, byte(0), body[0])
	assert.Equal(t, byte(1), body[1]) // source TON
	assert.Equal(t, byte(1), body[2]) // source NPI
}

func TestBuildDLRTextMatchesContract(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 30, 0, 0, time.UTC)
	text := pdu.BuildDLRText("abc123", "DELIVRD", "000", now, now)

	re := regexp.MustCompile(`^id:\S+ sub:001 dlvrd:000 submit date:\d{10} done date:\d{10} stat:DELIVRD err:000 text:$`)
	assert.Regexp(t, re, text)
}
