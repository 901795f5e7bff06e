package session_test

import (
	"context"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smppgw/gateway/internal/metrics"
	"github.com/smppgw/gateway/internal/session"
	"github.com/smppgw/gateway/internal/smpp/pdu"
)

type fakePipeline struct {
	status    uint32
	messageID string
}

func (f *fakePipeline) HandleSubmitSM(_ context.Context, _ *session.Session, _ pdu.SubmitSM) (uint32, string) {
	return f.status, f.messageID
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func defaultCfg() session.Config {
	return session.Config{
		SystemID:            "smppgw",
		Password:            "secret",
		WriteFlushThreshold: 100,
		WriteFlushCeiling:   30 * time.Millisecond,
	}
}

func newPair(t *testing.T, pl session.Pipeline) (client net.Conn, runDone <-chan error) {
	t.Helper()
	srvConn, cliConn := net.Pipe()

	s := session.New(srvConn, defaultCfg(), pl, metrics.New(), testLogger())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()
	return cliConn, done
}

func TestBindSuccess(t *testing.T) {
	cli, _ := newPair(t, &fakePipeline{})
	defer cli.Close()

	body := pdu.BuildBind("smppgw", "secret", "", 0x34, 1, 1, "")
	require.NoError(t, pdu.WritePDU(cli, pdu.BindTransceiver, 0, 1, body))

	hdr, respBody, err := pdu.ReadPDU(cli)
	require.NoError(t, err)
	assert.Equal(t, pdu.BindTransceiverResp, hdr.CommandID)
	assert.Equal(t, pdu.ESMEROk, hdr.CommandStatus)
	assert.Equal(t, uint32(1), hdr.SequenceNum)
	assert.Equal(t, "SMPPGateway\x00", string(respBody))
}

func TestBindBadPassword(t *testing.T) {
	cli, runDone := newPair(t, &fakePipeline{})
	defer cli.Close()

	body := pdu.BuildBind("smppgw", "wrong", "", 0x34, 1, 1, "")
	require.NoError(t, pdu.WritePDU(cli, pdu.BindTransmitter, 0, 7, body))

	hdr, _, err := pdu.ReadPDU(cli)
	require.NoError(t, err)
	assert.Equal(t, pdu.BindTransmitterResp, hdr.CommandID)
	assert.Equal(t, pdu.ESMERInvPaswd, hdr.CommandStatus)

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("session did not close after failed bind")
	}
}

func TestSubmitBeforeBindRejected(t *testing.T) {
	cli, _ := newPair(t, &fakePipeline{})
	defer cli.Close()

	sm := pdu.SubmitSM{SourceAddr: "1000", DestinationAddr: "13476841841", ShortMessage: []byte("hi")}
	require.NoError(t, pdu.WritePDU(cli, pdu.SubmitSM, 0, 2, pdu.BuildSubmitSM(sm)))

	hdr, _, err := pdu.ReadPDU(cli)
	require.NoError(t, err)
	assert.Equal(t, pdu.SubmitSMResp, hdr.CommandID)
	assert.Equal(t, pdu.ESMERInvBndSts, hdr.CommandStatus)
}

func TestSubmitAfterBindUsesPipeline(t *testing.T) {
	pl := &fakePipeline{status: pdu.ESMEROk, messageID: "msg-123"}
	cli, _ := newPair(t, pl)
	defer cli.Close()

	bindBody := pdu.BuildBind("smppgw", "secret", "", 0x34, 1, 1, "")
	require.NoError(t, pdu.WritePDU(cli, pdu.BindTransceiver, 0, 1, bindBody))
	_, _, err := pdu.ReadPDU(cli)
	require.NoError(t, err)

	sm := pdu.SubmitSM{SourceAddr: "1000", DestinationAddr: "40722570240999", ShortMessage: []byte("hi")}
	require.NoError(t, pdu.WritePDU(cli, pdu.SubmitSM, 0, 2, pdu.BuildSubmitSM(sm)))

	hdr, body, err := pdu.ReadPDU(cli)
	require.NoError(t, err)
	assert.Equal(t, pdu.SubmitSMResp, hdr.CommandID)
	assert.Equal(t, pdu.ESMEROk, hdr.CommandStatus)
	assert.Equal(t, "msg-123\x00", string(body))
}

func TestEnquireLink(t *testing.T) {
	cli, _ := newPair(t, &fakePipeline{})
	defer cli.Close()

	require.NoError(t, pdu.WritePDU(cli, pdu.EnquireLink, 0, 9, nil))

	hdr, _, err := pdu.ReadPDU(cli)
	require.NoError(t, err)
	assert.Equal(t, pdu.EnquireLinkResp, hdr.CommandID)
	assert.Equal(t, pdu.ESMEROk, hdr.CommandStatus)
	assert.Equal(t, uint32(9), hdr.SequenceNum)
}

func TestUnbindClosesSession(t *testing.T) {
	cli, runDone := newPair(t, &fakePipeline{})
	defer cli.Close()

	require.NoError(t, pdu.WritePDU(cli, pdu.Unbind, 0, 3, nil))

	hdr, _, err := pdu.ReadPDU(cli)
	require.NoError(t, err)
	assert.Equal(t, pdu.UnbindResp, hdr.CommandID)

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("session did not close after unbind")
	}
}

func TestSendDeliverSMRequiresBound(t *testing.T) {
	srvConn, cliConn := net.Pipe()
	defer cliConn.Close()

	s := session.New(srvConn, defaultCfg(), &fakePipeline{}, metrics.New(), testLogger())
	go s.Run(context.Background())

	assert.False(t, s.SendDeliverSM("dest", "src", []byte("dlr")))

	bindBody := pdu.BuildBind("smppgw", "secret", "", 0x34, 1, 1, "")
	require.NoError(t, pdu.WritePDU(cliConn, pdu.BindTransceiver, 0, 1, bindBody))
	_, _, err := pdu.ReadPDU(cliConn)
	require.NoError(t, err)

	assert.True(t, s.SendDeliverSM("40722570240999", "1000", []byte("id:msg-123 sub:001 dlvrd:000")))

	hdr, body, err := pdu.ReadPDU(cliConn)
	require.NoError(t, err)
	assert.Equal(t, pdu.DeliverSM, hdr.CommandID)
	assert.Contains(t, string(body), "40722570240999")
}
