// Package session implements the per-connection SMPP state machine: bind,
// operational, and unbind, plus the single writer goroutine every response
// and unsolicited DeliverSM funnels through.
package session

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/smppgw/gateway/internal/metrics"
	"github.com/smppgw/gateway/internal/smpp/pdu"
)

// State is a session's position in the bind lifecycle.
type State int32

const (
	StateOpen State = iota
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config carries the bind credentials a session authenticates against.
type Config struct {
	SystemID string `env:"SMPP_SYSTEM_ID" envDefault:"smppgw"`
	Password string `env:"SMPP_PASSWORD"  envDefault:"smppgw"`

	// WriteFlushThreshold is the body size, in bytes, at or above which a
	// write waits for the flush-deadline below rather than returning
	// immediately. DeliverSM always waits regardless of size.
	WriteFlushThreshold int           `env:"SMPP_WRITE_FLUSH_THRESHOLD" envDefault:"100"`
	WriteFlushCeiling   time.Duration `env:"SMPP_WRITE_FLUSH_CEILING"   envDefault:"30ms"`
}

// Pipeline is what a bound session hands parsed SubmitSM PDUs to. It
// returns the response status and, when accepted, the message_id to echo.
type Pipeline interface {
	HandleSubmitSM(ctx context.Context, sess *Session, sm pdu.SubmitSM) (status uint32, messageID string)
}

// Session is one accepted SMPP connection.
type Session struct {
	conn   net.Conn
	peer   string
	cfg    Config
	pl     Pipeline
	m      *metrics.Metrics
	logger *slog.Logger

	state    atomic.Int32
	systemID atomic.Value // string
	outSeq   atomic.Uint32

	writeCh chan writeJob
	done    chan struct{}
}

type writeJob struct {
	commandID uint32
	status    uint32
	seq       uint32
	body      []byte
	slow      bool
}

// New wraps an accepted connection in a Session. The caller must call Run
// to start reading; Run releases the session's resources, including the
// connection, when it returns.
func New(conn net.Conn, cfg Config, pl Pipeline, m *metrics.Metrics, logger *slog.Logger) *Session {
	s := &Session{
		conn:    conn,
		peer:    conn.RemoteAddr().String(),
		cfg:     cfg,
		pl:      pl,
		m:       m,
		logger:  logger.With("peer", conn.RemoteAddr().String()),
		writeCh: make(chan writeJob, 64),
		done:    make(chan struct{}),
	}
	s.systemID.Store("")
	s.outSeq.Store(1)
	return s
}

// State returns the session's current FSM state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Bound reports whether the session has completed a successful bind.
func (s *Session) Bound() bool {
	return s.State() == StateBound
}

// SystemID returns the authenticated system_id, or "" before bind.
func (s *Session) SystemID() string {
	return s.systemID.Load().(string)
}

// PeerAddr returns the remote address the session was accepted from.
func (s *Session) PeerAddr() string {
	return s.peer
}

// Run drives the session until the peer disconnects, a framing error
// occurs, or ctx is cancelled. It owns the writer goroutine and always
// closes the connection before returning.
func (s *Session) Run(ctx context.Context) error {
	s.m.ActiveSMPPConnections.Inc()
	defer s.m.ActiveSMPPConnections.Dec()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.runWriter()
	}()

	defer func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		close(s.writeCh)
		// Give the writer up to the flush ceiling to send what is already
		// queued (e.g. a bind or unbind response) before the socket closes.
		select {
		case <-writerDone:
		case <-time.After(s.cfg.WriteFlushCeiling):
		}
		_ = s.conn.Close()
		<-writerDone
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		hdr, body, err := pdu.ReadPDU(s.conn)
		if err != nil {
			return err
		}

		if err := s.dispatch(ctx, hdr, body); err != nil {
			return err
		}

		if s.State() == StateClosed {
			return nil
		}
	}
}

// Done is closed when Run begins tearing the session down, after which the
// session no longer reports itself bound.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) dispatch(ctx context.Context, hdr pdu.Header, body []byte) error {
	switch hdr.CommandID {
	case pdu.BindTransmitter:
		s.handleBind(body, hdr.SequenceNum, pdu.BindTransmitterResp)
	case pdu.BindReceiver:
		s.handleBind(body, hdr.SequenceNum, pdu.BindReceiverResp)
	case pdu.BindTransceiver:
		s.handleBind(body, hdr.SequenceNum, pdu.BindTransceiverResp)
	case pdu.Unbind:
		s.handleUnbind(hdr.SequenceNum)
	case pdu.EnquireLink:
		s.handleEnquireLink(hdr.SequenceNum)
	case pdu.SubmitSM:
		s.handleSubmitSM(ctx, body, hdr.SequenceNum)
	case pdu.DeliverSMResp:
		s.logger.Debug("deliver_sm_resp received", "sequence", hdr.SequenceNum, "status", hdr.CommandStatus)
	default:
		s.logger.Debug("unsupported command ignored", "command_id", hdr.CommandID, "sequence", hdr.SequenceNum)
	}
	return nil
}

func (s *Session) handleBind(body []byte, seq, respCmd uint32) {
	systemID, password, err := pdu.ParseBind(body)
	if err != nil {
		s.enqueue(respCmd, pdu.ESMERSysErr, seq, nil, false)
		return
	}

	if !s.authenticate(systemID, password) {
		s.logger.Warn("bind failed", "system_id", systemID)
		s.enqueue(respCmd, pdu.ESMERInvPaswd, seq, nil, false)
		s.state.Store(int32(StateClosed))
		return
	}

	s.systemID.Store(systemID)
	s.state.Store(int32(StateBound))
	s.logger.Info("bind succeeded", "system_id", systemID)
	s.enqueue(respCmd, pdu.ESMEROk, seq, []byte("SMPPGateway\x00"), false)
}

// authenticate is a constant-time comparison of both system_id and
// password so a mistyped credential does not leak timing information
// about how many leading bytes matched.
func (s *Session) authenticate(systemID, password string) bool {
	idOK := subtle.ConstantTimeCompare([]byte(systemID), []byte(s.cfg.SystemID)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	return idOK && passOK
}

func (s *Session) handleUnbind(seq uint32) {
	s.enqueue(pdu.UnbindResp, pdu.ESMEROk, seq, nil, false)
	s.state.Store(int32(StateClosed))
}

// handleEnquireLink answers at once, with no HLR or cache work. The read
// loop handles one PDU at a time, so an ENQUIRE_LINK that arrives while a
// SubmitSM's HLR lookup is in progress is answered only after that lookup
// returns.
func (s *Session) handleEnquireLink(seq uint32) {
	s.enqueue(pdu.EnquireLinkResp, pdu.ESMEROk, seq, nil, false)
}

func (s *Session) handleSubmitSM(ctx context.Context, body []byte, seq uint32) {
	if s.State() != StateBound {
		s.enqueue(pdu.SubmitSMResp, pdu.ESMERInvBndSts, seq, []byte{0}, false)
		return
	}

	sm, err := pdu.ParseSubmitSM(body)
	if err != nil {
		s.enqueue(pdu.SubmitSMResp, pdu.ESMERSysErr, seq, []byte{0}, false)
		return
	}

	status, messageID := s.pl.HandleSubmitSM(ctx, s, sm)

	var respBody []byte
	if messageID != "" {
		respBody = append([]byte(messageID), 0)
	} else {
		respBody = []byte{0}
	}
	s.enqueue(pdu.SubmitSMResp, status, seq, respBody, false)
}

// SendDeliverSM pushes an unsolicited DeliverSM carrying text to the peer,
// from source to destination. It is a no-op, returning false, if the
// session is not currently bound.
func (s *Session) SendDeliverSM(source, destination string, text []byte) bool {
	if s.State() != StateBound {
		return false
	}
	seq := s.outSeq.Add(1) - 1
	body := pdu.BuildDeliverSM(source, destination, text)
	s.enqueue(pdu.DeliverSM, pdu.ESMEROk, seq, body, true)
	return true
}

func (s *Session) enqueue(commandID, status, seq uint32, body []byte, forceSlow bool) {
	slow := forceSlow || len(body) >= s.cfg.WriteFlushThreshold
	select {
	case s.writeCh <- writeJob{commandID: commandID, status: status, seq: seq, body: body, slow: slow}:
	case <-s.done:
	}
}

// runWriter is the single goroutine allowed to touch s.conn for writes,
// so responses from the read loop and DeliverSMs from DLR tasks never
// interleave on the wire.
func (s *Session) runWriter() {
	for job := range s.writeCh {
		if job.slow {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteFlushCeiling))
		}

		if err := pdu.WritePDU(s.conn, job.commandID, job.status, job.seq, job.body); err != nil {
			if job.slow && isTimeout(err) {
				// Exceeding the flush ceiling is not an error; the
				// write is presumed to continue asynchronously.
			} else {
				s.logger.Debug("pdu write failed", "command_id", job.commandID, "error", err)
			}
		}

		if job.slow {
			_ = s.conn.SetWriteDeadline(time.Time{})
		}
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
