// Package pipeline implements the SubmitSM decision: classify the
// destination via the HLR resolver, respond per policy, and schedule the
// deferred DELIVRD receipt for numbers the gateway pretends to deliver to.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"github.com/smppgw/gateway/internal/hlr"
	"github.com/smppgw/gateway/internal/metrics"
	"github.com/smppgw/gateway/internal/resolver"
	"github.com/smppgw/gateway/internal/session"
	"github.com/smppgw/gateway/internal/smpp/pdu"
	"github.com/smppgw/gateway/pkg/errors"
)

// Config controls DLR timing and HLR-timeout policy.
type Config struct {
	DLRDelay         time.Duration `env:"DLR_DELAY_SECONDS"  envDefault:"0s"`
	HLRTimeoutPolicy string        `env:"HLR_TIMEOUT_POLICY" envDefault:"reject"`
}

// Resolver is the slice of the HLR resolver the pipeline depends on.
type Resolver interface {
	Lookup(ctx context.Context, msisdn, sourceIP string) (hlr.Record, error)
}

// Pipeline is the shared SubmitSM handler every bound session dispatches
// into; it satisfies session.Pipeline.
type Pipeline struct {
	cfg      Config
	resolver Resolver
	m        *metrics.Metrics
	logger   *slog.Logger
}

var _ session.Pipeline = (*Pipeline)(nil)

// New builds a Pipeline.
func New(cfg Config, r Resolver, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, resolver: r, m: m, logger: logger}
}

// HandleSubmitSM classifies sm.DestinationAddr and returns the response
// status and message_id the session should echo to the ESME. Valid
// numbers are rejected; invalid numbers are accepted and have a DELIVRD
// receipt scheduled on sess.
func (p *Pipeline) HandleSubmitSM(ctx context.Context, sess *session.Session, sm pdu.SubmitSM) (uint32, string) {
	start := time.Now()
	defer func() {
		p.m.SubmitProcessingSeconds.Observe(time.Since(start).Seconds())
	}()

	rec, err := p.resolver.Lookup(ctx, sm.DestinationAddr, sess.PeerAddr())
	if err != nil {
		return p.handleLookupError(sm.DestinationAddr, err)
	}

	if rec.Classification == hlr.Valid {
		p.logger.Info("submit_sm rejected, valid number", "destination", sm.DestinationAddr)
		p.m.SubmitTotal.WithLabelValues("rejected").Inc()
		return pdu.ESMERInvDstAdr, ""
	}

	messageID := generateMessageID()
	acceptedAt := time.Now()
	p.logger.Info("submit_sm accepted, invalid number", "destination", sm.DestinationAddr, "message_id", messageID)
	p.m.SubmitTotal.WithLabelValues("accepted").Inc()

	go p.scheduleDLR(sess, messageID, sm.SourceAddr, sm.DestinationAddr, acceptedAt)

	return pdu.ESMEROk, messageID
}

func (p *Pipeline) handleLookupError(destination string, err error) (uint32, string) {
	if errors.Contains(err, resolver.ErrHLRTimeout) {
		p.logger.Warn("submit_sm rejected, hlr timeout", "destination", destination, "policy", p.cfg.HLRTimeoutPolicy)
		p.m.SubmitTotal.WithLabelValues("rejected").Inc()
		return pdu.ESMERSysErr, ""
	}

	p.logger.Error("submit_sm rejected, hlr error", "destination", destination, "error", err)
	p.m.SubmitTotal.WithLabelValues("rejected").Inc()
	return pdu.ESMERSysErr, ""
}

// scheduleDLR waits cfg.DLRDelay, then pushes a DELIVRD DeliverSM to sess
// with source and destination swapped, since the DLR appears to originate
// from the number the ESME targeted. It is cancelled if sess terminates
// before the delay elapses.
func (p *Pipeline) scheduleDLR(sess *session.Session, messageID, source, destination string, submitDate time.Time) {
	p.m.ActiveTasks.Inc()
	defer p.m.ActiveTasks.Dec()

	timer := time.NewTimer(p.cfg.DLRDelay)
	defer timer.Stop()

	select {
	case <-sess.Done():
		p.logger.Warn("dlr task cancelled, session terminated", "message_id", messageID)
		return
	case <-timer.C:
	}

	text := pdu.BuildDLRText(messageID, "DELIVRD", "000", submitDate, time.Now())

	if !sess.SendDeliverSM(destination, source, []byte(text)) {
		p.logger.Warn("dlr dropped, session not bound", "message_id", messageID)
		p.m.DelivrdTotal.WithLabelValues("dropped_unbound").Inc()
		return
	}

	p.logger.Info("dlr delivered", "message_id", messageID, "destination", destination)
	p.m.DelivrdTotal.WithLabelValues("invalid_number").Inc()
}

func generateMessageID() string {
	id, err := uuid.NewV4()
	if err != nil {
		// NewV4 only fails if the system RNG is broken; fall back to the
		// zero UUID's hex form rather than panicking.
		return strings.ReplaceAll(uuid.Nil.String(), "-", "")[:16]
	}
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}
