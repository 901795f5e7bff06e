// Package store is the durable, append-only log of HLR lookups. Writes
// are fire-and-forget from the caller's point of view: Append's error is
// for the caller to log, never to block the submit path on.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smppgw/gateway/internal/hlr"
	"github.com/smppgw/gateway/pkg/errors"
)

// ErrRowRejected is returned when postgres rejects a row for its own
// reasons (an oversized or malformed field value) rather than because the
// connection failed. Callers can skip retrying these.
var ErrRowRejected = errors.New("store: row rejected by database")

// errConnection marks failures where the append never reached postgres at
// all, as distinct from the database rejecting the row.
var errConnection = errors.New("store: connection error")

// countryByMCC is a deliberately small, approximate MCC-prefix to
// ISO-3166 alpha-2 lookup; it is not an authoritative source.
var countryByMCC = map[string]string{
	"255": "UA",
	"310": "US",
	"311": "US",
	"250": "RU",
	"234": "GB",
	"262": "DE",
	"208": "FR",
}

// CountryForMCC returns the approximate country for an MCC, or "" if unknown.
func CountryForMCC(mcc string) string {
	if len(mcc) < 3 {
		return ""
	}
	return countryByMCC[mcc[:3]]
}

// Row is one durable lookup-log entry.
type Row struct {
	MSISDN         string          `db:"msisdn"`
	Classification string          `db:"classification"`
	ErrorCode      int             `db:"error_code"`
	StatusCode     int             `db:"status_code"`
	Present        string          `db:"present"`
	MCC            string          `db:"mcc"`
	MNC            string          `db:"mnc"`
	Operator       string          `db:"operator"`
	NetworkType    string          `db:"network_type"`
	Country        string          `db:"country"`
	Ported         bool            `db:"ported"`
	HLRResponse    json.RawMessage `db:"hlr_response"`
	LatencyMs      int64           `db:"latency_ms"`
	Cached         bool            `db:"cached"`
	SourceIP       string          `db:"source_ip"`
	CreatedAt      time.Time       `db:"created_at"`
}

// RowFromRecord builds a Row ready to append, from a resolved HLR record.
func RowFromRecord(rec hlr.Record, latency time.Duration, cached bool, sourceIP string) (Row, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return Row{}, err
	}

	return Row{
		MSISDN:         rec.Number,
		Classification: rec.Classification,
		ErrorCode:      rec.Error,
		StatusCode:     rec.Status,
		Present:        rec.Present,
		MCC:            rec.MCC,
		MNC:            rec.MNC,
		Operator:       rec.Network,
		NetworkType:    rec.Type,
		Country:        CountryForMCC(rec.MCC),
		Ported:         rec.Ported,
		HLRResponse:    raw,
		LatencyMs:      latency.Milliseconds(),
		Cached:         cached,
		SourceIP:       sourceIP,
	}, nil
}

// Store is the hlr_lookups repository.
type Store struct {
	db Database
}

// New returns a Store backed by db.
func New(db Database) *Store {
	return &Store{db: db}
}

// Ping reports whether the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Append inserts one lookup row.
func (s *Store) Append(ctx context.Context, row Row) error {
	const q = `INSERT INTO hlr_lookups
		(msisdn, classification, error_code, status_code, present, mcc, mnc, operator, network_type, country, ported, hlr_response, latency_ms, cached, source_ip)
		VALUES
		(:msisdn, :classification, :error_code, :status_code, :present, :mcc, :mnc, :operator, :network_type, :country, :ported, :hlr_response, :latency_ms, :cached, :source_ip)`

	_, err := s.db.NamedExecContext(ctx, q, row)
	return classifyAppendErr(err)
}

// classifyAppendErr distinguishes a row postgres rejected outright (a
// field that overflows its column, or fails to parse as its column type)
// from any other failure, which is presumed to be connection-level.
func classifyAppendErr(err error) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := err.(*pgconn.PgError); ok {
		switch pgErr.Code {
		case pgerrcode.StringDataRightTruncationDataException, pgerrcode.InvalidTextRepresentation:
			return errors.Wrap(ErrRowRejected, err)
		}
	}
	return errors.Wrap(errConnection, err)
}

// RecentUnique returns at most limit rows from the last `days` days, one
// per MSISDN, preferring the most recently created row for each.
func (s *Store) RecentUnique(ctx context.Context, days, limit int) ([]Row, error) {
	const q = `SELECT DISTINCT ON (msisdn)
			msisdn, classification, error_code, status_code, present, mcc, mnc,
			operator, network_type, country, ported, hlr_response, latency_ms, cached, source_ip, created_at
		FROM hlr_lookups
		WHERE created_at >= now() - ($1::text || ' days')::interval
		ORDER BY msisdn, created_at DESC
		LIMIT $2`

	var rows []Row
	if err := s.db.SelectContext(ctx, &rows, q, days, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
