package store

import migrate "github.com/rubenv/sql-migrate"

// Migration returns the hlr_lookups schema.
func Migration() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "hlr_lookups_1",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS hlr_lookups (
						id              BIGSERIAL PRIMARY KEY,
						msisdn          VARCHAR(32) NOT NULL,
						classification  VARCHAR(16) NOT NULL,
						error_code      INTEGER NOT NULL,
						status_code     INTEGER NOT NULL,
						present         VARCHAR(8),
						mcc             VARCHAR(8),
						mnc             VARCHAR(8),
						operator        VARCHAR(64),
						network_type    VARCHAR(16),
						country         VARCHAR(2),
						ported          BOOLEAN NOT NULL DEFAULT false,
						hlr_response    JSONB,
						latency_ms      INTEGER NOT NULL DEFAULT 0,
						cached          BOOLEAN NOT NULL DEFAULT false,
						source_ip       VARCHAR(64),
						created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
					)`,
					`CREATE INDEX IF NOT EXISTS hlr_lookups_msisdn_created_at_idx ON hlr_lookups (msisdn, created_at DESC)`,
				},
				Down: []string{
					"DROP TABLE IF EXISTS hlr_lookups",
				},
			},
		},
	}
}
