package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema DDL idempotente. Los índices únicos son el respaldo de los bloqueos: si dos
// transacciones llegaran a reservar el mismo número o el mismo enlace de la cadena, la
// segunda falla con 23505 y se traduce a domain.ErrConflict.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		tax_id            TEXT NOT NULL,
		address           TEXT NOT NULL DEFAULT '',
		email             TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'active',
		transmission_mode TEXT NOT NULL DEFAULT 'disabled'
		                  CHECK (transmission_mode IN ('disabled', 'enabled')),
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id           TEXT PRIMARY KEY,
		tenant_id    TEXT NOT NULL REFERENCES tenants(id),
		name         TEXT NOT NULL,
		tax_id       TEXT NOT NULL DEFAULT '',
		country_code CHAR(2) NOT NULL DEFAULT 'ES',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_series (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL REFERENCES tenants(id),
		code           TEXT NOT NULL,
		prefix         TEXT,
		current_number BIGINT NOT NULL DEFAULT 0 CHECK (current_number >= 0),
		is_active      BOOLEAN NOT NULL DEFAULT true,
		is_default     BOOLEAN NOT NULL DEFAULT false,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant_id, code)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS invoice_series_one_default
		ON invoice_series (tenant_id) WHERE is_default`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL REFERENCES tenants(id),
		customer_id TEXT REFERENCES customers(id),
		series_id   TEXT REFERENCES invoice_series(id),
		type        TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('draft', 'issued', 'voided', 'rectified')),
		number      BIGINT,
		full_number TEXT,
		issue_date  DATE NOT NULL,
		subtotal    NUMERIC(18,2) NOT NULL DEFAULT 0,
		tax_total   NUMERIC(18,2) NOT NULL DEFAULT 0,
		total       NUMERIC(18,2) NOT NULL DEFAULT 0,
		issued_at   TIMESTAMPTZ,
		issued_by   TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS invoices_series_number
		ON invoices (series_id, number) WHERE number IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS invoices_tenant ON invoices (tenant_id)`,
	`CREATE TABLE IF NOT EXISTS invoice_lines (
		id          TEXT PRIMARY KEY,
		invoice_id  TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		position    INT NOT NULL,
		description TEXT NOT NULL,
		quantity    NUMERIC(18,4) NOT NULL,
		unit_price  NUMERIC(18,4) NOT NULL,
		tax_rate    NUMERIC(6,4) NOT NULL,
		subtotal    NUMERIC(18,2) NOT NULL,
		tax_amount  NUMERIC(18,2) NOT NULL,
		UNIQUE (invoice_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id            TEXT PRIMARY KEY,
		tenant_id     TEXT NOT NULL REFERENCES tenants(id),
		invoice_id    TEXT NOT NULL REFERENCES invoices(id),
		sequence      BIGINT NOT NULL CHECK (sequence > 0),
		event_type    TEXT NOT NULL CHECK (event_type IN ('creation', 'rectification', 'void')),
		hash          CHAR(64) NOT NULL,
		prev_hash     CHAR(64),
		prev_entry_id TEXT UNIQUE REFERENCES ledger_entries(id),
		payload       JSON NOT NULL,
		recorded_by   TEXT NOT NULL,
		recorded_at   TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, sequence),
		CHECK ((prev_hash IS NULL) = (prev_entry_id IS NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_one_first
		ON ledger_entries (tenant_id) WHERE prev_entry_id IS NULL`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_chain_order
		ON ledger_entries (tenant_id, recorded_at, sequence)`,
	`CREATE TABLE IF NOT EXISTS submission_jobs (
		id              TEXT PRIMARY KEY,
		position        BIGINT GENERATED ALWAYS AS IDENTITY,
		entry_id        TEXT NOT NULL UNIQUE REFERENCES ledger_entries(id),
		tenant_id       TEXT NOT NULL REFERENCES tenants(id),
		status          TEXT NOT NULL CHECK (status IN ('pending', 'sent', 'error', 'retry')),
		attempts        INT NOT NULL DEFAULT 0 CHECK (attempts >= 0),
		max_attempts    INT NOT NULL DEFAULT 3,
		response        JSON,
		error_message   TEXT,
		next_attempt_at TIMESTAMPTZ,
		locked_until    TIMESTAMPTZ,
		sent_at         TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS submission_jobs_claimable
		ON submission_jobs (position)
		WHERE status IN ('pending', 'retry', 'error') AND attempts < max_attempts`,
	// append-only: ni UPDATE ni DELETE sobre la cadena
	`CREATE OR REPLACE FUNCTION ledger_entries_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'ledger_entries es append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS ledger_entries_no_mutation ON ledger_entries`,
	`CREATE TRIGGER ledger_entries_no_mutation
		BEFORE UPDATE OR DELETE ON ledger_entries
		FOR EACH ROW EXECUTE FUNCTION ledger_entries_append_only()`,
}

// Migrate aplica el esquema. Es idempotente: puede ejecutarse en cada arranque.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migración %d: %w", i+1, err)
		}
	}
	return nil
}
