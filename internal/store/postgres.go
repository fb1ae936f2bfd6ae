package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reflink/payoutledger/internal/domain"
)

// Postgres journals ledger state to Postgres. Each Record* call runs in one
// transaction so a crash can never leave a balance without its matching
// payout or commission row.
type Postgres struct {
	db *pgxpool.Pool
}

// Schema creates the journal tables. The seeder and fresh deployments run it.
const Schema = `
CREATE TABLE IF NOT EXISTS affiliate_accounts (
	affiliate_id  TEXT PRIMARY KEY,
	credit_minor  BIGINT NOT NULL,
	pending_minor BIGINT NOT NULL,
	currency      TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS commission_events (
	event_id     TEXT PRIMARY KEY,
	affiliate_id TEXT NOT NULL,
	amount_minor BIGINT NOT NULL,
	currency     TEXT NOT NULL,
	applied_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS payout_requests (
	id           TEXT PRIMARY KEY,
	affiliate_id TEXT NOT NULL,
	method       TEXT NOT NULL,
	amount_minor BIGINT NOT NULL,
	fee_minor    BIGINT NOT NULL,
	net_minor    BIGINT NOT NULL,
	currency     TEXT NOT NULL,
	status       TEXT NOT NULL,
	retry_count  INT NOT NULL DEFAULT 0,
	reference    TEXT NOT NULL UNIQUE,
	notes        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payout_requests_affiliate_idx ON payout_requests (affiliate_id);
CREATE INDEX IF NOT EXISTS payout_requests_status_idx ON payout_requests (status);
`

// NewPostgres connects a pool and verifies connectivity.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// EnsureSchema creates the journal tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, Schema)
	return err
}

func (p *Postgres) RecordCommission(ctx context.Context, eventID string, amount domain.Money, account domain.Account) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO commission_events (event_id, affiliate_id, amount_minor, currency) VALUES ($1, $2, $3, $4)",
		eventID, account.AffiliateID, amount.Units, amount.Currency,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateCommissionEvent
		}
		return fmt.Errorf("commission event insert failed: %w", err)
	}

	if err := upsertAccount(ctx, tx, account); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) RecordPayout(ctx context.Context, req domain.PayoutRequest, account domain.Account) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO payout_requests
			(id, affiliate_id, method, amount_minor, fee_minor, net_minor, currency,
			 status, retry_count, reference, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			retry_count = EXCLUDED.retry_count,
			updated_at = EXCLUDED.updated_at`,
		req.ID, req.AffiliateID, string(req.Method), req.Amount.Units, req.Fee.Units,
		req.Net.Units, req.Amount.Currency, string(req.Status), req.RetryCount,
		req.Reference, req.Notes, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("payout upsert failed: %w", err)
	}

	if err := upsertAccount(ctx, tx, account); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) LoadState(ctx context.Context) (State, error) {
	var st State

	rows, err := p.db.Query(ctx,
		"SELECT affiliate_id, credit_minor, pending_minor, currency, created_at FROM affiliate_accounts")
	if err != nil {
		return State{}, fmt.Errorf("load accounts failed: %w", err)
	}
	for rows.Next() {
		var acc domain.Account
		var currency string
		if err := rows.Scan(&acc.AffiliateID, &acc.Credit.Units, &acc.Pending.Units, &currency, &acc.CreatedAt); err != nil {
			rows.Close()
			return State{}, err
		}
		acc.Credit.Currency = currency
		acc.Pending.Currency = currency
		st.Accounts = append(st.Accounts, acc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return State{}, err
	}

	rows, err = p.db.Query(ctx, `
		SELECT id, affiliate_id, method, amount_minor, fee_minor, net_minor, currency,
		       status, retry_count, reference, notes, created_at, updated_at
		FROM payout_requests ORDER BY created_at`)
	if err != nil {
		return State{}, fmt.Errorf("load payouts failed: %w", err)
	}
	for rows.Next() {
		var req domain.PayoutRequest
		var method, status, currency string
		if err := rows.Scan(&req.ID, &req.AffiliateID, &method, &req.Amount.Units,
			&req.Fee.Units, &req.Net.Units, &currency, &status, &req.RetryCount,
			&req.Reference, &req.Notes, &req.CreatedAt, &req.UpdatedAt); err != nil {
			rows.Close()
			return State{}, err
		}
		req.Method = domain.PayoutMethod(method)
		req.Status = domain.PayoutStatus(status)
		req.Amount.Currency = currency
		req.Fee.Currency = currency
		req.Net.Currency = currency
		st.Payouts = append(st.Payouts, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return State{}, err
	}

	rows, err = p.db.Query(ctx, "SELECT event_id FROM commission_events")
	if err != nil {
		return State{}, fmt.Errorf("load commission events failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return State{}, err
		}
		st.EventIDs = append(st.EventIDs, id)
	}
	return st, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() {
	p.db.Close()
}

func upsertAccount(ctx context.Context, tx pgx.Tx, account domain.Account) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO affiliate_accounts (affiliate_id, credit_minor, pending_minor, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (affiliate_id) DO UPDATE SET
			credit_minor = EXCLUDED.credit_minor,
			pending_minor = EXCLUDED.pending_minor`,
		account.AffiliateID, account.Credit.Units, account.Pending.Units,
		account.Credit.Currency, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("account upsert failed: %w", err)
	}
	return nil
}
