// Package storage persists classified events and answers the "have we
// already processed this signature" question the tracking loop relies on
// for idempotence.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	solanacopygo "github.com/franco-bianco/solanacopy-go/solanacopy-go"
)

const schema = `
CREATE TABLE IF NOT EXISTS classified_events (
	signature      TEXT PRIMARY KEY,
	wallet         TEXT NOT NULL,
	action         TEXT NOT NULL,
	mint           TEXT NOT NULL,
	mint_b         TEXT NOT NULL DEFAULT '',
	token_amount   NUMERIC NOT NULL DEFAULT 0,
	token_amount_b NUMERIC NOT NULL DEFAULT 0,
	counter_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	dex            TEXT NOT NULL DEFAULT '',
	token_symbol   TEXT NOT NULL DEFAULT '',
	price          DOUBLE PRECISION NOT NULL DEFAULT 0,
	defaulted      BOOLEAN NOT NULL DEFAULT FALSE,
	reason         TEXT NOT NULL DEFAULT '',
	slot           BIGINT NOT NULL DEFAULT 0,
	block_time     BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS classified_events_wallet_idx ON classified_events (wallet, block_time DESC);
`

// PostgresStore implements the event store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ solanacopygo.EventStore = (*PostgresStore)(nil)

// NewPostgresStore connects, verifies the connection, and ensures the
// events table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Exists(ctx context.Context, signature string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM classified_events WHERE signature = $1)`,
		signature,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check signature %s: %w", signature, err)
	}
	return exists, nil
}

func (s *PostgresStore) Insert(ctx context.Context, c solanacopygo.Classification) error {
	e := c.Event
	mintB := ""
	if !e.MintB.IsZero() {
		mintB = e.MintB.String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO classified_events (
			signature, wallet, action, mint, mint_b,
			token_amount, token_amount_b, counter_amount,
			dex, token_symbol, price, defaulted, reason, slot, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.Signature, e.Wallet.String(), string(e.Action), e.Mint.String(), mintB,
		e.TokenAmount, e.TokenAmountB, e.CounterAmount,
		e.DEX, e.TokenSymbol, e.Price, c.Defaulted, c.Reason, e.Slot, e.BlockTime,
	)
	if err != nil {
		// A concurrent insert of the same signature is not a failure: the
		// event is recorded either way.
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert event %s: %w", e.Signature, err)
	}
	return nil
}

// RecentActions returns the wallet's most recent recorded actions, newest
// first, for reporting.
func (s *PostgresStore) RecentActions(ctx context.Context, wallet string, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT signature, action, mint
		FROM classified_events
		WHERE wallet = $1
		ORDER BY block_time DESC
		LIMIT $2`,
		wallet, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent actions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sig, action, mint string
		if err := rows.Scan(&sig, &action, &mint); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		out = append(out, fmt.Sprintf("%s %s (%s)", action, mint, sig))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action rows: %w", err)
	}
	return out, nil
}

const pgErrUniqueViolation = "23505"

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
