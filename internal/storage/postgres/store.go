package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"proposalRelay/internal/model"
)

const schema = `
	CREATE TABLE IF NOT EXISTS proposal_notifications (
		id BIGSERIAL PRIMARY KEY,
		proposal_id NUMERIC(78, 0) NOT NULL,
		voting_end_block NUMERIC(78, 0) NOT NULL,
		link TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		text TEXT NOT NULL,
		response TEXT,
		error TEXT,
		block_number BIGINT NOT NULL,
		tx_hash TEXT NOT NULL,
		log_index BIGINT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Store journals notification attempts in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the journal table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutNotification inserts one journal row.
func (s *Store) PutNotification(ctx context.Context, record model.NotificationRecord) error {
	sentAt, err := time.Parse(time.RFC3339Nano, record.SentAt)
	if err != nil {
		return fmt.Errorf("parse sent_at: %w", err)
	}
	proposalID, err := numeric(record.ProposalID)
	if err != nil {
		return fmt.Errorf("proposal_id: %w", err)
	}
	votingEndBlock, err := numeric(record.VotingEndBlock)
	if err != nil {
		return fmt.Errorf("voting_end_block: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO proposal_notifications (
			proposal_id, voting_end_block, link, chat_id, text, response, error,
			block_number, tx_hash, log_index, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		proposalID,
		votingEndBlock,
		record.Link,
		record.ChatID,
		record.Text,
		nullable(record.Response),
		nullable(record.Error),
		int64(record.BlockNumber),
		record.TxHash,
		int64(record.LogIndex),
		sentAt,
	)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func numeric(s string) (pgtype.Numeric, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return pgtype.Numeric{}, fmt.Errorf("invalid integer %q", s)
	}
	return pgtype.Numeric{Int: n, Valid: true}, nil
}
