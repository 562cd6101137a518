package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atmx/gateway-sim/internal/model"
)

// execer is the subset of *pgxpool.Pool the journal needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresJournal exports fills to PostgreSQL. It is write-only: the
// simulator never reads its state back. Prices are stored as NUMERIC for
// exact decimal precision.
//
// Expected schema:
//
//	CREATE TABLE fills (
//	    id          UUID PRIMARY KEY,
//	    order_id    BIGINT NOT NULL,
//	    trade_id    BIGINT NOT NULL,
//	    account_id  BIGINT NOT NULL,
//	    contract_id TEXT NOT NULL,
//	    order_type  SMALLINT NOT NULL,
//	    side        SMALLINT NOT NULL,
//	    size        INTEGER NOT NULL,
//	    price       NUMERIC NOT NULL,
//	    fees        NUMERIC NOT NULL,
//	    custom_tag  TEXT,
//	    filled_at   TIMESTAMPTZ NOT NULL
//	);
type PostgresJournal struct {
	db execer
}

// NewPostgresJournal creates a journal writing through db, typically a
// *pgxpool.Pool.
func NewPostgresJournal(db execer) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) RecordFill(ctx context.Context, o *model.Order, t *model.Trade) error {
	_, err := j.db.Exec(ctx,
		`INSERT INTO fills (id, order_id, trade_id, account_id, contract_id, order_type, side, size, price, fees, custom_tag, filled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10::NUMERIC, NULLIF($11, ''), $12)`,
		uuid.NewString(), o.ID, t.ID, t.AccountID, t.ContractID,
		int(o.Type), int(t.Side), t.Size,
		t.Price.String(), t.Fees.String(),
		o.CustomTag, t.CreationTimestamp,
	)
	if err != nil {
		return fmt.Errorf("journal fill for order %d: %w", o.ID, err)
	}
	return nil
}
