package aggregates

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/agora-backend/internal/domain"
	"github.com/yungbote/agora-backend/internal/pkg/dbctx"
)

// txAttempts bounds how often a transaction aborted by a serialization
// failure or deadlock is replayed.
const txAttempts = 3

// TxRunner is the transaction boundary services use for multi-row writes.
// fn may run more than once and must not have side effects outside dbc.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domain.NewError(domain.CodeInternal, "tx", "transaction runner has no database", nil)
	}
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		})
		if err == nil || !isSerializationFailure(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
