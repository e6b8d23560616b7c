package uow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"paymonitor/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db   *gorm.DB
	gate *Gate
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB, gate *Gate) *UnitOfWork {
	return &UnitOfWork{db: db, gate: gate}
}

// WithTx joins the transaction already in ctx, otherwise opens one under the
// gate.
func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	return u.gate.Do(ctx, func() error {
		return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ports.WithTxContext(ctx, tx))
		})
	})
}
