package uow

import (
	"context"

	"gorm.io/gorm"

	"threatcache/internal/errs"
	"threatcache/internal/infrastructure/persistence/sqlite"
	"threatcache/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. A transaction that fails
// with SQLITE_BUSY is rolled back and retried as a whole.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ports.TxFromContext(ctx) != nil {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	err := sqlite.RetryBusy(ctx, func() error {
		return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ports.WithTxContext(ctx, tx))
		})
	})
	if err != nil && sqlite.IsBusy(err) {
		return errs.E(errs.KindStorage, "transaction", err)
	}
	return err
}
