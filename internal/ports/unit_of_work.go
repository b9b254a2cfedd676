package ports

import "context"

// Tx is an opaque transaction handle carried in context. The persistence
// adapter decides the concrete type (*gorm.DB for SQLite).
type Tx interface{}

// UnitOfWork scopes a batch of store calls to one transaction: fn returning
// an error rolls back, nil commits. Stores pick the handle up from the ctx
// passed to fn.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the handle stored by WithTxContext, or nil.
func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}
