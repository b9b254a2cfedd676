package uow

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"threatcache/internal/infrastructure/persistence/sqlite/model"
	"threatcache/internal/ports"
)

func setupUnitOfWork(t *testing.T) (*UnitOfWork, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.DomainHash{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewUnitOfWork(db), db
}

func TestWithTxRollsBackOnError(t *testing.T) {
	u, db := setupUnitOfWork(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := u.WithTx(ctx, func(txCtx context.Context) error {
		tx, ok := ports.TxFromContext(txCtx).(*gorm.DB)
		if !ok {
			t.Fatalf("tx in context = %T", ports.TxFromContext(txCtx))
		}
		if err := tx.Create(&model.DomainHash{Hash: "a", Type: 1, Level: 1}).Error; err != nil {
			t.Fatalf("create: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v", err)
	}

	var count int64
	if err := db.Model(&model.DomainHash{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count after rollback = %d", count)
	}
}

func TestWithTxJoinsOuterTransaction(t *testing.T) {
	u, _ := setupUnitOfWork(t)
	ctx := context.Background()

	err := u.WithTx(ctx, func(outer context.Context) error {
		return u.WithTx(outer, func(inner context.Context) error {
			if ports.TxFromContext(inner) != ports.TxFromContext(outer) {
				t.Fatalf("nested WithTx opened a new transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
}
