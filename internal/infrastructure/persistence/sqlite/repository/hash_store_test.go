package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
	"threatcache/internal/infrastructure/persistence/sqlite/uow"
	"threatcache/internal/ports"
)

func setupHashStore(t *testing.T) (*HashStore, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "threatcache.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return NewHashStore(db), db
}

func TestInitializeIsIdempotent(t *testing.T) {
	store, db := setupHashStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Initialize(ctx); err != nil {
			t.Fatalf("Initialize() #%d error = %v", i, err)
		}
	}

	var version int
	if err := db.Raw("PRAGMA user_version").Scan(&version).Error; err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != SchemaVersion {
		t.Fatalf("user_version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"domain_hashes", "url_hashes", "metadata"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %s missing after Initialize()", table)
		}
	}
	if !db.Migrator().HasIndex("domain_hashes", "idx_domain_hashes_type") {
		t.Fatalf("type index missing on domain_hashes")
	}
	if !db.Migrator().HasIndex("url_hashes", "idx_url_hashes_level") {
		t.Fatalf("level index missing on url_hashes")
	}
}

func TestInitializeConcurrent(t *testing.T) {
	store, _ := setupHashStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- store.Initialize(ctx)
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("Initialize() concurrent error = %v", err)
		}
	}
}

func TestPutGetLastWriteWins(t *testing.T) {
	store, _ := setupHashStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, threatintel.DomainHashes, threatintel.HashRecord{Hash: "abc", Type: 1, Level: 2}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, threatintel.DomainHashes, threatintel.HashRecord{Hash: "abc", Type: 3, Level: 4}); err != nil {
		t.Fatalf("Put(overwrite) error = %v", err)
	}

	rec, found, err := store.Get(ctx, threatintel.DomainHashes, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatalf("Get() expected found=true")
	}
	if rec.Type != 3 || rec.Level != 4 {
		t.Fatalf("Get() = %+v, want type=3 level=4", rec)
	}

	count, err := store.Count(ctx, threatintel.DomainHashes)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Count() = %d, want 1", count)
	}
}

func TestGetMissingKey(t *testing.T) {
	store, _ := setupHashStore(t)

	rec, found, err := store.Get(context.Background(), threatintel.URLHashes, "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false, got %+v", rec)
	}
}

func TestCollectionsAreIndependent(t *testing.T) {
	store, _ := setupHashStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, threatintel.DomainHashes, threatintel.HashRecord{Hash: "shared", Type: 1, Level: 1}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	_, found, err := store.Get(ctx, threatintel.URLHashes, "shared")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatalf("url_hashes must not see a domain_hashes record")
	}
}

func TestPutManyDedupesAndClear(t *testing.T) {
	store, _ := setupHashStore(t)
	ctx := context.Background()

	recs := []threatintel.HashRecord{
		{Hash: "a", Type: 1, Level: 1},
		{Hash: "b", Type: 2, Level: 1},
		{Hash: "a", Type: 5, Level: 3},
	}
	if err := store.PutMany(ctx, threatintel.URLHashes, recs); err != nil {
		t.Fatalf("PutMany() error = %v", err)
	}

	count, err := store.Count(ctx, threatintel.URLHashes)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("Count() = %d, want 2", count)
	}
	rec, _, _ := store.Get(ctx, threatintel.URLHashes, "a")
	if rec.Type != 5 || rec.Level != 3 {
		t.Fatalf("Get(a) = %+v, want last occurrence", rec)
	}

	if err := store.Clear(ctx, threatintel.URLHashes); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	count, _ = store.Count(ctx, threatintel.URLHashes)
	if count != 0 {
		t.Fatalf("Count() after Clear() = %d, want 0", count)
	}

	// Clearing an empty collection is not an error.
	if err := store.Clear(ctx, threatintel.URLHashes); err != nil {
		t.Fatalf("Clear(empty) error = %v", err)
	}
}

func TestPutManyRejectsBlankHash(t *testing.T) {
	store, _ := setupHashStore(t)

	err := store.PutMany(context.Background(), threatintel.DomainHashes, []threatintel.HashRecord{{Hash: " "}})
	if !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("PutMany() error = %v, want storage error", err)
	}
}

func TestCountBy(t *testing.T) {
	store, _ := setupHashStore(t)
	ctx := context.Background()

	recs := []threatintel.HashRecord{
		{Hash: "a", Type: 1, Level: 1},
		{Hash: "b", Type: 1, Level: 2},
		{Hash: "c", Type: 2, Level: 2},
	}
	if err := store.PutMany(ctx, threatintel.DomainHashes, recs); err != nil {
		t.Fatalf("PutMany() error = %v", err)
	}

	byType, err := store.CountBy(ctx, threatintel.DomainHashes, ports.FacetType)
	if err != nil {
		t.Fatalf("CountBy(type) error = %v", err)
	}
	if byType[1] != 2 || byType[2] != 1 || len(byType) != 2 {
		t.Fatalf("CountBy(type) = %v", byType)
	}

	byLevel, err := store.CountBy(ctx, threatintel.DomainHashes, ports.FacetLevel)
	if err != nil {
		t.Fatalf("CountBy(level) error = %v", err)
	}
	if byLevel[1] != 1 || byLevel[2] != 2 {
		t.Fatalf("CountBy(level) = %v", byLevel)
	}

	if _, err := store.CountBy(ctx, threatintel.DomainHashes, ports.Facet("hash")); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("CountBy(unknown facet) error = %v", err)
	}
}

func TestInvalidCollection(t *testing.T) {
	store, _ := setupHashStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, threatintel.Metadata, threatintel.HashRecord{Hash: "a"}); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("Put(metadata) error = %v", err)
	}
	if _, _, err := store.Get(ctx, threatintel.Collection("bogus"), "a"); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("Get(bogus) error = %v", err)
	}
	if err := store.Clear(ctx, threatintel.Collection("bogus")); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("Clear(bogus) error = %v", err)
	}
}

func TestWritesInsideUnitOfWork(t *testing.T) {
	store, db := setupHashStore(t)
	u := uow.NewUnitOfWork(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := u.WithTx(ctx, func(txCtx context.Context) error {
		if err := store.Put(txCtx, threatintel.DomainHashes, threatintel.HashRecord{Hash: "rolled", Type: 1, Level: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}
	_, found, err := store.Get(ctx, threatintel.DomainHashes, "rolled")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatalf("write inside a rolled back tx must not persist")
	}

	err = u.WithTx(ctx, func(txCtx context.Context) error {
		return store.Put(txCtx, threatintel.DomainHashes, threatintel.HashRecord{Hash: "kept", Type: 1, Level: 1})
	})
	if err != nil {
		t.Fatalf("WithTx() commit error = %v", err)
	}
	if _, found, _ := store.Get(ctx, threatintel.DomainHashes, "kept"); !found {
		t.Fatalf("committed write not visible")
	}
}

func TestOperationsAfterCloseFailWithStorageError(t *testing.T) {
	store, _ := setupHashStore(t)
	ctx := context.Background()

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, _, err := store.Get(ctx, threatintel.DomainHashes, "a"); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("Get() after Close() error = %v", err)
	}
	if err := store.Clear(ctx, threatintel.URLHashes); !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("Clear() after Close() error = %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	store, _ := setupHashStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := store.Get(ctx, threatintel.DomainHashes, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get() with canceled ctx error = %v", err)
	}
}
