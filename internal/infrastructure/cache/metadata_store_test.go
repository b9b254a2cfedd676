package cache

import (
	"context"
	"encoding/json"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"threatcache/internal/infrastructure/persistence/sqlite/model"
)

func getInt64(t *testing.T, store *MetadataStore, key string) int64 {
	t.Helper()

	raw, found, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", key, err)
	}
	if !found {
		t.Fatalf("Get(%s) expected found=true", key)
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return v
}

type migrateInitializer struct {
	db    *gorm.DB
	calls int
}

func (m *migrateInitializer) Initialize(ctx context.Context) error {
	m.calls++
	return m.db.WithContext(ctx).AutoMigrate(&model.Metadata{})
}

func setupMetadataStore(t *testing.T) (*MetadataStore, *migrateInitializer) {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	schema := &migrateInitializer{db: db}
	return NewMetadataStore(db, schema), schema
}

func TestMetadataStoreSetGetDelete(t *testing.T) {
	store, schema := setupMetadataStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "lastUpdate", int64(1760000000000)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if schema.calls == 0 {
		t.Fatalf("Set() did not initialize the schema")
	}

	if v := getInt64(t, store, "lastUpdate"); v != 1760000000000 {
		t.Fatalf("lastUpdate = %d", v)
	}

	if err := store.Set(ctx, "lastUpdate", int64(1760000000001)); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	if v := getInt64(t, store, "lastUpdate"); v != 1760000000001 {
		t.Fatalf("lastUpdate after update = %d", v)
	}

	if err := store.Delete(ctx, "lastUpdate"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, found, err := store.Get(ctx, "lastUpdate")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestMetadataStoreStoresArbitraryJSON(t *testing.T) {
	store, _ := setupMetadataStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "feed", map[string]any{"etag": "abc", "bytes": 42}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	raw, found, err := store.Get(ctx, "feed")
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v", found, err)
	}
	if string(raw) != `{"bytes":42,"etag":"abc"}` {
		t.Fatalf("Get() raw = %s", raw)
	}
}

func TestMetadataStoreRejectsEmptyKey(t *testing.T) {
	store, _ := setupMetadataStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "", 1); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := store.Get(ctx, " "); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := store.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}
