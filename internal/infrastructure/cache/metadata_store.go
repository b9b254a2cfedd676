package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"threatcache/internal/errs"
	"threatcache/internal/infrastructure/persistence/sqlite"
	"threatcache/internal/infrastructure/persistence/sqlite/model"
	"threatcache/internal/ports"
)

// Initializer creates the metadata table on first use.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// MetadataStore implements ports.MetadataStore over the metadata table.
type MetadataStore struct {
	db     *gorm.DB
	schema Initializer
}

var _ ports.MetadataStore = (*MetadataStore)(nil)

// NewMetadataStore shares the schema owner with the hash store so either
// one can be used first.
func NewMetadataStore(db *gorm.DB, schema Initializer) *MetadataStore {
	return &MetadataStore{db: db, schema: schema}
}

func (m *MetadataStore) ensure(ctx context.Context, key string) (*gorm.DB, string, error) {
	if ctx == nil {
		return nil, "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, "", errs.Wrap(err, "check context")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return nil, "", errors.New("key is required")
	}

	if m.schema != nil {
		if err := m.schema.Initialize(ctx); err != nil {
			return nil, "", err
		}
	}

	if tx := ports.TxFromContext(ctx); tx != nil {
		gormTx, ok := tx.(*gorm.DB)
		if !ok || gormTx == nil {
			return nil, "", fmt.Errorf("invalid tx in context: %T", tx)
		}
		return gormTx.WithContext(ctx), trimmedKey, nil
	}
	return m.db.WithContext(ctx), trimmedKey, nil
}

func (m *MetadataStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	db, key, err := m.ensure(ctx, key)
	if err != nil {
		return nil, false, err
	}

	var row model.Metadata
	err = sqlite.RetryBusy(ctx, func() error {
		return db.Where("key = ?", key).Take(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, errs.E(errs.KindStorage, "get metadata "+key, err)
	}

	return json.RawMessage(row.Value), true, nil
}

func (m *MetadataStore) Set(ctx context.Context, key string, value any) error {
	db, key, err := m.ensure(ctx, key)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return errs.Wrapf(err, "encode metadata %s", key)
	}

	row := model.Metadata{
		Key:       key,
		Value:     string(encoded),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	err = sqlite.RetryBusy(ctx, func() error {
		return db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      row.Value,
				"updated_at": row.UpdatedAt,
			}),
		}).Create(&row).Error
	})
	if err != nil {
		return errs.E(errs.KindStorage, "set metadata "+key, err)
	}
	return nil
}

func (m *MetadataStore) Delete(ctx context.Context, key string) error {
	db, key, err := m.ensure(ctx, key)
	if err != nil {
		return err
	}

	if err := db.Where("key = ?", key).Delete(&model.Metadata{}).Error; err != nil {
		return errs.E(errs.KindStorage, "delete metadata "+key, err)
	}
	return nil
}
