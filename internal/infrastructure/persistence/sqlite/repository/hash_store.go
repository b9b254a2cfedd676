package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
	"threatcache/internal/infrastructure/persistence/sqlite"
	"threatcache/internal/infrastructure/persistence/sqlite/model"
	"threatcache/internal/ports"
)

// SchemaVersion is written to PRAGMA user_version; bump it only with a
// structural migration.
const SchemaVersion = 1

const putBatchSize = 500

// HashStore implements ports.HashStore on SQLite via gorm.
type HashStore struct {
	db *gorm.DB

	initMu      sync.Mutex
	initialized bool
}

var _ ports.HashStore = (*HashStore)(nil)

func NewHashStore(db *gorm.DB) *HashStore {
	return &HashStore{db: db}
}

func (s *HashStore) Initialize(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return s.initialize(ctx, db)
}

// initialize migrates on db. Inside a caller's transaction the DDL can still
// be rolled back, so success is only remembered outside one.
func (s *HashStore) initialize(ctx context.Context, db *gorm.DB) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}

	err := sqlite.RetryBusy(ctx, func() error {
		return db.AutoMigrate(&model.DomainHash{}, &model.URLHash{}, &model.Metadata{})
	})
	if err != nil {
		return errs.E(errs.KindStorage, "initialize", errs.Wrap(err, "auto migrate schema"))
	}

	var version int
	if err := db.Raw("PRAGMA user_version").Scan(&version).Error; err != nil {
		return errs.E(errs.KindStorage, "initialize", errs.Wrap(err, "read schema version"))
	}
	if version < SchemaVersion {
		// PRAGMA does not take bound parameters.
		if err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)).Error; err != nil {
			return errs.E(errs.KindStorage, "initialize", errs.Wrap(err, "write schema version"))
		}
	}

	if ports.TxFromContext(ctx) == nil {
		s.initialized = true
	}
	return nil
}

// handle returns the transaction carried by ctx, or the base handle.
func (s *HashStore) handle(ctx context.Context) (*gorm.DB, error) {
	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return s.db.WithContext(ctx), nil
	}
	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// ensure is the single open guard every operation passes through.
func (s *HashStore) ensure(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.initialize(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func (s *HashStore) Clear(ctx context.Context, c threatintel.Collection) error {
	op := "clear " + string(c)
	if !c.Valid() {
		return errs.Ef(errs.KindStorage, op, "unknown collection")
	}
	db, err := s.ensure(ctx)
	if err != nil {
		return err
	}

	var target any = &model.HashRow{}
	if c == threatintel.Metadata {
		target = &model.Metadata{}
	}

	err = sqlite.RetryBusy(ctx, func() error {
		return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Table(string(c)).Delete(target).Error
	})
	if err != nil {
		return errs.E(errs.KindStorage, op, err)
	}
	return nil
}

func (s *HashStore) Put(ctx context.Context, c threatintel.Collection, rec threatintel.HashRecord) error {
	return s.PutMany(ctx, c, []threatintel.HashRecord{rec})
}

// PutMany upserts recs in batches; a hash seen twice keeps the last Type/Level.
func (s *HashStore) PutMany(ctx context.Context, c threatintel.Collection, recs []threatintel.HashRecord) error {
	op := "put " + string(c)
	if !c.IsHashCollection() {
		return errs.Ef(errs.KindStorage, op, "not a hash collection")
	}
	db, err := s.ensure(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	rows := dedupeRows(recs)
	for _, row := range rows {
		if strings.TrimSpace(row.Hash) == "" {
			return errs.Ef(errs.KindStorage, op, "hash is required")
		}
	}

	err = sqlite.RetryBusy(ctx, func() error {
		return db.Table(string(c)).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "level"}),
		}).CreateInBatches(&rows, putBatchSize).Error
	})
	if err != nil {
		return errs.E(errs.KindStorage, op, err)
	}
	return nil
}

// dedupeRows keeps the last occurrence of each hash. SQLite rejects an
// upsert batch that touches the same conflict target twice.
func dedupeRows(recs []threatintel.HashRecord) []model.HashRow {
	index := make(map[string]int, len(recs))
	rows := make([]model.HashRow, 0, len(recs))
	for _, rec := range recs {
		row := model.HashRow{Hash: rec.Hash, Type: rec.Type, Level: rec.Level}
		if i, ok := index[rec.Hash]; ok {
			rows[i] = row
			continue
		}
		index[rec.Hash] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

func (s *HashStore) Get(ctx context.Context, c threatintel.Collection, hash string) (threatintel.HashRecord, bool, error) {
	op := "get " + string(c)
	if !c.IsHashCollection() {
		return threatintel.HashRecord{}, false, errs.Ef(errs.KindStorage, op, "not a hash collection")
	}
	db, err := s.ensure(ctx)
	if err != nil {
		return threatintel.HashRecord{}, false, err
	}

	var row model.HashRow
	err = sqlite.RetryBusy(ctx, func() error {
		return db.Table(string(c)).Where("hash = ?", hash).Take(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return threatintel.HashRecord{}, false, nil
		}
		return threatintel.HashRecord{}, false, errs.E(errs.KindStorage, op, err)
	}

	return threatintel.HashRecord{Hash: row.Hash, Type: row.Type, Level: row.Level}, true, nil
}

func (s *HashStore) Count(ctx context.Context, c threatintel.Collection) (int, error) {
	op := "count " + string(c)
	if !c.Valid() {
		return 0, errs.Ef(errs.KindStorage, op, "unknown collection")
	}
	db, err := s.ensure(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Table(string(c)).Count(&count).Error; err != nil {
		return 0, errs.E(errs.KindStorage, op, err)
	}
	return int(count), nil
}

func (s *HashStore) CountBy(ctx context.Context, c threatintel.Collection, f ports.Facet) (map[int]int, error) {
	op := "count " + string(c) + " by " + string(f)
	if !c.IsHashCollection() {
		return nil, errs.Ef(errs.KindStorage, op, "not a hash collection")
	}
	if f != ports.FacetType && f != ports.FacetLevel {
		return nil, errs.Ef(errs.KindStorage, op, "unknown facet")
	}
	db, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}

	var groups []struct {
		Value int
		Total int
	}
	column := string(f)
	if err := db.Table(string(c)).
		Select(column + " AS value, count(*) AS total").
		Group(column).
		Scan(&groups).Error; err != nil {
		return nil, errs.E(errs.KindStorage, op, err)
	}

	out := make(map[int]int, len(groups))
	for _, g := range groups {
		out[g.Value] = g.Total
	}
	return out, nil
}

func (s *HashStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errs.E(errs.KindStorage, "close", err)
	}
	if err := sqlDB.Close(); err != nil {
		return errs.E(errs.KindStorage, "close", err)
	}
	return nil
}
