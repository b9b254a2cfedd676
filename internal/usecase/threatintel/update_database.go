package threatintel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"threatcache/internal/bootstrap/logging"
	domain "threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
)

// UpdateDatabase runs one full refresh: fetch, validate, clear both hash
// collections, write every derived record, then record lastUpdate. A fetch
// or format failure happens before the clear and leaves the stored dataset
// untouched. Concurrent callers share a single run.
func (s *Service) UpdateDatabase(ctx context.Context) (domain.UpdateSummary, error) {
	if ctx == nil {
		return domain.UpdateSummary{}, errors.New("context is required")
	}
	v, err := s.shared(ctx, "update", func(ctx context.Context) (any, error) {
		return s.update(ctx)
	})
	if err != nil {
		return domain.UpdateSummary{}, err
	}
	return v.(domain.UpdateSummary), nil
}

func (s *Service) update(ctx context.Context) (domain.UpdateSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.UpdateSummary{}, errs.Wrap(err, "check context")
	}
	if s.source == nil || s.parser == nil {
		return domain.UpdateSummary{}, errSourceRequired
	}
	if s.meta == nil {
		return domain.UpdateSummary{}, errors.New("metadata store is required")
	}

	logCtx := logging.WithAttrs(
		logging.WithComponent(ctx, "usecase.threatintel"),
		slog.String("run_id", uuid.NewString()),
		slog.String("source", s.source.Location()),
	)
	started := s.clock.Now()
	logging.Info(logCtx, "ingestion started")

	if err := s.Init(logCtx); err != nil {
		logging.Error(logCtx, "ingestion failed", slog.String("stage", "init"), slog.Any("err", errs.Loggable(err)))
		return domain.UpdateSummary{}, err
	}

	body, err := s.source.Fetch(logCtx)
	if err != nil {
		logging.Error(logCtx, "ingestion failed", slog.String("stage", "fetch"), slog.Any("err", errs.Loggable(err)))
		return domain.UpdateSummary{}, err
	}

	entries, skipped, err := s.parser.Parse(body)
	if err != nil {
		logging.Error(logCtx, "ingestion failed", slog.String("stage", "validate"), slog.Any("err", errs.Loggable(err)))
		return domain.UpdateSummary{}, err
	}
	if skipped > 0 {
		logging.Warn(logCtx, "skipped malformed feed entries", slog.Int("skipped", skipped))
	}

	// Each collection is cleared on its own; readers may briefly see an
	// empty collection until the writes below land.
	for _, c := range []domain.Collection{domain.DomainHashes, domain.URLHashes} {
		if err := s.hashes.Clear(logCtx, c); err != nil {
			logging.Error(logCtx, "ingestion failed", slog.String("stage", "clear"), slog.Any("err", errs.Loggable(err)))
			return domain.UpdateSummary{}, err
		}
	}

	count, err := s.ProcessEntries(logCtx, entries)
	if err != nil {
		logging.Error(logCtx, "ingestion failed", slog.String("stage", "write"), slog.Any("err", errs.Loggable(err)))
		return domain.UpdateSummary{}, err
	}

	completed := s.clock.Now()
	if err := s.meta.Set(logCtx, domain.MetaLastUpdate, completed.UnixMilli()); err != nil {
		logging.Error(logCtx, "ingestion failed", slog.String("stage", "metadata"), slog.Any("err", errs.Loggable(err)))
		return domain.UpdateSummary{}, err
	}

	logging.Info(logCtx, "ingestion completed",
		slog.Int("entries", len(entries)),
		slog.Int("records", count),
		slog.Duration("elapsed", completed.Sub(started).Round(time.Millisecond)),
	)
	return domain.UpdateSummary{Count: count, Timestamp: completed}, nil
}
