package threatintel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"threatcache/internal/bootstrap/logging"
	domain "threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
)

// CheckForUpdate refreshes the dataset when lastUpdate is missing or older
// than the staleness window. Otherwise it reports the stored timestamp
// without touching the network.
func (s *Service) CheckForUpdate(ctx context.Context) (domain.UpdateResult, error) {
	if ctx == nil {
		return domain.UpdateResult{}, errors.New("context is required")
	}
	v, err := s.shared(ctx, "check", func(ctx context.Context) (any, error) {
		return s.checkForUpdate(ctx)
	})
	if err != nil {
		return domain.UpdateResult{}, err
	}
	return v.(domain.UpdateResult), nil
}

func (s *Service) checkForUpdate(ctx context.Context) (domain.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.UpdateResult{}, errs.Wrap(err, "check context")
	}

	last, found, err := s.LastUpdate(ctx)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	if found && s.clock.Now().Sub(last) <= s.staleness {
		logging.Debug(logging.WithComponent(ctx, "usecase.threatintel"), "dataset is fresh",
			slog.Time("last_update", last))
		return domain.UpdateResult{Updated: false, LastUpdate: last}, nil
	}

	summary, err := s.UpdateDatabase(ctx)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	return domain.UpdateResult{Updated: true, Summary: &summary, LastUpdate: summary.Timestamp}, nil
}

// LastUpdate reads the completion time of the last successful ingestion.
// An unreadable value counts as absent so the next check refreshes.
func (s *Service) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	if s.meta == nil {
		return time.Time{}, false, errors.New("metadata store is required")
	}
	if err := s.Init(ctx); err != nil {
		return time.Time{}, false, err
	}

	raw, found, err := s.meta.Get(ctx, domain.MetaLastUpdate)
	if err != nil || !found {
		return time.Time{}, false, err
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		logging.Warn(logging.WithComponent(ctx, "usecase.threatintel"), "ignoring unreadable lastUpdate",
			slog.String("value", string(raw)), slog.Any("err", errs.Loggable(err)))
		return time.Time{}, false, nil
	}
	return domain.FromEpochMillis(ms), true, nil
}
