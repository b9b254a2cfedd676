package threatintel

import (
	"context"
	"errors"

	domain "threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
)

// ProcessEntries derives a record for every usable string in entries and
// upserts it into the collection chosen by the entry's match code. It does
// not clear anything first. The returned count is the number of records
// written, duplicates included.
func (s *Service) ProcessEntries(ctx context.Context, entries []domain.FeedEntry) (int, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(err, "check context")
	}
	if s.uow == nil {
		return 0, errors.New("unit of work is required")
	}
	if err := s.Init(ctx); err != nil {
		return 0, err
	}

	batches := map[domain.Collection][]domain.HashRecord{}
	count := 0
	for _, entry := range entries {
		c := domain.CollectionForMatch(entry.Match)
		for _, value := range entry.Hashes {
			key, ok := domain.IngestKey(entry.Match, value)
			if !ok {
				continue
			}
			batches[c] = append(batches[c], domain.HashRecord{Hash: key, Type: entry.Type, Level: entry.Level})
			count++
		}
	}

	// One transaction per collection; nothing spans both.
	for _, c := range []domain.Collection{domain.DomainHashes, domain.URLHashes} {
		recs := batches[c]
		if len(recs) == 0 {
			continue
		}
		if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
			return s.hashes.PutMany(txCtx, c, recs)
		}); err != nil {
			return 0, err
		}
	}
	return count, nil
}
