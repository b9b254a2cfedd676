package threatintel

import (
	"context"
	"fmt"
	"log/slog"

	"threatcache/internal/bootstrap/logging"
	domain "threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
)

// CheckURLSecurity never fails: storage errors and panics degrade to the
// unknown verdict with Error set.
func (s *Service) CheckURLSecurity(ctx context.Context, rawURL string) (verdict domain.Verdict) {
	if ctx == nil {
		ctx = context.Background()
	}
	logCtx := logging.WithComponent(ctx, "usecase.threatintel")

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("lookup panic: %v", r)
			logging.Error(logCtx, "url check failed", slog.Any("err", errs.Loggable(err)))
			verdict = domain.UnknownWithError(err)
		}
	}()

	v, err := s.lookup(ctx, rawURL)
	if err != nil {
		logging.Warn(logCtx, "url check degraded to unknown", slog.Any("err", errs.Loggable(err)))
		return domain.UnknownWithError(err)
	}
	return v
}

type candidate struct {
	collection domain.Collection
	key        string
}

func (s *Service) lookup(ctx context.Context, rawURL string) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, errs.Wrap(err, "check context")
	}
	if s.hashes == nil {
		return domain.Verdict{}, errs.Ef(errs.KindStorage, "lookup", "hash store is not configured")
	}

	n := domain.NormalizeURL(rawURL)
	candidates := []candidate{
		{domain.DomainHashes, domain.Digest(n.Domain)},
		{domain.URLHashes, domain.Digest(n.FullURL)},
		{domain.URLHashes, domain.Digest(n.OriginalURL)},
	}
	for _, p := range candidates {
		rec, found, err := s.hashes.Get(ctx, p.collection, p.key)
		if err != nil {
			return domain.Verdict{}, err
		}
		if found {
			return domain.Malicious(rec, p.collection), nil
		}
	}

	if domain.IsTrustedGateway(n) {
		return domain.Trusted(), nil
	}
	return domain.Unknown(), nil
}
