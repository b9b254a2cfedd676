package threatintel

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"threatcache/internal/errs"
	"threatcache/internal/ports"
)

// DefaultStaleness is how old lastUpdate may get before CheckForUpdate refreshes.
const DefaultStaleness = 24 * time.Hour

var errSourceRequired = errors.New("feed source is not configured")

type Service struct {
	hashes    ports.HashStore
	meta      ports.MetadataStore
	uow       ports.UnitOfWork
	source    ports.FeedSource
	parser    ports.FeedParser
	clock     ports.Clock
	staleness time.Duration

	// Concurrent updates and staleness checks collapse into one in-flight call.
	flight singleflight.Group
}

type Options struct {
	Source    ports.FeedSource
	Parser    ports.FeedParser
	Clock     ports.Clock
	Staleness time.Duration
}

// NewService wires the lookup and ingestion usecases. Source may be nil when
// no feed is configured; lookups still work and updates fail.
func NewService(hashes ports.HashStore, meta ports.MetadataStore, uow ports.UnitOfWork, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	staleness := opts.Staleness
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Service{
		hashes:    hashes,
		meta:      meta,
		uow:       uow,
		source:    opts.Source,
		parser:    opts.Parser,
		clock:     clock,
		staleness: staleness,
	}
}

// Init creates the collections if absent. Every other method also does this
// lazily, so calling Init is optional.
func (s *Service) Init(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.hashes == nil {
		return errors.New("hash store is required")
	}
	return s.hashes.Initialize(ctx)
}

// shared joins the in-flight call for key or starts one. The run ignores
// cancellation of the ctx that started it; each caller returns as soon as its
// own ctx is done.
func (s *Service) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	runCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		return fn(runCtx)
	})

	select {
	case <-ctx.Done():
		return nil, errs.Wrap(ctx.Err(), "wait for "+key)
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *Service) Staleness() time.Duration {
	return s.staleness
}
