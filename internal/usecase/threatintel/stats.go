package threatintel

import (
	"context"
	"errors"
	"strconv"

	domain "threatcache/internal/domain/threatintel"
	"threatcache/internal/errs"
	"threatcache/internal/ports"
)

// Stats reports record counts per collection and per type and level across
// both hash collections.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	if ctx == nil {
		return domain.Stats{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return domain.Stats{}, errs.Wrap(err, "check context")
	}

	out := domain.Stats{
		ByType:  map[string]int{},
		ByLevel: map[string]int{},
	}

	var err error
	if out.DomainHashes, err = s.hashes.Count(ctx, domain.DomainHashes); err != nil {
		return domain.Stats{}, err
	}
	if out.URLHashes, err = s.hashes.Count(ctx, domain.URLHashes); err != nil {
		return domain.Stats{}, err
	}

	for _, c := range []domain.Collection{domain.DomainHashes, domain.URLHashes} {
		if err := s.addFacet(ctx, c, ports.FacetType, out.ByType); err != nil {
			return domain.Stats{}, err
		}
		if err := s.addFacet(ctx, c, ports.FacetLevel, out.ByLevel); err != nil {
			return domain.Stats{}, err
		}
	}

	last, found, err := s.LastUpdate(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	if found {
		out.LastUpdate = &last
	}
	return out, nil
}

func (s *Service) addFacet(ctx context.Context, c domain.Collection, f ports.Facet, into map[string]int) error {
	counts, err := s.hashes.CountBy(ctx, c, f)
	if err != nil {
		return err
	}
	for k, v := range counts {
		into[strconv.Itoa(k)] += v
	}
	return nil
}
