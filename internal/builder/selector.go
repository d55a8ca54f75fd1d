package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"pcbuilder/internal/domain"
	"pcbuilder/internal/metrics"
)

// ErrNoCandidate is returned when no product survives selection for a component type.
var ErrNoCandidate = errors.New("builder: no suitable candidate")

// CandidateSource lists every product owning the attribute record of a component type.
// The returned order is the tie-break order for equal scores.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, ct domain.ComponentType) ([]domain.Product, error)
}

// Selector picks the best product for one component type at a time.
type Selector struct {
	source CandidateSource
	budget float64
	rules  []Rule
	logger zerolog.Logger
}

// NewSelector creates a Selector bound to one budget and rule set.
func NewSelector(source CandidateSource, budget float64, rules []Rule, logger zerolog.Logger) *Selector {
	return &Selector{source: source, budget: budget, rules: rules, logger: logger}
}

// SelectBest runs fetch, rules, compatibility and scoring for ct and returns the
// top-ranked product, or ErrNoCandidate.
func (s *Selector) SelectBest(ctx context.Context, ct domain.ComponentType, selected Selection) (*domain.Product, error) {
	if !ct.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidComponentType, ct)
	}

	candidates, err := s.source.FetchCandidates(ctx, ct)
	if err != nil {
		return nil, fmt.Errorf("builder: fetch %s candidates: %w", ct, err)
	}
	s.observe(ct, "fetched", len(candidates))

	candidates = applyRules(s.rules, candidates, ct)
	s.observe(ct, "rules", len(candidates))

	compatible := make([]domain.Product, 0, len(candidates))
	for i := range candidates {
		verdict := Check(&candidates[i], ct, selected, s.budget)
		if verdict == Compatible {
			compatible = append(compatible, candidates[i])
			continue
		}
		if verdict == Indeterminate {
			s.logger.Debug().Str("component", ct.String()).Str("asin", candidates[i].ASIN).Msg("compatibility indeterminate, candidate dropped")
		}
	}
	s.observe(ct, "compatible", len(compatible))

	if len(compatible) == 0 {
		return nil, ErrNoCandidate
	}
	best := rank(compatible, ct)[0]
	s.logger.Debug().
		Str("component", ct.String()).
		Str("asin", best.product.ASIN).
		Float64("score", best.score).
		Int("candidates", len(compatible)).
		Msg("component selected")
	return &best.product, nil
}

func (s *Selector) observe(ct domain.ComponentType, stage string, n int) {
	metrics.SelectorCandidates.WithLabelValues(ct.String(), stage).Observe(float64(n))
}
