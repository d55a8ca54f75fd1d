// Package builder assembles a compatible PC build from the component catalog.
//
// A build walks domain.BuildOrder once. Each component type is either taken
// from an override (by ASIN, unchecked) or chosen by a Selector that applies
// the purpose rules, the compatibility checks against the types resolved so
// far, and the value-for-money score. The first component type that cannot be
// satisfied fails the whole build; there is no backtracking.
package builder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pcbuilder/internal/domain"
	"pcbuilder/internal/metrics"
	"pcbuilder/internal/store"
)

// ErrUnsatisfiable matches any *UnsatisfiableError.
var ErrUnsatisfiable = errors.New("builder: component could not be satisfied")

// UnsatisfiableError names the component type that stopped a build.
type UnsatisfiableError struct {
	Component domain.ComponentType
	Reason    string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("builder: could not find suitable %s: %s", e.Component, e.Reason)
}

func (e *UnsatisfiableError) Is(target error) bool { return target == ErrUnsatisfiable }

// Catalog is the read-only product source used by a build.
type Catalog interface {
	CandidateSource
	GetProductByASIN(ctx context.Context, asin string) (*domain.Product, error)
}

// Request describes one build.
type Request struct {
	Budget    float64
	Purpose   string
	Overrides map[domain.ComponentType]string // component type -> ASIN
}

// Result is a complete build: exactly one product per component type.
type Result struct {
	ID         uuid.UUID                               `json:"build_id"`
	Budget     float64                                 `json:"budget"`
	Purpose    string                                  `json:"purpose"`
	Components map[domain.ComponentType]domain.Product `json:"components"`
	// TotalPrice sums the known prices. It is informational; the budget is not enforced.
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Builder runs builds against a catalog. It keeps no per-build state and may
// be shared by concurrent callers.
type Builder struct {
	catalog Catalog
	logger  zerolog.Logger
}

// New creates a Builder.
func New(catalog Catalog, logger zerolog.Logger) *Builder {
	return &Builder{catalog: catalog, logger: logger}
}

// Build resolves every component type in domain.BuildOrder.
// It returns either a full Result or an error and never a partial build.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := b.build(ctx, req)
	metrics.BuildDuration.Observe(time.Since(start).Seconds())

	var unsat *UnsatisfiableError
	switch {
	case err == nil:
		metrics.BuildsTotal.WithLabelValues("success").Inc()
	case errors.As(err, &unsat):
		metrics.BuildsTotal.WithLabelValues("unsatisfiable").Inc()
		metrics.BuildFailures.WithLabelValues(unsat.Component.String()).Inc()
	default:
		metrics.BuildsTotal.WithLabelValues("error").Inc()
	}
	return result, err
}

func (b *Builder) build(ctx context.Context, req Request) (*Result, error) {
	for ct := range req.Overrides {
		if !ct.Valid() {
			return nil, fmt.Errorf("%w: override for %q", domain.ErrInvalidComponentType, ct)
		}
	}

	id := uuid.New()
	logger := b.logger.With().Str("build_id", id.String()).Logger()
	logger.Info().Float64("budget", req.Budget).Str("purpose", req.Purpose).Int("overrides", len(req.Overrides)).Msg("build started")

	selector := NewSelector(b.catalog, req.Budget, RulesFor(req.Purpose), logger)
	selected := make(Selection, len(domain.BuildOrder))

	for _, ct := range domain.BuildOrder {
		product, err := b.resolve(ctx, selector, ct, req.Overrides, selected)
		if err != nil {
			logger.Warn().Err(err).Str("component", ct.String()).Msg("build failed")
			return nil, err
		}
		selected[ct] = *product
		logger.Debug().Str("component", ct.String()).Str("asin", product.ASIN).Msg("component resolved")
	}

	total := decimal.Zero
	for _, p := range selected {
		if p.Price != nil {
			total = total.Add(decimal.NewFromFloat(*p.Price))
		}
	}

	logger.Info().Str("total_price", total.StringFixed(2)).Msg("build completed")
	return &Result{
		ID:         id,
		Budget:     req.Budget,
		Purpose:    req.Purpose,
		Components: selected,
		TotalPrice: total,
	}, nil
}

func (b *Builder) resolve(ctx context.Context, selector *Selector, ct domain.ComponentType, overrides map[domain.ComponentType]string, selected Selection) (*domain.Product, error) {
	if asin, ok := overrides[ct]; ok {
		product, err := b.catalog.GetProductByASIN(ctx, asin)
		if err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				return nil, &UnsatisfiableError{Component: ct, Reason: fmt.Sprintf("override product %s not found", asin)}
			}
			return nil, fmt.Errorf("builder: lookup override %s for %s: %w", asin, ct, err)
		}
		return product, nil
	}

	product, err := selector.SelectBest(ctx, ct, selected)
	if err != nil {
		if errors.Is(err, ErrNoCandidate) {
			return nil, &UnsatisfiableError{Component: ct, Reason: "no compatible candidate"}
		}
		return nil, err
	}
	return product, nil
}
