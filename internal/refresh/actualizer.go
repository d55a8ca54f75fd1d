// Package refresh rewrites catalog prices and ratings from the pricing provider.
package refresh

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pcbuilder/internal/keepa"
	"pcbuilder/internal/metrics"
	"pcbuilder/internal/store"
)

// PriceSource returns current quotes for a batch of ASINs.
type PriceSource interface {
	Lookup(ctx context.Context, asins []string) (map[string]keepa.Quote, error)
}

// Summary describes one refresh run.
type Summary struct {
	ASINs   int  `json:"asins"`
	Batches int  `json:"batches"` // batches written
	Updated int  `json:"updated"`
	Skipped int  `json:"skipped"` // ASINs the source returned no quote for
	Stopped bool `json:"stopped"` // source failed before the last batch
}

// Actualizer refreshes price and rating for every product in the catalog.
type Actualizer struct {
	source    PriceSource
	store     store.PriceStorer
	batchSize int
	logger    zerolog.Logger
}

func NewActualizer(source PriceSource, st store.PriceStorer, batchSize int, logger zerolog.Logger) *Actualizer {
	if batchSize <= 0 || batchSize > keepa.MaxASINsPerRequest {
		batchSize = keepa.MaxASINsPerRequest
	}
	return &Actualizer{source: source, store: st, batchSize: batchSize, logger: logger}
}

// Run processes the catalog batch by batch. A source failure stops the run and
// keeps the batches already written; a store failure is returned.
func (a *Actualizer) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	asins, err := a.store.ListASINs(ctx)
	if err != nil {
		return summary, fmt.Errorf("refresh: listing ASINs: %w", err)
	}
	summary.ASINs = len(asins)

	for start := 0; start < len(asins); start += a.batchSize {
		end := min(start+a.batchSize, len(asins))
		batch := asins[start:end]

		quotes, err := a.source.Lookup(ctx, batch)
		if err != nil {
			a.logger.Warn().Err(err).Int("offset", start).Int("size", len(batch)).Msg("price source failed, stopping refresh")
			summary.Stopped = true
			break
		}

		updates := make([]store.PriceUpdate, 0, len(quotes))
		for _, asin := range batch {
			quote, ok := quotes[asin]
			if !ok {
				summary.Skipped++
				continue
			}
			updates = append(updates, store.PriceUpdate{ASIN: asin, Price: quote.Price, Rating: quote.Rating})
		}

		n, err := a.store.ApplyPriceUpdates(ctx, updates)
		if err != nil {
			return summary, fmt.Errorf("refresh: writing batch at offset %d: %w", start, err)
		}
		summary.Batches++
		summary.Updated += n
		metrics.RefreshUpdated.Add(float64(n))
		a.logger.Debug().Int("offset", start).Int("updated", n).Msg("refresh batch written")
	}

	a.logger.Info().
		Int("asins", summary.ASINs).
		Int("batches", summary.Batches).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Bool("stopped", summary.Stopped).
		Msg("price refresh finished")
	return summary, nil
}
