// Package catalog adds products to the catalog from the pricing provider.
package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pcbuilder/internal/domain"
	"pcbuilder/internal/keepa"
	"pcbuilder/internal/store"
)

// ListingSource returns the provider's catalog data for one ASIN.
type ListingSource interface {
	Product(ctx context.Context, asin string) (*keepa.Listing, error)
}

// Importer creates catalog products from provider listings.
type Importer struct {
	source ListingSource
	store  store.CatalogWriter
	logger zerolog.Logger
}

func NewImporter(source ListingSource, st store.CatalogWriter, logger zerolog.Logger) *Importer {
	return &Importer{source: source, store: st, logger: logger}
}

// Import fetches asin from the provider, finds or creates its category and
// inserts the product. Attribute records are not created here.
func (i *Importer) Import(ctx context.Context, asin string) (*domain.Product, error) {
	listing, err := i.source.Product(ctx, asin)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetching %s: %w", asin, err)
	}

	keepaID, name := listing.Category()
	category, err := i.store.EnsureCategory(ctx, keepaID, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolving category of %s: %w", asin, err)
	}

	product := &domain.Product{
		ASIN:       listing.ASIN,
		Title:      listing.Title,
		Rating:     listing.Quote.Rating,
		CategoryID: &category.ID,
	}
	if listing.Quote.Price.Valid {
		price := listing.Quote.Price.Decimal.InexactFloat64()
		product.Price = &price
	}

	created, err := i.store.CreateProduct(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("catalog: creating %s: %w", asin, err)
	}
	i.logger.Info().
		Str("asin", created.ASIN).
		Int64("product_id", created.ID).
		Int64("category_id", category.ID).
		Int64("keepa_category", category.KeepaID).
		Msg("product imported")
	return created, nil
}
