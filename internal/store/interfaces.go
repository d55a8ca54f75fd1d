package store

import (
	"context"

	"github.com/shopspring/decimal"

	"pcbuilder/internal/domain"
)

// ListCategoriesParams holds pagination parameters for listing categories.
type ListCategoriesParams struct {
	Limit  int
	Offset int
}

// CategoryStorer defines the read operations for categories.
type CategoryStorer interface {
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error) // categories and total count
}

// ListProductsParams holds parameters for listing products (pagination, filtering, sorting).
type ListProductsParams struct {
	Limit         int
	Offset        int
	SearchQuery   *string // matched against the title
	CategoryID    *int64
	ComponentType *domain.ComponentType // only products owning this attribute record
	MinPrice      *float64
	MaxPrice      *float64
	SortBy        string // "title", "price", "rating", "created_at"
	SortOrder     string // "asc" or "desc"
}

// ProductStorer defines the catalog operations on products.
type ProductStorer interface {
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	GetProductByASIN(ctx context.Context, asin string) (*domain.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error) // products and total count
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	RandomPerCategory(ctx context.Context) ([]domain.Product, error)
}

// CatalogWriter adds products and their categories to the catalog.
type CatalogWriter interface {
	// EnsureCategory returns the category with the given Keepa id, creating it with name if absent.
	EnsureCategory(ctx context.Context, keepaID int64, name string) (*domain.Category, error)
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
}

// PriceUpdate carries refreshed offer data for one ASIN. Invalid/nil values clear the column.
type PriceUpdate struct {
	ASIN   string
	Price  decimal.NullDecimal
	Rating *float64
}

// PriceStorer is used by the price refresh job.
type PriceStorer interface {
	ListASINs(ctx context.Context) ([]string, error)
	ApplyPriceUpdates(ctx context.Context, updates []PriceUpdate) (int, error) // rows updated
}
