package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"pcbuilder/internal/domain"
)

// Predefined errors for store operations
var (
	ErrCategoryNotFound  = errors.New("store: category not found")
	ErrProductNotFound   = errors.New("store: product not found")
	ErrCategoryInvalid   = errors.New("store: referenced category does not exist")
	ErrProductASINExists = errors.New("store: product with this ASIN already exists")
)

// PostgresStore implements the catalog interfaces using PostgreSQL.
// Attribute records live in pcbuilder.component_attributes as one JSONB document
// per (product, component type).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	getCategoryByIDQuery = `
		SELECT id, keepa_id, name, created_at, updated_at
		FROM pcbuilder.categories
		WHERE id = $1;
	`
	ensureCategoryQuery = `
		INSERT INTO pcbuilder.categories (keepa_id, name)
		VALUES ($1, $2)
		ON CONFLICT (keepa_id) DO UPDATE SET keepa_id = EXCLUDED.keepa_id
		RETURNING id, keepa_id, name, created_at, updated_at;
	`
	countCategoriesQuery = `SELECT COUNT(*) FROM pcbuilder.categories;`
	listCategoriesQuery  = `
		SELECT id, keepa_id, name, created_at, updated_at
		FROM pcbuilder.categories
		ORDER BY name ASC
		LIMIT $1 OFFSET $2;
	`

	productColumns = `p.id, p.asin, p.title, p.price, p.rating, p.category_id, p.created_at, p.updated_at`

	fetchCandidatesQuery = `
		SELECT ` + productColumns + `, a.attributes
		FROM pcbuilder.products p
		JOIN pcbuilder.component_attributes a ON a.product_id = p.id
		WHERE a.component_type = $1
		ORDER BY p.id ASC;
	`
	getProductByASINQuery = `
		SELECT ` + productColumns + `
		FROM pcbuilder.products p
		WHERE p.asin = $1;
	`
	getProductByIDQuery = `
		SELECT ` + productColumns + `
		FROM pcbuilder.products p
		WHERE p.id = $1;
	`
	productAttributesQuery = `
		SELECT product_id, component_type, attributes
		FROM pcbuilder.component_attributes
		WHERE product_id = ANY($1)
		ORDER BY product_id, component_type;
	`
	createProductQuery = `
		INSERT INTO pcbuilder.products AS p (asin, title, price, rating, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + productColumns + `;
	`
	updateProductQuery = `
		UPDATE pcbuilder.products p
		SET title = $1, price = $2, rating = $3, category_id = $4, updated_at = CURRENT_TIMESTAMP
		WHERE p.id = $5
		RETURNING ` + productColumns + `;
	`
	deleteProductQuery     = `DELETE FROM pcbuilder.products WHERE id = $1;`
	randomPerCategoryQuery = `
		SELECT id, asin, title, price, rating, category_id, created_at, updated_at
		FROM (
			SELECT ` + productColumns + `,
				ROW_NUMBER() OVER (PARTITION BY p.category_id ORDER BY RANDOM()) AS rn
			FROM pcbuilder.products p
			WHERE p.category_id IS NOT NULL
		) ranked
		WHERE rn = 1
		ORDER BY category_id;
	`
	listASINsQuery       = `SELECT asin FROM pcbuilder.products ORDER BY id ASC;`
	updatePriceByASINSQL = `
		UPDATE pcbuilder.products
		SET price = $1, rating = $2, updated_at = CURRENT_TIMESTAMP
		WHERE asin = $3;
	`
)

// --- CategoryStorer Implementation ---

func (s *PostgresStore) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	var category domain.Category
	err := s.db.QueryRowContext(ctx, getCategoryByIDQuery, id).Scan(
		&category.ID,
		&category.KeepaID,
		&category.Name,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: GetCategoryByID failed to scan row: %w", err)
	}
	return &category, nil
}

// EnsureCategory finds the category by its Keepa id or creates it. An existing
// category keeps its name.
func (s *PostgresStore) EnsureCategory(ctx context.Context, keepaID int64, name string) (*domain.Category, error) {
	var category domain.Category
	err := s.db.QueryRowContext(ctx, ensureCategoryQuery, keepaID, name).Scan(
		&category.ID,
		&category.KeepaID,
		&category.Name,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: EnsureCategory failed for keepa id %d: %w", keepaID, err)
	}
	return &category, nil
}

// ListCategories retrieves a page of categories ordered by name.
func (s *PostgresStore) ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error) {
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countCategoriesQuery).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to count categories: %w", err)
	}
	if totalCount == 0 {
		return []domain.Category{}, 0, nil
	}

	rows, err := s.db.QueryContext(ctx, listCategoriesQuery, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, params.Limit)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.KeepaID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, totalCount, nil
}

// --- Catalog (build engine) ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, p *domain.Product, extra ...any) error {
	dest := []any{
		&p.ID, &p.ASIN, &p.Title, &p.Price, &p.Rating, &p.CategoryID,
		&p.CreatedAt, &p.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// FetchCandidates returns every product owning the attribute record of ct,
// ordered by product id. The build engine relies on this order for ties.
func (s *PostgresStore) FetchCandidates(ctx context.Context, ct domain.ComponentType) ([]domain.Product, error) {
	if !ct.Valid() {
		return nil, fmt.Errorf("store: FetchCandidates: %w: %q", domain.ErrInvalidComponentType, ct)
	}
	rows, err := s.db.QueryContext(ctx, fetchCandidatesQuery, string(ct))
	if err != nil {
		return nil, fmt.Errorf("store: FetchCandidates failed to query %s: %w", ct, err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var attrs []byte
		if err := scanProduct(rows, &p, &attrs); err != nil {
			return nil, fmt.Errorf("store: FetchCandidates failed to scan %s row: %w", ct, err)
		}
		if err := p.SetAttributes(ct, attrs); err != nil {
			log.Warn().Err(err).Int64("product_id", p.ID).Str("asin", p.ASIN).Msg("skipping candidate with malformed attributes")
			continue
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: FetchCandidates iteration error: %w", err)
	}
	return products, nil
}

// --- ProductStorer Implementation ---

func (s *PostgresStore) GetProductByASIN(ctx context.Context, asin string) (*domain.Product, error) {
	return s.getProduct(ctx, getProductByASINQuery, asin)
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	return s.getProduct(ctx, getProductByIDQuery, id)
}

func (s *PostgresStore) getProduct(ctx context.Context, query string, key any) (*domain.Product, error) {
	var product domain.Product
	if err := scanProduct(s.db.QueryRowContext(ctx, query, key), &product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: get product %v failed to scan row: %w", key, err)
	}
	products := []domain.Product{product}
	if err := s.loadAttributes(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// loadAttributes attaches every attribute record owned by the given products.
func (s *PostgresStore) loadAttributes(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, len(products))
	byID := make(map[int64]*domain.Product, len(products))
	for i := range products {
		ids[i] = products[i].ID
		byID[products[i].ID] = &products[i]
	}

	rows, err := s.db.QueryContext(ctx, productAttributesQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("store: failed to query product attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID int64
			ct        string
			attrs     []byte
		)
		if err := rows.Scan(&productID, &ct, &attrs); err != nil {
			return fmt.Errorf("store: failed to scan product attributes: %w", err)
		}
		p, ok := byID[productID]
		if !ok {
			continue
		}
		if err := p.SetAttributes(domain.ComponentType(ct), attrs); err != nil {
			// Records of unknown types are skipped so one bad row does not hide the product.
			log.Warn().Err(err).Int64("product_id", productID).Str("component_type", ct).Msg("skipping attribute record")
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("store: product attributes iteration error: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error) {
	var queryArgs []any
	var whereClauses []string
	argID := 1

	if params.SearchQuery != nil && *params.SearchQuery != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("p.title ILIKE $%d", argID))
		queryArgs = append(queryArgs, "%"+*params.SearchQuery+"%")
		argID++
	}
	if params.CategoryID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("p.category_id = $%d", argID))
		queryArgs = append(queryArgs, *params.CategoryID)
		argID++
	}
	if params.ComponentType != nil {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM pcbuilder.component_attributes a WHERE a.product_id = p.id AND a.component_type = $%d)", argID))
		queryArgs = append(queryArgs, string(*params.ComponentType))
		argID++
	}
	if params.MinPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("p.price >= $%d", argID))
		queryArgs = append(queryArgs, *params.MinPrice)
		argID++
	}
	if params.MaxPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("p.price <= $%d", argID))
		queryArgs = append(queryArgs, *params.MaxPrice)
		argID++
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM pcbuilder.products p" + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to count products: %w", err)
	}
	if totalCount == 0 {
		return []domain.Product{}, 0, nil
	}

	sortColumn := "p.id"
	allowedSortColumns := map[string]string{
		"title":      "p.title",
		"price":      "p.price",
		"rating":     "p.rating",
		"created_at": "p.created_at",
	}
	if col, ok := allowedSortColumns[strings.ToLower(params.SortBy)]; ok {
		sortColumn = col
	}
	sortOrder := "ASC"
	if strings.ToUpper(params.SortOrder) == "DESC" {
		sortOrder = "DESC"
	}

	dataQuery := fmt.Sprintf("SELECT %s FROM pcbuilder.products p%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		productColumns, whereCondition, sortColumn, sortOrder, argID, argID+1)
	finalQueryArgs := append(queryArgs, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, dataQuery, finalQueryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, params.Limit)
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	rows.Close()

	if err := s.loadAttributes(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, totalCount, nil
}

// CreateProduct inserts a product without attribute records.
func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	var created domain.Product
	row := s.db.QueryRowContext(ctx, createProductQuery,
		product.ASIN, product.Title, product.Price, product.Rating, product.CategoryID,
	)
	if err := scanProduct(row, &created); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505": // unique_violation on asin
				return nil, ErrProductASINExists
			case "23503": // foreign_key_violation on category_id
				return nil, ErrCategoryInvalid
			}
		}
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return &created, nil
}

// UpdateProduct rewrites the catalog-level fields of a product. Attribute
// records are owned by the ingestion side and are not touched.
func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	var updated domain.Product
	row := s.db.QueryRowContext(ctx, updateProductQuery,
		product.Title, product.Price, product.Rating, product.CategoryID, product.ID,
	)
	if err := scanProduct(row, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation on category_id
			return nil, ErrCategoryInvalid
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to scan row: %w", err)
	}
	products := []domain.Product{updated}
	if err := s.loadAttributes(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, deleteProductQuery, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// RandomPerCategory picks one random product from each category.
func (s *PostgresStore) RandomPerCategory(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, randomPerCategoryQuery)
	if err != nil {
		return nil, fmt.Errorf("store: RandomPerCategory failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("store: RandomPerCategory failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: RandomPerCategory iteration error: %w", err)
	}
	return products, nil
}

// --- PriceStorer Implementation ---

func (s *PostgresStore) ListASINs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listASINsQuery)
	if err != nil {
		return nil, fmt.Errorf("store: ListASINs failed to query: %w", err)
	}
	defer rows.Close()

	var asins []string
	for rows.Next() {
		var asin string
		if err := rows.Scan(&asin); err != nil {
			return nil, fmt.Errorf("store: ListASINs failed to scan row: %w", err)
		}
		asins = append(asins, asin)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListASINs iteration error: %w", err)
	}
	return asins, nil
}

// ApplyPriceUpdates writes one refresh batch in a single transaction.
func (s *PostgresStore) ApplyPriceUpdates(ctx context.Context, updates []PriceUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: ApplyPriceUpdates failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	updated := 0
	for _, u := range updates {
		result, err := tx.ExecContext(ctx, updatePriceByASINSQL, u.Price, u.Rating, u.ASIN)
		if err != nil {
			return 0, fmt.Errorf("store: ApplyPriceUpdates failed to update %s: %w", u.ASIN, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("store: ApplyPriceUpdates failed to get rows affected: %w", err)
		}
		updated += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: ApplyPriceUpdates failed to commit: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		log.Info().Msg("Closing database connection pool...")
		if err := s.db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database connection pool")
			return err
		}
		log.Info().Msg("Database connection pool closed successfully.")
	}
	return nil
}
