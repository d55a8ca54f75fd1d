package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcbuilder/internal/domain"
)

var productRowColumns = []string{"id", "asin", "title", "price", "rating", "category_id", "created_at", "updated_at"}

const (
	cpuAttrsJSON = `{"brand":"AMD","model":"Ryzen 7 2700X","cores":8,"threads":16,"socket_type":"AM4","base_speed":3.7,"turbo_speed":4.3,"memory_type":"DDR4","memory_speed":2933}`
	gpuAttrsJSON = `{"brand":"MSI","model":"RTX 3060","memory":12,"length":242,"clock_speed":1777}`
)

func TestPostgresStore_FetchCandidates(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	columns := append(append([]string{}, productRowColumns...), "attributes")
	rows := sqlmock.NewRows(columns).
		AddRow(int64(1), "B07B428M7F", "AMD Ryzen 7 2700X", 159.99, 4.8, int64(1), now, now, []byte(cpuAttrsJSON)).
		AddRow(int64(4), "B07JGCSMJX", "AMD Ryzen 5 2600", nil, nil, nil, now, now, []byte(`{"cores":6,"threads":12,"socket_type":"AM4"}`))
	mock.ExpectQuery(regexp.QuoteMeta(fetchCandidatesQuery)).WithArgs("cpu").WillReturnRows(rows)

	products, err := store.FetchCandidates(context.Background(), domain.ComponentCPU)

	require.NoError(t, err)
	require.Len(t, products, 2)

	first := products[0]
	assert.Equal(t, "B07B428M7F", first.ASIN)
	assert.Equal(t, PtrTo(159.99), first.Price)
	assert.Equal(t, PtrTo(int64(1)), first.CategoryID)
	require.NotNil(t, first.CPU)
	assert.Equal(t, 8, first.CPU.Cores)
	assert.Equal(t, "AM4", first.CPU.SocketType)
	assert.Equal(t, PtrTo(4.3), first.CPU.TurboSpeed)
	assert.Nil(t, first.GPU)

	second := products[1]
	assert.Nil(t, second.Price)
	assert.Nil(t, second.Rating)
	require.NotNil(t, second.CPU)
	assert.Nil(t, second.CPU.TurboSpeed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchCandidates_Errors(t *testing.T) {
	t.Run("invalid component type", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		_, err := store.FetchCandidates(context.Background(), domain.ComponentType("fan"))
		assert.ErrorIs(t, err, domain.ErrInvalidComponentType)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		dbErr := errors.New("connection reset by peer")
		mock.ExpectQuery(regexp.QuoteMeta(fetchCandidatesQuery)).WithArgs("gpu").WillReturnError(dbErr)

		_, err := store.FetchCandidates(context.Background(), domain.ComponentGPU)
		assert.ErrorIs(t, err, dbErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_FetchCandidates_SkipsMalformedAttributes(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	columns := append(append([]string{}, productRowColumns...), "attributes")
	mock.ExpectQuery(regexp.QuoteMeta(fetchCandidatesQuery)).WithArgs("gpu").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(2), "B0BSGM4ZR7", "RTX 4070", 599.99, 4.6, nil, now, now, []byte(`{"memory":"twelve"}`)).
			AddRow(int64(3), "B08WPRMVWB", "RTX 3060", 329.99, 4.7, nil, now, now, []byte(gpuAttrsJSON)))

	products, err := store.FetchCandidates(context.Background(), domain.ComponentGPU)

	require.NoError(t, err)
	require.Len(t, products, 1, "the malformed record drops only its own candidate")
	assert.Equal(t, "B08WPRMVWB", products[0].ASIN)
	require.NotNil(t, products[0].GPU)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByASIN_Found(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(getProductByASINQuery)).WithArgs("B07B428M7F").
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(7), "B07B428M7F", "AMD Ryzen 7 2700X", 159.99, 4.8, int64(1), now, now))
	mock.ExpectQuery(regexp.QuoteMeta(productAttributesQuery)).WithArgs(pq.Array([]int64{7})).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "component_type", "attributes"}).
			AddRow(int64(7), "cpu", []byte(cpuAttrsJSON)).
			AddRow(int64(7), "monitor", []byte(`{}`)))

	product, err := store.GetProductByASIN(context.Background(), "B07B428M7F")

	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, int64(7), product.ID)
	require.NotNil(t, product.CPU)
	assert.Equal(t, "Ryzen 7 2700X", product.CPU.Model)
	assert.Equal(t, []domain.ComponentType{domain.ComponentCPU}, product.ComponentTypes(), "unknown record types are skipped")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByASIN_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(getProductByASINQuery)).WithArgs("B000000000").WillReturnError(sql.ErrNoRows)

	product, err := store.GetProductByASIN(context.Background(), "B000000000")

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, product)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByID(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(getProductByIDQuery)).WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(12), "B08WPRMVWB", "MSI RTX 3060", 329.99, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(productAttributesQuery)).WithArgs(pq.Array([]int64{12})).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "component_type", "attributes"}).
			AddRow(int64(12), "gpu", []byte(gpuAttrsJSON)))

	product, err := store.GetProductByID(context.Background(), 12)

	require.NoError(t, err)
	require.NotNil(t, product.GPU)
	assert.Equal(t, PtrTo(242), product.GPU.Length)
	assert.Nil(t, product.Rating)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_WithFilters(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	ct := domain.ComponentCPU
	params := ListProductsParams{
		Limit:         2,
		Offset:        0,
		SearchQuery:   PtrTo("ryzen"),
		ComponentType: &ct,
		MinPrice:      PtrTo(100.0),
		SortBy:        "price",
		SortOrder:     "desc",
	}

	where := " WHERE p.title ILIKE $1" +
		" AND EXISTS (SELECT 1 FROM pcbuilder.component_attributes a WHERE a.product_id = p.id AND a.component_type = $2)" +
		" AND p.price >= $3"
	countQuery := "SELECT COUNT(*) FROM pcbuilder.products p" + where
	dataQuery := "SELECT " + productColumns + " FROM pcbuilder.products p" + where + " ORDER BY p.price DESC LIMIT $4 OFFSET $5"
	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WithArgs("%ryzen%", "cpu", 100.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(dataQuery)).
		WithArgs("%ryzen%", "cpu", 100.0, 2, 0).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(9), "B0815XFSGK", "AMD Ryzen 9 3900X", 299.99, 4.8, int64(1), now, now).
			AddRow(int64(7), "B07B428M7F", "AMD Ryzen 7 2700X", 159.99, 4.8, int64(1), now, now))
	mock.ExpectQuery(regexp.QuoteMeta(productAttributesQuery)).WithArgs(pq.Array([]int64{9, 7})).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "component_type", "attributes"}).
			AddRow(int64(7), "cpu", []byte(cpuAttrsJSON)).
			AddRow(int64(9), "cpu", []byte(`{"cores":12,"threads":24,"socket_type":"AM4"}`)))

	products, total, err := store.ListProducts(context.Background(), params)

	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, products, 2)
	assert.Equal(t, "B0815XFSGK", products[0].ASIN)
	require.NotNil(t, products[0].CPU)
	assert.Equal(t, 12, products[0].CPU.Cores)
	require.NotNil(t, products[1].CPU)
	assert.Equal(t, 8, products[1].CPU.Cores)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_DefaultSortAndEmpty(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pcbuilder.products p WHERE p.category_id = $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	products, total, err := store.ListProducts(context.Background(), ListProductsParams{
		Limit: 10, CategoryID: PtrTo(int64(4)), SortBy: "id; DROP TABLE products",
	})

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	input := &domain.Product{ID: 7, Title: "AMD Ryzen 7 2700X (boxed)", Price: PtrTo(149.99), Rating: PtrTo(4.8), CategoryID: PtrTo(int64(1))}

	mock.ExpectQuery(regexp.QuoteMeta(updateProductQuery)).
		WithArgs(input.Title, input.Price, input.Rating, input.CategoryID, input.ID).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(7), "B07B428M7F", input.Title, 149.99, 4.8, int64(1), now, now))
	mock.ExpectQuery(regexp.QuoteMeta(productAttributesQuery)).WithArgs(pq.Array([]int64{7})).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "component_type", "attributes"}).
			AddRow(int64(7), "cpu", []byte(cpuAttrsJSON)))

	updated, err := store.UpdateProduct(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "B07B428M7F", updated.ASIN)
	assert.Equal(t, input.Title, updated.Title)
	assert.Equal(t, PtrTo(149.99), updated.Price)
	assert.NotNil(t, updated.CPU)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_Errors(t *testing.T) {
	input := &domain.Product{ID: 7, Title: "x", CategoryID: PtrTo(int64(404))}

	tests := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{"not found", sql.ErrNoRows, ErrProductNotFound},
		{"unknown category", &pq.Error{Code: "23503", Constraint: "products_category_id_fkey"}, ErrCategoryInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, store := newMockDBAndStore(t)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta(updateProductQuery)).
				WithArgs(input.Title, input.Price, input.Rating, input.CategoryID, input.ID).
				WillReturnError(tt.dbErr)

			updated, err := store.UpdateProduct(context.Background(), input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, updated)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_DeleteProduct(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(deleteProductQuery)).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.DeleteProduct(context.Background(), 7))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(deleteProductQuery)).WithArgs(int64(8)).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, store.DeleteProduct(context.Background(), 8), ErrProductNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_RandomPerCategory(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(randomPerCategoryQuery)).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(7), "B07B428M7F", "AMD Ryzen 7 2700X", 159.99, 4.8, int64(1), now, now).
			AddRow(int64(12), "B08WPRMVWB", "MSI RTX 3060", 329.99, 4.7, int64(2), now, now))

	products, err := store.RandomPerCategory(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, PtrTo(int64(1)), products[0].CategoryID)
	assert.Equal(t, PtrTo(int64(2)), products[1].CategoryID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	input := &domain.Product{ASIN: "B08WPRMVWB", Title: "MSI RTX 3060", Price: PtrTo(329.99), Rating: PtrTo(4.7), CategoryID: PtrTo(int64(2))}

	mock.ExpectQuery(regexp.QuoteMeta(createProductQuery)).
		WithArgs(input.ASIN, input.Title, input.Price, input.Rating, input.CategoryID).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow(int64(31), "B08WPRMVWB", "MSI RTX 3060", 329.99, 4.7, int64(2), now, now))

	created, err := store.CreateProduct(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, int64(31), created.ID)
	assert.Equal(t, "B08WPRMVWB", created.ASIN)
	assert.Equal(t, PtrTo(329.99), created.Price)
	assert.Equal(t, PtrTo(int64(2)), created.CategoryID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProduct_Errors(t *testing.T) {
	input := &domain.Product{ASIN: "B08WPRMVWB", Title: "MSI RTX 3060", CategoryID: PtrTo(int64(404))}

	tests := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{"duplicate asin", &pq.Error{Code: "23505", Constraint: "products_asin_key"}, ErrProductASINExists},
		{"unknown category", &pq.Error{Code: "23503", Constraint: "products_category_id_fkey"}, ErrCategoryInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, store := newMockDBAndStore(t)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta(createProductQuery)).
				WithArgs(input.ASIN, input.Title, input.Price, input.Rating, input.CategoryID).
				WillReturnError(tt.dbErr)

			created, err := store.CreateProduct(context.Background(), input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, created)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("other failure", func(t *testing.T) {
		db, mock, store := newMockDBAndStore(t)
		defer db.Close()

		dbErr := errors.New("connection reset by peer")
		mock.ExpectQuery(regexp.QuoteMeta(createProductQuery)).WillReturnError(dbErr)

		_, err := store.CreateProduct(context.Background(), input)
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, ErrProductASINExists)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
