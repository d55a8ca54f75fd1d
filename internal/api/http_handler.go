package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"pcbuilder/internal/builder"
	"pcbuilder/internal/domain"
	"pcbuilder/internal/keepa"
	"pcbuilder/internal/store"
)

// BuildRunner runs one component build. *builder.Builder implements it.
type BuildRunner interface {
	Build(ctx context.Context, req builder.Request) (*builder.Result, error)
}

// ProductImporter adds a product to the catalog from the pricing provider.
// *catalog.Importer implements it.
type ProductImporter interface {
	Import(ctx context.Context, asin string) (*domain.Product, error)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	builds        BuildRunner
	categoryStore store.CategoryStorer
	productStore  store.ProductStorer
	importer      ProductImporter
	validate      *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(b BuildRunner, cs store.CategoryStorer, ps store.ProductStorer, imp ProductImporter) *HTTPHandler {
	return &HTTPHandler{
		builds:        b,
		categoryStore: cs,
		productStore:  ps,
		importer:      imp,
		validate:      validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Component string `json:"component,omitempty"` // set when a build could not be satisfied
}

// PaginationInfo describes one page of a list response.
type PaginationInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

func newPaginationInfo(page, limit, totalCount int) PaginationInfo {
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	return PaginationInfo{Page: page, Limit: limit, TotalItems: totalCount, TotalPages: totalPages}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil { // Avoid writing empty body for 204 No Content
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// pageParams reads page and limit with the defaults 1 and 10; limit is capped at 100.
func pageParams(r *http.Request) (page, limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	page, err = strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}
	return page, limit, (page - 1) * limit
}

// --- Build Handlers ---

// BuildInput defines the expected input for a build request.
type BuildInput struct {
	Budget    float64           `json:"budget" validate:"gt=0"`
	Purpose   string            `json:"purpose" validate:"max=64"`
	Overrides map[string]string `json:"overrides" validate:"omitempty,dive,keys,required,endkeys,required,max=16"`
}

// toRequest converts the payload into a builder request, rejecting unknown component types.
func (in BuildInput) toRequest() (builder.Request, error) {
	req := builder.Request{Budget: in.Budget, Purpose: in.Purpose}
	if len(in.Overrides) > 0 {
		req.Overrides = make(map[domain.ComponentType]string, len(in.Overrides))
		for key, asin := range in.Overrides {
			ct, err := domain.ParseComponentType(key)
			if err != nil {
				return builder.Request{}, err
			}
			req.Overrides[ct] = asin
		}
	}
	return req, nil
}

func (h *HTTPHandler) CreateBuild(w http.ResponseWriter, r *http.Request) {
	var input BuildInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	req, err := input.toRequest()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.builds.Build(r.Context(), req)
	if err != nil {
		var unsat *builder.UnsatisfiableError
		switch {
		case errors.As(err, &unsat):
			log.Info().Str("component", unsat.Component.String()).Float64("budget", req.Budget).Msg("build unsatisfiable")
			respondWithJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Component: unsat.Component.String()})
		case errors.Is(err, domain.ErrInvalidComponentType):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("CreateBuild failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to create build")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// --- Category Handlers ---

// CategoryListResponse is one page of categories.
type CategoryListResponse struct {
	Data       []domain.Category `json:"data"`
	Pagination PaginationInfo    `json:"pagination"`
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)

	params := store.ListCategoriesParams{
		Limit:  limit,
		Offset: offset,
	}

	categories, totalCount, err := h.categoryStore.ListCategories(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("ListCategories store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve categories")
		return
	}

	respondWithJSON(w, http.StatusOK, CategoryListResponse{
		Data:       categories,
		Pagination: newPaginationInfo(page, limit, totalCount),
	})
}

func (h *HTTPHandler) GetCategoryByID(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "categoryId")
	categoryID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || categoryID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid category ID format")
		return
	}

	category, err := h.categoryStore.GetCategoryByID(r.Context(), categoryID)
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			respondWithError(w, http.StatusNotFound, store.ErrCategoryNotFound.Error())
		} else {
			log.Error().Err(err).Int64("category_id", categoryID).Msg("GetCategoryByID store operation failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to retrieve category")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, category)
}

// --- Product Handlers ---

// ProductListResponse is one page of products.
type ProductListResponse struct {
	Data       []domain.Product `json:"data"`
	Pagination PaginationInfo   `json:"pagination"`
}

var allowedProductSortFields = map[string]bool{"title": true, "price": true, "rating": true, "created_at": true, "": true} // "" for default

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()
	page, limit, offset := pageParams(r)

	params := store.ListProductsParams{Limit: limit, Offset: offset}

	if q := qParams.Get("q"); q != "" {
		params.SearchQuery = &q
	}
	if idStr := qParams.Get("category_id"); idStr != "" {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil && id > 0 {
			params.CategoryID = &id
		} else {
			respondWithError(w, http.StatusBadRequest, "Invalid category_id format")
			return
		}
	}
	if ctStr := qParams.Get("component_type"); ctStr != "" {
		ct, err := domain.ParseComponentType(ctStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.ComponentType = &ct
	}
	if priceStr := qParams.Get("min_price"); priceStr != "" {
		if price, err := strconv.ParseFloat(priceStr, 64); err == nil && price >= 0 {
			params.MinPrice = &price
		} else {
			respondWithError(w, http.StatusBadRequest, "Invalid min_price format")
			return
		}
	}
	if priceStr := qParams.Get("max_price"); priceStr != "" {
		if price, err := strconv.ParseFloat(priceStr, 64); err == nil && price >= 0 {
			params.MaxPrice = &price
		} else {
			respondWithError(w, http.StatusBadRequest, "Invalid max_price format")
			return
		}
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		respondWithError(w, http.StatusBadRequest, "min_price cannot exceed max_price")
		return
	}

	params.SortBy = qParams.Get("sort_by")
	params.SortOrder = qParams.Get("sort_order")
	if !allowedProductSortFields[params.SortBy] {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid sort_by field. Allowed: %v", getMapKeys(allowedProductSortFields)))
		return
	}
	if params.SortOrder != "" && strings.ToLower(params.SortOrder) != "asc" && strings.ToLower(params.SortOrder) != "desc" {
		respondWithError(w, http.StatusBadRequest, "Invalid sort_order value. Allowed: asc, desc")
		return
	}

	products, totalCount, err := h.productStore.ListProducts(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("ListProducts store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve products")
		return
	}

	respondWithJSON(w, http.StatusOK, ProductListResponse{
		Data:       products,
		Pagination: newPaginationInfo(page, limit, totalCount),
	})
}

// Helper to get keys from a map for error messages
func getMapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" { // Don't list empty string default in error message
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "productId")
	productID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || productID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	product, err := h.productStore.GetProductByID(r.Context(), productID)
	if err != nil {
		h.respondProductLookupError(w, err, "Failed to retrieve product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) GetProductByASIN(w http.ResponseWriter, r *http.Request) {
	asin := strings.TrimSpace(chi.URLParam(r, "asin"))
	if err := h.validate.Var(asin, "required,alphanum,max=12"); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid ASIN format")
		return
	}

	product, err := h.productStore.GetProductByASIN(r.Context(), asin)
	if err != nil {
		h.respondProductLookupError(w, err, "Failed to retrieve product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

// ImportProduct fetches an ASIN from Keepa and adds it to the catalog.
func (h *HTTPHandler) ImportProduct(w http.ResponseWriter, r *http.Request) {
	asin := strings.TrimSpace(chi.URLParam(r, "asin"))
	if err := h.validate.Var(asin, "required,alphanum,max=12"); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid ASIN format")
		return
	}

	product, err := h.importer.Import(r.Context(), asin)
	if err != nil {
		switch {
		case errors.Is(err, keepa.ErrProductNotFound):
			respondWithError(w, http.StatusNotFound, fmt.Sprintf("ASIN %s not found on Keepa", asin))
		case errors.Is(err, store.ErrProductASINExists):
			respondWithError(w, http.StatusConflict, store.ErrProductASINExists.Error())
		case errors.Is(err, keepa.ErrNoAPIKey):
			respondWithError(w, http.StatusServiceUnavailable, "Product import is not configured")
		default:
			log.Error().Err(err).Str("asin", asin).Msg("ImportProduct failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to import product")
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, product)
}

func (h *HTTPHandler) respondProductLookupError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, store.ErrProductNotFound) {
		respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
		return
	}
	log.Error().Err(err).Msg(message)
	respondWithError(w, http.StatusInternalServerError, message)
}

// ProductUpdateInput defines the expected input for updating a product.
// Attribute records are not editable through the API.
type ProductUpdateInput struct {
	Title      string   `json:"title" validate:"required,max=512"`
	Price      *float64 `json:"price" validate:"omitempty,gte=0"`
	Rating     *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	CategoryID *int64   `json:"category_id" validate:"omitempty,gt=0"`
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "productId")
	productID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || productID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	var input ProductUpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	productToUpdate := &domain.Product{
		ID:         productID,
		Title:      input.Title,
		Price:      input.Price,
		Rating:     input.Rating,
		CategoryID: input.CategoryID,
	}

	updatedProduct, err := h.productStore.UpdateProduct(r.Context(), productToUpdate)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrProductNotFound):
			respondWithError(w, http.StatusNotFound, store.ErrProductNotFound.Error())
		case errors.Is(err, store.ErrCategoryInvalid):
			respondWithError(w, http.StatusBadRequest, "Invalid category_id: category does not exist.")
		default:
			log.Error().Err(err).Int64("product_id", productID).Msg("UpdateProduct store operation failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to update product")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, updatedProduct)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "productId")
	productID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || productID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	if err := h.productStore.DeleteProduct(r.Context(), productID); err != nil {
		h.respondProductLookupError(w, err, "Failed to delete product")
		return
	}

	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) RandomPerCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.productStore.RandomPerCategory(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("RandomPerCategory store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	if len(products) == 0 {
		respondWithError(w, http.StatusNotFound, "No products found")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/builds", h.CreateBuild)

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{categoryId}", h.GetCategoryByID)
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/random-per-category", h.RandomPerCategory)
		r.Get("/asin/{asin}", h.GetProductByASIN)

		r.Post("/{asin}", h.ImportProduct)
		r.Get("/{productId}", h.GetProductByID)
		r.Put("/{productId}", h.UpdateProduct)
		r.Delete("/{productId}", h.DeleteProduct)
	})
}
