package transport

import (
	"errors"
	"net/http"
	"strconv"

	"shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxImageUploadBytes caps multipart product uploads.
const maxImageUploadBytes = 10 << 20

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalogService service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, staffMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		// Public catalog
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		// Staff catalog management
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(staffMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(staffMiddleware)
		r.Get("/api/admin/products", h.ListAll)
	})
}

// List returns active products with pagination, sorting and search
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	if query := r.URL.Query().Get("q"); query != "" {
		products, total, err := h.catalogService.SearchProducts(r.Context(), query, page, pageSize)
		if err != nil {
			h.logger.Error("Product search failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to search products")
			return
		}
		middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"products": products,
			"total":    total,
		})
		return
	}

	sortBy := r.URL.Query().Get("sort_by")
	sortOrder := repository.SortOrder(r.URL.Query().Get("sort_order"))

	products, total, err := h.catalogService.ListProducts(r.Context(), true, page, pageSize, sortBy, sortOrder)
	if err != nil {
		h.logger.Error("Product listing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    total,
	})
}

// ListAll returns all products including inactive ones, for staff
func (h *ProductHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	products, total, err := h.catalogService.ListProducts(r.Context(), false, page, pageSize, "created_at", repository.SortOrderDesc)
	if err != nil {
		h.logger.Error("Admin product listing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    total,
	})
}

// Get returns a single product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}

		h.logger.Error("Failed to get product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"product": product})
}

// Create adds a new product from a multipart form with an image
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	description := r.FormValue("description")
	category := r.FormValue("category")
	if name == "" || description == "" || category == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil || price.IsNegative() {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
		return
	}

	quantity, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil || quantity < 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid quantity")
		return
	}

	params := service.CreateProductParams{
		Name:        name,
		Description: description,
		Price:       price,
		Quantity:    quantity,
		Category:    category,
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "product image is required")
		return
	}
	defer file.Close()
	params.Image = &service.ImageUpload{Filename: header.Filename, Reader: file}

	product, err := h.catalogService.CreateProduct(r.Context(), params)
	if err != nil {
		h.logger.Error("Product creation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{"product": product})
}

// Update applies partial field changes, optionally replacing the image
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	params := service.UpdateProductParams{}

	if v, present := formValue(r, "name"); present {
		params.Name = &v
	}
	if v, present := formValue(r, "description"); present {
		params.Description = &v
	}
	if v, present := formValue(r, "category"); present {
		params.Category = &v
	}
	if v, present := formValue(r, "price"); present {
		price, err := decimal.NewFromString(v)
		if err != nil || price.IsNegative() {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
			return
		}
		params.Price = &price
	}
	if v, present := formValue(r, "quantity"); present {
		quantity, err := strconv.Atoi(v)
		if err != nil || quantity < 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid quantity")
			return
		}
		params.Quantity = &quantity
	}
	if v, present := formValue(r, "is_active"); present {
		active, err := strconv.ParseBool(v)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid is_active")
			return
		}
		params.IsActive = &active
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		params.Image = &service.ImageUpload{Filename: header.Filename, Reader: file}
	}

	product, err := h.catalogService.UpdateProduct(r.Context(), id, params)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}

		h.logger.Error("Product update failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"product": product})
}

// Delete removes a product, or deactivates it when order history exists.
// The response body tells the two outcomes apart.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	outcome, err := h.catalogService.DeleteProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}

		h.logger.Error("Product delete failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	message := "Product deleted successfully"
	if outcome == service.DeleteOutcomeDeactivated {
		message = "Product has order history and was deactivated instead of deleted"
	}

	h.logger.Info("Product removed",
		zap.String("product_id", id.String()),
		zap.String("outcome", string(outcome)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"outcome": string(outcome),
		"message": message,
	})
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// formValue reports both the value and whether the field was supplied, so
// updates can distinguish "clear" from "leave unchanged".
func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	values, present := r.MultipartForm.Value[key]
	if !present || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
