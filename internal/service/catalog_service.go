package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/media"
	"shopfront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DeleteOutcome distinguishes the two results of a product delete so the
// boundary layer can render different confirmation text.
type DeleteOutcome string

const (
	// DeleteOutcomeDeleted means the record was removed entirely.
	DeleteOutcomeDeleted DeleteOutcome = "deleted"
	// DeleteOutcomeDeactivated means order history references the product,
	// so it was soft-deleted (active flag cleared) instead.
	DeleteOutcomeDeactivated DeleteOutcome = "deactivated"
)

// ImageUpload carries a product photo from the transport layer.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

// CreateProductParams holds the fields for a new catalog entry.
type CreateProductParams struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Category    string
	Image       *ImageUpload
}

// UpdateProductParams holds partial field changes; nil fields keep their
// prior values.
type UpdateProductParams struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Category    *string
	IsActive    *bool
	Image       *ImageUpload
}

// CatalogService governs the product lifecycle, including the soft- vs
// hard-delete decision based on order history.
type CatalogService interface {
	CreateProduct(ctx context.Context, params CreateProductParams) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, params UpdateProductParams) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (DeleteOutcome, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, activeOnly bool, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error)
	SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	mediaStore  media.Store
	logger      *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	mediaStore media.Store,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		orderRepo:   orderRepo,
		mediaStore:  mediaStore,
		logger:      logger,
	}
}

// CreateProduct stores the image first, then inserts the record, so a
// catalog entry never exists without its photo.
func (s *catalogService) CreateProduct(ctx context.Context, params CreateProductParams) (*domain.Product, error) {
	now := time.Now()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
		Price:       params.Price,
		Quantity:    params.Quantity,
		Category:    params.Category,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if params.Image != nil {
		asset, err := s.mediaStore.Save(ctx, params.Image.Filename, params.Image.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to store product image: %w", err)
		}
		product.ImageURL = asset.URL
		product.ImagePublicID = asset.ID
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// UpdateProduct applies the supplied field changes. When a replacement
// image is provided, the new image is stored durably before the old one is
// released, so an upload failure cannot leave the record without a photo.
func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, params UpdateProductParams) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	if params.Name != nil {
		product.Name = *params.Name
	}
	if params.Description != nil {
		product.Description = *params.Description
	}
	if params.Price != nil {
		product.Price = *params.Price
	}
	if params.Quantity != nil {
		product.Quantity = *params.Quantity
	}
	if params.Category != nil {
		product.Category = *params.Category
	}
	if params.IsActive != nil {
		product.IsActive = *params.IsActive
	}

	oldImageID := ""
	if params.Image != nil {
		asset, err := s.mediaStore.Save(ctx, params.Image.Filename, params.Image.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to store replacement image: %w", err)
		}
		oldImageID = product.ImagePublicID
		product.ImageURL = asset.URL
		product.ImagePublicID = asset.ID
	}

	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	// The old image is released only after the record points at the new one.
	if oldImageID != "" {
		if err := s.mediaStore.Release(ctx, oldImageID); err != nil {
			s.logger.Warn("Failed to release replaced product image",
				zap.String("product_id", id.String()),
				zap.String("image_id", oldImageID),
				zap.Error(err),
			)
		}
	}

	return product, nil
}

// DeleteProduct removes a product with no order history entirely, or
// deactivates one that historical line items reference. Image release on
// the hard-delete path is best-effort and never fails the operation.
func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) (DeleteOutcome, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to find product: %w", err)
	}

	referenced, err := s.orderRepo.AnyLineItemReferencesProduct(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to check order history: %w", err)
	}

	if referenced {
		if err := s.productRepo.SetActive(ctx, id, false); err != nil {
			return "", fmt.Errorf("failed to deactivate product: %w", err)
		}
		return DeleteOutcomeDeactivated, nil
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return "", fmt.Errorf("failed to delete product: %w", err)
	}

	if product.ImagePublicID != "" {
		if err := s.mediaStore.Release(ctx, product.ImagePublicID); err != nil {
			s.logger.Warn("Failed to release deleted product image",
				zap.String("product_id", id.String()),
				zap.String("image_id", product.ImagePublicID),
				zap.Error(err),
			)
		}
	}

	return DeleteOutcomeDeleted, nil
}

// GetProduct retrieves a single product by ID
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// ListProducts lists catalog entries with pagination and sorting
func (s *catalogService) ListProducts(ctx context.Context, activeOnly bool, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return s.productRepo.List(ctx, activeOnly, page, pageSize, sortBy, sortOrder)
}

// SearchProducts searches active products by name or description
func (s *catalogService) SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return s.productRepo.Search(ctx, query, page, pageSize)
}
