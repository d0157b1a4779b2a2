package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"shopfront/internal/domain"
	"shopfront/internal/media"
	"shopfront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mockMediaStore struct {
	saved    map[string]string
	released []string
	saveErr  error
}

func newMockMediaStore() *mockMediaStore {
	return &mockMediaStore{saved: make(map[string]string)}
}

func (m *mockMediaStore) Save(ctx context.Context, filename string, r io.Reader) (media.Asset, error) {
	if m.saveErr != nil {
		return media.Asset{}, m.saveErr
	}
	id := uuid.New().String()
	m.saved[id] = filename
	return media.Asset{ID: id, URL: "/media/" + id}, nil
}

func (m *mockMediaStore) Release(ctx context.Context, id string) error {
	delete(m.saved, id)
	m.released = append(m.released, id)
	return nil
}

type catalogFixture struct {
	service     CatalogService
	productRepo *mockProductRepository
	orderRepo   *mockOrderRepository
	mediaStore  *mockMediaStore
}

func newCatalogFixture() *catalogFixture {
	accountRepo := newMockAccountRepository()
	productRepo := newMockProductRepository()
	orderRepo := newMockOrderRepository(productRepo, accountRepo)
	mediaStore := newMockMediaStore()
	return &catalogFixture{
		service:     NewCatalogService(productRepo, orderRepo, mediaStore, zap.NewNop()),
		productRepo: productRepo,
		orderRepo:   orderRepo,
		mediaStore:  mediaStore,
	}
}

func (f *catalogFixture) createProduct(t *testing.T) *domain.Product {
	t.Helper()
	product, err := f.service.CreateProduct(context.Background(), CreateProductParams{
		Name:        "Ceramic Mug",
		Description: "A mug",
		Price:       decimal.NewFromInt(15),
		Quantity:    5,
		Category:    "kitchen",
		Image:       &ImageUpload{Filename: "mug.png", Reader: strings.NewReader("png")},
	})
	if err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return product
}

func TestDeleteProductWithoutHistoryRemovesRecordAndImage(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	product := f.createProduct(t)

	outcome, err := f.service.DeleteProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if outcome != DeleteOutcomeDeleted {
		t.Fatalf("outcome = %s, want %s", outcome, DeleteOutcomeDeleted)
	}

	if _, err := f.service.GetProduct(ctx, product.ID); !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("deleted product should be gone, got: %v", err)
	}
	if len(f.mediaStore.released) != 1 || f.mediaStore.released[0] != product.ImagePublicID {
		t.Fatalf("image %s should have been released, released: %v",
			product.ImagePublicID, f.mediaStore.released)
	}
}

func TestDeleteProductWithHistoryDeactivatesInstead(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	product := f.createProduct(t)

	// A historical line item pins the record
	orderID := uuid.New()
	f.orderRepo.orders[orderID] = &domain.Order{
		ID:     orderID,
		Status: domain.OrderStatusApproved,
	}
	f.orderRepo.items[orderID] = []*domain.OrderItem{
		{ID: uuid.New(), OrderID: orderID, ProductID: product.ID, Quantity: 1},
	}

	outcome, err := f.service.DeleteProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if outcome != DeleteOutcomeDeactivated {
		t.Fatalf("outcome = %s, want %s", outcome, DeleteOutcomeDeactivated)
	}

	kept, err := f.service.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("deactivated product should remain readable: %v", err)
	}
	if kept.IsActive {
		t.Fatal("product should be inactive after a soft delete")
	}
	if len(f.mediaStore.released) != 0 {
		t.Fatalf("soft delete must keep the image, released: %v", f.mediaStore.released)
	}

	// Customer-facing listings must no longer include it
	products, _, err := f.service.ListProducts(ctx, true, 1, 20, "", repository.SortOrderAsc)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, p := range products {
		if p.ID == product.ID {
			t.Fatal("deactivated product still appears in the active listing")
		}
	}
}

func TestUpdateProductReplacesImageAfterStoringNewOne(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	product := f.createProduct(t)
	oldImageID := product.ImagePublicID

	updated, err := f.service.UpdateProduct(ctx, product.ID, UpdateProductParams{
		Image: &ImageUpload{Filename: "mug-v2.png", Reader: strings.NewReader("png2")},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.ImagePublicID == oldImageID {
		t.Fatal("image id should change after replacement")
	}
	if len(f.mediaStore.released) != 1 || f.mediaStore.released[0] != oldImageID {
		t.Fatalf("old image should be released exactly once, released: %v", f.mediaStore.released)
	}
	if _, stored := f.mediaStore.saved[updated.ImagePublicID]; !stored {
		t.Fatal("new image should be stored")
	}
}

func TestUpdateProductKeepsImageWhenUploadFails(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	product := f.createProduct(t)
	f.mediaStore.saveErr = errors.New("disk full")

	_, err := f.service.UpdateProduct(ctx, product.ID, UpdateProductParams{
		Image: &ImageUpload{Filename: "mug-v2.png", Reader: strings.NewReader("png2")},
	})
	if err == nil {
		t.Fatal("update should fail when the replacement upload fails")
	}

	kept, err := f.service.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if kept.ImagePublicID != product.ImagePublicID {
		t.Fatal("failed upload must not change the stored image")
	}
	if len(f.mediaStore.released) != 0 {
		t.Fatalf("failed upload must not release the old image, released: %v", f.mediaStore.released)
	}
}

func TestUpdateProductAppliesPartialChanges(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	product := f.createProduct(t)

	newPrice := decimal.NewFromInt(20)
	updated, err := f.service.UpdateProduct(ctx, product.ID, UpdateProductParams{
		Price: &newPrice,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if !updated.Price.Equal(newPrice) {
		t.Fatalf("price = %s, want %s", updated.Price, newPrice)
	}
	if updated.Name != product.Name || updated.Quantity != product.Quantity {
		t.Fatal("fields not named in the update must keep their values")
	}
}
