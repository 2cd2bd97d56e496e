package repository

import (
	"context"
	"testing"
	"time"

	"marketmint/internal/domain"

	"github.com/google/uuid"
)

func newTestUser(t *testing.T) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           uuid.New(),
		Name:         "Seller " + uuid.NewString()[:8],
		Phone:        "+15550100",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuabcdefghijklmnopqrstuvwxyz01234",
		CreatedAt:    time.Now().UTC(),
	}
	if err := NewUserRepository(testDB).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func newTestProduct(t *testing.T, owner *domain.User, name, description, category string, images ...string) *domain.Product {
	t.Helper()

	product := &domain.Product{
		ID:          uuid.New(),
		UserID:      owner.ID,
		Name:        name,
		Price:       12.5,
		Description: description,
		Category:    category,
		CreatedAt:   time.Now().UTC(),
	}
	for _, url := range images {
		product.Images = append(product.Images, domain.ProductImage{ID: uuid.New(), ImageURL: url})
	}
	if err := NewProductRepository(testDB).Create(context.Background(), product); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return product
}

func productIDs(products []*domain.Product) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool, len(products))
	for _, p := range products {
		ids[p.ID] = true
	}
	return ids
}
