package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"marketmint/internal/domain"
	"marketmint/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing
type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockCategoryRepository struct{}

var seededCategories = []string{"Electronics", "Fashion", "Home", "Beauty", "Sports", "Other"}

func (mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	categories := make([]*domain.Category, 0, len(seededCategories))
	for i, name := range seededCategories {
		categories = append(categories, &domain.Category{ID: uuid.New(), Name: name, SortOrder: i + 1})
	}
	return categories, nil
}

func (mockCategoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	for i, candidate := range seededCategories {
		if candidate == name {
			return &domain.Category{ID: uuid.New(), Name: name, SortOrder: i + 1}, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

type mockProductRepository struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*domain.Product
	createErr error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for i := range product.Images {
		product.Images[i].ProductID = product.ID
		product.Images[i].Position = i
	}
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	found := *product
	return &found, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := []*domain.Product{}
	for _, product := range m.products {
		if filter.UserID != nil && product.UserID != *filter.UserID {
			continue
		}
		if filter.Category != "" && filter.Category != domain.AllCategories && product.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(product.Name), search) &&
			!strings.Contains(strings.ToLower(product.Description), search) {
			continue
		}
		found := *product
		products = append(products, &found)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

type favoriteKey struct {
	user    uuid.UUID
	product uuid.UUID
}

type mockFavoriteRepository struct {
	mu        sync.Mutex
	favorites map[favoriteKey]bool
	products  *mockProductRepository
}

func newMockFavoriteRepository(products *mockProductRepository) *mockFavoriteRepository {
	return &mockFavoriteRepository{favorites: make(map[favoriteKey]bool), products: products}
}

func (m *mockFavoriteRepository) Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	if _, err := m.products.FindByID(ctx, productID); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := favoriteKey{user: userID, product: productID}
	if m.favorites[key] {
		delete(m.favorites, key)
		return false, nil
	}
	m.favorites[key] = true
	return true, nil
}

func (m *mockFavoriteRepository) ListProducts(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error) {
	m.mu.Lock()
	keys := make([]favoriteKey, 0, len(m.favorites))
	for key := range m.favorites {
		if key.user == userID {
			keys = append(keys, key)
		}
	}
	m.mu.Unlock()

	products := []*domain.Product{}
	for _, key := range keys {
		product, err := m.products.FindByID(ctx, key.product)
		if err != nil {
			continue
		}
		products = append(products, product)
	}
	return products, nil
}

// memoryStorage records saved objects by URL
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	saves   int
	failAt  int
	deletes []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte), failAt: -1}
}

func (m *memoryStorage) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saves == m.failAt {
		return "", errors.New("disk full")
	}
	m.saves++
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	url := fmt.Sprintf("/uploads/%s%s", uuid.NewString(), ext)
	m.objects[url] = buf.Bytes()
	return url, nil
}

func (m *memoryStorage) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, url)
	delete(m.objects, url)
	return nil
}

func (m *memoryStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
