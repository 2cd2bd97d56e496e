package transport

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"marketmint/internal/domain"
	"marketmint/internal/middleware"
	"marketmint/internal/repository"
	"marketmint/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

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

func (m *mockUserRepository) remove(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, email)
}

// fakeProductService records calls and returns canned results
type fakeProductService struct {
	created   *service.CreateProductInput
	imageData [][]byte
	createErr error

	listSearch   string
	listCategory string
	products     map[uuid.UUID]*domain.Product
	deleteErr    error
	deletedBy    uuid.UUID
}

func newFakeProductService() *fakeProductService {
	return &fakeProductService{products: make(map[uuid.UUID]*domain.Product)}
}

func (f *fakeProductService) Create(ctx context.Context, userID uuid.UUID, input service.CreateProductInput) (*domain.Product, error) {
	f.created = &input
	for _, image := range input.Images {
		data, _ := io.ReadAll(image.Content)
		f.imageData = append(f.imageData, data)
	}
	if f.createErr != nil {
		return nil, f.createErr
	}

	product := &domain.Product{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      input.Name,
		Price:     12.5,
		Category:  input.Category,
		CreatedAt: time.Now().UTC(),
		Images:    []domain.ProductImage{},
	}
	for i := range input.Images {
		product.Images = append(product.Images, domain.ProductImage{
			ID:        uuid.New(),
			ProductID: product.ID,
			ImageURL:  "/uploads/" + uuid.NewString() + ".png",
			Position:  i,
		})
	}
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeProductService) List(ctx context.Context, search, category string) ([]*domain.Product, error) {
	f.listSearch, f.listCategory = search, category
	products := []*domain.Product{}
	for _, p := range f.products {
		products = append(products, p)
	}
	return products, nil
}

func (f *fakeProductService) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for _, p := range f.products {
		if p.UserID == userID {
			products = append(products, p)
		}
	}
	return products, nil
}

func (f *fakeProductService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeProductService) Delete(ctx context.Context, userID, productID uuid.UUID) error {
	f.deletedBy = userID
	if f.deleteErr != nil {
		return f.deleteErr
	}
	product, ok := f.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if product.UserID != userID {
		return service.ErrForbidden
	}
	delete(f.products, productID)
	return nil
}

func (f *fakeProductService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return []*domain.Category{{Name: "Electronics"}, {Name: "Fashion"}, {Name: "Other"}}, nil
}

// fakeFavoriteService keeps favorites in memory and knows a fixed product set
type fakeFavoriteService struct {
	mu        sync.Mutex
	known     map[uuid.UUID]bool
	favorites map[uuid.UUID]map[uuid.UUID]bool
	err       error
}

func newFakeFavoriteService(known ...uuid.UUID) *fakeFavoriteService {
	f := &fakeFavoriteService{known: make(map[uuid.UUID]bool), favorites: make(map[uuid.UUID]map[uuid.UUID]bool)}
	for _, id := range known {
		f.known[id] = true
	}
	return f
}

func (f *fakeFavoriteService) Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if !f.known[productID] {
		return false, repository.ErrProductNotFound
	}
	if f.favorites[userID] == nil {
		f.favorites[userID] = make(map[uuid.UUID]bool)
	}
	if f.favorites[userID][productID] {
		delete(f.favorites[userID], productID)
		return false, nil
	}
	f.favorites[userID][productID] = true
	return true, nil
}

func (f *fakeFavoriteService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products := []*domain.Product{}
	for id := range f.favorites[userID] {
		products = append(products, &domain.Product{ID: id, Images: []domain.ProductImage{}})
	}
	return products, nil
}

type testAPI struct {
	router    http.Handler
	logs      *observer.ObservedLogs
	users     service.UserService
	userRepo  *mockUserRepository
	products  *fakeProductService
	favorites *fakeFavoriteService
}

// newTestAPI mounts every handler under /api the way the server does
func newTestAPI(t *testing.T, secureCookies bool) *testAPI {
	t.Helper()
	userRepo := newMockUserRepository()
	api := &testAPI{
		users:     service.NewUserService(userRepo, testSecret, 7*24*time.Hour),
		userRepo:  userRepo,
		products:  newFakeProductService(),
		favorites: newFakeFavoriteService(),
	}

	core, logs := observer.New(zap.InfoLevel)
	api.logs = logs
	logger := zap.New(core)
	auth := middleware.AuthMiddleware(api.users, logger)
	noLimit := func(next http.Handler) http.Handler { return next }

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		NewUserHandler(api.users, secureCookies, logger).RegisterRoutes(r, auth, noLimit)
		NewProductHandler(api.products, 1<<20, logger).RegisterRoutes(r, auth)
		NewFavoriteHandler(api.favorites, logger).RegisterRoutes(r, auth)
	})
	api.router = router

	return api
}

// session registers a user and returns the user with a valid session cookie
func (a *testAPI) session(t *testing.T, email string) (*domain.User, *http.Cookie) {
	t.Helper()
	ctx := context.Background()
	if _, err := a.users.Register(ctx, service.RegisterInput{Name: "Ada", Phone: "555-0100", Email: email, Password: "secret1"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	token, user, err := a.users.Login(ctx, email, "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return user, &http.Cookie{Name: middleware.SessionCookieName, Value: token}
}
