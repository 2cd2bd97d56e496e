package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"marketmint/internal/domain"
	"marketmint/internal/repository"
	"marketmint/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxImagesPerProduct caps the pictures attached to one listing
	MaxImagesPerProduct = 5

	// maxPrice is the largest value NUMERIC(12, 2) holds
	maxPrice = 9999999999.99
)

var (
	ErrNoImages        = errors.New("at least one image is required")
	ErrTooManyImages   = fmt.Errorf("at most %d images are allowed", MaxImagesPerProduct)
	ErrInvalidImage    = errors.New("only image files are allowed")
	ErrImageTooLarge   = errors.New("image is too large")
	ErrInvalidPrice    = errors.New("price must be a non-negative number")
	ErrInvalidCategory = errors.New("unknown category")
	ErrNameRequired    = errors.New("name is required")
	ErrForbidden       = errors.New("not allowed to modify this product")
)

// ImageUpload is one file from a listing form
type ImageUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// CreateProductInput carries the raw form values of a new listing
type CreateProductInput struct {
	Name        string
	Price       string
	Description string
	Category    string
	Images      []ImageUpload
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateProductInput) (*domain.Product, error)
	List(ctx context.Context, search, category string) ([]*domain.Product, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Delete(ctx context.Context, userID, productID uuid.UUID) error
	Categories(ctx context.Context) ([]*domain.Category, error)
}

type productService struct {
	productRepo   repository.ProductRepository
	categoryRepo  repository.CategoryRepository
	storage       storage.Storage
	maxImageBytes int64
	logger        *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	store storage.Storage,
	maxImageBytes int64,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:   productRepo,
		categoryRepo:  categoryRepo,
		storage:       store,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// Create validates the listing, stores its images and persists it. Stored
// files are removed again when the database write fails.
func (s *productService) Create(ctx context.Context, userID uuid.UUID, input CreateProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	price, err := parsePrice(input.Price)
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = domain.DefaultCategory
	}
	if _, err := s.categoryRepo.FindByName(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrInvalidCategory
		}
		return nil, fmt.Errorf("failed to check category: %w", err)
	}

	extensions, err := s.checkImages(input.Images)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(input.Images))
	for i, image := range input.Images {
		url, err := s.storage.Save(ctx, image.Content, extensions[i])
		if err != nil {
			s.removeFiles(urls)
			return nil, fmt.Errorf("failed to store image %q: %w", image.Filename, err)
		}
		urls = append(urls, url)
	}

	product := &domain.Product{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Price:       price,
		Description: strings.TrimSpace(input.Description),
		Category:    category,
		CreatedAt:   time.Now().UTC(),
		Images:      make([]domain.ProductImage, 0, len(urls)),
	}
	for _, url := range urls {
		product.Images = append(product.Images, domain.ProductImage{ID: uuid.New(), ImageURL: url})
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		s.removeFiles(urls)
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrInvalidCategory
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// List returns products matching search and category, newest first
func (s *productService) List(ctx context.Context, search, category string) ([]*domain.Product, error) {
	products, err := s.productRepo.List(ctx, repository.ProductFilter{
		Search:   search,
		Category: strings.TrimSpace(category),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ListByOwner returns the user's own products, newest first
func (s *productService) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error) {
	products, err := s.productRepo.List(ctx, repository.ProductFilter{UserID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list user products: %w", err)
	}
	return products, nil
}

// Get retrieves one product with its images and seller contact
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, repository.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// Delete removes a product owned by userID, then its stored images
func (s *productService) Delete(ctx context.Context, userID, productID uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return repository.ErrProductNotFound
		}
		return fmt.Errorf("failed to find product: %w", err)
	}

	if product.UserID != userID {
		return ErrForbidden
	}

	if err := s.productRepo.Delete(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return repository.ErrProductNotFound
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	urls := make([]string, 0, len(product.Images))
	for _, image := range product.Images {
		urls = append(urls, image.ImageURL)
	}
	s.removeFiles(urls)

	return nil
}

// Categories lists the categories a product can be filed under
func (s *productService) Categories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// checkImages validates every upload before any is stored and returns the
// file extension for each.
func (s *productService) checkImages(images []ImageUpload) ([]string, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if len(images) > MaxImagesPerProduct {
		return nil, ErrTooManyImages
	}

	extensions := make([]string, 0, len(images))
	for _, image := range images {
		if s.maxImageBytes > 0 && image.Size > s.maxImageBytes {
			return nil, fmt.Errorf("%w: %q exceeds %d bytes", ErrImageTooLarge, image.Filename, s.maxImageBytes)
		}

		mime, err := storage.DetectImage(image.Content)
		if err != nil {
			if errors.Is(err, storage.ErrNotImage) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidImage, image.Filename)
			}
			return nil, fmt.Errorf("failed to read image %q: %w", image.Filename, err)
		}
		extensions = append(extensions, mime.Extension())
	}

	return extensions, nil
}

// removeFiles deletes stored uploads. Failures are logged, not returned.
func (s *productService) removeFiles(urls []string) {
	// Not bound to the request context
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, url := range urls {
		if err := s.storage.Delete(ctx, url); err != nil {
			s.logger.Warn("failed to remove stored image",
				zap.String("url", url),
				zap.Error(err),
			)
		}
	}
}

// parsePrice accepts a finite, non-negative decimal and rounds it to cents
func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, ErrInvalidPrice
	}

	price = math.Round(price*100) / 100
	if price > maxPrice {
		return 0, ErrInvalidPrice
	}

	return price, nil
}
