package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"marketmint/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductFilter narrows List. Zero values mean "no filter".
type ProductFilter struct {
	// Search matches name or description, case-insensitively.
	Search   string
	Category string
	UserID   *uuid.UUID
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts the product and its images in one transaction. Image
// positions follow the order of product.Images.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO products (id, user_id, name, price, description, category, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		product.ID,
		product.UserID,
		product.Name,
		product.Price,
		product.Description,
		product.Category,
		product.CreatedAt,
	)
	if err != nil {
		if constraint, ok := foreignKeyViolation(err); ok {
			if constraint == "fk_products_category" {
				return ErrCategoryNotFound
			}
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	for i := range product.Images {
		image := &product.Images[i]
		image.ProductID = product.ID
		image.Position = i

		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO product_images (id, product_id, image_url, position)
			 VALUES ($1, $2, $3, $4)`,
			image.ID,
			image.ProductID,
			image.ImageURL,
			image.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to create product image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product: %w", err)
	}

	return nil
}

// Delete removes a product; images and favorites go with it by cascade.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product with its images and the owner's contact fields
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT p.id, p.user_id, p.name, p.price, p.description, p.category, p.created_at,
		       u.name, u.phone, u.email
		FROM products p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`

	product := &domain.Product{User: &domain.Seller{}}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.UserID,
		&product.Name,
		&product.Price,
		&product.Description,
		&product.Category,
		&product.CreatedAt,
		&product.User.Name,
		&product.User.Phone,
		&product.User.Email,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	products := []*domain.Product{product}
	if err := loadImages(ctx, r.db, products); err != nil {
		return nil, err
	}

	return product, nil
}

// List retrieves products matching filter, newest first
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("p.user_id = $%d", len(args)))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			`(p.name ILIKE $%[1]d ESCAPE '\' OR p.description ILIKE $%[1]d ESCAPE '\')`, len(args)))
	}

	if filter.Category != "" && filter.Category != domain.AllCategories {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("p.category = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.user_id, p.name, p.price, p.description, p.category, p.created_at,
		       u.name, u.phone
		FROM products p
		JOIN users u ON u.id = p.user_id
		%s
		ORDER BY p.created_at DESC, p.id ASC
	`, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products, err := scanProductsWithSeller(rows)
	if err != nil {
		return nil, err
	}

	if err := loadImages(ctx, r.db, products); err != nil {
		return nil, err
	}

	return products, nil
}

// scanProductsWithSeller consumes rows shaped as product columns followed by
// the seller's name and phone, and closes them.
func scanProductsWithSeller(rows *sql.Rows) ([]*domain.Product, error) {
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{User: &domain.Seller{}}
		err := rows.Scan(
			&product.ID,
			&product.UserID,
			&product.Name,
			&product.Price,
			&product.Description,
			&product.Category,
			&product.CreatedAt,
			&product.User.Name,
			&product.User.Phone,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// loadImages fills Images for every product with a single query.
func loadImages(ctx context.Context, q queryer, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, product := range products {
		product.Images = []domain.ProductImage{}
		byID[product.ID] = product
		ids = append(ids, product.ID.String())
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, image_url, position
		FROM product_images
		WHERE product_id = ANY($1::uuid[])
		ORDER BY product_id, position ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var image domain.ProductImage
		if err := rows.Scan(&image.ID, &image.ProductID, &image.ImageURL, &image.Position); err != nil {
			return fmt.Errorf("failed to scan product image: %w", err)
		}
		if product, ok := byID[image.ProductID]; ok {
			product.Images = append(product.Images, image)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating product images: %w", err)
	}

	return nil
}
