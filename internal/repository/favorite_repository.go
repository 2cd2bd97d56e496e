package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketmint/internal/domain"

	"github.com/google/uuid"
)

// FavoriteRepository defines the interface for favorite data access
type FavoriteRepository interface {
	// Toggle flips membership of (userID, productID) and reports whether the
	// pair is a favorite afterwards.
	Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListProducts(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error)
}

type favoriteRepository struct {
	db *sql.DB
}

// NewFavoriteRepository creates a new instance of FavoriteRepository
func NewFavoriteRepository(db *sql.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

// Toggle runs in one transaction holding the user's row lock, so concurrent
// toggles by the same user serialize and alternate instead of racing on the
// primary key.
func (r *favoriteRepository) Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked uuid.UUID
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to lock user: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	isFavorite := false
	if removed == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO favorites (user_id, product_id, created_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, product_id) DO NOTHING`,
			userID, productID, time.Now().UTC(),
		)
		if err != nil {
			if _, ok := foreignKeyViolation(err); ok {
				return false, ErrProductNotFound
			}
			return false, fmt.Errorf("failed to add favorite: %w", err)
		}
		isFavorite = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit favorite toggle: %w", err)
	}

	return isFavorite, nil
}

// ListProducts returns the user's favorited products, most recently
// favorited first
func (r *favoriteRepository) ListProducts(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error) {
	query := `
		SELECT p.id, p.user_id, p.name, p.price, p.description, p.category, p.created_at,
		       u.name, u.phone
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		JOIN users u ON u.id = p.user_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, p.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
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
