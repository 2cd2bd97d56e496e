package service

import (
	"context"
	"errors"
	"fmt"

	"marketmint/internal/domain"
	"marketmint/internal/repository"

	"github.com/google/uuid"
)

// FavoriteService defines the interface for favorite business logic
type FavoriteService interface {
	// Toggle flips the favorite and reports whether it is set afterwards
	Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error)
}

type favoriteService struct {
	favoriteRepo repository.FavoriteRepository
}

// NewFavoriteService creates a new instance of FavoriteService
func NewFavoriteService(favoriteRepo repository.FavoriteRepository) FavoriteService {
	return &favoriteService{favoriteRepo: favoriteRepo}
}

func (s *favoriteService) Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	isFavorite, err := s.favoriteRepo.Toggle(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) || errors.Is(err, repository.ErrUserNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return isFavorite, nil
}

func (s *favoriteService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Product, error) {
	products, err := s.favoriteRepo.ListProducts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return products, nil
}
