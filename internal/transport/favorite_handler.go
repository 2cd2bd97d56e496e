package transport

import (
	"errors"
	"net/http"

	"marketmint/internal/logger"
	"marketmint/internal/middleware"
	"marketmint/internal/repository"
	"marketmint/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ToggleFavoriteResponse reports the favorite state after a toggle
type ToggleFavoriteResponse struct {
	Message    string `json:"message"`
	IsFavorite bool   `json:"isFavorite"`
}

// FavoriteHandler handles HTTP requests for favorites
type FavoriteHandler struct {
	favoriteService service.FavoriteService
	logger          *zap.Logger
}

// NewFavoriteHandler creates a new FavoriteHandler
func NewFavoriteHandler(favoriteService service.FavoriteService, logger *zap.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		favoriteService: favoriteService,
		logger:          logger,
	}
}

// RegisterRoutes registers the favorite routes; all of them need a session
func (h *FavoriteHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/favorites", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Post("/{productId}", h.Toggle)
	})
}

// Toggle adds the product to the user's favorites or removes it
func (h *FavoriteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	isFavorite, err := h.favoriteService.Toggle(r.Context(), userID, productID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, repository.ErrUserNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "User not found")
		default:
			logger.WithRequest(r.Context(), h.logger).Error("Failed to toggle favorite", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "Error toggling favorite")
		}
		return
	}

	h.logger.Info("Favorite toggled",
		zap.String("product_id", productID.String()),
		zap.String("user_id", userID.String()),
		sessionEmail(r),
		zap.Bool("is_favorite", isFavorite),
	)

	response := ToggleFavoriteResponse{Message: "Removed from favorites", IsFavorite: false}
	if isFavorite {
		response = ToggleFavoriteResponse{Message: "Added to favorites", IsFavorite: true}
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// List returns the user's favorited products
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	products, err := h.favoriteService.List(r.Context(), userID)
	if err != nil {
		logger.WithRequest(r.Context(), h.logger).Error("Failed to list favorites", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error fetching favorites")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}
