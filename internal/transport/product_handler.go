package transport

import (
	"errors"
	"mime/multipart"
	"net/http"

	"marketmint/internal/logger"
	"marketmint/internal/middleware"
	"marketmint/internal/repository"
	"marketmint/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// multipartMemory is how much of a form is buffered before spilling to disk
	multipartMemory = 8 << 20

	// formOverheadBytes covers the text fields and multipart framing
	formOverheadBytes = 1 << 20
)

// CreateProductForm holds the text fields of the listing form
type CreateProductForm struct {
	Name        string `json:"name" validate:"required,max=200"`
	Price       string `json:"price" validate:"required,max=32"`
	Description string `json:"description" validate:"max=5000"`
	Category    string `json:"category" validate:"max=100"`
}

// productInputErrors are the service errors reported to the client as 400
var productInputErrors = []error{
	service.ErrNameRequired,
	service.ErrInvalidPrice,
	service.ErrInvalidCategory,
	service.ErrNoImages,
	service.ErrTooManyImages,
	service.ErrInvalidImage,
	service.ErrImageTooLarge,
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	productService service.ProductService
	maxImageBytes  int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, maxImageBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		maxImageBytes:  maxImageBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers the product and category routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/categories", h.ListCategories)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.Create)
			r.Get("/mine", h.ListMine)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// Create handles a multipart listing submission
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(service.MaxImagesPerProduct)*h.maxImageBytes+formOverheadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusBadRequest, "Upload is too large")
			return
		}
		h.logger.Debug("Invalid multipart form", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "Expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := CreateProductForm{
		Name:        r.FormValue("name"),
		Price:       r.FormValue("price"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}
	if err := middleware.ValidateRequest(&form); err != nil {
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) > service.MaxImagesPerProduct {
		middleware.RespondWithError(w, http.StatusBadRequest, service.ErrTooManyImages.Error())
		return
	}

	images, closeAll, err := openImages(headers)
	defer closeAll()
	if err != nil {
		logger.WithRequest(r.Context(), h.logger).Error("Failed to open uploaded file", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	product, err := h.productService.Create(r.Context(), userID, service.CreateProductInput{
		Name:        form.Name,
		Price:       form.Price,
		Description: form.Description,
		Category:    form.Category,
		Images:      images,
	})
	if err != nil {
		for _, inputErr := range productInputErrors {
			if errors.Is(err, inputErr) {
				h.logger.Debug("Product rejected", zap.Error(err))
				middleware.RespondWithError(w, http.StatusBadRequest, inputErr.Error())
				return
			}
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}

		logger.WithRequest(r.Context(), h.logger).Error("Failed to create product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error creating product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("user_id", userID.String()),
		sessionEmail(r),
		zap.Int("images", len(product.Images)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// List handles the public catalog with optional search and category
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	products, err := h.productService.List(r.Context(), query.Get("search"), query.Get("category"))
	if err != nil {
		logger.WithRequest(r.Context(), h.logger).Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error fetching products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// ListMine handles the session user's own listings
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	products, err := h.productService.ListByOwner(r.Context(), userID)
	if err != nil {
		logger.WithRequest(r.Context(), h.logger).Error("Failed to list user products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error fetching my products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Get handles a single product lookup
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
			return
		}

		logger.WithRequest(r.Context(), h.logger).Error("Failed to get product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error fetching product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete handles removal of the session user's listing
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	err = h.productService.Delete(r.Context(), userID, id)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	case errors.Is(err, service.ErrForbidden):
		h.logger.Warn("Delete of another user's product",
			zap.String("product_id", id.String()),
			zap.String("user_id", userID.String()),
		)
		middleware.RespondWithError(w, http.StatusForbidden, "Unauthorized")
		return
	default:
		logger.WithRequest(r.Context(), h.logger).Error("Failed to delete product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error deleting product")
		return
	}

	h.logger.Info("Product deleted",
		zap.String("product_id", id.String()),
		zap.String("user_id", userID.String()),
		sessionEmail(r),
	)
	middleware.RespondWithMessage(w, http.StatusOK, "Product deleted successfully")
}

// ListCategories returns the category names in display order
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.Categories(r.Context())
	if err != nil {
		logger.WithRequest(r.Context(), h.logger).Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error fetching categories")
		return
	}

	names := make([]string, 0, len(categories))
	for _, category := range categories {
		names = append(names, category.Name)
	}

	middleware.RespondWithJSON(w, http.StatusOK, names)
}

// openImages opens every uploaded file. The returned func closes whatever
// was opened and is always safe to call.
func openImages(headers []*multipart.FileHeader) ([]service.ImageUpload, func(), error) {
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	images := make([]service.ImageUpload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, closeAll, err
		}
		files = append(files, file)
		images = append(images, service.ImageUpload{
			Filename: header.Filename,
			Size:     header.Size,
			Content:  file,
		})
	}

	return images, closeAll, nil
}
