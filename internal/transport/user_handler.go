package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketmint/internal/logger"
	"marketmint/internal/middleware"
	"marketmint/internal/repository"
	"marketmint/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Message string      `json:"message"`
	User    SessionUser `json:"user"`
}

// SessionUser is the user summary returned on login
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService   service.UserService
	secureCookies bool
	logger        *zap.Logger
}

// NewUserHandler creates a new UserHandler. secureCookies marks the session
// cookie Secure and SameSite=None for cross-site production deployments.
func NewUserHandler(userService service.UserService, secureCookies bool, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService:   userService,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// RegisterRoutes registers all auth routes. rateLimit guards the
// credential endpoints.
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware, rateLimit func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/me", h.Me)
		})
	})
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.userService.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			h.logger.Info("Registration with existing email")
			middleware.RespondWithError(w, http.StatusBadRequest, "User already exists")
			return
		}
		if errors.Is(err, service.ErrNameRequired) {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
				{Field: "name", Message: "This field is required"},
			})
			return
		}
		if errors.Is(err, service.ErrPasswordTooLong) {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
				{Field: "password", Message: fmt.Sprintf("Must be at most %d bytes", service.MaxPasswordBytes)},
			})
			return
		}

		logger.WithRequest(r.Context(), h.logger).Error("Registration failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error creating user")
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithMessage(w, http.StatusCreated, "User created successfully")
}

// Login handles user authentication and sets the session cookie
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	token, user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.Debug("Login failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		logger.WithRequest(r.Context(), h.logger).Error("Login failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error logging in")
		return
	}

	http.SetCookie(w, h.sessionCookie(token, h.userService.TokenExpiration()))

	h.logger.Info("User logged in successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		Message: "Logged in successfully",
		User: SessionUser{
			ID:    user.ID.String(),
			Name:  user.Name,
			Email: user.Email,
		},
	})
}

// Logout expires the session cookie. It needs no session of its own.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	middleware.RespondWithMessage(w, http.StatusOK, "Logged out successfully")
}

// Me returns the profile of the session user
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}

		logger.WithRequest(r.Context(), h.logger).Error("Failed to get user profile", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Error fetching user")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, UserProfile{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
	})
}

// sessionCookie builds the session cookie. A negative maxAge deletes it.
func (h *UserHandler) sessionCookie(value string, maxAge time.Duration) *http.Cookie {
	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if maxAge < 0 {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else {
		cookie.MaxAge = int(maxAge.Seconds())
		cookie.Expires = time.Now().Add(maxAge)
	}

	if h.secureCookies {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}

	return cookie
}
