package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketmint/internal/domain"
	"marketmint/internal/repository"
	"marketmint/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newTestValidator() TokenValidator {
	return service.NewUserService(repository.NewUserRepository(nil), testSecret, time.Hour)
}

func signedToken(t *testing.T, userID uuid.UUID, email string, expiresAt time.Time, secret string) string {
	t.Helper()
	claims := &service.Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func protectedHandler(t *testing.T, seen *uuid.UUID) http.Handler {
	return AuthMiddleware(newTestValidator(), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			t.Error("user id missing from context")
		}
		if seen != nil {
			*seen = userID
		}
		w.WriteHeader(http.StatusOK)
	}))
}

// Protected endpoints reject requests without a session
func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without a session are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := protectedHandler(t, nil)

			path := "/" + pathSuffix
			if path == "/" {
				path = "/test"
			}

			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Expired sessions are rejected
func TestProperty_ExpiredTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expired tokens are rejected with 401", prop.ForAll(
		func(secondsAgo int) bool {
			handler := protectedHandler(t, nil)
			token := signedToken(t, uuid.New(), "ada@example.com", time.Now().Add(-time.Duration(secondsAgo)*time.Second), testSecret)

			req := httptest.NewRequest("GET", "/api/auth/me", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.IntRange(1, 30*24*3600),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Tokens signed with another secret are rejected
func TestProperty_ForgedTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tokens signed with a different secret are rejected", prop.ForAll(
		func(secret string) bool {
			handler := protectedHandler(t, nil)
			token := signedToken(t, uuid.New(), "ada@example.com", time.Now().Add(time.Hour), "x"+secret)

			req := httptest.NewRequest("GET", "/api/auth/me", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Valid sessions reach the handler with the user attached
func TestProperty_ValidTokensAllowProcessing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid tokens from cookie or header are accepted", prop.ForAll(
		func(useHeader bool) bool {
			var seen uuid.UUID
			handler := protectedHandler(t, &seen)
			userID := uuid.New()
			token := signedToken(t, userID, "ada@example.com", time.Now().Add(time.Hour), testSecret)

			req := httptest.NewRequest("GET", "/api/products/mine", nil)
			if useHeader {
				req.Header.Set("Authorization", "Bearer "+token)
			} else {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusOK && seen == userID
		},
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddlewareRejectsMalformedHeaders(t *testing.T) {
	handler := protectedHandler(t, nil)
	token := signedToken(t, uuid.New(), "ada@example.com", time.Now().Add(time.Hour), testSecret)

	for _, header := range []string{token, "Basic " + token, "Bearer", "Bearer a b"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestAuthMiddlewareExposesEmail(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "ada@example.com"}
	token := signedToken(t, user.ID, user.Email, time.Now().Add(time.Hour), testSecret)

	handler := AuthMiddleware(newTestValidator(), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := GetUserEmail(r.Context())
		if !ok || email != user.Email {
			t.Errorf("expected email %s in context, got %q", user.Email, email)
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)
}
