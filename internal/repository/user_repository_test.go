package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketmint/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

func TestProperty_StoredUsersKeepHashedPasswords(t *testing.T) {
	requireDB(t)

	repo := NewUserRepository(testDB)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("passwords round-trip only as bcrypt hashes", prop.ForAll(
		func(email string, password string, name string) bool {
			_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email)

			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
			if err != nil {
				t.Logf("Failed to hash password: %v", err)
				return false
			}

			user := &domain.User{
				ID:           uuid.New(),
				Name:         name,
				Email:        email,
				PasswordHash: string(hashedPassword),
				CreatedAt:    time.Now().UTC(),
			}

			if err := repo.Create(ctx, user); err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}

			retrievedUser, err := repo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("Failed to find user: %v", err)
				return false
			}

			if retrievedUser.PasswordHash == password {
				t.Logf("Password was stored as plaintext!")
				return false
			}

			if err := bcrypt.CompareHashAndPassword([]byte(retrievedUser.PasswordHash), []byte(password)); err != nil {
				t.Logf("Stored password is not a valid bcrypt hash: %v", err)
				return false
			}

			_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email)
			return retrievedUser.ID == user.ID && retrievedUser.Name == name
		},
		gen.RegexMatch(`[a-z]{5,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	requireDB(t)

	repo := NewUserRepository(testDB)
	ctx := context.Background()
	first := newTestUser(t)

	duplicate := &domain.User{
		ID:           uuid.New(),
		Name:         "Someone Else",
		Email:        first.Email,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}

	if err := repo.Create(ctx, duplicate); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	stored, err := repo.FindByEmail(ctx, first.Email)
	if err != nil {
		t.Fatalf("first account lost: %v", err)
	}
	if stored.ID != first.ID || stored.Name != first.Name {
		t.Fatalf("first account was modified: %+v", stored)
	}
}

func TestUserRepository_FindByIDNotFound(t *testing.T) {
	requireDB(t)

	_, err := NewUserRepository(testDB).FindByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
