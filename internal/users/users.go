// Package users is the user directory checkout validates buyers against.
package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, user domain.User, password string) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

var hashCost = bcrypt.DefaultCost

// prepare validates a new user and fills in the normalized email, default
// role and password hash.
func prepare(u domain.User, password string) (domain.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return domain.User{}, fmt.Errorf("name is required: %w", domain.ErrInvalidRequest)
	}

	u.Email = domain.NormalizeEmail(u.Email)
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return domain.User{}, fmt.Errorf("email %q: %w", u.Email, domain.ErrInvalidRequest)
	}

	if len(password) < 8 {
		return domain.User{}, fmt.Errorf("password must have at least 8 characters: %w", domain.ErrInvalidRequest)
	}

	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Role != domain.RoleUser && u.Role != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("role %q: %w", u.Role, domain.ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return u, nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(u domain.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
