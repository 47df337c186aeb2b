package users

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
)

func TestMain(m *testing.M) {
	hashCost = bcrypt.MinCost
	m.Run()
}

func TestMemoryRepositoryCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u, err := repo.Create(ctx, domain.User{Name: "Ada", Email: " Ada@Example.com "}, "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.True(t, CheckPassword(u, "correct horse"))
	assert.False(t, CheckPassword(u, "wrong horse"))

	byEmail, err := repo.GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.Create(ctx, domain.User{Name: "Other Ada", Email: "ada@EXAMPLE.com"}, "another secret")
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestMemoryRepositoryValidation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	tests := []struct {
		name     string
		user     domain.User
		password string
	}{
		{"missing name", domain.User{Email: "a@b.co"}, "password1"},
		{"bad email", domain.User{Name: "A", Email: "not-an-email"}, "password1"},
		{"short password", domain.User{Name: "A", Email: "a@b.co"}, "short"},
		{"bad role", domain.User{Name: "A", Email: "a@b.co", Role: "ROOT"}, "password1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(ctx, tt.user, tt.password)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryRepositoryConcurrentSameEmail(t *testing.T) {
	repo := NewMemoryRepository()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Create(context.Background(), domain.User{Name: "Dup", Email: "dup@example.com"}, "password1")
		}()
	}
	wg.Wait()

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewMemoryRepository()
	mux := http.NewServeMux()
	NewHandler(repo, logger).Register(mux, auth.NewGuard(logger))

	send := func(method, target, body, userID, role string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		if userID != "" {
			req.Header.Set(auth.HeaderUserID, userID)
			req.Header.Set(auth.HeaderUserRole, role)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/api/users", `{"name":"Grace","email":"grace@example.com","password":"hopper123"}`, "root", "ADMIN")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var env struct {
		Data domain.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	grace := env.Data
	assert.Equal(t, domain.RoleUser, grace.Role)

	rec = send(http.MethodPost, "/api/users", `{"name":"Grace","email":"grace@example.com","password":"hopper123"}`, "root", "ADMIN")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(http.MethodPost, "/api/users", `{"name":"Eve","email":"eve@example.com","password":"hopper123"}`, grace.ID, "USER")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(http.MethodGet, "/api/users/"+grace.ID, "", grace.ID, "USER")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = send(http.MethodGet, "/api/users/"+grace.ID, "", "someone-else", "USER")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(http.MethodGet, "/api/users", "", "root", "ADMIN")
	assert.Equal(t, http.StatusOK, rec.Code)
}
