package users

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Handler struct {
	repo   Repository
	out    *respond.Writer
	logger *slog.Logger
}

func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		out:    respond.New(logger),
		logger: logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux, guard *auth.Guard) {
	mux.HandleFunc("POST /api/users", telemetry.WithHTTPRoute(guard.RequireRole(domain.RoleAdmin, h.HandleCreate)))
	mux.HandleFunc("GET /api/users", telemetry.WithHTTPRoute(guard.RequireRole(domain.RoleAdmin, h.HandleList)))
	mux.HandleFunc("GET /api/users/{id}", telemetry.WithHTTPRoute(guard.RequireIdentity(h.HandleGet)))
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Address  string `json:"address"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := respond.Decode(r, &req); err != nil {
		h.out.Error(w, r, err)
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	user, err := h.repo.Create(r.Context(), domain.User{
		Name:    req.Name,
		Email:   req.Email,
		Role:    role,
		Address: req.Address,
	}, req.Password)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.logger.Info("user created", "user_id", user.ID, "role", user.Role)
	h.out.JSON(w, http.StatusCreated, "user created", user)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	id, _ := auth.FromContext(r.Context())
	if !id.CanActFor(userID) {
		h.out.Error(w, r, fmt.Errorf("user %s: %w", userID, domain.ErrForbidden))
		return
	}

	user, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}
	h.out.JSON(w, http.StatusOK, "user retrieved", user)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context())
	if err != nil {
		h.out.Error(w, r, err)
		return
	}
	h.out.JSON(w, http.StatusOK, "users retrieved", users)
}
