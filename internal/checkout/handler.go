package checkout

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Handler struct {
	orchestrator *Orchestrator
	out          *respond.Writer
	logger       *slog.Logger
}

func NewHandler(orchestrator *Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		out:          respond.New(logger),
		logger:       logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux, guard *auth.Guard) {
	mux.HandleFunc("POST /api/orders", telemetry.WithHTTPRoute(guard.RequireIdentity(h.HandlePlaceOrder)))
	mux.HandleFunc("POST /api/checkout", telemetry.WithHTTPRoute(guard.RequireIdentity(h.HandleCheckout)))
}

// buyer resolves whose order this is. Users buy for themselves; admins may
// name another user.
func buyer(r *http.Request, requested string) (string, error) {
	id, _ := auth.FromContext(r.Context())
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return id.UserID, nil
	}
	if !id.CanActFor(requested) {
		return "", fmt.Errorf("ordering for user %s: %w", requested, domain.ErrForbidden)
	}
	return requested, nil
}

type placeOrderRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := respond.Decode(r, &req); err != nil {
		h.out.Error(w, r, err)
		return
	}

	userID, err := buyer(r, req.UserID)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	order, err := h.orchestrator.PlaceOrder(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.out.JSON(w, http.StatusCreated, "order placed", order)
}

type checkoutRequest struct {
	UserID string     `json:"user_id"`
	Items  []LineItem `json:"items"`
}

// HandleCheckout answers 201 when any line became an order and 409 when none
// did. The per-line outcome is in the body either way.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := respond.Decode(r, &req); err != nil {
		h.out.Error(w, r, err)
		return
	}

	userID, err := buyer(r, req.UserID)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	result, err := h.orchestrator.Checkout(r.Context(), Cart{UserID: userID, Items: req.Items})
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	status := http.StatusCreated
	if !result.Succeeded() {
		status = http.StatusConflict
	}
	message := fmt.Sprintf("%d of %d items ordered", result.Created, len(result.Lines))
	h.out.JSON(w, status, message, result)
}
