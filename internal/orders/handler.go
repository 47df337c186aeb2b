package orders

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Handler struct {
	store     Store
	lifecycle *Lifecycle
	out       *respond.Writer
	logger    *slog.Logger
}

func NewHandler(store Store, lifecycle *Lifecycle, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		lifecycle: lifecycle,
		out:       respond.New(logger),
		logger:    logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux, guard *auth.Guard) {
	mux.HandleFunc("GET /api/orders", telemetry.WithHTTPRoute(guard.RequireIdentity(h.HandleList)))
	mux.HandleFunc("GET /api/orders/{id}", telemetry.WithHTTPRoute(guard.RequireIdentity(h.HandleGet)))
	mux.HandleFunc("GET /api/orders/revenue", telemetry.WithHTTPRoute(guard.RequireRole(domain.RoleAdmin, h.HandleRevenue)))
	mux.HandleFunc("PATCH /api/orders/{id}/status", telemetry.WithHTTPRoute(guard.RequireRole(domain.RoleAdmin, h.HandleUpdateStatus)))
	mux.HandleFunc("DELETE /api/orders/{id}", telemetry.WithHTTPRoute(guard.RequireRole(domain.RoleAdmin, h.HandleDelete)))
}

// filterFromRequest reads user_id and status. Non-admin callers are always
// limited to their own orders.
func (h *Handler) filterFromRequest(r *http.Request) (Filter, error) {
	id, _ := auth.FromContext(r.Context())
	query := r.URL.Query()

	filter := Filter{UserID: query.Get("user_id")}
	if !id.IsAdmin() {
		if filter.UserID != "" && filter.UserID != id.UserID {
			return Filter{}, fmt.Errorf("orders of user %s: %w", filter.UserID, domain.ErrForbidden)
		}
		filter.UserID = id.UserID
	}

	if raw := query.Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return Filter{}, err
		}
		filter.Status = status
	}
	return filter, nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filterFromRequest(r)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	orders, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.logger.Info("orders listed", "count", len(orders), "user_id", filter.UserID, "status", filter.Status)
	h.out.JSON(w, http.StatusOK, "orders retrieved", orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	id, _ := auth.FromContext(r.Context())
	if !id.CanActFor(order.UserID) {
		h.out.Error(w, r, fmt.Errorf("order %s: %w", order.ID, domain.ErrForbidden))
		return
	}

	h.out.JSON(w, http.StatusOK, "order retrieved", order)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// HandleUpdateStatus takes the status from the JSON body, or from the status
// query parameter when the request has no body.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	raw := r.URL.Query().Get("status")
	if r.ContentLength != 0 {
		var req updateStatusRequest
		if err := respond.Decode(r, &req); err != nil {
			h.out.Error(w, r, err)
			return
		}
		raw = req.Status
	}

	status, err := domain.ParseOrderStatus(raw)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	order, err := h.lifecycle.Transition(r.Context(), orderID, status)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.out.JSON(w, http.StatusOK, "order status is "+string(order.Status), order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	order, err := h.lifecycle.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.out.Error(w, r, err)
		return
	}
	h.out.JSON(w, http.StatusOK, "order deleted", order)
}

type revenueResponse struct {
	Total      decimal.Decimal                        `json:"total"`
	ByStatus   map[domain.OrderStatus]decimal.Decimal `json:"by_status"`
	OrderCount int                                    `json:"order_count"`
}

func (h *Handler) HandleRevenue(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filterFromRequest(r)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	orders, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.out.JSON(w, http.StatusOK, "revenue computed", revenueResponse{
		Total:      Revenue(orders),
		ByStatus:   RevenueByStatus(orders),
		OrderCount: len(orders),
	})
}
