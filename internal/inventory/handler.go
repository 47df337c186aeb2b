package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// CatalogHandler serves public product queries. It only holds a Catalog and
// cannot change stock.
type CatalogHandler struct {
	catalog Catalog
	out     *respond.Writer
	logger  *slog.Logger
}

func NewCatalogHandler(catalog Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		out:     respond.New(logger),
		logger:  logger,
	}
}

func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", telemetry.WithHTTPRoute(h.HandleList))
	mux.HandleFunc("GET /api/products/{id}", telemetry.WithHTTPRoute(h.HandleGet))
	mux.HandleFunc("GET /api/products/available", telemetry.WithHTTPRoute(h.HandleAvailable))
	mux.HandleFunc("GET /api/products/search", telemetry.WithHTTPRoute(h.HandleSearch))
	mux.HandleFunc("GET /api/products/max-cost", telemetry.WithHTTPRoute(h.HandleMaxCost))
}

// HandleList returns the whole catalog, or only the products named in a
// comma separated ids parameter.
func (h *CatalogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		products []domain.Product
		err      error
	)
	if raw := r.URL.Query().Get("ids"); raw != "" {
		products, err = h.catalog.GetMany(r.Context(), splitIDs(raw))
	} else {
		products, err = h.catalog.List(r.Context())
	}
	if err != nil {
		h.out.Error(w, r, err)
		return
	}
	h.out.JSON(w, http.StatusOK, "products retrieved", products)
}

func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.out.Error(w, r, err)
		return
	}
	h.out.JSON(w, http.StatusOK, "product retrieved", product)
}

func (h *CatalogHandler) HandleAvailable(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListAvailable(r.Context())
	if err != nil {
		h.out.Error(w, r, err)
		return
	}
	h.out.JSON(w, http.StatusOK, "available products retrieved", products)
}

func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.SearchByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.out.Error(w, r, err)
		return
	}
	h.out.JSON(w, http.StatusOK, "products retrieved", products)
}

func (h *CatalogHandler) HandleMaxCost(w http.ResponseWriter, r *http.Request) {
	maxCost, err := decimal.NewFromString(r.URL.Query().Get("max_cost"))
	if err != nil {
		h.out.BadRequest(w, r, "max_cost must be a decimal number")
		return
	}

	products, err := h.catalog.FilterByMaxCost(r.Context(), maxCost)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}
	h.out.JSON(w, http.StatusOK, "products retrieved", products)
}

// AdminHandler serves catalog and stock maintenance.
type AdminHandler struct {
	ledger Ledger
	out    *respond.Writer
	logger *slog.Logger
}

func NewAdminHandler(ledger Ledger, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		ledger: ledger,
		out:    respond.New(logger),
		logger: logger,
	}
}

func (h *AdminHandler) Register(mux *http.ServeMux, guard *auth.Guard) {
	admin := func(fn http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(guard.RequireRole(domain.RoleAdmin, fn))
	}
	mux.HandleFunc("POST /api/products", admin(h.HandleCreate))
	mux.HandleFunc("PUT /api/products/{id}", admin(h.HandleUpdate))
	mux.HandleFunc("DELETE /api/products/{id}", admin(h.HandleDelete))
	mux.HandleFunc("PATCH /api/products/{id}/stock", admin(h.HandleSetStock))
	mux.HandleFunc("POST /api/products/{id}/restock", admin(h.HandleRestock))
}

type productRequest struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Cost        decimal.Decimal `json:"cost"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
}

func (req productRequest) product() domain.Product {
	return domain.Product{
		ID:          req.ID,
		Name:        strings.TrimSpace(req.Name),
		Cost:        req.Cost,
		Quantity:    req.Quantity,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
}

func (h *AdminHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := respond.Decode(r, &req); err != nil {
		h.out.Error(w, r, err)
		return
	}

	product, err := h.ledger.Create(r.Context(), req.product())
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "quantity", product.Quantity)
	h.out.JSON(w, http.StatusCreated, "product created", product)
}

func (h *AdminHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := respond.Decode(r, &req); err != nil {
		h.out.Error(w, r, err)
		return
	}

	p := req.product()
	p.ID = r.PathValue("id")
	product, err := h.ledger.Update(r.Context(), p)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.logger.Info("product updated", "product_id", product.ID)
	h.out.JSON(w, http.StatusOK, "product updated", product)
}

func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ledger.Delete(r.Context(), id); err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.logger.Info("product deleted", "product_id", id)
	h.out.JSON(w, http.StatusOK, "product deleted", nil)
}

type setStockRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *AdminHandler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	var req setStockRequest
	if err := respond.Decode(r, &req); err != nil {
		h.out.Error(w, r, err)
		return
	}
	if req.Quantity == nil {
		h.out.BadRequest(w, r, "quantity is required")
		return
	}

	product, err := h.ledger.SetStock(r.Context(), r.PathValue("id"), *req.Quantity)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.logger.Info("stock set", "product_id", product.ID, "quantity", product.Quantity)
	h.out.JSON(w, http.StatusOK, "stock updated", product)
}

type restockRequest struct {
	Delta int `json:"delta"`
}

func (h *AdminHandler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := respond.Decode(r, &req); err != nil {
		h.out.Error(w, r, err)
		return
	}
	if req.Delta == 0 {
		h.out.BadRequest(w, r, "delta must not be zero")
		return
	}

	product, err := h.ledger.Restock(r.Context(), r.PathValue("id"), req.Delta)
	if err != nil {
		h.out.Error(w, r, err)
		return
	}

	h.logger.Info("stock adjusted", "product_id", product.ID, "delta", req.Delta, "quantity", product.Quantity)
	h.out.JSON(w, http.StatusOK, fmt.Sprintf("stock adjusted by %d", req.Delta), product)
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
