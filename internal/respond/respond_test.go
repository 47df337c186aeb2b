package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func newTestWriter() *Writer {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestWriter().JSON(rec, http.StatusCreated, "created", map[string]string{"id": "o1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "created", env.Message)
}

func TestError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantKind    domain.ErrorKind
		wantMessage string
	}{
		{
			name:        "out of stock",
			err:         fmt.Errorf("product p1: %w", domain.ErrOutOfStock),
			wantStatus:  http.StatusConflict,
			wantKind:    domain.KindOutOfStock,
			wantMessage: "product p1: out of stock",
		},
		{
			name:        "invalid transition",
			err:         domain.ErrInvalidTransition,
			wantStatus:  http.StatusConflict,
			wantKind:    domain.KindInvalidTransition,
			wantMessage: "invalid status transition",
		},
		{
			name:        "internal hides details",
			err:         errors.New("pq: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantKind:    domain.KindInternal,
			wantMessage: "internal server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			newTestWriter().Error(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantKind, env.Error)
			assert.Equal(t, tt.wantMessage, env.Message)
		})
	}
}

func TestBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	newTestWriter().BadRequest(rec, req, "missing order id")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, domain.KindInvalidRequest, env.Error)
	assert.Equal(t, "missing order id", env.Message)
}

func TestDecode(t *testing.T) {
	var dst struct {
		Quantity int `json:"quantity"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity": 3}`))
	require.NoError(t, Decode(req, &dst))
	assert.Equal(t, 3, dst.Quantity)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"qty": 3}`))
	assert.ErrorIs(t, Decode(req, &dst), domain.ErrInvalidRequest)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	assert.ErrorIs(t, Decode(req, &dst), domain.ErrInvalidRequest)
}

func TestDecodeNonIntegerQuantity(t *testing.T) {
	var dst struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
		Items    []struct {
			Quantity int `json:"quantity"`
		} `json:"items"`
	}

	tests := []struct {
		name string
		body string
		want error
	}{
		{"fractional", `{"quantity": 1.5}`, domain.ErrInvalidQuantity},
		{"string", `{"quantity": "2"}`, domain.ErrInvalidQuantity},
		{"nested", `{"items": [{"quantity": 0.25}]}`, domain.ErrInvalidQuantity},
		{"other field", `{"name": 7}`, domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := Decode(req, &dst)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want == domain.ErrInvalidRequest, errors.Is(err, domain.ErrInvalidRequest))
		})
	}
}
