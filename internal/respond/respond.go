// Package respond writes the JSON envelope every API response is wrapped in.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    any              `json:"data,omitempty"`
	Error   domain.ErrorKind `json:"error,omitempty"`
}

var statusByKind = map[domain.ErrorKind]int{
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindOutOfStock:        http.StatusConflict,
	domain.KindInvalidQuantity:   http.StatusBadRequest,
	domain.KindInvalidTransition: http.StatusConflict,
	domain.KindInvalidStatus:     http.StatusBadRequest,
	domain.KindInvalidProduct:    http.StatusBadRequest,
	domain.KindInvalidRequest:    http.StatusBadRequest,
	domain.KindDuplicate:         http.StatusConflict,
	domain.KindForbidden:         http.StatusForbidden,
	domain.KindUnauthenticated:   http.StatusUnauthorized,
	domain.KindCancelled:         http.StatusServiceUnavailable,
	domain.KindInternal:          http.StatusInternalServerError,
}

func StatusFor(kind domain.ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type Writer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Writer {
	return &Writer{logger: logger}
}

func (rw *Writer) JSON(w http.ResponseWriter, status int, message string, data any) {
	rw.write(w, status, Envelope{
		Success: status < http.StatusBadRequest,
		Message: message,
		Data:    data,
	})
}

// Error maps err to its kind and status. Internal errors are logged and their
// text is not exposed to the client.
func (rw *Writer) Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Kind(err)
	message := err.Error()
	if kind == domain.KindInternal {
		rw.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		message = "internal server error"
	}
	rw.write(w, StatusFor(kind), Envelope{Message: message, Error: kind})
}

// BadRequest reports a malformed request body or parameter.
func (rw *Writer) BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	rw.Error(w, r, &requestError{message: message})
}

func (rw *Writer) write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		rw.logger.Error("failed to encode response", "error", err)
	}
}

type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }

func (e *requestError) Is(target error) bool { return target == domain.ErrInvalidRequest }

// quantityFields are body fields whose type errors are quantity errors
// rather than malformed requests.
var quantityFields = []string{"quantity", "delta"}

// Decode reads a JSON body into dst, rejecting unknown fields. A quantity
// that is not an integer reports ErrInvalidQuantity.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && isQuantityField(typeErr.Field) {
		return fmt.Errorf("%s must be an integer: %w", typeErr.Field, domain.ErrInvalidQuantity)
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
}

// isQuantityField matches both top-level and nested paths such as
// "items.quantity".
func isQuantityField(field string) bool {
	last := field[strings.LastIndex(field, ".")+1:]
	return slices.Contains(quantityFields, last)
}
