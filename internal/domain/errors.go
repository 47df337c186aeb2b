package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrDuplicate         = errors.New("already exists")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

// ErrorKind is the wire name of an error class.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindOutOfStock        ErrorKind = "OUT_OF_STOCK"
	KindInvalidQuantity   ErrorKind = "INVALID_QUANTITY"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindInvalidStatus     ErrorKind = "INVALID_STATUS"
	KindInvalidProduct    ErrorKind = "INVALID_PRODUCT"
	KindInvalidRequest    ErrorKind = "INVALID_REQUEST"
	KindDuplicate         ErrorKind = "DUPLICATE"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindUnauthenticated   ErrorKind = "UNAUTHENTICATED"
	KindCancelled         ErrorKind = "CANCELLED"
	KindInternal          ErrorKind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrOutOfStock, KindOutOfStock},
	{ErrInvalidQuantity, KindInvalidQuantity},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrInvalidStatus, KindInvalidStatus},
	{ErrInvalidProduct, KindInvalidProduct},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrDuplicate, KindDuplicate},
	{ErrForbidden, KindForbidden},
	{ErrUnauthenticated, KindUnauthenticated},
	{context.Canceled, KindCancelled},
	{context.DeadlineExceeded, KindCancelled},
}

// Kind classifies err. Anything not wrapping a known sentinel is INTERNAL.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
