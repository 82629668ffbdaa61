package v1

import (
	"errors"
	"net/http"

	"github.com/stacklok/contract-promoter/internal/promotion"
	"github.com/stacklok/contract-promoter/internal/registry"
	"github.com/stacklok/contract-promoter/internal/store"
	"github.com/stacklok/contract-promoter/internal/versions"
)

// StatusFor maps a service error to an HTTP status code
func StatusFor(err error) int {
	switch {
	case errors.Is(err, promotion.ErrNotADraft), errors.Is(err, versions.ErrVersionParse):
		return http.StatusBadRequest
	case errors.Is(err, promotion.ErrUnknownType),
		errors.Is(err, promotion.ErrUnknownActor),
		errors.Is(err, store.ErrInvalidRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case registry.IsCommunicationError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
