// Package v1 provides the record promotion REST API handlers.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stacklok/contract-promoter/internal/api/common"
	"github.com/stacklok/contract-promoter/internal/auth"
	"github.com/stacklok/contract-promoter/internal/promotion"
)

// maxBodySize bounds promotion request bodies
const maxBodySize = 64 << 10

// PromoteRequest is the optional body of a promotion
type PromoteRequest struct {
	// Originator identifies the request that triggered the promotion
	Originator string `json:"originator,omitempty" validate:"omitempty,uuid"`
}

// Routes holds the handlers of the v1 API
type Routes struct {
	service  promotion.Service
	validate *validator.Validate
}

// NewRoutes creates the v1 handlers backed by svc
func NewRoutes(svc promotion.Service) *Routes {
	return &Routes{
		service:  svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router creates the v1 router
func Router(svc promotion.Service) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/records/{id}", routes.getRecord)
	r.Post("/records/{id}/promote", routes.promoteRecord)

	return r
}

// getRecord handles GET /api/v1/records/{id}
func (rr *Routes) getRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		common.WriteErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id, err := common.GetAndValidateURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := rr.service.GetRecord(r.Context(), caller.Session, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, rec, http.StatusOK)
}

// promoteRecord handles POST /api/v1/records/{id}/promote
func (rr *Routes) promoteRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		common.WriteErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id, err := common.GetAndValidateURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := rr.decodePromoteRequest(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := rr.service.PromoteRecord(r.Context(), caller.Session, id, promotion.Request{
		Actor:      caller.Actor,
		Originator: body.Originator,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, summary, http.StatusOK)
}

// decodePromoteRequest reads the optional request body. An empty body is a
// request without originator.
func (rr *Routes) decodePromoteRequest(r *http.Request) (PromoteRequest, error) {
	var req PromoteRequest
	if r.Body == nil {
		return req, nil
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		return req, fmt.Errorf("invalid request body: %w", err)
	}

	if err := rr.validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid request body: %s", validationMessage(err))
	}
	return req, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must be a valid %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, ", ")
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.DebugContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	common.WriteErrorResponse(w, err.Error(), status)
}
