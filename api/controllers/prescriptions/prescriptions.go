package prescriptions

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/substractum/storefront/api/middleware"
	"github.com/substractum/storefront/api/responses"
	"github.com/substractum/storefront/api/validators"
	internalprescriptions "github.com/substractum/storefront/internal/prescriptions"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/pagination"
)

type submitRequest struct {
	Name            string  `json:"name" validate:"required,max=100"`
	Phone           string  `json:"phone" validate:"required,max=20"`
	Message         *string `json:"message" validate:"omitempty,max=500"`
	FilePath        *string `json:"file_path" validate:"omitempty,max=255"`
	FileContentType *string `json:"file_content_type" validate:"omitempty,max=100"`
	FileSize        *int64  `json:"file_size" validate:"omitempty,min=1,max=5242880"`
}

func (r submitRequest) toInput() internalprescriptions.SubmitInput {
	input := internalprescriptions.SubmitInput{
		Name:    r.Name,
		Phone:   r.Phone,
		Message: r.Message,
	}
	if r.FilePath != nil && strings.TrimSpace(*r.FilePath) != "" {
		file := &internalprescriptions.FileRef{Path: *r.FilePath}
		if r.FileContentType != nil {
			file.ContentType = *r.FileContentType
		}
		if r.FileSize != nil {
			file.Size = *r.FileSize
		}
		input.File = file
	}
	return input
}

// Submit records a prescription quote request for the caller.
func Submit(svc internalprescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescriptions service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Submit(r.Context(), userID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// List returns the caller's prescription requests, newest first.
func List(svc internalprescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescriptions service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListRequests(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one of the caller's prescription requests.
func Detail(svc internalprescriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescriptions service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "requestId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request id"))
			return
		}

		request, err := svc.GetRequest(r.Context(), userID, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}
