package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tebben/riool/errors"
	"github.com/tebben/riool/models"

	log "github.com/sirupsen/logrus"
)

// HandleError writes an error as APIError JSON. Errors that are not an
// APIError become a 404 for missing resources, a 400 for bad input and a
// 500 otherwise.
func HandleError(w http.ResponseWriter, err error) {
	var apiError errors.APIError
	if !stderrors.As(err, &apiError) {
		details := err.Error()
		switch {
		case stderrors.Is(err, models.ErrNotFound):
			apiError = errors.NewAPIError(http.StatusNotFound, "Not found", &details)
		case stderrors.Is(err, models.ErrInvalid):
			apiError = badRequest(details)
		default:
			log.Errorf("Request failed: %v", err)
			apiError = errors.NewAPIError(http.StatusInternalServerError, "Internal server error", &details)
		}
	}
	apiError.Title = apiError.StatusText()

	writeJSON(w, apiError.Status, apiError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode JSON: %v", err)
	}
}

func badRequest(details string) errors.APIError {
	return errors.NewAPIError(http.StatusBadRequest, "Bad request", &details)
}

// humaError maps service errors for huma handlers.
func humaError(err error) error {
	switch {
	case stderrors.Is(err, models.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case stderrors.Is(err, models.ErrInvalid):
		return huma.Error400BadRequest(err.Error())
	}
	log.Errorf("Request failed: %v", err)
	return huma.Error500InternalServerError("Internal server error", err)
}
