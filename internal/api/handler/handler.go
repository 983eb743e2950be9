// Package handler implements the HTTP endpoints. Each constructor takes the
// narrow interface it needs and returns an http.HandlerFunc.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/kiranshivaraju/equiplens/internal/api/middleware"
	"github.com/kiranshivaraju/equiplens/internal/api/response"
	"github.com/kiranshivaraju/equiplens/internal/pipeline"
	"github.com/kiranshivaraju/equiplens/internal/store"
)

func requireOwner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerID, ok := mw.GetOwnerID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
	}
	return ownerID, ok
}

func pathID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.Error(w, http.StatusBadRequest, code, "Invalid "+param, nil)
		return uuid.Nil, false
	}
	return id, true
}

// writeDatasetError maps store and pipeline errors to responses.
func writeDatasetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "DATASET_NOT_FOUND", "Dataset not found", nil)
	case errors.Is(err, pipeline.ErrAnalysisNotReady):
		response.Error(w, http.StatusConflict, "ANALYSIS_NOT_READY",
			"Analysis not completed yet. Please wait for deep analysis to finish.", nil)
	case errors.Is(err, pipeline.ErrTaskTimeout):
		response.Error(w, http.StatusGatewayTimeout, "TASK_TIMEOUT",
			"The worker did not answer in time", nil)
	case errors.Is(err, pipeline.ErrTaskFailed):
		response.Error(w, http.StatusBadGateway, "TASK_FAILED", "The worker could not complete the request", nil)
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
