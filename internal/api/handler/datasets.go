package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/equiplens/internal/analysis"
	"github.com/kiranshivaraju/equiplens/internal/api/response"
	"github.com/kiranshivaraju/equiplens/internal/pipeline"
	"github.com/kiranshivaraju/equiplens/internal/upload"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

const (
	// HistoryLimit caps the dataset history listing.
	HistoryLimit = 5

	multipartMemory = 1 << 20
)

// Uploader accepts a new dataset file.
type Uploader interface {
	Upload(ctx context.Context, ownerID uuid.UUID, filename string, r io.Reader) (*models.Dataset, error)
}

// DatasetReader reads an owner's datasets.
type DatasetReader interface {
	GetOwnedDataset(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Dataset, error)
	ListDatasets(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Dataset, error)
}

type uploadResponse struct {
	Message   string    `json:"message"`
	DatasetID uuid.UUID `json:"dataset_id"`
	Status    string    `json:"status"`
}

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/datasets.
// The CSV arrives in the multipart field "file" and processing continues in
// the background.
func NewUploadHandler(svc Uploader, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					"Upload exceeds the size limit", map[string]int64{"max_bytes": maxBytes})
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart/form-data body", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No file provided", nil)
			return
		}
		defer file.Close()

		d, err := svc.Upload(r.Context(), ownerID, header.Filename, file)
		if err != nil {
			if errors.Is(err, upload.ErrNotCSV) {
				response.Error(w, http.StatusBadRequest, "INVALID_FILE", "Only CSV files are allowed", nil)
				return
			}
			slog.Error("upload failed", "owner_id", ownerID, "filename", header.Filename, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store the upload", nil)
			return
		}

		response.Accepted(w, uploadResponse{
			Message:   "File uploaded successfully. Processing started.",
			DatasetID: d.ID,
			Status:    d.Status,
		})
	}
}

type datasetListItem struct {
	ID                uuid.UUID             `json:"id"`
	Filename          string                `json:"filename"`
	Status            string                `json:"status"`
	UploadedAt        time.Time             `json:"uploaded_at"`
	ProfilingComplete bool                  `json:"profiling_complete"`
	AnalysisComplete  bool                  `json:"analysis_complete"`
	AIComplete        bool                  `json:"ai_complete"`
	Summary           *models.LegacySummary `json:"summary,omitempty"`
}

// NewListDatasetsHandler returns an http.HandlerFunc for GET /api/v1/datasets.
// It lists the owner's most recent datasets without the analysis payloads.
func NewListDatasetsHandler(s DatasetReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		datasets, err := s.ListDatasets(r.Context(), ownerID, HistoryLimit)
		if err != nil {
			writeDatasetError(w, r, err)
			return
		}

		items := make([]datasetListItem, len(datasets))
		for i, d := range datasets {
			items[i] = datasetListItem{
				ID:                d.ID,
				Filename:          d.Filename,
				Status:            d.Status,
				UploadedAt:        d.UploadedAt,
				ProfilingComplete: d.ProfilingComplete,
				AnalysisComplete:  d.AnalysisComplete,
				AIComplete:        d.AIComplete,
				Summary:           d.LegacySummary,
			}
		}
		response.List(w, items, response.ListMeta{Count: len(items), Limit: HistoryLimit})
	}
}

// NewGetDatasetHandler returns an http.HandlerFunc for
// GET /api/v1/datasets/{datasetID}.
func NewGetDatasetHandler(s DatasetReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := ownedDataset(w, r, s)
		if !ok {
			return
		}
		response.JSON(w, d)
	}
}

// NewCorrelationHandler returns an http.HandlerFunc for
// GET /api/v1/datasets/{datasetID}/correlation.
func NewCorrelationHandler(s DatasetReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := ownedDataset(w, r, s)
		if !ok {
			return
		}
		if !d.AnalysisComplete {
			writeDatasetError(w, r, pipeline.ErrAnalysisNotReady)
			return
		}
		if d.Correlation == nil {
			response.Error(w, http.StatusNotFound, "NO_CORRELATION_DATA",
				"No correlation data available for this dataset", nil)
			return
		}
		response.JSON(w, d.Correlation)
	}
}

// NewStatsHandler returns an http.HandlerFunc for
// GET /api/v1/datasets/{datasetID}/stats.
func NewStatsHandler(s DatasetReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := ownedDataset(w, r, s)
		if !ok {
			return
		}
		response.JSON(w, analysis.Cards(d.Summary, d.LegacySummary))
	}
}

func ownedDataset(w http.ResponseWriter, r *http.Request, s DatasetReader) (*models.Dataset, bool) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return nil, false
	}
	id, ok := pathID(w, r, "datasetID", "INVALID_DATASET_ID")
	if !ok {
		return nil, false
	}
	d, err := s.GetOwnedDataset(r.Context(), id, ownerID)
	if err != nil {
		writeDatasetError(w, r, err)
		return nil, false
	}
	return d, true
}
