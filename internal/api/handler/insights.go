package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/equiplens/internal/api/response"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Advisor answers on-demand questions about an analyzed dataset.
type Advisor interface {
	ExplainOutlier(ctx context.Context, ownerID, datasetID uuid.UUID, q models.OutlierQuery) (models.Explanation, error)
	Recommendations(ctx context.Context, ownerID, datasetID uuid.UUID) (models.OptimizationSet, error)
}

// Warmer precomputes cached insights for a dataset.
type Warmer interface {
	Warm(ctx context.Context, d *models.Dataset)
}

type explainRequest struct {
	EquipmentName string      `json:"equipment_name"`
	EquipmentType string      `json:"equipment_type"`
	Parameter     string      `json:"parameter"`
	Value         *float64    `json:"value"`
	ExpectedRange *[2]float64 `json:"expected_range"`
}

func (req explainRequest) missing() []string {
	var fields []string
	if req.EquipmentName == "" {
		fields = append(fields, "equipment_name")
	}
	if req.EquipmentType == "" {
		fields = append(fields, "equipment_type")
	}
	if req.Parameter == "" {
		fields = append(fields, "parameter")
	}
	if req.Value == nil {
		fields = append(fields, "value")
	}
	if req.ExpectedRange == nil {
		fields = append(fields, "expected_range")
	}
	return fields
}

type explainResponse struct {
	Explanation models.Explanation  `json:"explanation"`
	Outlier     models.OutlierQuery `json:"outlier"`
}

// NewExplainOutlierHandler returns an http.HandlerFunc for
// POST /api/v1/datasets/{datasetID}/explain-outlier.
func NewExplainOutlierHandler(svc Advisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}
		datasetID, ok := pathID(w, r, "datasetID", "INVALID_DATASET_ID")
		if !ok {
			return
		}

		var req explainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if missing := req.missing(); len(missing) > 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Missing required fields: "+strings.Join(missing, ", "), map[string][]string{"missing": missing})
			return
		}

		q := models.OutlierQuery{
			EquipmentName: req.EquipmentName,
			EquipmentType: req.EquipmentType,
			Parameter:     req.Parameter,
			Value:         *req.Value,
			ExpectedRange: *req.ExpectedRange,
		}
		explanation, err := svc.ExplainOutlier(r.Context(), ownerID, datasetID, q)
		if err != nil {
			writeDatasetError(w, r, err)
			return
		}
		response.JSON(w, explainResponse{Explanation: explanation, Outlier: q})
	}
}

// NewOptimizeHandler returns an http.HandlerFunc for
// GET /api/v1/datasets/{datasetID}/optimize.
func NewOptimizeHandler(svc Advisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}
		datasetID, ok := pathID(w, r, "datasetID", "INVALID_DATASET_ID")
		if !ok {
			return
		}

		set, err := svc.Recommendations(r.Context(), ownerID, datasetID)
		if err != nil {
			writeDatasetError(w, r, err)
			return
		}
		response.JSON(w, set)
	}
}

// NewWarmHandler returns an http.HandlerFunc for
// POST /api/v1/admin/datasets/{datasetID}/warm. Warming runs in the
// background and the request returns immediately.
func NewWarmHandler(s DatasetReader, warmer Warmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := ownedDataset(w, r, s)
		if !ok {
			return
		}
		go warmer.Warm(context.WithoutCancel(r.Context()), d)
		response.Accepted(w, map[string]any{"dataset_id": d.ID, "status": "warming"})
	}
}
