package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/equiplens/internal/api/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		field  string
		want   string
	}{
		{"JSON", func(w http.ResponseWriter) { response.JSON(w, map[string]string{"status": "COMPLETED"}) }, http.StatusOK, "status", "COMPLETED"},
		{"Created", func(w http.ResponseWriter) { response.Created(w, map[string]string{"key_prefix": "el_1a2b3"}) }, http.StatusCreated, "key_prefix", "el_1a2b3"},
		{"Accepted", func(w http.ResponseWriter) { response.Accepted(w, map[string]string{"dataset_id": "d1"}) }, http.StatusAccepted, "dataset_id", "d1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body struct {
				Data map[string]string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Data[tt.field])
		})
	}
}

func TestList(t *testing.T) {
	w := httptest.NewRecorder()
	items := []map[string]string{{"filename": "pump.csv"}, {"filename": "reactor.csv"}}

	response.List(w, items, response.ListMeta{Count: 2, Limit: 5})

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].([]any)
	assert.Len(t, data, 2)

	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["count"])
	assert.Equal(t, float64(5), meta["limit"])
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	response.NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing required fields: value", map[string][]string{
		"value": {"value is required"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	assert.Equal(t, "Missing required fields: value", errObj["message"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, []any{"value is required"}, details["value"])
}

func TestError_NoDetails(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusNotFound, "DATASET_NOT_FOUND", "Dataset not found", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DATASET_NOT_FOUND", errObj["code"])
	_, hasDetails := errObj["details"]
	assert.False(t, hasDetails)
}
