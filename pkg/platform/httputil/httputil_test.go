package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civreg/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   errorBody
	}{
		{
			name:   "validation carries the field",
			err:    dErrors.Validation("newHeadId", "new head must be one of the split members"),
			status: http.StatusBadRequest,
			want: errorBody{
				Error:            "validation_error",
				ErrorDescription: "new head must be one of the split members",
				Field:            "newHeadId",
			},
		},
		{
			name:   "bad request keeps its description",
			err:    dErrors.New(dErrors.CodeBadRequest, "invalid request body"),
			status: http.StatusBadRequest,
			want:   errorBody{Error: "bad_request", ErrorDescription: "invalid request body"},
		},
		{
			name:   "duplicate key is a conflict",
			err:    dErrors.Duplicate("idNumber", "id number already registered"),
			status: http.StatusConflict,
			want:   errorBody{Error: "duplicate_key", ErrorDescription: "id number already registered", Field: "idNumber"},
		},
		{
			name:   "internal hides the message",
			err:    dErrors.New(dErrors.CodeInternal, "db failed"),
			status: http.StatusInternalServerError,
			want:   errorBody{Error: "internal_error"},
		},
		{
			name:   "plain errors become internal",
			err:    errors.New("driver: bad connection"),
			status: http.StatusInternalServerError,
			want:   errorBody{Error: "internal_error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			var got errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteErrorPartialApplication(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.Partial("merge complaints", []string{"complaint:KN000001"}, errors.New("connection reset")))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var got errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "partial_application", got.Error)
	assert.Equal(t, []string{"complaint:KN000001"}, got.Applied)
	assert.NotContains(t, w.Body.String(), "connection reset")
}
