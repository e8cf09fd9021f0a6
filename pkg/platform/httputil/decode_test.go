package httputil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civreg/pkg/domain-errors"
)

type noteRequest struct {
	Title string   `json:"title" validate:"required,max=5"`
	Tags  []string `json:"tags" validate:"max=2"`
	Kind  string   `json:"kind" validate:"omitempty,oneof=a b"`
}

func (r *noteRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
}

func (r *noteRequest) Validate() error {
	if r.Title == "stop" {
		return dErrors.Validation("title", "reserved word")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"malformed json", `{"title":`, "bad_request", ""},
		{"unknown field", `{"title":"ok","color":"red"}`, "bad_request", ""},
		{"blank after trim", `{"title":"   "}`, "validation_error", "title"},
		{"too long", `{"title":"abcdef"}`, "validation_error", "title"},
		{"too many tags", `{"title":"ok","tags":["x","y","z"]}`, "validation_error", "tags"},
		{"not one of", `{"title":"ok","kind":"c"}`, "validation_error", "kind"},
		{"method validation", `{"title":"stop"}`, "validation_error", "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			got, ok := DecodeAndPrepare[noteRequest](w, r, logger, context.Background(), "req-1")

			assert.False(t, ok)
			assert.Nil(t, got)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error":"`+tt.code+`"`)
			if tt.field != "" {
				assert.Contains(t, w.Body.String(), `"field":"`+tt.field+`"`)
			}
		})
	}

	t.Run("valid body is normalized", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"  hi ","kind":"a"}`))
		got, ok := DecodeAndPrepare[noteRequest](httptest.NewRecorder(), r, logger, context.Background(), "req-2")
		require.True(t, ok)
		assert.Equal(t, "hi", got.Title)
	})
}

func TestValidateStructMessage(t *testing.T) {
	err := ValidateStruct(&noteRequest{Title: "toolong"})
	de, ok := dErrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "title must be at most 5", de.Message)
}
