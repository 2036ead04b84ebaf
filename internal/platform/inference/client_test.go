package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/emoscope/internal/classify"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, retries uint64) *Client {
	t.Helper()
	c, err := NewClient(nil, Config{
		TextEndpoint:  url + "/text",
		ImageEndpoint: url + "/image",
		MaxRetries:    retries,
	}, logger.Discard())
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func TestClient_ClassifyText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req textRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what a day", req.Text)

		_ = json.NewEncoder(w).Encode(response{
			Labels: []string{"joy", "anger", "fear"},
			Logits: []float64{3, 1, -2},
		})
	}))
	defer server.Close()

	preds, err := newTestClient(t, server.URL, 0).ClassifyText(context.Background(), "what a day")
	require.NoError(t, err)
	require.Len(t, preds, 3)
	assert.Equal(t, "joy", preds[0].Label)
	assert.Equal(t, "fear", preds[2].Label)
}

func TestClient_ClassifyImage_DefaultLabels(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req imageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image/png", req.MIMEType)
		_, err := base64.StdEncoding.DecodeString(req.Image)
		assert.NoError(t, err)

		logits := make([]float64, len(classify.ImageLabels))
		logits[3] = 10
		_ = json.NewEncoder(w).Encode(response{Logits: logits})
	}))
	defer server.Close()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	preds, err := newTestClient(t, server.URL, 0).ClassifyImage(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, preds, domain.MaxPredictions)
	assert.Equal(t, classify.ImageLabels[3], preds[0].Label)
}

func TestClient_Retries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(response{Labels: []string{"joy"}, Logits: []float64{1}})
	}))
	defer server.Close()

	preds, err := newTestClient(t, server.URL, 2).ClassifyText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, preds, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCalls int32
		wantErr   error
	}{
		{
			name: "bad request is permanent",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad input", http.StatusBadRequest)
			},
			wantCalls: 1,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			wantCalls: 1,
			wantErr:   classify.ErrInvalidResponse,
		},
		{
			name: "label mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(response{Labels: []string{"a", "b"}, Logits: []float64{1}})
			},
			wantCalls: 1,
			wantErr:   classify.ErrInvalidResponse,
		},
		{
			name: "server errors exhaust retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL, 2).ClassifyText(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrClassificationFailed))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_EmptyInput(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, "http://127.0.0.1:1", 0)
	_, err := c.ClassifyText(context.Background(), "  ")
	assert.ErrorIs(t, err, classify.ErrEmptyInput)
	_, err = c.ClassifyImage(context.Background(), nil)
	assert.ErrorIs(t, err, classify.ErrEmptyInput)

	_, err = NewClient(nil, Config{}, logger.Discard())
	assert.Error(t, err)
}
