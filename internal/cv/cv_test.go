package cv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDetector_Unconfigured(t *testing.T) {
	_, err := NewDetector(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHTTPDetector_Detect(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "plan.png")
	require.NoError(t, os.WriteFile(imgPath, []byte("png-bytes"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Image)

		json.NewEncoder(w).Encode(detectResponse{
			Detections: []Detection{
				{Class: "room", BBox: [4]float64{0, 0, 100, 80}, Confidence: 0.91},
				{Class: "door", BBox: [4]float64{40, 0, 50, 5}, Confidence: 0.84},
			},
		})
	}))
	defer srv.Close()

	d, err := NewDetector(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	dets, err := d.Detect(context.Background(), imgPath)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, "room", dets[0].Class)
	assert.Equal(t, [4]float64{0, 0, 100, 80}, dets[0].BBox)
}

func TestHTTPDetector_ServiceError(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "plan.png")
	require.NoError(t, os.WriteFile(imgPath, []byte("png-bytes"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, err := NewDetector(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), imgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestCountClass(t *testing.T) {
	dets := []Detection{
		{Class: "room"}, {Class: "Room"}, {Class: "door"}, {Class: "window"},
	}

	assert.Equal(t, 2, CountClass(dets, "room"))
	assert.Equal(t, 1, CountClass(dets, "door"))
	assert.Equal(t, 0, CountClass(dets, "wall"))
	assert.Len(t, FilterClass(dets, "room"), 2)
	assert.Nil(t, FilterClass(dets, "wall"))
}
