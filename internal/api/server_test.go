package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
)

func newTestServer(t *testing.T) (*Server, *radar.CollectionController, *radar.IngestionSink) {
	t.Helper()

	store := radar.NewSampleStore()
	heatmap := radar.NewHeatmap(35, 0.5, 1.0)
	sink := radar.NewIngestionSink(radar.SinkConfig{Store: store, Heatmap: heatmap})
	playback := radar.NewPlaybackManager(sink, nil)
	controller := radar.NewCollectionController(radar.ControllerConfig{
		Store:        store,
		Heatmap:      heatmap,
		Sink:         sink,
		Playback:     playback,
		BandInterval: 10,
		MaxRange:     35,
	})
	progress := radar.NewProgressReader(store, controller, nil)

	return NewServer(controller, playback, progress, heatmap, nil), controller, sink
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProgressIdle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/progress", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["active"])
	assert.Equal(t, 0.0, body["count"])
}

func TestCollectionLifecycleOverHTTP(t *testing.T) {
	srv, controller, sink := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/collection/start",
		`{"config_name":"best_range","target_distance":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	runID := decodeBody(t, w)["run_id"].(string)
	assert.NotEmpty(t, runID)
	assert.True(t, controller.Active())

	// A second start conflicts.
	w = doRequest(t, srv, http.MethodPost, "/api/collection/start", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Progress reflects deliveries.
	sink.Deliver(&radar.Scan{Samples: []radar.Sample{{X: 0, Y: 5, Intensity: 1}}})
	w = doRequest(t, srv, http.MethodGet, "/api/progress", "")
	body := decodeBody(t, w)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, runID, body["run_id"])
	assert.Equal(t, 1.0, body["count"])

	w = doRequest(t, srv, http.MethodPost, "/api/collection/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, controller.Active())

	// Stopping again is still fine.
	w = doRequest(t, srv, http.MethodPost, "/api/collection/stop", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCollectionStartRequiresPost(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/collection/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPlaybackStartRejectsMissingLog(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/playback/start",
		`{"path":"/no/such/log"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/playback/start", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaybackCancelUnknownSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/playback/cancel?session_id=nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/playback/cancel", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHeatmapEndpoint(t *testing.T) {
	srv, _, sink := newTestServer(t)

	// Heatmap only accumulates while a run is armed.
	doRequest(t, srv, http.MethodPost, "/api/collection/start", "")
	sink.Deliver(&radar.Scan{Samples: []radar.Sample{{X: 0, Y: 5, Intensity: 100}}})

	w := doRequest(t, srv, http.MethodGet, "/api/heatmap", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, 1.0, body["active_cells"])
	assert.Equal(t, 100.0, body["max_intensity"])
}

func TestPlaybackStartConfinedToLogDir(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.SetLogDir(t.TempDir())

	w := doRequest(t, srv, http.MethodPost, "/api/playback/start",
		`{"path":"/etc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExperimentsUnavailableWithoutStore(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/experiments", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
