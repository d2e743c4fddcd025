package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatforge/threatforge/internal/engine"
	"github.com/threatforge/threatforge/internal/job"
	"github.com/threatforge/threatforge/internal/llm"
	"github.com/threatforge/threatforge/internal/llm/providers"
	"github.com/threatforge/threatforge/internal/types"
)

func testScript() []providers.MockTurn {
	threat := `{
		"name": "SQL Injection", "stride_category": "Tampering", "description": "d",
		"target": "API", "impact": "i", "likelihood": "High",
		"mitigations": ["m1", "m2"], "source": "External attacker"
	}`

	return []providers.MockTurn{
		providers.TextTurn(`{"summary": "s"}`),
		providers.TextTurn(`{"assets": [{"type": "Asset", "name": "API", "description": "d"}]}`),
		providers.TextTurn(`{"data_flows": [], "trust_boundaries": [],
			"threat_sources": [{"category": "External attacker", "description": "d", "example": "e"}]}`),
		providers.TextTurn(fmt.Sprintf(`{"threats": [%s]}`, threat)),
		providers.TextTurn(`{"stop": true, "gap": ""}`),
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	mock := providers.NewMockProvider(testScript())
	client := llm.NewClient(mock, "mock-model")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(client, engine.Limits{}, logger)
	manager := job.NewManager(job.NewMemoryStore(), eng, nil, logger)
	t.Cleanup(manager.Close)

	return NewServer(manager, logger, Options{Host: "127.0.0.1", Port: 0})
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, payload)
	rec := httptest.NewRecorder()
	server.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAndPollJob(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/jobs", job.Submission{
		Title:       "Payments",
		Description: "A payments API.",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		JobID types.ID `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.False(t, accepted.JobID.IsZero())

	deadline := time.After(5 * time.Second)
	for {
		rec = doRequest(t, server, http.MethodGet, "/api/v1/jobs/"+accepted.JobID.String()+"/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var status job.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		if status.State.IsTerminal() {
			assert.Equal(t, types.JobStateComplete, status.State)
			break
		}

		select {
		case <-deadline:
			t.Fatal("job never reached a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}

	rec = doRequest(t, server, http.MethodGet, "/api/v1/jobs/"+accepted.JobID.String()+"/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results job.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Equal(t, []string{"SQL Injection"}, results.ThreatList.Names())

	rec = doRequest(t, server, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payments")
}

func TestSubmitInvalidBody(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/jobs", job.Submission{Description: "no title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUBMISSION_INVALID")
}

func TestStatusUnknownJob(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/jobs/"+types.NewID().String()+"/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "JOB_NOT_FOUND")
}

func TestStatusMalformedID(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/jobs/not-a-uuid/status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplayUnknownJob(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/jobs/"+types.NewID().String()+"/replay", job.Submission{
		Title:       "t",
		Description: "d",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
