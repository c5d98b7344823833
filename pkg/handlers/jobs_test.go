package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/jobs"
)

type noopRunner struct{ kind string }

func (r noopRunner) Kind() string { return r.kind }
func (r noopRunner) Run(ctx context.Context, job *jobs.Job) ([]byte, error) {
	return nil, nil
}

func newJobsHandler(t *testing.T) *JobsHandler {
	t.Helper()
	o := jobs.NewOrchestrator(jobs.NewMemoryStore(), jobs.Config{
		Workers:     1,
		LeaseTTL:    time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Second,
		PollEvery:   time.Second,
	}, nil, zap.NewNop())
	o.Register(noopRunner{kind: jobs.KindBackup})
	return NewJobsHandler(o, zap.NewNop())
}

func TestEnqueueJobCreatesAndCoalesces(t *testing.T) {
	h := newJobsHandler(t)
	body := `{"kind":"backup","target":"policy_rules"}`

	rec := postJSON(t, h.Enqueue, "/v1/jobs", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var first jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, jobs.StateQueued, first.State)

	// Same (kind, target) while live: the existing job comes back with 200.
	rec = postJSON(t, h.Enqueue, "/v1/jobs", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var second jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)
}

func TestEnqueueJobPayloadConflict(t *testing.T) {
	h := newJobsHandler(t)

	rec := postJSON(t, h.Enqueue, "/v1/jobs",
		`{"kind":"backup","target":"policy_rules","payload":{"dir":"/a"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = postJSON(t, h.Enqueue, "/v1/jobs",
		`{"kind":"backup","target":"policy_rules","payload":{"dir":"/b"}}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "already_in_progress", body["error"])
}

func TestEnqueueJobValidation(t *testing.T) {
	h := newJobsHandler(t)

	rec := postJSON(t, h.Enqueue, "/v1/jobs", `{"kind":"backup"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Enqueue, "/v1/jobs", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueJobUnknownKind(t *testing.T) {
	h := newJobsHandler(t)

	rec := postJSON(t, h.Enqueue, "/v1/jobs", `{"kind":"defragment","target":"x"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "queue_unavailable", body["error"])
}

func TestGetJob(t *testing.T) {
	h := newJobsHandler(t)

	rec := postJSON(t, h.Enqueue, "/v1/jobs", `{"kind":"backup","target":"policy_rules"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+created.ID.String(), nil)
	req.SetPathValue("id", created.ID.String())
	get := httptest.NewRecorder()
	h.Get(get, req)

	require.Equal(t, http.StatusOK, get.Code)
	var got jobs.Job
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
}

func TestGetJobNotFound(t *testing.T) {
	h := newJobsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+uuid.NewString(), nil)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobInvalidID(t *testing.T) {
	h := newJobsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueJobPayloadRoundTrip(t *testing.T) {
	h := newJobsHandler(t)

	rec := postJSON(t, h.Enqueue, "/v1/jobs",
		`{"kind":"backup","target":"policy_rules","payload":{"dir":"/tmp/backups"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.JSONEq(t, `{"dir":"/tmp/backups"}`, string(job.Payload))
}
