package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/rrna16s/pkg/analysis"
	"github.com/yumyai/rrna16s/pkg/db"
	"github.com/yumyai/rrna16s/pkg/metrics"
	"github.com/yumyai/rrna16s/pkg/model"
)

// fakeScheduler records what was enqueued instead of running anything.
type fakeScheduler struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (s *fakeScheduler) Enqueue(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, id)
	return nil
}

func (s *fakeScheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.enqueued)
}

func newTestContext(t *testing.T) (*AnalysisContext, *db.Store, *fakeScheduler) {
	t.Helper()
	store, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sched := &fakeScheduler{}
	return &AnalysisContext{Store: store, Scheduler: sched, Metrics: metrics.New()}, store, sched
}

func postSubmission(actx *AnalysisContext, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analysis/submission", strings.NewReader(body))
	rr := httptest.NewRecorder()
	actx.SubmitAnalysis(rr, req)
	return rr
}

func TestSubmitAnalysis(t *testing.T) {
	actx, store, sched := newTestContext(t)

	rr := postSubmission(actx, `{"sequences":[{"id":"s1","sequence":"ACGT\nACGT"},{"id":"s2","sequence":"NNRY"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp struct {
		AnalysisUUID string `json:"analysis_uuid"`
		Status       string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "QUEUED", resp.Status)
	assert.Equal(t, []string{resp.AnalysisUUID}, sched.enqueued)

	sub, err := store.GetSubmission(context.Background(), resp.AnalysisUUID)
	require.NoError(t, err)
	require.Len(t, sub.Sequences, 2)
	assert.Equal(t, "ACGTACGT", sub.Sequences[0].Sequence)
}

func TestSubmitAnalysisRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"sequences":`},
		{"no sequences", `{"sequences":[]}`},
		{"missing field", `{}`},
		{"empty id", `{"sequences":[{"id":"","sequence":"ACGT"}]}`},
		{"blank sequence", `{"sequences":[{"id":"s1","sequence":"  \n "}]}`},
		{"duplicate id", `{"sequences":[{"id":"s1","sequence":"ACGT"},{"id":"s1","sequence":"TTTT"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actx, store, sched := newTestContext(t)
			rr := postSubmission(actx, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Empty(t, sched.enqueued)

			subs, err := store.ListSubmissions(context.Background())
			require.NoError(t, err)
			assert.Empty(t, subs)
		})
	}
}

func TestSubmitAnalysisQueueFull(t *testing.T) {
	actx, store, sched := newTestContext(t)
	sched.err = analysis.ErrQueueFull

	rr := postSubmission(actx, `{"sequences":[{"id":"s1","sequence":"ACGT"}]}`)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		AnalysisUUID string `json:"analysis_uuid"`
		Status       string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "QUEUED", resp.Status)

	// stored and left QUEUED for the backlog sweep
	sub, err := store.GetSubmission(context.Background(), resp.AnalysisUUID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, sub.Status)
}

func TestSubmitAnalysisShuttingDown(t *testing.T) {
	actx, store, sched := newTestContext(t)
	sched.err = analysis.ErrNotRunning

	rr := postSubmission(actx, `{"sequences":[{"id":"s1","sequence":"ACGT"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "analysis_uuid")

	subs, err := store.ListSubmissions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, model.StatusQueued, subs[0].Status)
}

func TestGetAnalysisStatusAndResults(t *testing.T) {
	actx, store, _ := newTestContext(t)
	ctx := context.Background()

	sub, err := store.CreateSubmission(ctx, []model.InputSequence{model.NewInputSequence("s1", "ACGT")})
	require.NoError(t, err)

	get := func(handler http.HandlerFunc, id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/analysis/"+id+"/x", nil)
		req.SetPathValue("analysis_id", id)
		rr := httptest.NewRecorder()
		handler(rr, req)
		return rr
	}

	rr := get(actx.GetAnalysisStatus, sub.UUID)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"QUEUED"`)
	assert.Contains(t, rr.Body.String(), `"sequence_length":4`)

	assert.Equal(t, http.StatusNotFound, get(actx.GetAnalysisStatus, "unknown").Code)
	assert.Equal(t, http.StatusNotFound, get(actx.GetAnalysisResults, "unknown").Code)
	// not completed yet
	assert.Equal(t, http.StatusNotFound, get(actx.GetAnalysisResults, sub.UUID).Code)

	require.NoError(t, store.UpdateStatus(ctx, sub.UUID, model.StatusSuccess))
	require.NoError(t, store.AppendResultRecords(ctx, sub.UUID, []model.ResultRecord{
		{QuerySeqID: "s1", SubjectAccession: "NR_1"},
	}))

	rr = get(actx.GetAnalysisResults, sub.UUID)
	require.Equal(t, http.StatusOK, rr.Code)
	var records []model.ResultRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "NR_1", records[0].SubjectAccession)
}

func TestListSubmissions(t *testing.T) {
	actx, store, _ := newTestContext(t)
	for i := 0; i < 3; i++ {
		_, err := store.CreateSubmission(context.Background(), []model.InputSequence{model.NewInputSequence("s", "A")})
		require.NoError(t, err)
	}

	rr := httptest.NewRecorder()
	actx.ListSubmissions(rr, httptest.NewRequest(http.MethodGet, "/analysis/submission", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var subs []model.Submission
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &subs))
	assert.Len(t, subs, 3)
}

func TestWriteErrorHidesStoreFaults(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, errors.Join(model.ErrStoreFault, errors.New("disk I/O error at /var/lib/app.db")))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "/var/lib")
}

type failingStore struct{ SubmissionStore }

func (failingStore) Ping(context.Context) error { return errors.New("down") }

func TestHealthCheck(t *testing.T) {
	actx, _, _ := newTestContext(t)

	rr := httptest.NewRecorder()
	actx.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"health":"ok"`)

	actx.Store = failingStore{actx.Store}
	rr = httptest.NewRecorder()
	actx.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
