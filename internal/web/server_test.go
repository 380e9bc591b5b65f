package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/cademycode/internal/config"
	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/JonMunkholm/cademycode/internal/pipeline"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	busy    bool
	last    *pipeline.Summary
	started int
	err     error
}

func (f *fakeRunner) Start(context.Context) (*pipeline.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.busy {
		return nil, pipeline.ErrRunInProgress
	}
	f.started++
	f.busy = true
	return &pipeline.Summary{RunID: uuid.New(), Status: pipeline.StatusRunning, Tables: map[string]pipeline.TableStats{}}, nil
}

func (f *fakeRunner) Busy() bool { return f.busy }

func (f *fakeRunner) Last() (*pipeline.Summary, bool) { return f.last, f.last != nil }

type fakeLister struct {
	runs  []*pipeline.Summary
	err   error
	limit int
}

func (f *fakeLister) ListRuns(_ context.Context, limit int) ([]*pipeline.Summary, error) {
	f.limit = limit
	return f.runs, f.err
}

func finishedRun() *pipeline.Summary {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &pipeline.Summary{
		RunID:      uuid.MustParse("6f1b7a2e-3c4d-4e5f-8a9b-0c1d2e3f4a5b"),
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Status:     pipeline.StatusSucceeded,
		Tables:     map[string]pipeline.TableStats{core.TableJobs: {Extracted: 13, Cleaned: 13, Loaded: 13}},
		Warnings:   1,
		Events: []core.Event{{
			Severity: core.SeverityWarning,
			Kind:     core.KindDanglingReference,
			Message:  "found students with invalid job_id",
			Count:    4,
		}},
	}
}

func newTestServer(runner RunService, opts ...Option) *Server {
	return NewServer(runner, config.ServerConfig{Port: 8080, RequestTimeout: time.Second}, opts...)
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ----------------------------------------------------------------------------
// Handler Tests
// ----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeRunner{busy: true})

	rec := do(t, s, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","busy":true}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestStartRun(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(runner)

	rec := do(t, s, http.MethodPost, "/api/runs")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/runs/last", rec.Header().Get("Location"))

	var summary pipeline.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, pipeline.StatusRunning, summary.Status)
	assert.Equal(t, 1, runner.started)

	rec = do(t, s, http.MethodPost, "/api/runs")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RUN001", decodeError(t, rec).Code)
	assert.Equal(t, 1, runner.started)
}

func TestStartRun_UnexpectedError(t *testing.T) {
	s := newTestServer(&fakeRunner{err: errors.New("boom")})

	rec := do(t, s, http.MethodPost, "/api/runs")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "ERR000", resp.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLastRun(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(runner)

	rec := do(t, s, http.MethodGet, "/api/runs/last")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RUN002", decodeError(t, rec).Code)

	runner.last = finishedRun()
	rec = do(t, s, http.MethodGet, "/api/runs/last")
	require.Equal(t, http.StatusOK, rec.Code)

	var got pipeline.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, runner.last.RunID, got.RunID)
	require.Len(t, got.Events, 1)
	assert.Equal(t, 4, got.Events[0].Count)
}

func TestListRuns_FromHistory(t *testing.T) {
	lister := &fakeLister{runs: []*pipeline.Summary{finishedRun()}}
	s := newTestServer(&fakeRunner{}, WithHistory(lister))

	rec := do(t, s, http.MethodGet, "/api/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, lister.limit)

	var resp runsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, map[string]pipeline.TableStats{core.TableJobs: {Extracted: 13, Cleaned: 13, Loaded: 13}}, resp.Runs[0].Tables)

	do(t, s, http.MethodGet, "/api/runs")
	assert.Equal(t, -1, lister.limit)

	do(t, s, http.MethodGet, "/api/runs?limit=100000")
	assert.Equal(t, maxRunLimit, lister.limit)
}

func TestListRuns_EmptyHistoryIsArray(t *testing.T) {
	s := newTestServer(&fakeRunner{}, WithHistory(&fakeLister{}))

	rec := do(t, s, http.MethodGet, "/api/runs")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}

func TestListRuns_WithoutHistory(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestServer(runner)

	rec := do(t, s, http.MethodGet, "/api/runs")
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())

	runner.last = finishedRun()
	rec = do(t, s, http.MethodGet, "/api/runs")
	var resp runsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Runs, 1)
}

func TestListRuns_InvalidLimit(t *testing.T) {
	s := newTestServer(&fakeRunner{}, WithHistory(&fakeLister{}))

	for _, limit := range []string{"abc", "0", "-3"} {
		rec := do(t, s, http.MethodGet, "/api/runs?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
		assert.Equal(t, "REQ001", decodeError(t, rec).Code)
	}
}

func TestListRuns_HistoryMissing(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("query runs: %w", errors.New(`ERROR: relation "pipeline_runs" does not exist (SQLSTATE 42P01)`))}
	s := newTestServer(&fakeRunner{}, WithHistory(lister))

	rec := do(t, s, http.MethodGet, "/api/runs")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "HIST001", decodeError(t, rec).Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})

	rec := do(t, newTestServer(&fakeRunner{}, WithMetrics(metrics)), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics\n", rec.Body.String())

	rec = do(t, newTestServer(&fakeRunner{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REQ002", decodeError(t, rec).Code)
}

// ----------------------------------------------------------------------------
// MapError Tests
// ----------------------------------------------------------------------------

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"run in progress", fmt.Errorf("trigger: %w", pipeline.ErrRunInProgress), "RUN001"},
		{"missing column", fmt.Errorf("clean jobs: %w", core.ErrMissingColumn), "SRC001"},
		{"deadline", fmt.Errorf("extract students: %w", context.DeadlineExceeded), "DB006"},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: Connection Refused"), "DB004"},
		{"reset", errors.New("read: connection reset by peer"), "DB005"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}

	assert.Equal(t, UserMessage{}, MapError(nil))
}
