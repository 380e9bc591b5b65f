package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/JonMunkholm/cademycode/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Emit(t *testing.T) {
	r := NewRecorder("")

	r.Emit(core.Event{Severity: core.SeverityWarning, Kind: core.KindRowsDropped, Table: core.TableStudents, Count: 3})
	r.Emit(core.Event{Severity: core.SeverityWarning, Kind: core.KindDanglingReference, Table: core.TableStudents, Field: core.ColJobID, Count: 2})
	r.Emit(core.Event{Severity: core.SeverityDebug, Kind: core.KindInvalidJSON, Table: core.TableStudents})

	assert.Equal(t, 3.0, testutil.ToFloat64(r.rowsDropped.WithLabelValues(core.TableStudents)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.dangling.WithLabelValues(core.ColJobID)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.warnings.WithLabelValues(core.TableStudents, string(core.KindRowsDropped))))
	assert.Equal(t, 2, testutil.CollectAndCount(r.warnings), "debug events are not counted")
}

func TestRecorder_ObserveRun(t *testing.T) {
	r := NewRecorder("test")
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	r.ObserveRun(&pipeline.Summary{
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Status:     pipeline.StatusSucceeded,
		Tables: map[string]pipeline.TableStats{
			core.TableStudents: {Extracted: 5000, Cleaned: 4998, Loaded: 4998},
			core.TableJobs:     {Extracted: 13, Cleaned: 13, Loaded: 13},
		},
	})
	r.ObserveRun(&pipeline.Summary{
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Status:     pipeline.StatusFailed,
		Tables:     map[string]pipeline.TableStats{},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("failed")))
	assert.Equal(t, 4998.0, testutil.ToFloat64(r.rowsLoaded.WithLabelValues(core.TableStudents)))
	assert.Equal(t, 13.0, testutil.ToFloat64(r.rowsExtracted.WithLabelValues(core.TableJobs)))
	assert.Equal(t, float64(start.Add(2*time.Second).Unix()), testutil.ToFloat64(r.lastRunTime.WithLabelValues("succeeded")))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder("")
	r.Emit(core.Event{Severity: core.SeverityWarning, Kind: core.KindRowsDropped, Table: core.TableCourses, Count: 1})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `cademycode_pipeline_rows_dropped_total{table="courses"} 1`), body)
}
