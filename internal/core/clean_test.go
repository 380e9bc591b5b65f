package core

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var studentColumns = []string{
	ColUUID, "name", ColDOB, ColContactInfo, ColJobID,
	ColNumCourseTaken, ColCurrentCareerPathID, ColTimeSpentHrs,
}

func rawStudents(rows ...[]any) *RecordSet {
	rs := NewRecordSet(TableStudents, studentColumns...)
	for _, r := range rows {
		rs.Append(r...)
	}
	return rs
}

func i8(v int64) pgtype.Int8     { return pgtype.Int8{Int64: v, Valid: true} }
func f8(v float64) pgtype.Float8 { return pgtype.Float8{Float64: v, Valid: true} }
func txt(s string) pgtype.Text   { return pgtype.Text{String: s, Valid: true} }

// ----------------------------------------------------------------------------
// CleanStudents Tests
// ----------------------------------------------------------------------------

func TestCleanStudents_Types(t *testing.T) {
	raw := rawStudents(
		[]any{"u1", "Ann", "1990-01-01", `{"email": "a@test.com"}`, "1", "2", "10", "12.5"},
		[]any{"u2", "Bob", "invalid", "bad_json", "x", nil, "bad", "oops"},
	)

	c := &Collector{}
	cleaned, err := CleanStudents(raw, c)
	require.NoError(t, err)
	require.Equal(t, 2, cleaned.Len())

	first := cleaned.Rows[0]
	assert.Equal(t, i8(1), first[ColJobID])
	assert.Equal(t, i8(2), first[ColNumCourseTaken])
	assert.Equal(t, i8(10), first[ColCurrentCareerPathID])
	assert.Equal(t, f8(12.5), first[ColTimeSpentHrs])
	assert.Equal(t, pgtype.Date{Time: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true}, first[ColDOB])
	assert.Equal(t, txt("a@test.com"), first["email"])
	assert.Equal(t, pgtype.Text{}, first["mailing_address"])

	second := cleaned.Rows[1]
	assert.Equal(t, pgtype.Int8{}, second[ColJobID])
	assert.Equal(t, pgtype.Int8{}, second[ColNumCourseTaken])
	assert.Equal(t, pgtype.Int8{}, second[ColCurrentCareerPathID])
	assert.Equal(t, pgtype.Float8{}, second[ColTimeSpentHrs])
	assert.Equal(t, pgtype.Date{}, second[ColDOB])
	assert.Equal(t, pgtype.Text{}, second["email"])
}

func TestCleanStudents_NonNumericJobIDKeepsRow(t *testing.T) {
	raw := rawStudents([]any{"u1", "Ann", "1990-01-01", nil, "x", "1", "1", "1"})

	cleaned, err := CleanStudents(raw, Discard)
	require.NoError(t, err)

	require.Equal(t, 1, cleaned.Len())
	assert.Equal(t, pgtype.Int8{}, cleaned.Rows[0][ColJobID])
	assert.Equal(t, "u1", cleaned.Rows[0][ColUUID])
}

func TestCleanStudents_DropsMissingUUID(t *testing.T) {
	raw := rawStudents(
		[]any{"u1", "Ann", nil, nil, "1", "1", "1", "1"},
		[]any{nil, "Ghost", nil, nil, "2", "1", "1", "1"},
	)

	c := &Collector{}
	cleaned, err := CleanStudents(raw, c)
	require.NoError(t, err)

	require.Equal(t, 1, cleaned.Len())
	assert.Equal(t, "u1", cleaned.Rows[0][ColUUID])

	dropped := c.ByKind(KindRowsDropped)
	require.Len(t, dropped, 1)
	assert.Equal(t, 1, dropped[0].Count)
	assert.Equal(t, SeverityWarning, dropped[0].Severity)
	assert.Equal(t, TableStudents, dropped[0].Table)
	assert.Equal(t, ColUUID, dropped[0].Field)
}

func TestCleanStudents_BlankUUIDDropped(t *testing.T) {
	raw := rawStudents([]any{"   ", "Ann", nil, nil, nil, nil, nil, nil})

	cleaned, err := CleanStudents(raw, Discard)
	require.NoError(t, err)
	assert.Zero(t, cleaned.Len())
}

func TestCleanStudents_ContactInfoExpansion(t *testing.T) {
	raw := rawStudents(
		[]any{"u1", "Ann", nil, `{"email":"a@test.com"}`, nil, nil, nil, nil},
		[]any{"u2", "Bob", nil, map[string]any{"mailing_address": "1 Main St", "phone": "555"}, nil, nil, nil, nil},
		[]any{"u3", "Cat", nil, `{"email":"c@test.com","address":{"city":"X"}}`, nil, nil, nil, nil},
	)

	cleaned, err := CleanStudents(raw, Discard)
	require.NoError(t, err)

	assert.False(t, cleaned.HasColumn(ColContactInfo))
	assert.Equal(t, []string{
		ColUUID, "name", ColDOB, ColJobID, ColNumCourseTaken, ColCurrentCareerPathID, ColTimeSpentHrs,
		"mailing_address", "email", "address.city", "phone",
	}, cleaned.Columns)

	for _, row := range cleaned.Rows {
		_, ok := row[ColContactInfo]
		assert.False(t, ok)
	}

	assert.Equal(t, txt("a@test.com"), cleaned.Rows[0]["email"])
	assert.Equal(t, pgtype.Text{}, cleaned.Rows[0]["phone"])
	assert.Equal(t, txt("1 Main St"), cleaned.Rows[1]["mailing_address"])
	assert.Equal(t, txt("555"), cleaned.Rows[1]["phone"])
	assert.Equal(t, txt("X"), cleaned.Rows[2]["address.city"])
}

func TestCleanStudents_ContactKeyCollision(t *testing.T) {
	raw := rawStudents([]any{"u1", "Ann", nil, `{"name":"Other"}`, nil, nil, nil, nil})

	cleaned, err := CleanStudents(raw, Discard)
	require.NoError(t, err)

	assert.Equal(t, "Ann", cleaned.Rows[0]["name"])
	assert.Equal(t, txt("Other"), cleaned.Rows[0]["contact_info.name"])
}

func TestCleanStudents_ContactKeyNamedContactInfo(t *testing.T) {
	raw := rawStudents(
		[]any{"u1", "Ann", nil, `{"email":"a@test.com","contact_info":"x","contact_info.k":"y"}`, nil, nil, nil, nil},
	)

	once, err := CleanStudents(raw, Discard)
	require.NoError(t, err)

	assert.False(t, once.HasColumn(ColContactInfo))
	assert.NotContains(t, once.Rows[0], ColContactInfo)
	assert.Equal(t, txt("x"), once.Rows[0]["contact_info.contact_info"])
	assert.Equal(t, txt("y"), once.Rows[0]["contact_info.contact_info.k"])
	assert.Equal(t, txt("a@test.com"), once.Rows[0]["email"])

	twice, err := CleanStudents(once, Discard)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestCleanStudents_KnownContactFieldCollision(t *testing.T) {
	raw := NewRecordSet(TableStudents, append(append([]string(nil), studentColumns...), "email")...)
	raw.Append("u1", "Ann", nil, `{"email":"contact@test.com"}`, nil, nil, nil, nil, "raw@test.com")

	cleaned, err := CleanStudents(raw, Discard)
	require.NoError(t, err)

	assert.Equal(t, "raw@test.com", cleaned.Rows[0]["email"])
	assert.Equal(t, txt("contact@test.com"), cleaned.Rows[0]["contact_info.email"])
	assert.Equal(t, pgtype.Text{}, cleaned.Rows[0]["mailing_address"])

	twice, err := CleanStudents(cleaned, Discard)
	require.NoError(t, err)
	assert.Equal(t, cleaned, twice)
}

func TestCleanStudents_AggregatesWarnings(t *testing.T) {
	raw := rawStudents(
		[]any{"u1", "A", "nope", "bad", "x", "1", "1", "1"},
		[]any{"u2", "B", "nope", "bad", "y", "1", "1", "1"},
		[]any{"u3", "C", "nope", 7, "z", "1", "1", "1"},
	)

	c := &Collector{}
	_, err := CleanStudents(raw, c)
	require.NoError(t, err)

	warnings := c.Warnings()
	byField := map[string]Event{}
	for _, w := range warnings {
		byField[w.Field] = w
	}

	require.Len(t, warnings, 3)
	assert.Equal(t, 3, byField[ColJobID].Count)
	assert.Equal(t, KindCoercionFailed, byField[ColJobID].Kind)
	assert.Equal(t, "x", byField[ColJobID].Detail)
	assert.Equal(t, 3, byField[ColDOB].Count)
	assert.Equal(t, 3, byField[ColContactInfo].Count)
	assert.Equal(t, KindInvalidJSON, byField[ColContactInfo].Kind)

	// Per-value JSON problems are still visible at debug level.
	debug := 0
	for _, e := range c.Events() {
		if e.Severity == SeverityDebug {
			debug++
		}
	}
	assert.Equal(t, 3, debug)
}

func TestCleanStudents_NullsAreNotFailures(t *testing.T) {
	raw := rawStudents([]any{"u1", "A", nil, nil, nil, "", " ", nil})

	c := &Collector{}
	_, err := CleanStudents(raw, c)
	require.NoError(t, err)
	assert.Empty(t, c.Warnings())
}

func TestCleanStudents_DoesNotMutateInput(t *testing.T) {
	raw := rawStudents([]any{"u1", "Ann", "1990-01-01", `{"email":"a@test.com"}`, "1", "2", "3", "4.5"})
	before := raw.Clone()

	_, err := CleanStudents(raw, Discard)
	require.NoError(t, err)

	assert.Equal(t, before, raw)
}

func TestCleanStudents_Idempotent(t *testing.T) {
	raw := rawStudents(
		[]any{"u1", "Ann", "1990-01-01", `{"email":"a@test.com","extra":{"k":"v"}}`, "1", "2", "3", "4.5"},
		[]any{"u2", "Bob", "bad", "bad", "x", nil, "10.7", "oops"},
		[]any{nil, "Ghost", nil, nil, nil, nil, nil, nil},
	)

	once, err := CleanStudents(raw, Discard)
	require.NoError(t, err)

	c := &Collector{}
	twice, err := CleanStudents(once, c)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Empty(t, c.Warnings())
}

func TestCleanStudents_MissingColumn(t *testing.T) {
	raw := NewRecordSet(TableStudents, ColUUID, ColJobID)

	_, err := CleanStudents(raw, Discard)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestCleanStudents_NilRecordSet(t *testing.T) {
	_, err := CleanStudents(nil, Discard)
	assert.ErrorIs(t, err, ErrNilRecordSet)
}

// ----------------------------------------------------------------------------
// CleanCourses Tests
// ----------------------------------------------------------------------------

func TestCleanCourses(t *testing.T) {
	raw := NewRecordSet(TableCourses, ColCareerPathID, "career_path_name", ColHoursToComplete)
	raw.Append("1", "data science", "100")
	raw.Append("bad", "unknown", "oops")
	raw.Append(nil, "empty", "20")

	c := &Collector{}
	cleaned, err := CleanCourses(raw, c)
	require.NoError(t, err)

	require.Equal(t, 1, cleaned.Len())
	assert.Equal(t, i8(1), cleaned.Rows[0][ColCareerPathID])
	assert.Equal(t, f8(100), cleaned.Rows[0][ColHoursToComplete])
	assert.Equal(t, "data science", cleaned.Rows[0]["career_path_name"])

	dropped := c.ByKind(KindRowsDropped)
	require.Len(t, dropped, 1)
	assert.Equal(t, 2, dropped[0].Count)
	assert.Equal(t, ColCareerPathID, dropped[0].Field)
}

func TestCleanCourses_NullCareerPathDropped(t *testing.T) {
	raw := NewRecordSet(TableCourses, ColCareerPathID, ColHoursToComplete)
	raw.Append(nil, "10")

	c := &Collector{}
	cleaned, err := CleanCourses(raw, c)
	require.NoError(t, err)

	assert.Zero(t, cleaned.Len())
	require.Len(t, c.ByKind(KindRowsDropped), 1)
	assert.Equal(t, 1, c.ByKind(KindRowsDropped)[0].Count)
}

func TestCleanCourses_Idempotent(t *testing.T) {
	raw := NewRecordSet(TableCourses, ColCareerPathID, ColHoursToComplete)
	raw.Append("1", "100")
	raw.Append("2.0", "bad")

	once, err := CleanCourses(raw, Discard)
	require.NoError(t, err)
	twice, err := CleanCourses(once, Discard)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestCleanCourses_MissingColumn(t *testing.T) {
	_, err := CleanCourses(NewRecordSet(TableCourses, ColCareerPathID), Discard)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

// ----------------------------------------------------------------------------
// CleanJobs Tests
// ----------------------------------------------------------------------------

func TestCleanJobs_SalaryFloat(t *testing.T) {
	raw := NewRecordSet(TableJobs, ColJobID, "job_category", ColAvgSalary)
	raw.Append("1", "analytics", "50000")
	raw.Append("2", "engineer", "bad")

	c := &Collector{}
	cleaned, err := CleanJobs(raw, c)
	require.NoError(t, err)

	require.Equal(t, 2, cleaned.Len())
	assert.Equal(t, f8(50000), cleaned.Rows[0][ColAvgSalary])
	assert.Equal(t, pgtype.Float8{}, cleaned.Rows[1][ColAvgSalary])

	failed := c.ByKind(KindCoercionFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, ColAvgSalary, failed[0].Field)
	assert.Equal(t, 1, failed[0].Count)
}

func TestCleanJobs_DropsMissingJobID(t *testing.T) {
	raw := NewRecordSet(TableJobs, ColJobID, ColAvgSalary)
	raw.Append("1", "10")
	raw.Append("", "20")

	c := &Collector{}
	cleaned, err := CleanJobs(raw, c)
	require.NoError(t, err)

	assert.Equal(t, 1, cleaned.Len())
	require.Len(t, c.ByKind(KindRowsDropped), 1)
	assert.Equal(t, TableJobs, c.ByKind(KindRowsDropped)[0].Table)
}

func TestCleanJobs_KeepsDuplicates(t *testing.T) {
	raw := NewRecordSet(TableJobs, ColJobID, ColAvgSalary)
	raw.Append("1", "10")
	raw.Append("1", "10")

	cleaned, err := CleanJobs(raw, Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, cleaned.Len())
}

func TestCleanJobs_MissingColumn(t *testing.T) {
	_, err := CleanJobs(NewRecordSet(TableJobs, ColAvgSalary), Discard)
	assert.ErrorIs(t, err, ErrMissingColumn)
}
