package core

// clean.go holds the coercion policy shared by the table cleaners and the
// courses and jobs cleaners themselves.
//
// Every cleaner follows the same contract:
//  1. Verify the expected columns exist (structural error otherwise)
//  2. Work on a clone; the input record set is never modified
//  3. Coerce typed columns; unparseable values become invalid pgtype values
//  4. Drop rows whose primary identifier is absent
//  5. Report each kind of deviation once, with a count

import (
	"fmt"
)

// CleanCourses normalizes the courses table.
// career_path_id becomes a nullable integer and the primary identifier;
// hours_to_complete becomes a nullable real.
func CleanCourses(courses *RecordSet, d Diagnostics) (*RecordSet, error) {
	if err := courses.Require(ColCareerPathID, ColHoursToComplete); err != nil {
		return nil, fmt.Errorf("clean courses: %w", err)
	}

	out := courses.Clone()
	coerceColumn(out, ColCareerPathID, d, asNullInt)
	coerceColumn(out, ColHoursToComplete, d, asNullFloat)
	dropMissing(out, ColCareerPathID, d, isInvalidInt)

	return out, nil
}

// CleanJobs normalizes the jobs table.
// job_id becomes a nullable integer and the primary identifier;
// avg_salary becomes a nullable real.
func CleanJobs(jobs *RecordSet, d Diagnostics) (*RecordSet, error) {
	if err := jobs.Require(ColJobID, ColAvgSalary); err != nil {
		return nil, fmt.Errorf("clean jobs: %w", err)
	}

	out := jobs.Clone()
	coerceColumn(out, ColJobID, d, asNullInt)
	coerceColumn(out, ColAvgSalary, d, asNullFloat)
	dropMissing(out, ColJobID, d, isInvalidInt)

	return out, nil
}

// coerceFunc converts a cell and reports whether the result holds a value.
type coerceFunc func(any) (any, bool)

func asNullInt(v any) (any, bool) {
	n := ToNullInt(v)
	return n, n.Valid
}

func asNullFloat(v any) (any, bool) {
	f := ToNullFloat(v)
	return f, f.Valid
}

func asNullDate(v any) (any, bool) {
	dt := ToNullDate(v)
	return dt, dt.Valid
}

// coerceColumn rewrites a column in place on an already cloned record set.
// Cells that held a non-blank value but failed to convert are counted and
// reported in a single warning.
func coerceColumn(rs *RecordSet, col string, d Diagnostics, fn coerceFunc) {
	failed := 0
	var sample string

	for _, row := range rs.Rows {
		raw := row[col]
		v, ok := fn(raw)
		if !ok && !isBlank(raw) {
			if failed == 0 {
				sample = truncateDetail(fmt.Sprint(raw))
			}
			failed++
		}
		row[col] = v
	}

	if failed > 0 {
		emit(d, Event{
			Severity: SeverityWarning,
			Kind:     KindCoercionFailed,
			Message:  "coerced unparseable values to null",
			Table:    rs.Name,
			Field:    col,
			Count:    failed,
			Detail:   sample,
		})
	}
}

// dropMissing removes rows whose col value is missing according to missing.
func dropMissing(rs *RecordSet, col string, d Diagnostics, missing func(any) bool) {
	kept := make([]Row, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if missing(row[col]) {
			continue
		}
		kept = append(kept, row)
	}

	dropped := len(rs.Rows) - len(kept)
	rs.Rows = kept

	if dropped > 0 {
		emit(d, Event{
			Severity: SeverityWarning,
			Kind:     KindRowsDropped,
			Message:  "dropped rows with missing primary identifier",
			Table:    rs.Name,
			Field:    col,
			Count:    dropped,
		})
	}
}

func isInvalidInt(v any) bool {
	return !ToNullInt(v).Valid
}
