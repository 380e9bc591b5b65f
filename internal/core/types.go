package core

import (
	"errors"
	"fmt"
)

// Structural errors. These describe a record set that does not have the shape
// a cleaner or the auditor expects; they are programming errors, never data
// quality findings.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrNilRecordSet  = errors.New("record set is nil")
)

// Logical table names shared by the source, the cleaners and the destination.
const (
	TableStudents = "students"
	TableCourses  = "courses"
	TableJobs     = "jobs"
)

// Column names used by the cleaners and the auditor.
const (
	ColUUID                = "uuid"
	ColJobID               = "job_id"
	ColNumCourseTaken      = "num_course_taken"
	ColCurrentCareerPathID = "current_career_path_id"
	ColTimeSpentHrs        = "time_spent_hrs"
	ColDOB                 = "dob"
	ColContactInfo         = "contact_info"
	ColCareerPathID        = "career_path_id"
	ColHoursToComplete     = "hours_to_complete"
	ColAvgSalary           = "avg_salary"
)

// Row is a single record keyed by column name.
type Row map[string]any

// RecordSet is an in-memory table: an ordered column list plus rows.
//
// Raw record sets carry whatever the source driver returned (strings, numbers,
// maps, nil). Cleaned record sets carry pgtype values for every coerced column,
// where Valid=false marks an absent value.
type RecordSet struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NewRecordSet creates an empty record set with the given columns.
func NewRecordSet(name string, columns ...string) *RecordSet {
	return &RecordSet{
		Name:    name,
		Columns: append([]string(nil), columns...),
	}
}

// Append adds a row built from positional values matching Columns.
// Extra values are ignored; missing values are stored as nil.
func (rs *RecordSet) Append(values ...any) {
	row := make(Row, len(rs.Columns))
	for i, col := range rs.Columns {
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = nil
		}
	}
	rs.Rows = append(rs.Rows, row)
}

// Len returns the number of rows, treating a nil record set as empty.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// HasColumn reports whether the record set declares the column.
func (rs *RecordSet) HasColumn(name string) bool {
	if rs == nil {
		return false
	}
	for _, c := range rs.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require returns an error wrapping ErrMissingColumn for the first column
// the record set does not declare.
func (rs *RecordSet) Require(columns ...string) error {
	if rs == nil {
		return ErrNilRecordSet
	}
	for _, col := range columns {
		if !rs.HasColumn(col) {
			return fmt.Errorf("%s: %w %q", rs.Name, ErrMissingColumn, col)
		}
	}
	return nil
}

// Clone returns a copy with fresh row maps, so the copy can be modified
// without touching the original. Cell values are copied shallowly.
func (rs *RecordSet) Clone() *RecordSet {
	out := &RecordSet{
		Name:    rs.Name,
		Columns: append([]string(nil), rs.Columns...),
		Rows:    make([]Row, len(rs.Rows)),
	}
	for i, row := range rs.Rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Values returns the column's cells in row order.
func (rs *RecordSet) Values(column string) []any {
	out := make([]any, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = row[column]
	}
	return out
}

// Tuples returns every row as a slice ordered by Columns.
func (rs *RecordSet) Tuples() [][]any {
	out := make([][]any, len(rs.Rows))
	for i, row := range rs.Rows {
		tuple := make([]any, len(rs.Columns))
		for j, col := range rs.Columns {
			tuple[j] = row[col]
		}
		out[i] = tuple
	}
	return out
}

// removeColumn drops a column from the declared column list.
func (rs *RecordSet) removeColumn(name string) {
	cols := rs.Columns[:0]
	for _, c := range rs.Columns {
		if c != name {
			cols = append(cols, c)
		}
	}
	rs.Columns = cols
}

// addColumn declares a column if it is not declared yet.
func (rs *RecordSet) addColumn(name string) {
	if !rs.HasColumn(name) {
		rs.Columns = append(rs.Columns, name)
	}
}
