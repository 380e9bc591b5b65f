package core

import (
	"fmt"
	"sort"
	"strings"
)

// ContactFields is the known schema of the students contact_info object.
// These columns are always present on cleaned students, in this order,
// even when no row carries them. Other keys found at runtime are appended
// after them in sorted order. Any contact key, known or not, that collides
// with a raw column is written as contact_info.<key>.
var ContactFields = []string{"mailing_address", "email"}

// studentIntColumns are coerced to nullable integers.
var studentIntColumns = []string{ColJobID, ColNumCourseTaken, ColCurrentCareerPathID}

// CleanStudents normalizes the students table.
//
// Transformations performed:
//   - job_id, num_course_taken, current_career_path_id to nullable integers
//   - time_spent_hrs to a nullable real
//   - dob to a calendar date
//   - contact_info expanded into one text column per contact key
//   - rows without a uuid dropped
//
// The input record set is not modified. Malformed cells never produce an
// error; only a missing expected column does.
func CleanStudents(students *RecordSet, d Diagnostics) (*RecordSet, error) {
	required := append([]string{ColUUID, ColTimeSpentHrs, ColDOB}, studentIntColumns...)
	if err := students.Require(required...); err != nil {
		return nil, fmt.Errorf("clean students: %w", err)
	}

	out := students.Clone()

	for _, col := range studentIntColumns {
		coerceColumn(out, col, d, asNullInt)
	}
	coerceColumn(out, ColTimeSpentHrs, d, asNullFloat)
	coerceColumn(out, ColDOB, d, asNullDate)

	// A cleaned set no longer has contact_info; its flattened columns are
	// already in place.
	if out.HasColumn(ColContactInfo) {
		expandContactInfo(out, d)
	}

	dropMissing(out, ColUUID, d, isBlank)

	return out, nil
}

// expandContactInfo replaces contact_info with one column per contact key.
func expandContactInfo(rs *RecordSet, d Diagnostics) {
	// Per-value normalizer warnings are collected here and forwarded at debug
	// level; the run gets one aggregated warning instead.
	local := &Collector{}

	flat := make([]map[string]any, len(rs.Rows))
	extra := make(map[string]bool)

	for i, row := range rs.Rows {
		m, ok := NormalizeJSON(row[ColContactInfo], local)
		if !ok {
			continue
		}
		f := make(map[string]any, len(m))
		flattenJSON(f, "", m)
		flat[i] = f
		for k := range f {
			if !isContactField(k) {
				extra[k] = true
			}
		}
	}

	if events := local.Events(); len(events) > 0 {
		for _, e := range events {
			e.Severity = SeverityDebug
			e.Table = rs.Name
			e.Field = ColContactInfo
			emit(d, e)
		}
		emit(d, Event{
			Severity: SeverityWarning,
			Kind:     KindInvalidJSON,
			Message:  "could not parse contact info",
			Table:    rs.Name,
			Field:    ColContactInfo,
			Count:    len(events),
			Detail:   events[0].Detail,
		})
	}

	keys := append([]string(nil), ContactFields...)
	extraKeys := make([]string, 0, len(extra))
	for k := range extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	keys = append(keys, extraKeys...)

	targets := contactTargets(rs, keys)

	rs.removeColumn(ColContactInfo)

	for i, row := range rs.Rows {
		delete(row, ColContactInfo)
		for j, k := range keys {
			var v any
			if flat[i] != nil {
				v = flat[i][k]
			}
			row[targets[j]] = ToNullText(v)
		}
	}

	for _, t := range targets {
		rs.addColumn(t)
	}
}

// contactTargets maps contact keys to output column names. A key that
// collides with an existing column, or that would reintroduce contact_info
// itself, is namespaced under contact_info. Must run while contact_info is
// still a column.
func contactTargets(rs *RecordSet, keys []string) []string {
	prefix := ColContactInfo + "."
	targets := make([]string, len(keys))
	for i, k := range keys {
		targets[i] = k
		if k == ColContactInfo || strings.HasPrefix(k, prefix) || rs.HasColumn(k) {
			targets[i] = prefix + k
		}
	}
	return targets
}

func isContactField(key string) bool {
	for _, f := range ContactFields {
		if f == key {
			return true
		}
	}
	return false
}
