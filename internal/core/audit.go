package core

import "fmt"

// ForeignKey describes a reference from one table's column to another
// table's primary identifier.
type ForeignKey struct {
	Table      string
	Column     string
	References string
	RefColumn  string
}

// StudentForeignKeys are the references audited between the cleaned tables.
var StudentForeignKeys = []ForeignKey{
	{Table: TableStudents, Column: ColJobID, References: TableJobs, RefColumn: ColJobID},
	{Table: TableStudents, Column: ColCurrentCareerPathID, References: TableCourses, RefColumn: ColCareerPathID},
}

// AuditForeignKeys reports student rows whose job_id or
// current_career_path_id has no matching job or course.
//
// The check is advisory: dangling references are reported as one warning per
// relationship with the violation count, and the record sets are never
// modified. An error is returned only when an expected column is missing.
func AuditForeignKeys(students, jobs, courses *RecordSet, d Diagnostics) error {
	if err := students.Require(ColJobID, ColCurrentCareerPathID); err != nil {
		return fmt.Errorf("audit foreign keys: %w", err)
	}
	if err := jobs.Require(ColJobID); err != nil {
		return fmt.Errorf("audit foreign keys: %w", err)
	}
	if err := courses.Require(ColCareerPathID); err != nil {
		return fmt.Errorf("audit foreign keys: %w", err)
	}

	targets := map[string]*RecordSet{
		TableJobs:    jobs,
		TableCourses: courses,
	}

	for _, fk := range StudentForeignKeys {
		n := danglingReferences(students, fk.Column, targets[fk.References], fk.RefColumn)
		if n == 0 {
			continue
		}
		emit(d, Event{
			Severity: SeverityWarning,
			Kind:     KindDanglingReference,
			Message:  fmt.Sprintf("found students with invalid %s", fk.Column),
			Table:    fk.Table,
			Field:    fk.Column,
			Count:    n,
			Detail:   fk.References + "." + fk.RefColumn,
		})
	}

	return nil
}

// danglingReferences counts non-null from[fromCol] values missing in to[toCol].
func danglingReferences(from *RecordSet, fromCol string, to *RecordSet, toCol string) int {
	keys := make(map[int64]struct{}, len(to.Rows))
	for _, v := range to.Values(toCol) {
		if k := ToNullInt(v); k.Valid {
			keys[k.Int64] = struct{}{}
		}
	}

	n := 0
	for _, v := range from.Values(fromCol) {
		ref := ToNullInt(v)
		if !ref.Valid {
			continue
		}
		if _, ok := keys[ref.Int64]; !ok {
			n++
		}
	}
	return n
}
