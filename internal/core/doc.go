// Package core provides the transform-and-validate layer of the student
// pipeline.
//
// This package is the heart of the pipeline, containing all data cleaning
// logic independent of where the data comes from or where it goes. It can be
// driven by the pipeline runner, tests, or one-off tools without modification.
//
// # Record Sets
//
// Tables move through the pipeline as [RecordSet] values: an ordered column
// list plus rows keyed by column name. Raw sets hold whatever the source
// returned; cleaned sets hold pgtype values where Valid=false is the absence
// marker:
//
//	students, err := core.CleanStudents(raw, diag)
//	if err != nil {
//	    return err // structural problem, e.g. a column is missing
//	}
//	id := students.Rows[0][core.ColJobID].(pgtype.Int8)
//
// # Cleaning
//
// [CleanStudents], [CleanCourses] and [CleanJobs] coerce their typed columns,
// flatten nested JSON (students contact_info), and drop rows without a
// primary identifier. Cleaning is pure: the input is cloned, never modified,
// and cleaning an already cleaned set returns an equal set.
//
// # Foreign Key Audit
//
// [AuditForeignKeys] counts student references that do not resolve to a job
// or course. Findings are reported, never enforced.
//
// # Diagnostics
//
// Data-quality problems are never returned as errors. They are emitted as
// [Event] values into a [Diagnostics] sink, one aggregated event per
// deviation with the affected row count:
//
//   - rows_dropped: rows removed for a missing primary identifier
//   - coercion_failed: non-blank cells that could not be converted
//   - invalid_json: contact_info values that are not JSON objects
//   - dangling_reference: foreign keys with no matching target row
//
// Use [Collector] to keep events for a run summary, [SlogSink] to log them,
// and [Tee] to do both.
package core
