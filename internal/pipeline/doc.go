// Package pipeline orchestrates one ETL run: extract the three raw tables,
// clean them, audit cross-table references and replace the destination
// relations.
//
// A Runner owns the collaborators (source, destination, optional history,
// exporter and observers) and allows a single run at a time. Data-quality
// findings never fail a run; they are collected as core.Event values on the
// run Summary. Structural and I/O errors abort the run and are returned
// wrapped with the stage that failed.
package pipeline
