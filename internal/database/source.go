package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrUnknownTable is returned for a logical table with no source relation.
var ErrUnknownTable = errors.New("unknown table")

// SourceRelations maps logical table names to the raw relations they are
// extracted from.
var SourceRelations = map[string]string{
	core.TableStudents: "cademycode_students",
	core.TableCourses:  "cademycode_courses",
	core.TableJobs:     "cademycode_student_jobs",
}

// Querier is the subset of pgxpool.Pool used for reads.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Source extracts raw tables with a fixed SELECT * per relation.
type Source struct {
	db     Querier
	schema string
	sb     squirrel.StatementBuilderType
}

// NewSource creates a Source reading relations from schema.
func NewSource(db Querier, schema string) *Source {
	return &Source{
		db:     db,
		schema: schema,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Extract reads every row of the relation backing table. The record set is
// named after the logical table and keeps the driver's column order.
func (s *Source) Extract(ctx context.Context, table string) (*core.RecordSet, error) {
	relation, ok := SourceRelations[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	query, args, err := s.selectAll(relation)
	if err != nil {
		return nil, fmt.Errorf("build select %s: %w", relation, err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", relation, err)
	}
	defer rows.Close()

	rs, err := collectRecordSet(table, rows)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relation, err)
	}
	return rs, nil
}

func (s *Source) selectAll(relation string) (string, []any, error) {
	return s.sb.Select("*").
		From(qualified(s.schema, relation)).
		ToSql()
}

// collectRecordSet drains rows into a record set.
func collectRecordSet(name string, rows pgx.Rows) (*core.RecordSet, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	rs := core.NewRecordSet(name, columns...)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("decode row %d: %w", rs.Len()+1, err)
		}
		for i, v := range values {
			values[i] = sourceValue(v)
		}
		rs.Append(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// sourceValue rewrites driver values the cleaners do not understand.
// UUID columns decode to [16]byte and are turned into their canonical string.
func sourceValue(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	}
	return v
}

// qualified returns a sanitized schema-qualified identifier. An empty schema
// leaves resolution to the search_path.
func qualified(schema, name string) string {
	if schema == "" {
		return pgx.Identifier{name}.Sanitize()
	}
	return pgx.Identifier{schema, name}.Sanitize()
}
