package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/JonMunkholm/cademycode/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Column types inferred for cleaned record sets.
const (
	TypeBigint    = "BIGINT"
	TypeDouble    = "DOUBLE PRECISION"
	TypeNumeric   = "NUMERIC"
	TypeDate      = "DATE"
	TypeTimestamp = "TIMESTAMPTZ"
	TypeBoolean   = "BOOLEAN"
	TypeJSON      = "JSONB"
	TypeText      = "TEXT"
)

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Destination replaces whole relations: each Replace drops the target table,
// recreates it from the record set's inferred column types and bulk-loads the
// rows with COPY, all inside one transaction. Separate calls are independent.
type Destination struct {
	db     Beginner
	schema string
}

// NewDestination creates a Destination writing into schema.
func NewDestination(db Beginner, schema string) *Destination {
	return &Destination{db: db, schema: schema}
}

// Replace writes rs to the relation named rs.Name and returns the row count.
func (d *Destination) Replace(ctx context.Context, rs *core.RecordSet) (int64, error) {
	if rs == nil {
		return 0, core.ErrNilRecordSet
	}

	start := time.Now()
	types := InferColumnTypes(rs)
	ident := identifier(d.schema, rs.Name)

	var copied int64
	err := pgx.BeginFunc(ctx, d.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
			return fmt.Errorf("drop: %w", err)
		}
		if _, err := tx.Exec(ctx, createTableSQL(ident, rs.Columns, types)); err != nil {
			return fmt.Errorf("create: %w", err)
		}
		n, err := tx.CopyFrom(ctx, ident, rs.Columns, pgx.CopyFromRows(copyRows(rs, types)))
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		copied = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replace %s: %w", ident.Sanitize(), err)
	}

	logging.WithFields(ctx, "table", rs.Name).Debug("relation replaced",
		"rows", copied,
		"columns", len(rs.Columns),
		"duration", time.Since(start),
	)
	return copied, nil
}

func identifier(schema, name string) pgx.Identifier {
	if schema == "" {
		return pgx.Identifier{name}
	}
	return pgx.Identifier{schema, name}
}

func createTableSQL(ident pgx.Identifier, columns, types []string) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = pgx.Identifier{col}.Sanitize() + " " + types[i]
	}
	return "CREATE TABLE " + ident.Sanitize() + " (" + strings.Join(defs, ", ") + ")"
}

// InferColumnTypes picks a SQL type per column from its non-null values.
// Integers mixed with floats widen to DOUBLE PRECISION; any other mix, and a
// column with no values at all, falls back to TEXT.
func InferColumnTypes(rs *core.RecordSet) []string {
	types := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		typ := ""
		for _, v := range rs.Values(col) {
			if core.IsNull(v) {
				continue
			}
			typ = widen(typ, typeOf(v))
			if typ == TypeText {
				break
			}
		}
		if typ == "" {
			typ = typeOfZero(rs, col)
		}
		types[i] = typ
	}
	return types
}

// typeOfZero types an all-null column from the pgtype wrapper it carries, so a
// cleaned numeric column with no valid values is still created as a number.
func typeOfZero(rs *core.RecordSet, col string) string {
	for _, row := range rs.Rows {
		switch row[col].(type) {
		case pgtype.Int8, pgtype.Int4, pgtype.Int2:
			return TypeBigint
		case pgtype.Float8, pgtype.Float4:
			return TypeDouble
		case pgtype.Date:
			return TypeDate
		}
	}
	return TypeText
}

func typeOf(v any) string {
	switch v.(type) {
	case pgtype.Int8, pgtype.Int4, pgtype.Int2,
		int, int8, int16, int32, int64, uint8, uint16, uint32:
		return TypeBigint
	case pgtype.Float8, pgtype.Float4, float32, float64:
		return TypeDouble
	case pgtype.Numeric:
		return TypeNumeric
	case pgtype.Date:
		return TypeDate
	case time.Time, pgtype.Timestamp, pgtype.Timestamptz:
		return TypeTimestamp
	case bool, pgtype.Bool:
		return TypeBoolean
	case map[string]any, []any:
		return TypeJSON
	}
	return TypeText
}

func widen(current, next string) string {
	switch {
	case current == "" || current == next:
		return next
	case isNumber(current) && isNumber(next):
		return TypeDouble
	}
	return TypeText
}

func isNumber(typ string) bool {
	return typ == TypeBigint || typ == TypeDouble || typ == TypeNumeric
}

// copyRows converts rows into COPY tuples matching types. Absent cells become
// SQL NULL.
func copyRows(rs *core.RecordSet, types []string) [][]any {
	tuples := rs.Tuples()
	for _, tuple := range tuples {
		for i, v := range tuple {
			tuple[i] = cellValue(v, types[i])
		}
	}
	return tuples
}

func cellValue(v any, typ string) any {
	if core.IsNull(v) {
		return nil
	}
	switch typ {
	case TypeText:
		if t := core.ToNullText(core.Plain(v)); t.Valid {
			return t.String
		}
		return nil
	case TypeDouble:
		if f := core.ToNullFloat(v); f.Valid {
			return f.Float64
		}
		return nil
	case TypeBigint:
		if n := core.ToNullInt(v); n.Valid {
			return n.Int64
		}
		return nil
	}
	return v
}
