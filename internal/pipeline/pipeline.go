package pipeline

import (
	"context"
	"errors"

	"github.com/JonMunkholm/cademycode/internal/core"
)

// ErrRunInProgress is returned by Run when another run holds the runner.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Tables lists the logical tables in extraction order.
var Tables = []string{core.TableStudents, core.TableCourses, core.TableJobs}

// Source reads one raw logical table.
type Source interface {
	Extract(ctx context.Context, table string) (*core.RecordSet, error)
}

// Destination replaces the relation named by rs.Name with the contents of rs
// and returns the number of rows written.
type Destination interface {
	Replace(ctx context.Context, rs *core.RecordSet) (int64, error)
}

// History persists run summaries.
type History interface {
	Record(ctx context.Context, s *Summary) error
}

// Exporter writes the cleaned tables and the run diagnostics somewhere outside
// the destination store.
type Exporter interface {
	Export(tables []*core.RecordSet, events []core.Event) error
}

// Observer is notified once per finished run.
type Observer interface {
	ObserveRun(s *Summary)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(*Summary)

// ObserveRun calls f(s).
func (f ObserverFunc) ObserveRun(s *Summary) { f(s) }
