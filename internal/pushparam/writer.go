package pushparam

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
)

// Writer persists one query's formatted regression record, along with
// its disk-spill watermark when the fit produced one.
type Writer interface {
	WriteParams(ctx context.Context, queryID int64, sortSpaceUsed *float64, record string) error
}

// SQLWriter writes formatted records into the query_plan.reg table via
// database/sql, upserting on queryid. sort_space_used is only present
// in the written row when the caller supplies one: work_mem tracking
// is conditional on whether the fit actually measured a disk sort.
type SQLWriter struct {
	db *sql.DB
}

func NewSQLWriter(db *sql.DB) *SQLWriter {
	return &SQLWriter{db: db}
}

func (w *SQLWriter) WriteParams(ctx context.Context, queryID int64, sortSpaceUsed *float64, record string) error {
	if sortSpaceUsed == nil {
		_, err := w.db.ExecContext(ctx, `
			INSERT INTO query_plan.reg (queryid, params)
			VALUES ($1, $2)
			ON CONFLICT (queryid) DO UPDATE SET params = EXCLUDED.params, sort_space_used = NULL
		`, queryID, record)
		return err
	}
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO query_plan.reg (queryid, sort_space_used, params)
		VALUES ($1, $2, $3)
		ON CONFLICT (queryid) DO UPDATE SET sort_space_used = EXCLUDED.sort_space_used, params = EXCLUDED.params
	`, queryID, int64(*sortSpaceUsed), record)
	return err
}

var _ Writer = (*SQLWriter)(nil)
