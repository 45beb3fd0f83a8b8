package pushparam

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTreeOnlyIncludesJoinsAndLeaves(t *testing.T) {
	tree := &regression.ParamNode{
		NodeType: "Hash Join", Coefficient: []float64{0, 0}, Coefficient2: []float64{2}, Intercept: []float64{1},
		Plans: []*regression.ParamNode{
			{NodeType: "Seq Scan", Schema: "public", RelationName: "orders", Coefficient: []float64{1.5}, Intercept: []float64{0}},
			{NodeType: "Materialize", Plans: []*regression.ParamNode{
				{NodeType: "Seq Scan", Schema: "public", RelationName: "lines", Coefficient: []float64{1}, Intercept: []float64{0}},
			}},
		},
	}
	record := FormatTree(tree)
	assert.Contains(t, record, `"Seq Scan"`)
	assert.Contains(t, record, `"Hash Join"`)
	assert.NotContains(t, record, `"Materialize"`)
}

func TestFormatTreeRelationTuplesUseSchemaDotRelation(t *testing.T) {
	tree := &regression.ParamNode{NodeType: "Seq Scan", Schema: "public", RelationName: "orders", Coefficient: []float64{1}, Intercept: []float64{0}}
	record := FormatTree(tree)
	assert.Contains(t, record, "(public.orders)")
}

func TestFormatTreeEmptyRelationIsEmptyTuple(t *testing.T) {
	tree := &regression.ParamNode{NodeType: "Seq Scan"}
	record := FormatTree(tree)
	assert.Contains(t, record, "():():")
}

func TestFormatTreeJoinsMultipleVisibleNodesWithSemicolon(t *testing.T) {
	tree := &regression.ParamNode{
		NodeType: "Nested Loop", Coefficient: []float64{1},
		Plans: []*regression.ParamNode{
			{NodeType: "Seq Scan", Coefficient: []float64{1}, Intercept: []float64{0}},
			{NodeType: "Seq Scan", Coefficient: []float64{1}, Intercept: []float64{0}},
		},
	}
	record := FormatTree(tree)
	assert.Equal(t, 3, len(splitRecords(record)))
}

func splitRecords(record string) []string {
	var out []string
	depth := 0
	start := 0
	for i, c := range record {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
		case ';':
			if depth == 0 {
				out = append(out, record[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, record[start:])
	return out
}

func TestSQLWriterIssuesUpsertOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO query_plan.reg \\(queryid, params\\)").
		WithArgs(int64(42), "record-body").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := NewSQLWriter(db)
	require.NoError(t, w.WriteParams(context.Background(), 42, nil, "record-body"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLWriterIncludesSortSpaceUsedWhenPresent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sortSpaceUsed := 1048576.0
	mock.ExpectExec("INSERT INTO query_plan.reg \\(queryid, sort_space_used, params\\)").
		WithArgs(int64(42), int64(1048576), "record-body").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := NewSQLWriter(db)
	require.NoError(t, w.WriteParams(context.Background(), 42, &sortSpaceUsed, "record-body"))
	require.NoError(t, mock.ExpectationsWereMet())
}
