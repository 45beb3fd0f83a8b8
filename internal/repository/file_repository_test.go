package repository

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/grouping"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *FileRepository {
	t.Helper()
	repo, err := NewFileRepository(t.TempDir(), 8)
	require.NoError(t, err)
	return repo
}

func TestRegressionParamsMissingReturnsFalseNotError(t *testing.T) {
	repo := newTestRepo(t)
	params, useRegression, err := repo.RegressionParams("srv1", 1, 2)
	require.NoError(t, err)
	assert.False(t, useRegression)
	assert.Nil(t, params)
}

func TestSaveAndLoadRegressionParamsRoundTrips(t *testing.T) {
	repo := newTestRepo(t)
	tree := &regression.ParamTree{
		Root: &regression.ParamNode{NodeType: "Seq Scan", Coefficient: []float64{2, 0}},
	}
	require.NoError(t, repo.SaveRegressionParams("srv1", 10, 20, tree))

	loaded, ok, err := repo.RegressionParams("srv1", 10, 20)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Seq Scan", loaded.Root.NodeType)
	assert.Equal(t, []float64{2, 0}, loaded.Root.Coefficient)
}

func TestRegressionParamsServesFromCacheOnSecondLookup(t *testing.T) {
	repo := newTestRepo(t)
	tree := &regression.ParamTree{Root: &regression.ParamNode{NodeType: "Seq Scan"}}
	require.NoError(t, repo.SaveRegressionParams("srv1", 1, 1, tree))

	first, _, err := repo.RegressionParams("srv1", 1, 1)
	require.NoError(t, err)
	second, _, err := repo.RegressionParams("srv1", 1, 1)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSaveAndLoadGroupingSampleRoundTrips(t *testing.T) {
	repo := newTestRepo(t)
	sample := grouping.Node{"Node Type": "Seq Scan", "Plan Rows": []interface{}{10.0, 20.0}}
	require.NoError(t, repo.SaveGroupingSample("srv1", 5, 6, sample))

	loaded, err := repo.GroupingSample("srv1", 5, 6)
	require.NoError(t, err)
	assert.Equal(t, "Seq Scan", loaded["Node Type"])
}

func TestGroupingSampleMissingReturnsNilNode(t *testing.T) {
	repo := newTestRepo(t)
	node, err := repo.GroupingSample("srv1", 99, 99)
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestWatermarkDefaultsToZeroBeforeAnyWrite(t *testing.T) {
	repo := newTestRepo(t)
	seq, err := repo.Watermark("srv1", TierTables)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestSetWatermarkThenReadRoundTrips(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.SetWatermark("srv1", TierGrouping, 42))
	seq, err := repo.Watermark("srv1", TierGrouping)
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)
}

func TestAppendLogRowWritesCsvAndTextFiles(t *testing.T) {
	repo := newTestRepo(t)
	row := LogRow{
		SeqID: 1, StartTime: time.Now(), EndTime: time.Now(),
		Database: "appdb", PID: 100, NestedLevel: 0,
		QueryID: 777, Query: "select 1", PlanID: 888,
		Plan: "Seq Scan on t", PlanJSON: `{"Plan":{"Node Type":"Seq Scan"}}`,
	}
	require.NoError(t, repo.AppendLogRow("srv1", row))

	data, err := os.ReadFile(filepath.Join(repo.queryTextDir("srv1", 777), strconv.Itoa(1)))
	require.NoError(t, err)
	assert.Equal(t, "select 1", string(data))
}
