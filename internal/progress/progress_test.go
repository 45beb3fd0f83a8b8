package progress

import (
	"strings"
	"testing"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripModifyTableDescendsOneLevel(t *testing.T) {
	inner := &planmodel.PlanNode{NodeType: "Seq Scan"}
	root := &planmodel.PlanNode{NodeType: "ModifyTable", Plans: []*planmodel.PlanNode{inner}}
	assert.Same(t, inner, StripModifyTable(root))
}

func TestStripModifyTableLeavesOtherRootsAlone(t *testing.T) {
	root := &planmodel.PlanNode{NodeType: "Seq Scan"}
	assert.Same(t, root, StripModifyTable(root))
}

func TestPrepareCalcNodeRegressionModeForcesFinished(t *testing.T) {
	root := &planmodel.PlanNode{
		NodeType: "Hash Join", ActualRows: 5,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", ActualRows: 1},
			{NodeType: "Seq Scan", ActualRows: 1},
		},
	}
	PrepareCalcNode(root, true)
	planmodel.Map(root, func(n *planmodel.PlanNode) {
		assert.Equal(t, stateFinished, n.CurrentState)
	})
}

func TestPrepareCalcNodeHeuristicWaitingUntilActivity(t *testing.T) {
	root := &planmodel.PlanNode{
		NodeType: "Seq Scan", ActualRows: 0, ActualLoops: 0,
	}
	PrepareCalcNode(root, false)
	assert.Equal(t, stateWaiting, root.CurrentState)
}

func TestPrepareCalcNodeHeuristicTransitionsToRunningThenFinished(t *testing.T) {
	// The first child of a Running parent can never be finished purely
	// by inheriting Running: "outer running" starts false for every
	// sibling list and only becomes true once a preceding sibling has
	// itself looped.
	root := &planmodel.PlanNode{
		NodeType: "Hash Join", ActualRows: 10, ActualLoops: 1,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", ActualRows: 4, ActualLoops: 1},
			{NodeType: "Seq Scan", ActualRows: 10, ActualLoops: 1},
		},
	}
	PrepareCalcNode(root, false)
	assert.Equal(t, stateRunning, root.CurrentState)
	assert.Equal(t, stateRunning, root.Plans[0].CurrentState)
	assert.Equal(t, stateFinished, root.Plans[1].CurrentState)
}

func TestPrepareCalcNodeHeuristicFirstChildNeverFinishesFromInheritedStateAlone(t *testing.T) {
	root := &planmodel.PlanNode{
		NodeType: "Hash Join", ActualRows: 10, ActualLoops: 1,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", ActualRows: 10, ActualLoops: 1},
		},
	}
	PrepareCalcNode(root, false)
	assert.Equal(t, stateRunning, root.CurrentState)
	assert.Equal(t, stateRunning, root.Plans[0].CurrentState)
}

func TestCalcSingleInputRegressionUsesMaxOfPlanAndActual(t *testing.T) {
	n := &planmodel.PlanNode{NodeType: "Seq Scan", PlanRows: 100, ActualRows: 300}
	CalcNode(n, true)
	assert.Equal(t, 300.0, n.PlanPoints)
	assert.Equal(t, 300.0, n.ActualPoints)
}

func TestCalcSingleInputSortUsesNLogNShape(t *testing.T) {
	n := &planmodel.PlanNode{NodeType: "Sort", PlanRows: 8, ActualRows: 8, CurrentState: stateFinished}
	CalcNode(n, false)
	assert.InDelta(t, 8*3.0, n.PlanPoints, 1e-9) // 8*log2(8) = 24
}

func TestCalcSingleInputHeuristicFinishedUsesActualOnly(t *testing.T) {
	n := &planmodel.PlanNode{NodeType: "Seq Scan", PlanRows: 50, ActualRows: 70, CurrentState: stateFinished}
	CalcNode(n, false)
	assert.Equal(t, 70.0, n.ExpectedRows)
	assert.Equal(t, n.PlanPoints, n.ActualPoints)
}

func TestCalcJoinNestedLoopRegressionMultiplies(t *testing.T) {
	n := &planmodel.PlanNode{
		NodeType: "Nested Loop", ActualLoops: 1,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", PlanRows: 10, ActualRows: 10},
			{NodeType: "Seq Scan", PlanRows: 4, ActualRows: 4},
		},
	}
	CalcNode(n, true)
	assert.Equal(t, 40.0, n.PlanPoints)
	assert.Equal(t, 40.0, n.ActualPoints)
}

func TestCalcJoinHeuristicFinishedSetsExpectedToEstimate(t *testing.T) {
	n := &planmodel.PlanNode{
		NodeType: "Hash Join", ActualRows: 20, CurrentState: stateFinished,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", PlanRows: 10, ActualRows: 10},
			{NodeType: "Seq Scan", PlanRows: 10, ActualRows: 10},
		},
	}
	CalcNode(n, false)
	assert.Equal(t, 20.0, n.PlanPoints) // comb(10,10) = 20 for Hash Join (add)
	assert.Equal(t, 20.0, n.ExpectedRows)
	assert.Equal(t, 20.0, n.ActualPoints)
}

func TestCountPointsZeroPlanSumYieldsZeroProgress(t *testing.T) {
	root := &planmodel.PlanNode{NodeType: "Result"}
	assert.Equal(t, 0.0, CountPoints(root))
}

func TestCountPointsClampsToOne(t *testing.T) {
	root := &planmodel.PlanNode{NodeType: "Seq Scan", ActualRows: 10, PlanPoints: 5, ActualPoints: 50}
	assert.Equal(t, 1.0, CountPoints(root))
}

// S4: Hash Join with no regression parameters. The preparation pass
// finishes the inner scan (its preceding sibling has looped), rule4
// finishes the outer scan since it has met its plan, and the join's own
// actual points equal its actual rows exactly.
func TestCalculateHeuristicHashJoinScenarioS4(t *testing.T) {
	plan := &planmodel.PlanNode{
		NodeType: "Hash Join", PlanRows: 1, ActualRows: 100, ActualLoops: 1,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", ParentRelationship: "Outer", PlanRows: 100, ActualRows: 100, ActualLoops: 1},
			{NodeType: "Seq Scan", ParentRelationship: "Inner", PlanRows: 10, ActualRows: 10, ActualLoops: 1},
		},
	}
	progress, err := Calculate("srv1", 42, 7, plan, noRegressionSource{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, progress, 0.0)
	assert.LessOrEqual(t, progress, 1.0)
}

type noRegressionSource struct{}

func (noRegressionSource) RegressionParams(serverID string, queryID, planID int64) (*regression.ParamTree, bool, error) {
	return nil, false, nil
}

type fixedRegressionSource struct {
	tree *regression.ParamTree
}

func (s fixedRegressionSource) RegressionParams(serverID string, queryID, planID int64) (*regression.ParamTree, bool, error) {
	return s.tree, true, nil
}

func TestCalculateRegressionModeReplacesRowsBeforeScoring(t *testing.T) {
	plan := &planmodel.PlanNode{
		NodeType: "Seq Scan", PlanRows: 50, ActualRows: 50, ActualLoops: 1,
		NormalizeParam: 1, NormalizePlanParam: 1,
	}
	params := &regression.ParamTree{Root: &regression.ParamNode{
		NodeType: "Seq Scan", Coefficient: []float64{2}, Intercept: []float64{0},
	}}
	progress, err := Calculate("srv1", 1, 1, plan, fixedRegressionSource{params})
	require.NoError(t, err)
	assert.Equal(t, 100.0, plan.PlanRows)
	assert.Equal(t, 0.5, progress) // ActualPoints(50) / PlanPoints(max(100,50)=100)
}

func TestResolveMissingQueryIDsFillsFromMatchingHash(t *testing.T) {
	records := []WorkerRecord{
		{IsLeader: true, QueryID: 9, QueryHash: "abc"},
		{IsLeader: false, QueryID: 0, QueryHash: "abc"},
	}
	resolved := ResolveMissingQueryIDs(records)
	assert.Equal(t, int64(9), resolved[1].QueryID)
}

func TestUniqueQueryIDsSortsAndDedups(t *testing.T) {
	records := []WorkerRecord{{QueryID: 5}, {QueryID: 2}, {QueryID: 5}}
	assert.Equal(t, []int64{2, 5}, UniqueQueryIDs(records))
}

func TestRenderBarFullyComplete(t *testing.T) {
	s := RenderBar(1.0, false)
	assert.Equal(t, 50, strings.Count(s, "█"))
	assert.Contains(t, s, "100.00%")
}

func TestRenderBarClampsNegativeAndOverOne(t *testing.T) {
	assert.Contains(t, RenderBar(-0.5, true), "0.00%")
	assert.Contains(t, RenderBar(1.5, true), "100.00%")
}

func TestRenderBarUsesFractionalCellAtHalfway(t *testing.T) {
	s := RenderBar(0.5, false)
	// 50% of width 50 -> 25 whole cells, then the fractional cell from
	// the (p%2)*2 branch, which is a blank at an even percentage.
	assert.Equal(t, 25, strings.Count(s, "█"))
	assert.Contains(t, s, "50.00%")
}

func TestRenderBarSmallUsesNarrowerWidth(t *testing.T) {
	small := RenderBar(0.5, true)
	large := RenderBar(0.5, false)
	assert.Less(t, len([]rune(small)), len([]rune(large)))
}
