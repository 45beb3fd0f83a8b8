package parallel

import (
	"testing"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherLeader() *planmodel.PlanNode {
	return &planmodel.PlanNode{
		NodeType:        "Gather",
		WorkersPlanned:  &planmodel.Num{Value: 2},
		WorkersLaunched: &planmodel.Num{Value: 2},
		Plans: []*planmodel.PlanNode{
			{
				NodeType:           "Seq Scan",
				ParentRelationship: "Outer",
				PlanRows:           1000,
				ActualRows:         300,
				ActualLoops:        1,
			},
		},
	}
}

// S5: parallel merge.
func TestMergeRowsScenarioS5(t *testing.T) {
	leader := gatherLeader()
	numPlanWorkers, numWorkers := PrepareMerge(leader)
	require.Equal(t, 3.0, numPlanWorkers)
	require.Equal(t, 3.0, numWorkers)

	scan := leader.Plans[0]
	require.True(t, scan.MergeFlag)
	require.Equal(t, 3.0, scan.NormalizePlanParam)

	worker1 := &planmodel.PlanNode{NodeType: "Gather", Plans: []*planmodel.PlanNode{
		{NodeType: "Seq Scan", ParentRelationship: "Outer", ActualRows: 300},
	}}
	worker2 := &planmodel.PlanNode{NodeType: "Gather", Plans: []*planmodel.PlanNode{
		{NodeType: "Seq Scan", ParentRelationship: "Outer", ActualRows: 300},
	}}
	MergeRows(leader, []*planmodel.PlanNode{worker1, worker2})

	assert.Equal(t, 900.0, scan.ActualRows)
	assert.Equal(t, 3000.0, scan.PlanRows)
}

// S6: extrapolation when one worker plan has already stopped reporting.
func TestExtrapolateRowsScenarioS6(t *testing.T) {
	leader := gatherLeader()
	_, numWorkers := PrepareMerge(leader)
	require.Equal(t, 3.0, numWorkers)

	scan := leader.Plans[0]
	worker1 := &planmodel.PlanNode{NodeType: "Gather", Plans: []*planmodel.PlanNode{
		{NodeType: "Seq Scan", ParentRelationship: "Outer", ActualRows: 300},
	}}
	MergeRows(leader, []*planmodel.PlanNode{worker1})
	require.Equal(t, 600.0, scan.ActualRows)

	if float64(1+1) < numWorkers {
		ExtrapolateRows(leader, numWorkers, 2)
	}
	assert.Equal(t, 900.0, scan.ActualRows)
}

// P3: merge_plans(leader, []) leaves Actual Rows unchanged, Plan Rows
// possibly scaled by NormalizePlanParam on mergeable nodes.
func TestMergePlansNoWorkers(t *testing.T) {
	leader := gatherLeader()
	scan := leader.Plans[0]
	before := scan.ActualRows
	MergePlans(leader, nil)
	assert.Equal(t, before, scan.ActualRows)
	assert.Equal(t, 3000.0, scan.PlanRows)
}

func TestPrepareMergeAggregateNeverMergeable(t *testing.T) {
	root := &planmodel.PlanNode{
		NodeType:        "Gather",
		WorkersPlanned:  &planmodel.Num{Value: 2},
		WorkersLaunched: &planmodel.Num{Value: 2},
		Plans: []*planmodel.PlanNode{
			{
				NodeType:           "Aggregate",
				ParentRelationship: "Outer",
				ActualRows:         10,
				ActualLoops:        1,
			},
		},
	}
	PrepareMerge(root)
	assert.False(t, root.Plans[0].MergeFlag)
}

func TestPrepareMergeInnerBranchNotMergeable(t *testing.T) {
	root := &planmodel.PlanNode{
		NodeType:        "Gather",
		WorkersPlanned:  &planmodel.Num{Value: 2},
		WorkersLaunched: &planmodel.Num{Value: 2},
		Plans: []*planmodel.PlanNode{
			{
				NodeType:           "Hash Join",
				ParentRelationship: "Outer",
				ActualRows:         10,
				ActualLoops:        1,
				Plans: []*planmodel.PlanNode{
					{NodeType: "Seq Scan", ParentRelationship: "Outer", ActualRows: 5, ActualLoops: 1},
					{NodeType: "Seq Scan", ParentRelationship: "Inner", ActualRows: 5, ActualLoops: 1},
				},
			},
		},
	}
	PrepareMerge(root)
	hj := root.Plans[0]
	assert.True(t, hj.MergeFlag)
	assert.True(t, hj.Plans[0].MergeFlag)
	assert.False(t, hj.Plans[1].MergeFlag)
}
