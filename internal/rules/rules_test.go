package rules

import (
	"testing"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
	"github.com/stretchr/testify/assert"
)

// S4 setup: Hash Join over two scans, no regression params.
func scenarioS4Plan() *planmodel.PlanNode {
	return &planmodel.PlanNode{
		NodeType: "Hash Join", CurrentState: Running, PlanRows: 1, ActualRows: 0,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", ParentRelationship: "Outer", CurrentState: Running, PlanRows: 100, ActualRows: 50, ActualLoops: 1},
			{NodeType: "Seq Scan", ParentRelationship: "Inner", CurrentState: Running, PlanRows: 10, ActualRows: 10, ActualLoops: 1},
		},
	}
}

func TestRule3FinishesInnerScanOnceLooped(t *testing.T) {
	plan := scenarioS4Plan()
	ApplyRules(plan)
	assert.Equal(t, Finished, plan.Plans[1].CurrentState)
}

func TestRule4LeavesOuterRunningWhenUnderPlan(t *testing.T) {
	plan := scenarioS4Plan()
	ApplyRules(plan)
	assert.Equal(t, Running, plan.Plans[0].CurrentState)
}

func TestRule4FinishesOuterWhenMetPlan(t *testing.T) {
	plan := scenarioS4Plan()
	plan.Plans[0].ActualRows = 150
	ApplyRules(plan)
	assert.Equal(t, Finished, plan.Plans[0].CurrentState)
}

func TestRule2FinishesMaterializeOnceStarted(t *testing.T) {
	n := &planmodel.PlanNode{NodeType: "Materialize", CurrentState: Running, ActualRows: 5}
	ApplyRules(n)
	assert.Equal(t, Finished, n.CurrentState)
}

func TestRule2LeavesMaterializeRunningWhenIdle(t *testing.T) {
	n := &planmodel.PlanNode{NodeType: "Materialize", CurrentState: Running}
	ApplyRules(n)
	assert.Equal(t, Running, n.CurrentState)
}

func TestRule1FinishesBothChildrenOnJoinFilterMatch(t *testing.T) {
	plan := &planmodel.PlanNode{
		NodeType: "Hash Join", CurrentState: Running, PlanRows: 10, ActualRows: 20,
		RowsRemovedByJoinFilter: 3,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", ParentRelationship: "Outer", CurrentState: Running},
			{NodeType: "Seq Scan", ParentRelationship: "Inner", CurrentState: Running},
		},
	}
	ApplyRules(plan)
	assert.Equal(t, Finished, plan.Plans[0].CurrentState)
	assert.Equal(t, Finished, plan.Plans[1].CurrentState)
}

func TestRule6RewritesPlanRowsFromOuterChild(t *testing.T) {
	plan := &planmodel.PlanNode{
		NodeType: "Hash Join", CurrentState: Running, PlanRows: 1, ActualRows: 1000,
		Plans: []*planmodel.PlanNode{
			{NodeType: "Seq Scan", ParentRelationship: "Outer", CurrentState: Finished, PlanRows: 900},
			{NodeType: "Seq Scan", ParentRelationship: "Inner", CurrentState: Finished, PlanRows: 10},
		},
	}
	ApplyRules(plan)
	assert.Equal(t, 900.0, plan.PlanRows)
}

func TestRule5FinishesRootLevelScan(t *testing.T) {
	n := &planmodel.PlanNode{NodeType: "Seq Scan", CurrentState: Running}
	ApplyRules(n)
	assert.Equal(t, Finished, n.CurrentState)
}

func TestGuardSkipsNonRunningNodes(t *testing.T) {
	n := &planmodel.PlanNode{NodeType: "Seq Scan", CurrentState: Waiting}
	ApplyRules(n)
	assert.Equal(t, Waiting, n.CurrentState)
}
