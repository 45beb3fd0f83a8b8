// Package progress implements the progress calculator (C8) and the
// query-time orchestrator (spec §4.8, §4.9).
package progress

import (
	"math"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
)

const (
	stateWaiting  = "Waiting"
	stateRunning  = "Running"
	stateFinished = "Finished"
)

// StripModifyTable removes a ModifyTable root, descending into its sole
// child, per spec §4.8's "ModifyTable stripping" rule.
func StripModifyTable(root *planmodel.PlanNode) *planmodel.PlanNode {
	if root != nil && root.NodeType == "ModifyTable" && len(root.Plans) > 0 {
		return root.Plans[0]
	}
	return root
}

// PrepareCalcNode runs the preparation pass of §4.8: strip is handled by
// the caller via StripModifyTable; here every node with Actual Rows gets
// ExpectedRows/ActualPoints/PlanPoints reset, and CurrentState is set
// either uniformly to Finished (regression mode) or by the Waiting ->
// Running -> Finished state machine (heuristic mode).
//
// The state machine threads two distinct signals down the tree: the
// inherited state (Waiting/Running/Finished, passed from a node to its
// own children) and, separately, an "outer running" flag scoped to a
// single sibling list. The flag starts false for the first child in
// every Plans list and is set from the *previous* sibling's Actual
// Loops once that sibling has been visited — so a Running->Finished
// transition on a scan requires both an inherited Running state and a
// preceding sibling that has already looped at least once. A node's
// own resulting state (not the sibling flag) is what gets passed down
// to its children.
func PrepareCalcNode(root *planmodel.PlanNode, regressionMode bool) {
	if regressionMode {
		planmodel.Map(root, func(n *planmodel.PlanNode) {
			resetPoints(n)
			n.CurrentState = stateFinished
		})
		return
	}
	prepareNode(root, stateWaiting, true)
}

// prepareNode sets n's CurrentState given the state inherited from its
// parent and whether a preceding sibling of n has already looped, then
// recurses into n's own children as a fresh sibling list. It returns
// n's resulting state, which becomes the inherited state for n's
// children.
func prepareNode(n *planmodel.PlanNode, state string, outerRunning bool) string {
	if n == nil {
		return state
	}
	resetPoints(n)
	if !n.HasActualRows() {
		return state
	}

	switch state {
	case stateWaiting:
		if n.ActualRows == 0 && n.ActualLoops == 0 && planmodel.CountRemovedRows(n) == 0 {
			n.CurrentState = stateWaiting
		} else {
			n.CurrentState = stateRunning
		}
	case stateRunning:
		if outerRunning && planmodel.IsScan(n.NodeType) {
			n.CurrentState = stateFinished
		} else {
			n.CurrentState = stateRunning
		}
	default:
		n.CurrentState = stateFinished
	}

	prepareChildren(n.Plans, n.CurrentState)
	return n.CurrentState
}

// prepareChildren walks one sibling list, resetting the outer-running
// flag at the start of the list and updating it from each sibling's
// Actual Loops as it goes.
func prepareChildren(plans []*planmodel.PlanNode, state string) {
	outerRunning := false
	for _, n := range plans {
		prepareNode(n, state, outerRunning)
		outerRunning = n.ActualLoops > 0
	}
}

func resetPoints(n *planmodel.PlanNode) {
	if !n.HasActualRows() {
		return
	}
	n.ExpectedRows = 0
	n.ActualPoints = 0
	n.PlanPoints = 0
}

func costShape(nodeType string) func(float64) float64 {
	if nodeType == "Sort" || nodeType == "Incremental Sort" {
		return fNLogN
	}
	return fN
}

func fN(x float64) float64 { return x }

func fNLogN(x float64) float64 {
	if x <= 1 {
		return x
	}
	return x * math.Log2(x)
}

func combFunc(nodeType string) func(a, b float64) float64 {
	switch nodeType {
	case "Recursive Union", "Nested Loop":
		return func(a, b float64) float64 { return a * b }
	case "Merge Join":
		return func(a, b float64) float64 { return a }
	default: // Append, Merge Append, Hash Join, BitmapAnd, BitmapOr
		return func(a, b float64) float64 { return a + b }
	}
}

// estimate is the expected-row estimator shared by every join-class
// operator in heuristic mode: max(plan, actual). The "estimated" (comb
// output) argument is accepted to keep the call sites self-documenting
// against spec §4.8's est(plan, est, actual) signature, but every
// operator in the table resolves to the same max(plan, actual).
func estimate(plan, estimated, actual float64) float64 {
	_ = estimated
	return math.Max(plan, actual)
}

func expectedOrPlanRows(n *planmodel.PlanNode) float64 {
	if n == nil {
		return 0
	}
	if n.ExpectedRows != 0 {
		return n.ExpectedRows
	}
	return n.PlanRows
}

// CalcNode computes PlanPoints/ActualPoints for a single node, assuming
// its children (if any) have already been processed by an earlier call
// in the same bottom-up pass.
func CalcNode(n *planmodel.PlanNode, regressionMode bool) {
	if n == nil || !n.HasActualRows() {
		return
	}
	if planmodel.ClassOf(n.NodeType) == planmodel.ClassJoin {
		calcJoin(n, regressionMode)
		return
	}
	calcSingleInput(n, regressionMode)
}

func calcSingleInput(n *planmodel.PlanNode, regressionMode bool) {
	r := planmodel.CountRemovedRows(n)
	shape := costShape(n.NodeType)
	if regressionMode {
		n.PlanPoints = shape(math.Max(n.PlanRows, n.ActualRows))
		n.ActualPoints = shape(n.ActualRows)
		return
	}
	if n.CurrentState == stateFinished {
		n.ExpectedRows = n.ActualRows
		n.PlanPoints = shape(n.ActualRows + r)
		n.ActualPoints = n.PlanPoints
		return
	}
	n.ExpectedRows = math.Max(n.PlanRows, n.ActualRows)
	n.PlanPoints = shape(n.ExpectedRows + r)
	n.ActualPoints = shape(n.ActualRows + r)
}

func calcJoin(n *planmodel.PlanNode, regressionMode bool) {
	outer, inner := planmodel.Outer(n), planmodel.Inner(n)
	xoPlan, xiPlan := expectedOrPlanRows(outer), expectedOrPlanRows(inner)
	var xoActual, xiActual float64
	if outer != nil {
		xoActual = outer.ActualRows
	}
	if inner != nil {
		xiActual = inner.ActualRows
	}
	r := planmodel.CountRemovedRows(n)

	if regressionMode {
		switch {
		case planmodel.NestedLoopClass[n.NodeType]:
			n.PlanPoints = xoPlan * xiPlan
			n.ActualPoints = xoActual*xiActual + r
		case planmodel.HashMergeJoinClass[n.NodeType] && len(n.Coefficient2) > 0 && n.Coefficient2[0] > 0:
			n.PlanPoints = xoPlan * xiPlan
			n.ActualPoints = xoActual*xiActual + r
		case planmodel.HashMergeJoinClass[n.NodeType]:
			n.PlanPoints = xoPlan + xiPlan
			n.ActualPoints = xoActual + xiActual + r
		default:
			comb := combFunc(n.NodeType)
			n.PlanPoints = comb(xoPlan, xiPlan)
			n.ActualPoints = comb(xoActual, xiActual) + r
		}
		return
	}

	comb := combFunc(n.NodeType)
	estimated := comb(xoPlan, xiPlan)
	n.PlanPoints = estimated
	switch {
	case n.CurrentState == stateFinished:
		n.ExpectedRows = estimated
		n.ActualPoints = n.ActualRows
	case estimated-r == n.ActualRows:
		n.ExpectedRows = n.ActualRows
		n.ActualPoints = estimated
	default:
		n.ExpectedRows = estimate(n.PlanRows, estimated-r, n.ActualRows)
		n.ActualPoints = n.ActualRows + r
	}
}

// CountPoints sums PlanPoints and ActualPoints across every node that
// carries them and returns the clamped, rounded progress ratio (spec
// §4.8's final step): min(ActualPoints/PlanPoints, 1), or 0.0 when the
// planned-points total is 0.
func CountPoints(root *planmodel.PlanNode) float64 {
	var planSum, actualSum float64
	planmodel.Map(root, func(n *planmodel.PlanNode) {
		if n.HasActualRows() {
			planSum += n.PlanPoints
			actualSum += n.ActualPoints
		}
	})
	if planSum == 0 {
		return 0.0
	}
	ratio := actualSum / planSum
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return math.Round(ratio*1e6) / 1e6
}
