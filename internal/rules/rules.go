// Package rules implements the heuristic rule engine (C7): state
// adjustments applied only when no regression parameters exist for the
// query being estimated (spec §4.7).
package rules

import "github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"

const (
	Waiting  = "Waiting"
	Running  = "Running"
	Finished = "Finished"
)

// ApplyRules walks the tree applying R1-R6, in order, at every node whose
// CurrentState is Running — the shared guard every rule carries.
func ApplyRules(root *planmodel.PlanNode) {
	planmodel.Map(root, func(n *planmodel.PlanNode) {
		if n.CurrentState != Running {
			return
		}
		rule1(n)
		rule2(n)
		rule3(n)
		rule4(n)
		rule5(n)
		rule6(n)
	})
}

// R1: Hash Join carrying a Join Filter, with Plan Rows <= Actual Rows,
// marks both children Finished. (A Join Filter clause is evidenced here
// by Rows Removed by Join Filter > 0, the only trace of it this model
// retains.)
func rule1(n *planmodel.PlanNode) {
	if n.NodeType != "Hash Join" {
		return
	}
	if n.RowsRemovedByJoinFilter <= 0 {
		return
	}
	if n.PlanRows > n.ActualRows {
		return
	}
	outer, inner := planmodel.Outer(n), planmodel.Inner(n)
	if outer != nil {
		outer.CurrentState = Finished
	}
	if inner != nil {
		inner.CurrentState = Finished
	}
}

// R2: Materialize or Hash, once it has started producing output in any
// of three ways, is Finished. Read as "(Materialize OR Hash) AND (...)",
// the reading spec.md explicitly adopts (§9) over the alternative
// precedence the source's guard admits.
func rule2(n *planmodel.PlanNode) {
	if n.NodeType != "Materialize" && n.NodeType != "Hash" {
		return
	}
	if n.ActualLoops > 0 || n.ActualRows > 0 || n.MergeFlag {
		n.CurrentState = Finished
	}
}

// R3: a scan-class inner node that has looped at all is Finished.
func rule3(n *planmodel.PlanNode) {
	if !planmodel.IsScan(n.NodeType) {
		return
	}
	if planmodel.IsInner(n) && n.ActualLoops > 0 {
		n.CurrentState = Finished
	}
}

// R4: a scan-class outer node that has met or exceeded its planned rows
// is Finished.
func rule4(n *planmodel.PlanNode) {
	if !planmodel.IsScan(n.NodeType) {
		return
	}
	if planmodel.IsOuter(n) && n.PlanRows <= n.ActualRows {
		n.CurrentState = Finished
	}
}

// R5: a scan-class node that is neither outer nor inner (the tree root,
// or a subplan position) is Finished.
func rule5(n *planmodel.PlanNode) {
	if !planmodel.IsScan(n.NodeType) {
		return
	}
	if !planmodel.IsOuter(n) && !planmodel.IsInner(n) {
		n.CurrentState = Finished
	}
}

// R6: a Hash Join or Merge Join with no Join Filter, whose Actual Rows
// has run far past its Plan Rows estimate, adopts its outer child's Plan
// Rows as a corrective rewrite (not a state transition).
func rule6(n *planmodel.PlanNode) {
	if n.NodeType != "Hash Join" && n.NodeType != "Merge Join" {
		return
	}
	if n.RowsRemovedByJoinFilter > 0 {
		return
	}
	if n.PlanRows*5 >= n.ActualRows {
		return
	}
	if outer := planmodel.Outer(n); outer != nil {
		n.PlanRows = outer.PlanRows
	}
}
