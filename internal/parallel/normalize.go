// Package parallel implements parallel-plan normalization (C2) and
// row-merging (C3): annotating a plan tree with MergeFlag/NormalizeParam/
// NormalizePlanParam, then folding worker row counts into the leader.
package parallel

import "github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"

// PrepareMerge performs the single pre-order pass of spec §4.2: every node
// carrying Actual Rows is annotated with MergeFlag, NormalizeParam, and
// NormalizePlanParam based on parallel ancestry and operator kind. It
// returns the accumulated (numPlanWorkers, numWorkers) totals, each
// starting at 1 for the leader itself and incremented by every Workers
// Planned/Workers Launched field encountered along the way.
func PrepareMerge(root *planmodel.PlanNode) (numPlanWorkers, numWorkers float64) {
	wPlanned := 1.0
	wLaunched := 1.0

	var walk func(n *planmodel.PlanNode, ancestorParallel, onOuterPath, underAggregate bool)
	walk = func(n *planmodel.PlanNode, ancestorParallel, onOuterPath, underAggregate bool) {
		if n == nil {
			return
		}

		declaresParallelism := n.WorkersPlanned != nil || n.WorkersLaunched != nil
		if declaresParallelism {
			wPlanned += planmodel.WorkersValue(n.WorkersPlanned)
			wLaunched += planmodel.WorkersValue(n.WorkersLaunched)
		}

		if n.HasActualRows() {
			mergeable := ancestorParallel && onOuterPath && !underAggregate && n.NodeType != "Aggregate"
			if mergeable {
				n.MergeFlag = true
				n.NormalizeParam = wLaunched
				n.NormalizePlanParam = wPlanned
			} else {
				n.MergeFlag = false
				n.NormalizeParam = 1
				n.NormalizePlanParam = 1
			}
		}

		childAncestorParallel := ancestorParallel || declaresParallelism
		// Aggregates terminate parallel accumulation for their own
		// subtree, not just for themselves.
		childUnderAggregate := underAggregate || n.NodeType == "Aggregate"
		for i, c := range n.Plans {
			childOnOuterPath := onOuterPath && i == 0
			walk(c, childAncestorParallel, childOnOuterPath, childUnderAggregate)
		}
	}

	walk(root, false, true, false)
	return wPlanned, wLaunched
}
