// Package replace implements the plan-row replacer (C6): given a live
// plan and a matching regression parameter tree, rewrite Plan Rows
// bottom-up using the stored per-node-type coefficients (spec §4.6).
package replace

import (
	"math"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/regression"
)

// ReplacePlanRows rewrites plan's Plan Rows bottom-up using params. Only
// join-model, scan-class and Gather/Gather Merge nodes are rewritten:
// other pipeline-class operators (Sort, Materialize, Hash, etc.) are left
// untouched even when the fitter stored coefficients for them, as are
// nodes with no stored coefficients.
func ReplacePlanRows(plan *planmodel.PlanNode, params *regression.ParamNode) {
	if plan == nil || params == nil {
		return
	}
	for i, child := range plan.Plans {
		var cp *regression.ParamNode
		if i < len(params.Plans) {
			cp = params.Plans[i]
		}
		ReplacePlanRows(child, cp)
	}
	replaceNode(plan, params)
}

func replaceNode(plan *planmodel.PlanNode, param *regression.ParamNode) {
	switch {
	case planmodel.NestedLoopClass[plan.NodeType]:
		if len(param.Coefficient) == 0 {
			return
		}
		xo, xi := childRows(plan)
		plan.PlanRows = math.Round(param.Coefficient[0] * xo * xi)
		plan.Coefficient = param.Coefficient

	case planmodel.HashMergeJoinClass[plan.NodeType]:
		if len(param.Coefficient) < 2 {
			return
		}
		xo, xi := childRows(plan)
		intercept := first(param.Intercept)
		if param.Coefficient[0] == 0 && param.Coefficient[1] == 0 && len(param.Coefficient2) > 0 {
			plan.PlanRows = math.Round(param.Coefficient2[0]*xo*xi + intercept)
		} else {
			plan.PlanRows = math.Round(param.Coefficient[0]*xo + param.Coefficient[1]*xi + intercept)
		}
		plan.Coefficient = param.Coefficient
		plan.Coefficient2 = param.Coefficient2
		plan.Intercept = param.Intercept

	case planmodel.IsScan(plan.NodeType), planmodel.GatherClass[plan.NodeType]:
		if len(param.Coefficient) == 0 {
			return
		}
		norm := plan.NormalizeParam
		if norm == 0 {
			norm = 1
		}
		planNorm := plan.NormalizePlanParam
		if planNorm == 0 {
			planNorm = 1
		}
		intercept := first(param.Intercept)
		plan.PlanRows = math.Round((param.Coefficient[0]*plan.PlanRows + intercept) * planNorm / norm)
		plan.Coefficient = param.Coefficient
		plan.Intercept = param.Intercept
	}
}

func childRows(plan *planmodel.PlanNode) (outer, inner float64) {
	if o := planmodel.Outer(plan); o != nil {
		outer = o.PlanRows
	}
	if i := planmodel.Inner(plan); i != nil {
		inner = i.PlanRows
	}
	return
}

func first(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[0]
}
