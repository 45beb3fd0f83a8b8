// Package regression implements the regression fitter (C5): per-node-type
// least-squares models over a grouped tree, producing a parameter
// skeleton tree (spec §4.5).
package regression

import (
	"github.com/database-intelligence-mvp/pgplaninspector/internal/grouping"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
)

// ParamNode is one node of a RegressionParam tree (spec §3): structurally
// parallel to a PlanNode but retaining only identity/structure fields
// plus the learned coefficients.
type ParamNode struct {
	NodeType           string       `json:"Node Type"`
	ParentRelationship string       `json:"Parent Relationship,omitempty"`
	RelationName       string       `json:"Relation Name,omitempty"`
	Schema             string       `json:"Schema,omitempty"`
	Alias              string       `json:"Alias,omitempty"`
	MergeFlag          bool         `json:"MergeFlag,omitempty"`
	Coefficient        []float64    `json:"Coefficient,omitempty"`
	Coefficient2       []float64    `json:"Coefficient2,omitempty"`
	Intercept          []float64    `json:"Intercept,omitempty"`
	Plans              []*ParamNode `json:"Plans,omitempty"`
}

// ParamTree is the full skeleton for one (queryid, planid): the node
// tree plus, optionally, a root-level disk-spill watermark.
type ParamTree struct {
	Root          *ParamNode `json:"Plan"`
	SortSpaceUsed *float64   `json:"SortSpaceUsed,omitempty"`
}

func strField(n grouping.Node, key string) string {
	if v, ok := n[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func childPlans(n grouping.Node) []grouping.Node {
	var out []grouping.Node
	if v, ok := n["Plans"]; ok {
		if list, ok := v.([]interface{}); ok {
			for _, c := range list {
				if cn, ok := c.(grouping.Node); ok {
					out = append(out, cn)
				}
			}
		}
	}
	return out
}

func floatList(n grouping.Node, key string) []float64 {
	v, ok := n[key]
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(list))
	for _, e := range list {
		switch x := e.(type) {
		case float64:
			out = append(out, x)
		case int:
			out = append(out, float64(x))
		}
	}
	return out
}

func stringList(n grouping.Node, key string) []string {
	v, ok := n[key]
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// propagateRelations walks bottom-up and, for any node missing Relation
// Name/Schema/Alias, inherits it from its outer child (single-child
// nodes) or the pair from both outer and inner children (join-class
// nodes), per spec §4.5 "Relation propagation".
func propagateRelations(n grouping.Node) {
	children := childPlans(n)
	for _, c := range children {
		propagateRelations(c)
	}
	if strField(n, "Relation Name") != "" {
		return
	}
	switch len(children) {
	case 1:
		copyRelation(n, children[0])
	case 2:
		copyRelation(n, children[0])
		// For 2-child nodes the spec names pulling the pair from both
		// children; the first non-empty relation fields win since a
		// node can only carry a single Relation Name/Schema/Alias triple.
		if strField(n, "Relation Name") == "" {
			copyRelation(n, children[1])
		}
	}
}

func copyRelation(dst, src grouping.Node) {
	if v := strField(src, "Relation Name"); v != "" {
		dst["Relation Name"] = v
	}
	if v := strField(src, "Schema"); v != "" {
		dst["Schema"] = v
	}
	if v := strField(src, "Alias"); v != "" {
		dst["Alias"] = v
	}
}

// Fit builds a parameter skeleton from one grouped tree (all samples for
// a single (queryid, planid), already combined by the grouping package).
func Fit(tree grouping.Node) *ParamTree {
	propagateRelations(tree)
	root := fitNode(tree)
	return &ParamTree{
		Root:          root,
		SortSpaceUsed: maxDiskSortSpace(tree),
	}
}

func fitNode(n grouping.Node) *ParamNode {
	nodeType := strField(n, "Node Type")
	out := &ParamNode{
		NodeType:           nodeType,
		ParentRelationship: strField(n, "Parent Relationship"),
		RelationName:       strField(n, "Relation Name"),
		Schema:             strField(n, "Schema"),
		Alias:              strField(n, "Alias"),
	}
	children := childPlans(n)
	for _, c := range children {
		out.Plans = append(out.Plans, fitNode(c))
	}

	planRows := floatList(n, "Plan Rows")
	actualRows := floatList(n, "Actual Rows")

	switch {
	case planmodel.NestedLoopClass[nodeType] && len(children) >= 2:
		xo := floatList(children[0], "Actual Rows")
		xi := floatList(children[1], "Actual Rows")
		coef := NestedLoopFit(xo, xi, actualRows)
		out.Coefficient = []float64{coef}
	case planmodel.HashMergeJoinClass[nodeType] && len(children) >= 2:
		xo := floatList(children[0], "Actual Rows")
		xi := floatList(children[1], "Actual Rows")
		res := HashMergeJoinFit(xo, xi, actualRows)
		out.Coefficient = []float64{res.CoefficientOuter, res.CoefficientInner}
		out.Coefficient2 = []float64{0}
		out.Intercept = []float64{res.Intercept}
	case planmodel.GatherClass[nodeType]:
		coef, intercept := GatherFit(planRows, actualRows)
		out.Coefficient = []float64{coef}
		out.Intercept = []float64{intercept}
	case len(planRows) > 0 && len(actualRows) > 0:
		coef, intercept := ScanFit(planRows, actualRows)
		out.Coefficient = []float64{coef}
		out.Intercept = []float64{intercept}
	}
	return out
}

// maxDiskSortSpace walks the tree picking the maximum Sort Space Used
// where the corresponding Sort Space Type entry is "Disk". Returns nil
// if no such sample exists anywhere in the tree.
func maxDiskSortSpace(n grouping.Node) *float64 {
	var best *float64
	var walk func(grouping.Node)
	walk = func(node grouping.Node) {
		types := stringList(node, "Sort Space Type")
		used := floatList(node, "Sort Space Used")
		for i := 0; i < len(types) && i < len(used); i++ {
			if types[i] == "Disk" {
				v := used[i]
				if best == nil || v > *best {
					best = &v
				}
			}
		}
		for _, c := range childPlans(node) {
			walk(c)
		}
	}
	walk(n)
	return best
}
