// Package pushparam formats a fitted regression parameter tree into the
// compact record format the database's query_plan.reg table stores, and
// writes it there (spec §4.10).
package pushparam

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/regression"
)

// FormatTree renders every "visible" node of root — join-class operators
// (planmodel.ClassJoin: Nested Loop, Merge Join, Hash Join, Append, Merge
// Append, Recursive Union, BitmapAnd, BitmapOr) and true leaves — into one
// semicolon-joined record, visiting nodes from deepest pre-order index
// down to the root so the record's node order matches a bottom-up scan.
func FormatTree(root *regression.ParamNode) string {
	n := countNodes(root)
	var parts []string
	for k := n; k >= 1; k-- {
		visitDepth(root, k, func(node *regression.ParamNode) {
			if s, ok := formatNode(node); ok {
				parts = append(parts, s)
			}
		})
	}
	return strings.Join(parts, ";")
}

func countNodes(n *regression.ParamNode) int {
	if n == nil {
		return 0
	}
	count := 1
	for _, c := range n.Plans {
		count += countNodes(c)
	}
	return count
}

func visitDepth(n *regression.ParamNode, k int, f func(*regression.ParamNode)) (int, bool) {
	if n == nil {
		return k, false
	}
	if k == 1 {
		f(n)
		return 0, true
	}
	k--
	for _, c := range n.Plans {
		var ok bool
		if k, ok = visitDepth(c, k, f); ok {
			return 0, true
		}
	}
	return k, false
}

// visible: a join-class node (the operators the fitter produces a
// two-input model for), or a true leaf (no children at all).
func formatNode(n *regression.ParamNode) (string, bool) {
	isJoin := planmodel.ClassOf(n.NodeType) == planmodel.ClassJoin
	isLeaf := len(n.Plans) == 0
	if !isJoin && !isLeaf {
		return "", false
	}

	var outer, inner *regression.ParamNode
	if len(n.Plans) > 0 {
		outer = n.Plans[0]
	}
	if len(n.Plans) > 1 {
		inner = n.Plans[1]
	}

	var b strings.Builder
	b.WriteByte('{')
	fmt.Fprintf(&b, "%q:", n.NodeType)
	b.WriteString(relationTuple(n))
	b.WriteByte(':')
	b.WriteString(relationTuple(outer))
	b.WriteByte(':')
	b.WriteString(relationTuple(inner))
	b.WriteByte(':')
	b.WriteString(formatFloats(n.Coefficient))
	b.WriteByte(':')
	b.WriteString(formatFloats(n.Coefficient2))
	b.WriteByte(':')
	b.WriteString(formatFloats(n.Intercept))
	b.WriteByte(':')
	fmt.Fprintf(&b, "%q", strconv.FormatBool(n.MergeFlag))
	b.WriteByte('}')
	return b.String(), true
}

func relationTuple(n *regression.ParamNode) string {
	if n == nil || (n.Schema == "" && n.RelationName == "") {
		return "()"
	}
	return "(" + n.Schema + "." + n.RelationName + ")"
}

func formatFloats(xs []float64) string {
	if len(xs) == 0 {
		return "[]"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
