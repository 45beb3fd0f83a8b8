// Package planmodel implements the recursive plan-tree data model (C1):
// the PlanNode record, the closed set of operator kinds, and the
// traversal primitives the rest of the core builds on.
package planmodel

import (
	"encoding/json"
	"strconv"
)

// Class is the arity class an operator belongs to.
type Class int

const (
	ClassUnknown Class = iota
	ClassScan          // arity 0, leaf
	ClassPipeline      // arity 1
	ClassJoin          // arity 2
	ClassModifyTable   // special: wraps an inner plan, stripped before progress calc
)

var scanClass = map[string]bool{
	"Result": true, "Seq Scan": true, "Sample Scan": true, "Index Scan": true,
	"Index Only Scan": true, "Bitmap Index Scan": true, "Bitmap Heap Scan": true,
	"Tid Scan": true, "Function Scan": true, "Table Function Scan": true,
	"Values Scan": true, "CTE Scan": true, "Named Tuplestore Scan": true,
	"WorkTable Scan": true, "Foreign Scan": true, "Aggregate": true,
	"SetOp": true, "Limit": true,
}

var pipelineClass = map[string]bool{
	"Hash": true, "ProjectSet": true, "Subquery Scan": true, "Custom Scan": true,
	"Materialize": true, "Sort": true, "Incremental Sort": true, "Gather": true,
	"Gather Merge": true, "LockRows": true, "Unique": true, "WindowAgg": true,
}

var joinClass = map[string]bool{
	"Append": true, "Merge Append": true, "Recursive Union": true,
	"Nested Loop": true, "Merge Join": true, "Hash Join": true,
	"BitmapAnd": true, "BitmapOr": true,
}

// NestedLoopClass is the subset of join-class operators fit/replaced with
// the single-coefficient multiplicative model (spec §4.5/§4.6).
var NestedLoopClass = map[string]bool{
	"Append": true, "Merge Append": true, "Recursive Union": true,
	"Nested Loop": true, "BitmapAnd": true, "BitmapOr": true,
}

// HashMergeJoinClass is the subset fit with the RMSE-selected linear model.
var HashMergeJoinClass = map[string]bool{
	"Merge Join": true, "Hash Join": true,
}

// GatherClass nodes use the scan-class model minus the constant-fallback branch.
var GatherClass = map[string]bool{
	"Gather": true, "Gather Merge": true,
}

// ClassOf returns the arity class for a NodeType.
func ClassOf(nodeType string) Class {
	switch {
	case nodeType == "ModifyTable":
		return ClassModifyTable
	case scanClass[nodeType]:
		return ClassScan
	case pipelineClass[nodeType]:
		return ClassPipeline
	case joinClass[nodeType]:
		return ClassJoin
	default:
		return ClassUnknown
	}
}

// IsScan reports whether nodeType is in the scan-class closed set.
func IsScan(nodeType string) bool { return scanClass[nodeType] }

// Num unmarshals either a bare JSON number or a list of numbers, keeping
// the list's last element, mirroring how Workers Planned/Launched appear
// either as a scalar on a sequential plan or wrapped in a list once
// promoted by grouping (spec §4.4) or emitted in some EXPLAIN variants.
type Num struct {
	Value float64
	set   bool
}

func (n Num) Valid() bool { return n.set }

func (n *Num) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.Value, n.set = f, true
		return nil
	}
	var list []float64
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	if len(list) > 0 {
		n.Value = list[len(list)-1]
	}
	n.set = true
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value)
}

// WorkerRow is one element of a node's "Workers" sub-list.
type WorkerRow struct {
	ActualRows  float64 `json:"Actual Rows,omitempty"`
	ActualLoops float64 `json:"Actual Loops,omitempty"`
}

// PlanNode is one node of a live (single-sample) plan tree.
type PlanNode struct {
	NodeType           string `json:"Node Type"`
	ParentRelationship string `json:"Parent Relationship,omitempty"`

	Plans []*PlanNode `json:"Plans,omitempty"`

	PlanRows    float64 `json:"Plan Rows"`
	ActualRows  float64 `json:"Actual Rows,omitempty"`
	ActualLoops float64 `json:"Actual Loops,omitempty"`

	WorkersPlanned  *Num         `json:"Workers Planned,omitempty"`
	WorkersLaunched *Num         `json:"Workers Launched,omitempty"`
	Workers         []*WorkerRow `json:"Workers,omitempty"`

	RowsRemovedByFilter         float64 `json:"Rows Removed by Filter,omitempty"`
	RowsRemovedByIndexRecheck   float64 `json:"Rows Removed by Index Recheck,omitempty"`
	RowsRemovedByJoinFilter     float64 `json:"Rows Removed by Join Filter,omitempty"`
	RowsRemovedByConflictFilter float64 `json:"Rows Removed by Conflict Filter,omitempty"`

	RelationName string `json:"Relation Name,omitempty"`
	Schema       string `json:"Schema,omitempty"`
	Alias        string `json:"Alias,omitempty"`

	SortSpaceType string  `json:"Sort Space Type,omitempty"`
	SortSpaceUsed float64 `json:"Sort Space Used,omitempty"`

	// Computed in place by the core.
	MergeFlag          bool    `json:"MergeFlag"`
	NormalizeParam      float64 `json:"NormalizeParam,omitempty"`
	NormalizePlanParam  float64 `json:"NormalizePlanParam,omitempty"`
	CurrentState        string  `json:"CurrentState,omitempty"`
	ExpectedRows        float64 `json:"ExpectedRows,omitempty"`
	PlanPoints          float64 `json:"PlanPoints,omitempty"`
	ActualPoints        float64 `json:"ActualPoints,omitempty"`
	Coefficient         []float64 `json:"Coefficient,omitempty"`
	Coefficient2        []float64 `json:"Coefficient2,omitempty"`
	Intercept           []float64 `json:"Intercept,omitempty"`

	// Extras carries attributes the core does not interpret (costs,
	// widths, buffer/WAL counters not on the grouping/deletion lists,
	// etc.), captured by UnmarshalJSON and re-merged by MarshalJSON, so
	// re-marshaling a node never silently drops caller data.
	Extras map[string]json.RawMessage `json:"-"`
}

// planNodeFields is the set of JSON object keys PlanNode's own fields
// already claim; everything else present on the wire lands in Extras.
var planNodeFields = map[string]bool{
	"Node Type": true, "Parent Relationship": true, "Plans": true,
	"Plan Rows": true, "Actual Rows": true, "Actual Loops": true,
	"Workers Planned": true, "Workers Launched": true, "Workers": true,
	"Rows Removed by Filter": true, "Rows Removed by Index Recheck": true,
	"Rows Removed by Join Filter": true, "Rows Removed by Conflict Filter": true,
	"Relation Name": true, "Schema": true, "Alias": true,
	"Sort Space Type": true, "Sort Space Used": true,
	"MergeFlag": true, "NormalizeParam": true, "NormalizePlanParam": true,
	"CurrentState": true, "ExpectedRows": true, "PlanPoints": true,
	"ActualPoints": true, "Coefficient": true, "Coefficient2": true,
	"Intercept": true,
}

// planNodeAlias shares PlanNode's fields and tags without its
// MarshalJSON/UnmarshalJSON methods, letting those methods delegate the
// known-field encoding to the default struct codec.
type planNodeAlias PlanNode

// UnmarshalJSON decodes the known fields normally, then captures every
// JSON key not claimed by one of them into Extras.
func (p *PlanNode) UnmarshalJSON(data []byte) error {
	var a planNodeAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = PlanNode(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var extras map[string]json.RawMessage
	for k, v := range raw {
		if planNodeFields[k] {
			continue
		}
		if extras == nil {
			extras = make(map[string]json.RawMessage)
		}
		extras[k] = v
	}
	p.Extras = extras
	return nil
}

// MarshalJSON encodes the known fields normally, then merges Extras
// back in so a decode-then-encode round trip preserves keys this
// package never interprets.
func (p PlanNode) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(planNodeAlias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extras) == 0 {
		return known, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extras {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// RootPlan is the outer wrapper EXPLAIN (FORMAT JSON) emits: a one-element
// object whose "Plan" key holds the tree root.
type RootPlan struct {
	Plan *PlanNode `json:"Plan"`
}

func (p *PlanNode) HasActualRows() bool {
	return p.ActualLoops > 0 || p.ActualRows > 0
}

// IsOuter reports whether this node is the outer child of a join-class parent.
func IsOuter(n *PlanNode) bool { return n.ParentRelationship == "Outer" }

// IsInner reports whether this node is the inner child of a join-class parent.
func IsInner(n *PlanNode) bool { return n.ParentRelationship == "Inner" }

// CountRemovedRows sums the four Removed-Rows variants present on n.
func CountRemovedRows(n *PlanNode) float64 {
	return n.RowsRemovedByFilter + n.RowsRemovedByIndexRecheck +
		n.RowsRemovedByJoinFilter + n.RowsRemovedByConflictFilter
}

// CountNodes returns the pre-order count of nodes under (and including) root.
func CountNodes(root *PlanNode) int {
	if root == nil {
		return 0
	}
	n := 1
	for _, c := range root.Plans {
		n += CountNodes(c)
	}
	return n
}

// Map applies f to every node of the tree, pre-order, in place.
func Map(root *PlanNode, f func(*PlanNode)) {
	if root == nil {
		return
	}
	f(root)
	for _, c := range root.Plans {
		Map(c, f)
	}
}

// VisitDepth locates the k-th node in pre-order (k is 1-based) and invokes
// f on it. Used to drive the bottom-up processing order (§4.1 T2): callers
// iterate k from CountNodes(root) down to 1.
func VisitDepth(root *PlanNode, k int, f func(*PlanNode)) bool {
	_, ok := visitDepth(root, k, f)
	return ok
}

func visitDepth(n *PlanNode, k int, f func(*PlanNode)) (int, bool) {
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
		k, ok = visitDepth(c, k, f)
		if ok {
			return 0, true
		}
	}
	return k, false
}

// Outer returns Plans[0] if present (the outer/sole child by convention).
func Outer(n *PlanNode) *PlanNode {
	if len(n.Plans) > 0 {
		return n.Plans[0]
	}
	return nil
}

// Inner returns Plans[1] if present (the inner child for join-class nodes).
func Inner(n *PlanNode) *PlanNode {
	if len(n.Plans) > 1 {
		return n.Plans[1]
	}
	return nil
}

// ChildrenSplit partitions a join-class node's children into outer, inner,
// and subplans (index > 1, ignored by join-specific logic per I2).
func ChildrenSplit(n *PlanNode) (outer, inner *PlanNode, subplans []*PlanNode) {
	if len(n.Plans) > 0 {
		outer = n.Plans[0]
	}
	if len(n.Plans) > 1 {
		inner = n.Plans[1]
	}
	if len(n.Plans) > 2 {
		subplans = n.Plans[2:]
	}
	return
}

// WorkersValue reads a scalar count out of a Num pointer, treating a nil
// or unset field as 0 (spec §4.2 failure mode: missing Workers Launched
// degrades to sequential accumulation).
func WorkersValue(n *Num) float64 {
	if n == nil || !n.Valid() {
		return 0
	}
	return n.Value
}

// HashDir mirrors the repository's planid%1000 bucketing (§6), kept here
// since it is also needed to format directory-adjacent diagnostic output.
func HashDir(planid int64) string {
	h := planid % 1000
	if h < 0 {
		h += 1000
	}
	s := strconv.FormatInt(h, 10)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
