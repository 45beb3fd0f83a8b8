// Package grouping implements the grouping aggregator (C4): accumulating
// many historical executions of the same (queryid, planid) into one tree
// where each sample's numeric values occupy the same list index
// everywhere (spec §4.4).
//
// A grouped tree is represented as a generic JSON object
// (map[string]interface{}), not the typed planmodel.PlanNode, because
// grouping's job is to promote an arbitrary, spec-named set of scalar
// keys to parallel lists irrespective of operator semantics — exactly
// the "scalar | sample-vector" sum type the design notes call for. No
// third-party JSON-tree or object-diff library in the retrieved
// examples fits this generic promote-and-append traversal; it stays on
// encoding/json plus plain map/slice recursion.
package grouping

import (
	"github.com/database-intelligence-mvp/pgplaninspector/internal/pgpierr"
)

// UnnecessaryObjects lists attributes dropped from every incoming sample
// before grouping: timing, cost, buffer/WAL usage, triggers, JIT.
var UnnecessaryObjects = []string{
	"I/O Read Time", "I/O Write Time", "Planning Time", "Execution Time",
	"Actual Startup Time", "Actual Total Time", "Time", "Actual duration Time",
	"BufferUsage_Start", "WalUsage_Start", "BufferUsage", "WalUsage",
	"Triggers", "JIT",
}

// GroupingObjects lists the scalar attributes promoted to (and then
// appended across samples as) ordered lists, per spec §4.4: "rows,
// loops, removed-rows variants, cost/width/buffer counters, Workers
// Planned, Workers Launched, sort-space fields, hash-bucket/batch
// counts, exact/lossy-heap block counts".
var GroupingObjects = []string{
	"Plan Rows", "Actual Rows", "Actual Loops",
	"Rows Removed by Filter", "Rows Removed by Index Recheck",
	"Rows Removed by Join Filter", "Rows Removed by Conflict Filter",
	"Plan Width", "Total Cost", "Startup Cost",
	"Workers Planned", "Workers Launched",
	"Sort Space Type", "Sort Space Used",
	"Hash Buckets", "Hash Batches", "Original Hash Buckets", "Original Hash Batches",
	"Exact Heap Blocks", "Lossy Heap Blocks", "Heap Fetches",
	"Shared Hit Blocks", "Shared Read Blocks", "Shared Dirtied Blocks", "Shared Written Blocks",
	"Local Hit Blocks", "Local Read Blocks", "Local Dirtied Blocks", "Local Written Blocks",
	"Temp Read Blocks", "Temp Written Blocks",
}

// Node is one node of a grouped tree: a generic JSON object whose
// "Plans" key, when present, holds a []interface{} of further Nodes.
type Node = map[string]interface{}

func childPlans(n Node) []interface{} {
	if v, ok := n["Plans"]; ok {
		if list, ok := v.([]interface{}); ok {
			return list
		}
	}
	return nil
}

// deleteUnnecessary removes UnnecessaryObjects from every node, recursively.
func deleteUnnecessary(n Node) {
	for _, k := range UnnecessaryObjects {
		delete(n, k)
	}
	for _, c := range childPlans(n) {
		if cn, ok := c.(Node); ok {
			deleteUnnecessary(cn)
		}
	}
}

// convertToList wraps every GroupingObjects scalar present on n into a
// single-element list, recursively.
func convertToList(n Node) {
	for _, k := range GroupingObjects {
		if v, ok := n[k]; ok {
			if _, already := v.([]interface{}); !already {
				n[k] = []interface{}{v}
			}
		}
	}
	for _, c := range childPlans(n) {
		if cn, ok := c.(Node); ok {
			convertToList(cn)
		}
	}
}

// appendObjects elementwise-appends incoming's GroupingObjects lists onto
// existing's, recursively, assuming identical tree shape (invariant I1).
func appendObjects(existing, incoming Node) error {
	for _, k := range GroupingObjects {
		iv, ok := incoming[k]
		if !ok {
			continue
		}
		incomingList, _ := iv.([]interface{})
		existingList, _ := existing[k].([]interface{})
		existing[k] = append(existingList, incomingList...)
	}

	existingChildren := childPlans(existing)
	incomingChildren := childPlans(incoming)
	if len(existingChildren) != len(incomingChildren) {
		return pgpierr.New(pgpierr.PlanShapeMismatch,
			"grouping: combined tree and new sample have diverging skeletons")
	}
	for i := range existingChildren {
		ec, ok1 := existingChildren[i].(Node)
		ic, ok2 := incomingChildren[i].(Node)
		if !ok1 || !ok2 {
			return pgpierr.New(pgpierr.PlanShapeMismatch, "grouping: malformed child node")
		}
		if err := appendObjects(ec, ic); err != nil {
			return err
		}
	}
	return nil
}

// Combine folds one new sample (a freshly-parsed, single-execution plan
// tree decoded into the generic Node shape) into an existing combined
// tree, returning the updated combined tree. When existing is nil, the
// new sample (after deletion + list promotion) becomes the seed.
//
// Callers must present samples in ascending sequence-id order so list
// indices stay monotonic in time, per spec §4.4's ordering rule.
func Combine(existing Node, incoming Node) (Node, error) {
	deleteUnnecessary(incoming)
	convertToList(incoming)
	if existing == nil {
		return incoming, nil
	}
	if err := appendObjects(existing, incoming); err != nil {
		return nil, err
	}
	return existing, nil
}
