package progress

import (
	"sort"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/parallel"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/planmodel"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/regression"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/replace"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/rules"
)

// WorkerRecord is one row returned by pg_query_plan(pid) for a single
// backend participating in a query: the leader or one of its parallel
// workers.
type WorkerRecord struct {
	IsLeader  bool
	QueryID   int64
	PlanID    int64
	PlanJSON  []byte
	QueryHash string
}

// ParamSource resolves the stored regression parameter tree for a query's
// plan shape, and reports whether regression mode applies at all (spec
// §4.1 T1: absent or singular parameters fall back to heuristic mode).
type ParamSource interface {
	RegressionParams(serverID string, queryID, planID int64) (params *regression.ParamTree, useRegression bool, err error)
}

// Result is one query's computed progress.
type Result struct {
	QueryID  int64
	Progress float64
}

// ResolveMissingQueryIDs fills in QueryID 0 records by matching QueryHash
// against another record in the batch that already carries a resolved
// QueryID — parallel workers report their queryid as 0 and must be
// correlated to their leader by query hash (spec §4.9).
func ResolveMissingQueryIDs(records []WorkerRecord) []WorkerRecord {
	byHash := make(map[string]int64, len(records))
	for _, r := range records {
		if r.QueryID != 0 && r.QueryHash != "" {
			byHash[r.QueryHash] = r.QueryID
		}
	}
	out := make([]WorkerRecord, len(records))
	for i, r := range records {
		if r.QueryID == 0 {
			if qid, ok := byHash[r.QueryHash]; ok {
				r.QueryID = qid
			}
		}
		out[i] = r
	}
	return out
}

// UniqueQueryIDs returns the distinct, nonzero, sorted QueryIDs present.
func UniqueQueryIDs(records []WorkerRecord) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, r := range records {
		if r.QueryID == 0 || seen[r.QueryID] {
			continue
		}
		seen[r.QueryID] = true
		ids = append(ids, r.QueryID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// QueryProgress groups records by resolved QueryID, merges each group's
// leader/worker plans, and computes a progress value per distinct query —
// the top-level orchestration spec §4.9 describes.
func QueryProgress(serverID string, records []WorkerRecord, source ParamSource) ([]Result, error) {
	resolved := ResolveMissingQueryIDs(records)
	var results []Result
	for _, qid := range UniqueQueryIDs(resolved) {
		var leaderJSON []byte
		var workerJSONs [][]byte
		var planID int64
		for _, r := range resolved {
			if r.QueryID != qid {
				continue
			}
			if r.IsLeader {
				leaderJSON = r.PlanJSON
				planID = r.PlanID
			} else {
				workerJSONs = append(workerJSONs, r.PlanJSON)
			}
		}
		if leaderJSON == nil {
			continue
		}
		leader, err := planmodel.ParseRootPlan(leaderJSON)
		if err != nil {
			return results, err
		}
		var workers []*planmodel.PlanNode
		for _, wj := range workerJSONs {
			w, err := planmodel.ParseRootPlan(wj)
			if err != nil {
				return results, err
			}
			workers = append(workers, w)
		}
		merged := parallel.MergePlans(leader, workers)
		p, err := Calculate(serverID, qid, planID, merged, source)
		if err != nil {
			return results, err
		}
		results = append(results, Result{QueryID: qid, Progress: p})
	}
	return results, nil
}

// Calculate runs the full per-query pipeline over a single (already
// parallel-merged) plan tree: look up regression parameters, replace Plan
// Rows or fall back to the rule engine, compute points bottom-up, and
// reduce to a single progress scalar.
func Calculate(serverID string, queryID, planID int64, plan *planmodel.PlanNode, source ParamSource) (float64, error) {
	params, useRegression, err := source.RegressionParams(serverID, queryID, planID)
	if err != nil {
		return 0, err
	}
	root := StripModifyTable(plan)
	if root == nil {
		return 0, nil
	}

	regressionMode := useRegression && params != nil
	if regressionMode {
		replace.ReplacePlanRows(root, params.Root)
	}
	PrepareCalcNode(root, regressionMode)
	if !regressionMode {
		rules.ApplyRules(root)
	}

	n := planmodel.CountNodes(root)
	for k := n; k >= 1; k-- {
		planmodel.VisitDepth(root, k, func(nd *planmodel.PlanNode) {
			CalcNode(nd, regressionMode)
		})
	}
	return CountPoints(root), nil
}
