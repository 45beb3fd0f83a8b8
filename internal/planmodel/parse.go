package planmodel

import "encoding/json"

// ParseRootPlan decodes one EXPLAIN (FORMAT JSON) plan document — either
// the bare `{"Plan": {...}}` object Postgres emits per row, or a
// single-element array wrapping it, which is how some drivers return
// `json` column values.
func ParseRootPlan(data []byte) (*PlanNode, error) {
	var withArray []RootPlan
	if err := json.Unmarshal(data, &withArray); err == nil && len(withArray) > 0 {
		return withArray[0].Plan, nil
	}
	var root RootPlan
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return root.Plan, nil
}
