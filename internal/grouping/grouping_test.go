package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(planRows, actualRows float64) Node {
	return Node{
		"Node Type":  "Seq Scan",
		"Plan Rows":  planRows,
		"Actual Rows": actualRows,
		"I/O Read Time": 12.5,
	}
}

func TestCombineSeedsFirstSample(t *testing.T) {
	combined, err := Combine(nil, sample(10, 20))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{10.0}, combined["Plan Rows"])
	assert.Equal(t, []interface{}{20.0}, combined["Actual Rows"])
	_, hasTiming := combined["I/O Read Time"]
	assert.False(t, hasTiming)
}

func TestCombineAppendsSecondSample(t *testing.T) {
	combined, err := Combine(nil, sample(10, 20))
	require.NoError(t, err)
	combined, err = Combine(combined, sample(20, 40))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{10.0, 20.0}, combined["Plan Rows"])
	assert.Equal(t, []interface{}{20.0, 40.0}, combined["Actual Rows"])
}

func TestCombineAppendsAcrossChildren(t *testing.T) {
	tree1 := Node{
		"Node Type": "Hash Join",
		"Plans": []interface{}{
			Node{"Node Type": "Seq Scan", "Parent Relationship": "Outer", "Plan Rows": 100.0, "Actual Rows": 90.0},
			Node{"Node Type": "Seq Scan", "Parent Relationship": "Inner", "Plan Rows": 10.0, "Actual Rows": 10.0},
		},
	}
	tree2 := Node{
		"Node Type": "Hash Join",
		"Plans": []interface{}{
			Node{"Node Type": "Seq Scan", "Parent Relationship": "Outer", "Plan Rows": 200.0, "Actual Rows": 190.0},
			Node{"Node Type": "Seq Scan", "Parent Relationship": "Inner", "Plan Rows": 20.0, "Actual Rows": 20.0},
		},
	}
	combined, err := Combine(nil, tree1)
	require.NoError(t, err)
	combined, err = Combine(combined, tree2)
	require.NoError(t, err)

	children := combined["Plans"].([]interface{})
	outer := children[0].(Node)
	assert.Equal(t, []interface{}{100.0, 200.0}, outer["Plan Rows"])
}

func TestCombineRejectsShapeMismatch(t *testing.T) {
	tree1 := Node{"Node Type": "Hash Join", "Plans": []interface{}{
		Node{"Node Type": "Seq Scan", "Plan Rows": 1.0},
		Node{"Node Type": "Seq Scan", "Plan Rows": 1.0},
	}}
	tree2 := Node{"Node Type": "Hash Join", "Plans": []interface{}{
		Node{"Node Type": "Seq Scan", "Plan Rows": 1.0},
	}}
	combined, err := Combine(nil, tree1)
	require.NoError(t, err)
	_, err = Combine(combined, tree2)
	assert.Error(t, err)
}
