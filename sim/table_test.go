package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestNewTable_IdentifiersInCreationOrder(t *testing.T) {
	tbl := NewTable(4)

	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, []int{0, 1, 2, 3}, tbl.Agent)
	assert.Len(t, tbl.Datetime, 4)
	assert.NoError(t, tbl.Validate())
}

func TestTable_CloneIsDeep(t *testing.T) {
	tbl := NewTable(2)
	require.NoError(t, tbl.SetLabelColumn("age_group", []string{"a", "b"}))
	require.NoError(t, tbl.SetValueColumn("vx", []float64{1, 2}))

	c := tbl.Clone()
	c.X[0] = 9
	c.DiseaseState[1] = "I"
	c.Labels["age_group"][0] = "z"
	c.Values["vx"][1] = 7

	assert.Equal(t, 0.0, tbl.X[0])
	assert.Equal(t, "", tbl.DiseaseState[1])
	assert.Equal(t, "a", tbl.Labels["age_group"][0])
	assert.Equal(t, 2.0, tbl.Values["vx"][1])
}

func TestTable_AppendConcatenatesRows(t *testing.T) {
	a := NewTable(2)
	require.NoError(t, a.SetLabelColumn("g", []string{"x", "y"}))
	b := a.Clone()
	b.Step[0], b.Step[1] = 1, 1

	require.NoError(t, a.Append(b))

	assert.Equal(t, 4, a.Len())
	assert.Equal(t, []int{0, 1, 0, 1}, a.Agent)
	assert.Equal(t, []int{0, 0, 1, 1}, a.Step)
	assert.Equal(t, []string{"x", "y", "x", "y"}, a.Labels["g"])

	// Appended rows are copies.
	b.Step[0] = 99
	assert.Equal(t, 1, a.Step[2])
}

func TestTable_AppendBackFillsMissingColumns(t *testing.T) {
	// GIVEN a table with a label column and one with a value column
	a := NewTable(1)
	require.NoError(t, a.SetLabelColumn("g", []string{"x"}))
	b := NewTable(2)
	require.NoError(t, b.SetValueColumn("vx", []float64{1, 2}))

	// WHEN they are appended
	require.NoError(t, a.Append(b))

	// THEN each side's missing column is filled
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, []string{"x", "", ""}, a.Labels["g"])
	require.Len(t, a.Values["vx"], 3)
	assert.True(t, math.IsNaN(a.Values["vx"][0]))
	assert.Equal(t, []float64{1, 2}, a.Values["vx"][1:])
}

func TestTable_AppendRejectsRaggedColumns(t *testing.T) {
	a := NewTable(1)
	b := NewTable(2)
	b.X = b.X[:1]

	err := a.Append(b)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, a.Len())
}

func TestTable_Select(t *testing.T) {
	tbl := NewTable(4)
	tbl.X = []float64{0, 1, 2, 3}
	tbl.IsDead[1] = true
	require.NoError(t, tbl.SetLabelColumn("g", []string{"a", "b", "c", "d"}))
	require.NoError(t, tbl.SetValueColumn("v", []float64{10, 11, 12, 13}))

	sel := tbl.Select([]int{0, 2, 3})

	assert.Equal(t, []int{0, 2, 3}, sel.Agent)
	assert.Equal(t, []float64{0, 2, 3}, sel.X)
	assert.Equal(t, []bool{false, false, false}, sel.IsDead)
	assert.Equal(t, []string{"a", "c", "d"}, sel.Labels["g"])
	assert.Equal(t, []float64{10, 12, 13}, sel.Values["v"])
	assert.NoError(t, sel.Validate())

	sel.X[0] = 42
	assert.Equal(t, 0.0, tbl.X[0], "selection is a copy")
}

func TestTable_Validate(t *testing.T) {
	dup := NewTable(3)
	dup.Agent[2] = 0
	assert.ErrorIs(t, dup.Validate(), ErrInvalidState)

	short := NewTable(3)
	short.IsDead = short.IsDead[:2]
	err := short.Validate()
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "is_dead")

	shortLabel := NewTable(2)
	shortLabel.Labels["g"] = []string{"a"}
	assert.ErrorIs(t, shortLabel.Validate(), ErrInvalidState)
}

func TestTable_SetColumnLengthMismatch(t *testing.T) {
	tbl := NewTable(3)
	assert.ErrorIs(t, tbl.SetLabelColumn("g", []string{"a"}), ErrConfiguration)
	assert.ErrorIs(t, tbl.SetValueColumn("v", nil), ErrConfiguration)

	_, ok := tbl.LabelColumn("g")
	assert.False(t, ok)
	_, ok = tbl.ValueColumn("v")
	assert.False(t, ok)
}

func TestTable_Positions(t *testing.T) {
	tbl := NewTable(3)
	tbl.X = []float64{1, 2, 3}
	tbl.Y = []float64{4, 5, 6}

	assert.Equal(t, []r2.Vec{{X: 3, Y: 6}, {X: 1, Y: 4}}, tbl.Positions([]int{2, 0}))
	assert.Empty(t, tbl.Positions(nil))
}
