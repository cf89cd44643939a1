package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/myuser/memberstore/internal/store"
)

func TestCreateRow(t *testing.T) {
	f := newFixture(t)
	expected := f.comparison("INSERT INTO npcs (entity, name) VALUES (3, 'Cathy')")

	err := f.db.CreateRow("npcs", store.ColumnDescriptors{
		"entity": store.IntegerValue(3),
		"name":   store.TextValue("Cathy"),
	})

	require.NoError(t, err)
	f.verifySerialization(expected)
}

func TestCreateRowConstraintViolation(t *testing.T) {
	f := newFixture(t)

	err := f.db.CreateRow("npcs", store.ColumnDescriptors{
		"entity": store.IntegerValue(1),
	})

	require.Error(t, err)
	f.verifyNoChanges()
}

func TestRetrieveRows(t *testing.T) {
	f := newFixture(t)

	rows, err := f.db.RetrieveRows("quests",
		store.RowSelector{Column: "npc", Value: store.IntegerValue(1)},
		store.ColumnSelector{"quest", "completed"})

	require.NoError(t, err)
	require.Equal(t, store.DataSet{
		{"quest": store.IntegerValue(42), "completed": store.BooleanValue(false)},
		{"quest": store.IntegerValue(43), "completed": store.NullValue()},
	}, rows)
}

func TestRetrieveRowsAllColumnsAllRows(t *testing.T) {
	f := newFixture(t)

	rows, err := f.db.RetrieveRows("kv", store.RowSelector{}, nil)

	require.NoError(t, err)
	require.Equal(t, store.DataSet{
		{"key": store.TextValue("foo"), "value": store.TextValue("bar")},
		{"key": store.TextValue("spam"), "value": store.NullValue()},
	}, rows)
}

func TestRetrieveRowsNoMatch(t *testing.T) {
	f := newFixture(t)

	rows, err := f.db.RetrieveRows("kv",
		store.RowSelector{Column: "key", Value: store.TextValue("nope")}, nil)

	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRetrieveRowsUnknownColumn(t *testing.T) {
	f := newFixture(t)

	_, err := f.db.RetrieveRows("kv", store.RowSelector{}, store.ColumnSelector{"missing"})

	kind, ok := store.KindOf(err)
	require.True(t, ok)
	require.Equal(t, store.KindCompile, kind)
}

func TestUpdateRows(t *testing.T) {
	f := newFixture(t)
	expected := f.comparison("UPDATE quests SET completed = 1 WHERE npc = 1")

	count, err := f.db.UpdateRows("quests",
		store.RowSelector{Column: "npc", Value: store.IntegerValue(1)},
		store.ColumnDescriptors{"completed": store.BooleanValue(true)})

	require.NoError(t, err)
	require.Equal(t, 2, count)
	f.verifySerialization(expected)
}

func TestUpdateRowsNoMatch(t *testing.T) {
	f := newFixture(t)

	count, err := f.db.UpdateRows("quests",
		store.RowSelector{Column: "npc", Value: store.IntegerValue(99)},
		store.ColumnDescriptors{"completed": store.BooleanValue(true)})

	require.NoError(t, err)
	require.Zero(t, count)
	f.verifyNoChanges()
}

func TestDestroyRows(t *testing.T) {
	f := newFixture(t)
	expected := f.comparison("DELETE FROM quests WHERE npc = 1")

	count, err := f.db.DestroyRows("quests",
		store.RowSelector{Column: "npc", Value: store.IntegerValue(1)})

	require.NoError(t, err)
	require.Equal(t, 2, count)
	f.verifySerialization(expected)
}

func TestDestroyRowsAll(t *testing.T) {
	f := newFixture(t)

	count, err := f.db.DestroyRows("quests", store.RowSelector{})

	require.NoError(t, err)
	require.Equal(t, 3, count)
	rows, err := f.db.RetrieveRows("quests", store.RowSelector{}, nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}
