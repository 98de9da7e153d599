package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

type snapshot struct {
	Notes    string
	Duration int
	End      *time.Time
	Supplier *snowflake.ID
}

var snapshotFields = []Field[snapshot]{
	{Name: "notes", Get: func(s snapshot) any { return s.Notes }},
	{Name: "duration_months", Get: func(s snapshot) any { return s.Duration }},
	{Name: "end_date", Get: func(s snapshot) any { return s.End }},
	{Name: "supplier_id", Get: func(s snapshot) any { return s.Supplier }},
}

func TestDiffKeepsOnlyChangedFields(t *testing.T) {
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sameEnd := end.Add(3 * time.Hour)
	supplier := snowflake.ID(42)

	before := snapshot{Notes: "x", Duration: 12, End: &end}
	after := snapshot{Notes: "x", Duration: 24, End: &sameEnd, Supplier: &supplier}

	changes := Diff(before, after, snapshotFields...)

	assert.Len(t, changes, 2)
	assert.Equal(t, FieldChange{Before: int64(12), After: int64(24)}, changes["duration_months"])
	assert.Equal(t, FieldChange{Before: nil, After: "42"}, changes["supplier_id"])
	assert.NotContains(t, changes, "end_date")
	assert.NotContains(t, changes, "notes")
}

func TestChangesCompact(t *testing.T) {
	changes := Changes{
		"a": {Before: "1", After: "1"},
		"b": {Before: nil, After: "x"},
	}
	compacted := changes.Compact()
	assert.Len(t, compacted, 1)
	assert.Contains(t, compacted, "b")
}

func TestSnapshotSkipsEmptyFields(t *testing.T) {
	changes := Snapshot(snapshot{Notes: "x", Duration: 12}, snapshotFields...)

	assert.Equal(t, Changes{
		"notes":           {After: "x"},
		"duration_months": {After: int64(12)},
	}, changes)
}
