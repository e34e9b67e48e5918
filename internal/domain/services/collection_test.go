package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// newTestCollection returns a collection with deterministic ids.
func newTestCollection(events ...entities.Event) *Collection {
	n := 0
	c := &Collection{newID: func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}}
	c.Replace(events)
	return c
}

func ids(events []entities.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestCollection_Replace_NormalizesLoadedRecords(t *testing.T) {
	c := newTestCollection(
		entities.Event{ID: "a", Title: "A", DateStr: "1990"},
		entities.Event{Title: "B", DateStr: "-221"},
		entities.Event{ID: "a", Title: "C", DateStr: "1990-01-01"},
		entities.Event{ID: "d", Title: "D", DateStr: "not a date"},
	)

	events := c.Events()
	assert.Equal(t, []string{"gen-1", "d", "a", "gen-2"}, ids(events))
	for _, e := range events {
		assert.True(t, e.IsSaved)
	}
	_, ok := c.Selected()
	assert.False(t, ok)
}

func TestCollection_Add(t *testing.T) {
	c := newTestCollection(entities.Event{ID: "x", Title: "Existing", DateStr: "1000"})

	added, err := c.Add([]entities.Event{
		{Title: "Later", DateStr: "2000"},
		{ID: "keep", Title: "Earlier", DateStr: "-50"},
	}, DedupNone)
	require.NoError(t, err)

	require.Len(t, added, 2)
	assert.Equal(t, "gen-1", added[0].ID)
	assert.Equal(t, "keep", added[1].ID)
	assert.Equal(t, []string{"keep", "x", "gen-1"}, ids(c.Events()))

	selected, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "gen-1", selected.ID)
}

func TestCollection_Add_ExistingIDReplaces(t *testing.T) {
	c := newTestCollection(entities.Event{ID: "x", Title: "Old", DateStr: "1000"})

	_, err := c.Add([]entities.Event{{ID: "x", Title: "New", DateStr: "1000"}}, DedupNone)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
	got, _ := c.Get("x")
	assert.Equal(t, "New", got.Title)
}

func TestCollection_Add_ValidationIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name      string
		bad       entities.Event
		wantField string
	}{
		{name: "missing title", bad: entities.Event{Title: "  ", DateStr: "1"}, wantField: "title"},
		{name: "missing date", bad: entities.Event{Title: "T"}, wantField: "date"},
		{name: "date not starting with digit", bad: entities.Event{Title: "T", DateStr: "circa 1200"}, wantField: "date"},
		{name: "latitude out of range", bad: entities.Event{Title: "T", DateStr: "1", Location: entities.Location{Lat: 91}}, wantField: "latitude"},
		{name: "longitude out of range", bad: entities.Event{Title: "T", DateStr: "1", Location: entities.Location{Lng: -181}}, wantField: "longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCollection()
			_, err := c.Add([]entities.Event{{Title: "Good", DateStr: "1"}, tt.bad}, DedupNone)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, 2, verr.Record)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestCollection_Add_StableForEqualKeys(t *testing.T) {
	c := newTestCollection(entities.Event{ID: "first", Title: "A", DateStr: "1990"})

	_, err := c.Add([]entities.Event{{ID: "second", Title: "B", DateStr: "1990"}}, DedupNone)
	require.NoError(t, err)
	_, err = c.Add([]entities.Event{{ID: "third", Title: "C", DateStr: "1990-01-01"}}, DedupNone)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, ids(c.Events()))
}

func TestCollection_Add_DedupTitleYear(t *testing.T) {
	c := newTestCollection(entities.Event{ID: "x", Title: "Battle of Red Cliffs", DateStr: "208-11"})

	added, err := c.Add([]entities.Event{
		{Title: "Battle of Red Cliffs", DateStr: "208"},
		{Title: "Battle of Red Cliffs", DateStr: "209"},
		{Title: "Fall of Rome", DateStr: "476"},
		{Title: "Fall of Rome", DateStr: "476-09-04"},
	}, DedupTitleYear)
	require.NoError(t, err)

	require.Len(t, added, 2)
	assert.Equal(t, "209", added[0].DateStr)
	assert.Equal(t, "476", added[1].DateStr)
	assert.Equal(t, 3, c.Len())
}

func TestCollection_Add_DedupOnlyDuplicatesIsNoOp(t *testing.T) {
	c := newTestCollection(entities.Event{ID: "x", Title: "T", DateStr: "1990"})
	require.NoError(t, c.Select("x"))
	before := c.Events()

	added, err := c.Add([]entities.Event{{Title: "T", DateStr: "1990-05"}}, DedupTitleYear)
	require.NoError(t, err)

	assert.Empty(t, added)
	assert.Equal(t, before, c.Events())
	selected, _ := c.Selected()
	assert.Equal(t, "x", selected.ID)
}

func TestCollection_AddThenDeleteRestoresContent(t *testing.T) {
	c := newTestCollection(
		entities.Event{ID: "a", Title: "A", DateStr: "1"},
		entities.Event{ID: "b", Title: "B", DateStr: "1"},
		entities.Event{ID: "c", Title: "C", DateStr: "3"},
	)
	before := c.Events()

	added, err := c.Add([]entities.Event{{Title: "New", DateStr: "1"}}, DedupNone)
	require.NoError(t, err)
	_, err = c.Delete(added[0].ID)
	require.NoError(t, err)

	assert.Equal(t, before, c.Events())
	_, ok := c.Selected()
	assert.False(t, ok, "deleting the selected event clears the selection")
}

func TestCollection_Update(t *testing.T) {
	c := newTestCollection(
		entities.Event{ID: "a", Title: "A", DateStr: "1000"},
		entities.Event{ID: "b", Title: "B", DateStr: "1000"},
		entities.Event{ID: "c", Title: "C", DateStr: "2000"},
	)
	require.NoError(t, c.Select("a"))

	updated, err := c.Update(entities.Event{ID: "a", Title: "A2", DateStr: "3000"})
	require.NoError(t, err)
	assert.True(t, updated.IsSaved)

	assert.Equal(t, []string{"b", "c", "a"}, ids(c.Events()))
	selected, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "A2", selected.Title)
}

func TestCollection_Update_SameKeyMovesAfterEqualPeers(t *testing.T) {
	c := newTestCollection(
		entities.Event{ID: "a", Title: "A", DateStr: "1000"},
		entities.Event{ID: "b", Title: "B", DateStr: "1000"},
	)

	_, err := c.Update(entities.Event{ID: "a", Title: "A", DateStr: "1000", Description: "edited"})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, ids(c.Events()))
}

func TestCollection_Update_InvalidLeavesCollection(t *testing.T) {
	c := newTestCollection(entities.Event{ID: "a", Title: "A", DateStr: "1000"})

	_, err := c.Update(entities.Event{ID: "a", Title: "A", DateStr: "someday"})
	require.Error(t, err)

	got, _ := c.Get("a")
	assert.Equal(t, "1000", got.DateStr)
}

func TestCollection_Delete_NotFound(t *testing.T) {
	c := newTestCollection(entities.Event{ID: "a", Title: "A", DateStr: "1"})

	_, err := c.Delete("missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.Equal(t, 1, c.Len())
}

func TestCollection_Delete_KeepsOtherSelection(t *testing.T) {
	c := newTestCollection(
		entities.Event{ID: "a", Title: "A", DateStr: "1"},
		entities.Event{ID: "b", Title: "B", DateStr: "2"},
	)
	require.NoError(t, c.Select("b"))

	_, err := c.Delete("a")
	require.NoError(t, err)

	selected, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", selected.ID)
}

func TestCollection_Select_Unknown(t *testing.T) {
	c := newTestCollection()
	assert.ErrorIs(t, c.Select("nope"), ErrEventNotFound)
}

func TestCollection_Filter(t *testing.T) {
	c := newTestCollection(
		entities.Event{ID: "a", Title: "Fall of Rome", DateStr: "476", Location: entities.Location{Name: "Rome"}},
		entities.Event{ID: "b", Title: "Moon landing", DateStr: "1969"},
		entities.Event{ID: "c", Title: "Sack of Rome", DateStr: "410"},
	)

	assert.Equal(t, []string{"c", "a"}, ids(c.Filter("rome")))
	assert.Len(t, c.Filter(""), 3)
	assert.Empty(t, c.Filter("mars"))
}

func TestParseDedupPolicy(t *testing.T) {
	p, err := ParseDedupPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DedupNone, p)

	p, err = ParseDedupPolicy("Title-Year")
	require.NoError(t, err)
	assert.Equal(t, DedupTitleYear, p)

	_, err = ParseDedupPolicy("fuzzy")
	assert.Error(t, err)
}
