package todolist

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todolists/api/internal/store"
)

func descriptions(items []store.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Description
	}
	return out
}

func TestSortDescriptionToggles(t *testing.T) {
	items := []store.Item{
		{ID: "1", Description: "b"},
		{ID: "2", Description: "a"},
		{ID: "3", Description: "c"},
	}

	sorted, order := Sort(items, KeyDescription)
	assert.Equal(t, Ascending, order)
	assert.Equal(t, []string{"a", "b", "c"}, descriptions(sorted))

	again, order := Sort(sorted, KeyDescription)
	assert.Equal(t, Descending, order)
	assert.Equal(t, []string{"c", "b", "a"}, descriptions(again))

	third, order := Sort(again, KeyDescription)
	assert.Equal(t, Ascending, order)
	assert.Equal(t, []string{"a", "b", "c"}, descriptions(third))

	assert.Equal(t, []string{"b", "a", "c"}, descriptions(items), "input must not be modified")
}

func TestSortStatusIsStablePartition(t *testing.T) {
	items := []store.Item{
		{ID: "0", Completed: true},
		{ID: "1", Completed: false},
		{ID: "2", Completed: true},
		{ID: "3", Completed: false},
	}

	sorted, order := Sort(items, KeyStatus)
	assert.Equal(t, Ascending, order)
	assert.Equal(t, []string{"1", "3", "0", "2"}, IDs(sorted))

	flipped, order := Sort(sorted, KeyStatus)
	assert.Equal(t, Descending, order)
	assert.Equal(t, []string{"0", "2", "1", "3"}, IDs(flipped))
}

func TestSortDueDateAndAssignee(t *testing.T) {
	items := []store.Item{
		{ID: "a", DueDate: "2024-03-01", AssignedTo: "Sam"},
		{ID: "b", DueDate: "2023-12-31", AssignedTo: "alex"},
		{ID: "c", DueDate: "2024-01-15", AssignedTo: "Jordan"},
	}

	byDate, _ := Sort(items, KeyDueDate)
	assert.Equal(t, []string{"b", "c", "a"}, IDs(byDate))

	byAssignee, _ := Sort(items, KeyAssignee)
	assert.Equal(t, []string{"b", "c", "a"}, IDs(byAssignee), "collation ignores case")
}

func TestSortEqualKeysKeepInputOrder(t *testing.T) {
	items := []store.Item{
		{ID: "x", Description: "same"},
		{ID: "y", Description: "same"},
	}
	sorted, order := Sort(items, KeyDescription)
	assert.Equal(t, Descending, order, "an all-equal list is already ascending")
	assert.Equal(t, []string{"x", "y"}, IDs(sorted))
}

func TestSortEmpty(t *testing.T) {
	sorted, _ := Sort(nil, KeyDueDate)
	assert.NotNil(t, sorted)
	assert.Empty(t, sorted)
}

func TestSortPropertiesOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	words := []string{"apple", "Banana", "cherry", "date", "", "apple", "Éclair", "fig"}
	keys := []Key{KeyDescription, KeyDueDate, KeyStatus, KeyAssignee}

	for round := 0; round < 200; round++ {
		n := rng.IntN(8)
		items := make([]store.Item, n)
		for i := range items {
			items[i] = store.Item{
				ID:          fmt.Sprintf("%d-%d", round, i),
				Description: words[rng.IntN(len(words))],
				AssignedTo:  words[rng.IntN(len(words))],
				DueDate:     fmt.Sprintf("2024-0%d-1%d", 1+rng.IntN(9), rng.IntN(10)),
				Completed:   rng.IntN(2) == 1,
			}
		}
		for _, key := range keys {
			cmp := Comparator(key)
			sorted, order := Sort(items, key)

			require.ElementsMatch(t, items, sorted, "round %d key %s", round, key)
			for i := 1; i < len(sorted); i++ {
				c := cmp(sorted[i-1], sorted[i])
				if order == Ascending {
					require.LessOrEqual(t, c, 0, "round %d key %s", round, key)
				} else {
					require.GreaterOrEqual(t, c, 0, "round %d key %s", round, key)
				}
			}

			if order == Ascending {
				again, next := Sort(sorted, key)
				require.Equal(t, Descending, next)
				require.ElementsMatch(t, sorted, again)
			}
		}
	}
}

func TestParseKeyAliases(t *testing.T) {
	for raw, want := range map[string]Key{
		"task":        KeyDescription,
		"date":        KeyDueDate,
		"status":      KeyStatus,
		"assigned":    KeyAssignee,
		"assigned_to": KeyAssignee,
	} {
		got, err := ParseKey(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKey("priority")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestComparatorIsTotalForText(t *testing.T) {
	values := []string{"a", "A", "b", "B", "á"}
	cmp := Comparator(KeyDescription)
	items := make([]store.Item, len(values))
	for i, v := range values {
		items[i] = store.Item{Description: v}
	}
	sort.SliceStable(items, func(i, j int) bool { return cmp(items[i], items[j]) < 0 })
	for i := range items {
		for j := range items {
			if i != j && items[i].Description != items[j].Description {
				assert.NotZero(t, cmp(items[i], items[j]), "%q vs %q", items[i].Description, items[j].Description)
			}
		}
	}
}
