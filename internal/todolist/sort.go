package todolist

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"todolists/api/internal/store"
)

// Key selects the item field a sort orders by.
type Key string

const (
	KeyDescription Key = "description"
	KeyDueDate     Key = "due_date"
	KeyStatus      Key = "completed"
	KeyAssignee    Key = "assigned_to"
)

// Order is the direction a sort produced.
type Order string

const (
	Ascending  Order = "ascending"
	Descending Order = "descending"
)

var keyAliases = map[string]Key{
	"description": KeyDescription,
	"task":        KeyDescription,
	"due_date":    KeyDueDate,
	"date":        KeyDueDate,
	"completed":   KeyStatus,
	"status":      KeyStatus,
	"assigned_to": KeyAssignee,
	"assigned":    KeyAssignee,
	"assignee":    KeyAssignee,
}

func ParseKey(raw string) (Key, error) {
	key, ok := keyAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: sort key %q", ErrUnknownField, raw)
	}
	return key, nil
}

// Compare orders two items by key: collated text for description and
// assignee, byte order for due dates, incomplete before complete for status.
// Collation ties fall back to byte order so the result is a total order.
type Compare func(a, b store.Item) int

// Comparator returns a Compare for key. The collator behind text keys is not
// safe for concurrent use, so each call builds its own.
func Comparator(key Key) Compare {
	switch key {
	case KeyDescription:
		return textCompare(func(item store.Item) string { return item.Description })
	case KeyAssignee:
		return textCompare(func(item store.Item) string { return item.AssignedTo })
	case KeyDueDate:
		return func(a, b store.Item) int { return strings.Compare(a.DueDate, b.DueDate) }
	case KeyStatus:
		return func(a, b store.Item) int { return boolRank(a.Completed) - boolRank(b.Completed) }
	default:
		return func(store.Item, store.Item) int { return 0 }
	}
}

func textCompare(field func(store.Item) string) Compare {
	collator := collate.New(language.English)
	return func(a, b store.Item) int {
		left, right := field(a), field(b)
		if c := collator.CompareString(left, right); c != 0 {
			return c
		}
		return strings.Compare(left, right)
	}
}

func boolRank(value bool) int {
	if value {
		return 1
	}
	return 0
}

// IsSorted reports whether items are already in non-decreasing order under cmp.
func IsSorted(items []store.Item, cmp Compare) bool {
	for i := 1; i < len(items); i++ {
		if cmp(items[i-1], items[i]) > 0 {
			return false
		}
	}
	return true
}

// Sort returns items stably sorted by key. Items that are already ascending
// come back descending, which is what makes a repeated sort toggle.
func Sort(items []store.Item, key Key) ([]store.Item, Order) {
	cmp := Comparator(key)
	order := Ascending
	if IsSorted(items, cmp) {
		order = Descending
	}
	return SortInOrder(items, key, order), order
}

// SortInOrder stably sorts a copy of items by key in the given order.
func SortInOrder(items []store.Item, key Key, order Order) []store.Item {
	cmp := Comparator(key)
	out := store.CloneItems(items)
	if order == Descending {
		slices.SortStableFunc(out, func(a, b store.Item) int { return cmp(b, a) })
	} else {
		slices.SortStableFunc(out, cmp)
	}
	return out
}
