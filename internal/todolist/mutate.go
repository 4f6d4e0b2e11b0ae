package todolist

import (
	"errors"
	"fmt"

	"todolists/api/internal/store"
)

var ErrDuplicateItem = errors.New("item id already present")

// Move is the neighbour-swap direction of a reorder.
type Move int

const (
	MoveEarlier Move = -1
	MoveLater   Move = 1
)

func (m Move) Valid() bool {
	return m == MoveEarlier || m == MoveLater
}

// Insert places item at index. A negative index, or one past the end, appends.
func Insert(items []store.Item, item store.Item, index int) ([]store.Item, error) {
	if IndexOf(items, item.ID) >= 0 {
		return store.CloneItems(items), fmt.Errorf("insert %q: %w", item.ID, ErrDuplicateItem)
	}
	if index < 0 || index > len(items) {
		index = len(items)
	}
	out := make([]store.Item, 0, len(items)+1)
	out = append(out, items[:index]...)
	out = append(out, item)
	out = append(out, items[index:]...)
	return out, nil
}

// Remove drops the item with the given id. Removing an absent id is a no-op.
func Remove(items []store.Item, id string) ([]store.Item, bool) {
	out := make([]store.Item, 0, len(items))
	removed := false
	for _, item := range items {
		if item.ID == id {
			removed = true
			continue
		}
		out = append(out, item)
	}
	return out, removed
}

// ApplyItemUpdate overwrites one field of the matching item.
func ApplyItemUpdate(items []store.Item, id string, update ItemUpdate) ([]store.Item, bool) {
	out := store.CloneItems(items)
	index := IndexOf(out, id)
	if index < 0 {
		return out, false
	}
	update.Apply(&out[index])
	return out, true
}

// SwapNeighbor exchanges the item with its neighbour in the given direction.
// It reports false when the id is absent or already at that boundary.
func SwapNeighbor(items []store.Item, id string, move Move) ([]store.Item, bool) {
	out := store.CloneItems(items)
	index := IndexOf(out, id)
	if index < 0 || !move.Valid() {
		return out, false
	}
	target := index + int(move)
	if target < 0 || target >= len(out) {
		return out, false
	}
	out[index], out[target] = out[target], out[index]
	return out, true
}

// Restore rebuilds the collection in the given id order. Current items whose
// id is not listed are dropped; listed ids that no longer exist are skipped.
func Restore(items []store.Item, order []string) []store.Item {
	byID := make(map[string]store.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]store.Item, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, dup := seen[id]; dup {
			continue
		}
		item, ok := byID[id]
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}

func IndexOf(items []store.Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// IDs returns the item ids in collection order.
func IDs(items []store.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
