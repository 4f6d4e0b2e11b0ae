// Package todolist implements the ordered item-collection operations behind
// every list mutation: positional insert, removal, tagged field updates,
// neighbour swaps, order restore and the toggling key sorts.
//
// All functions are pure. They never modify the slice they are given and
// always return a fresh slice, so a caller can hold on to the pre-change
// items and hand them back unchanged when the store rejects a write.
package todolist
