package util

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a 24-character hex object id, optionally prefixed.
// Todolist and item ids use the bare form so clients see the same shape
// regardless of the backing store.
func NewID(prefix string) string {
	id := primitive.NewObjectID().Hex()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
