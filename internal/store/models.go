package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the list changed between the read and the write.
	ErrConflict  = errors.New("version conflict")
	ErrDuplicate = errors.New("duplicate key")
	// ErrUnknownField is returned for a list field outside ListField.
	ErrUnknownField = errors.New("unknown field")
)

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	DisplayName  string    `json:"displayName" bson:"display_name"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

// Item is a single task entry. It has no lifecycle outside its Todolist.
type Item struct {
	ID          string `json:"_id" bson:"_id"`
	Description string `json:"description" bson:"description"`
	DueDate     string `json:"due_date" bson:"due_date"`
	AssignedTo  string `json:"assigned_to" bson:"assigned_to"`
	Completed   bool   `json:"completed" bson:"completed"`
}

// Todolist is stored as one document with its items embedded in order.
type Todolist struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Owner     string    `json:"owner" bson:"owner"`
	Items     []Item    `json:"items" bson:"items"`
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// ListField names a writable top-level field of a Todolist.
type ListField string

const (
	ListFieldName  ListField = "name"
	ListFieldOwner ListField = "owner"
)

func (f ListField) Valid() bool {
	return f == ListFieldName || f == ListFieldOwner
}

// CloneItems returns a copy that shares no backing array with items.
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func (t Todolist) Clone() Todolist {
	t.Items = CloneItems(t.Items)
	return t
}
