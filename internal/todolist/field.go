package todolist

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"todolists/api/internal/store"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid field value")
)

// ItemField enumerates the writable fields of an item.
type ItemField string

const (
	FieldDescription ItemField = "description"
	FieldDueDate     ItemField = "due_date"
	FieldAssignedTo  ItemField = "assigned_to"
	FieldCompleted   ItemField = "completed"
)

const (
	completeToken   = "complete"
	incompleteToken = "incomplete"
)

// ItemUpdate is a typed single-field change. Text carries the value for the
// string fields and Completed for the status field.
type ItemUpdate struct {
	Field     ItemField
	Text      string
	Completed bool
}

// ParseItemUpdate builds an ItemUpdate from wire values. With translate set,
// the completed field also accepts "complete" and "incomplete".
func ParseItemUpdate(field, value string, translate bool) (ItemUpdate, error) {
	switch ItemField(field) {
	case FieldDescription, FieldDueDate, FieldAssignedTo:
		return ItemUpdate{Field: ItemField(field), Text: value}, nil
	case FieldCompleted:
		completed, err := parseCompleted(value, translate)
		if err != nil {
			return ItemUpdate{}, err
		}
		return ItemUpdate{Field: FieldCompleted, Completed: completed}, nil
	default:
		return ItemUpdate{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

func parseCompleted(value string, translate bool) (bool, error) {
	trimmed := strings.TrimSpace(value)
	if translate {
		switch trimmed {
		case completeToken:
			return true, nil
		case incompleteToken:
			return false, nil
		}
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, fmt.Errorf("%w: completed=%q", ErrInvalidValue, value)
	}
	return parsed, nil
}

func (u ItemUpdate) Apply(item *store.Item) {
	switch u.Field {
	case FieldDescription:
		item.Description = u.Text
	case FieldDueDate:
		item.DueDate = u.Text
	case FieldAssignedTo:
		item.AssignedTo = u.Text
	case FieldCompleted:
		item.Completed = u.Completed
	}
}

// Value is the stored representation, used when echoing the update back.
func (u ItemUpdate) Value() any {
	if u.Field == FieldCompleted {
		return u.Completed
	}
	return u.Text
}

func ParseListField(field string) (store.ListField, error) {
	parsed := store.ListField(field)
	if !parsed.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return parsed, nil
}
