package todolist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todolists/api/internal/store"
)

func TestParseItemUpdateCompletedTranslation(t *testing.T) {
	tests := []struct {
		value     string
		translate bool
		want      bool
		wantErr   bool
	}{
		{value: "complete", translate: true, want: true},
		{value: "incomplete", translate: true, want: false},
		{value: "true", translate: true, want: true},
		{value: "false", translate: false, want: false},
		{value: "complete", translate: false, wantErr: true},
		{value: "maybe", translate: true, wantErr: true},
	}
	for _, tt := range tests {
		update, err := ParseItemUpdate("completed", tt.value, tt.translate)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidValue, "value %q translate=%v", tt.value, tt.translate)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, update.Completed, "value %q", tt.value)
		assert.Equal(t, tt.want, update.Value())
	}
}

func TestParseItemUpdateRejectsUnknownField(t *testing.T) {
	_, err := ParseItemUpdate("priority", "high", false)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = ParseItemUpdate("_id", "other", false)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestItemUpdateApplyTextFields(t *testing.T) {
	var item store.Item
	for field, value := range map[string]string{
		"description": "Buy milk",
		"due_date":    "2024-05-01",
		"assigned_to": "Jordan",
	} {
		update, err := ParseItemUpdate(field, value, false)
		require.NoError(t, err)
		update.Apply(&item)
		assert.Equal(t, value, update.Value())
	}
	assert.Equal(t, store.Item{Description: "Buy milk", DueDate: "2024-05-01", AssignedTo: "Jordan"}, item)
}

func TestParseListField(t *testing.T) {
	field, err := ParseListField("name")
	require.NoError(t, err)
	assert.Equal(t, store.ListFieldName, field)

	_, err = ParseListField("items")
	assert.ErrorIs(t, err, ErrUnknownField)
}
