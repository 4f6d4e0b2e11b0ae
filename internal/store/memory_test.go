package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIsolatesCallerSlices(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	items := []Item{{ID: "a", Description: "milk"}}
	require.NoError(t, s.InsertTodolist(ctx, Todolist{ID: "l1", Owner: "u1", Items: items}))

	items[0].Description = "changed by caller"
	got, err := s.GetTodolist(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "milk", got.Items[0].Description)

	got.Items[0].Description = "changed after read"
	again, err := s.GetTodolist(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "milk", again.Items[0].Description)
}

func TestMemoryStoreReplaceItemsChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertTodolist(ctx, Todolist{ID: "l1", Owner: "u1"}))

	updated, err := s.ReplaceItems(ctx, "l1", 0, []Item{{ID: "a"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.Len(t, updated.Items, 1)

	_, err = s.ReplaceItems(ctx, "l1", 0, nil)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.ReplaceItems(ctx, "nope", 0, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListsByOwnerInCreationOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	require.NoError(t, s.InsertTodolist(ctx, Todolist{ID: "z", Owner: "u1"}))
	require.NoError(t, s.InsertTodolist(ctx, Todolist{ID: "other", Owner: "u2"}))
	require.NoError(t, s.InsertTodolist(ctx, Todolist{ID: "a", Owner: "u1"}))

	lists, err := s.ListTodolists(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "z", lists[0].ID)
	assert.Equal(t, "a", lists[1].ID)
	assert.NotNil(t, lists[0].Items)

	assert.ErrorIs(t, s.InsertTodolist(ctx, Todolist{ID: "a", Owner: "u1"}), ErrDuplicate)
}

func TestMemoryStoreFieldUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertTodolist(ctx, Todolist{ID: "l1", Name: "old", Owner: "u1"}))

	require.NoError(t, s.UpdateTodolistField(ctx, "l1", ListFieldName, "new"))
	got, err := s.GetTodolist(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, int64(1), got.Version)

	assert.ErrorIs(t, s.UpdateTodolistField(ctx, "missing", ListFieldName, "x"), ErrNotFound)
	assert.ErrorIs(t, s.UpdateTodolistField(ctx, "l1", ListField("items"), "x"), ErrUnknownField)
	assert.ErrorIs(t, s.UpdateTodolistField(ctx, "missing", ListField("items"), "x"), ErrUnknownField)

	deleted, err := s.DeleteTodolist(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteTodolist(ctx, "l1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryStoreUsersAreUniqueByEmail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateUser(ctx, User{ID: "u1", Email: "Avery@Example.com", DisplayName: "Avery"}))
	assert.ErrorIs(t, s.CreateUser(ctx, User{ID: "u2", Email: "avery@example.com"}), ErrDuplicate)

	user, err := s.GetUserByEmail(ctx, " AVERY@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = s.GetUserByID(ctx, "u2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAllTodolistsSpansOwners(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertTodolist(ctx, Todolist{ID: "a", Owner: "u1"}))
	require.NoError(t, s.InsertTodolist(ctx, Todolist{ID: "b", Owner: "u2"}))

	lists, err := s.AllTodolists(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(lists))
	for _, list := range lists {
		ids = append(ids, list.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
