package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMongoStoreReplaceItemsIsVersioned(t *testing.T) {
	uri := strings.TrimSpace(os.Getenv("TODO_TEST_MONGO_URL"))
	if uri == "" {
		t.Skip("TODO_TEST_MONGO_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database := "todolists_test_" + time.Now().Format("20060102150405")
	s, err := OpenMongo(ctx, uri, database)
	if err != nil {
		t.Fatalf("OpenMongo() error = %v", err)
	}
	defer func() {
		_ = s.client.Database(database).Drop(context.Background())
		_ = s.Close(context.Background())
	}()

	if err := s.InsertTodolist(ctx, Todolist{ID: "list-1", Name: "Chores", Owner: "user-1"}); err != nil {
		t.Fatalf("InsertTodolist() error = %v", err)
	}
	if err := s.InsertTodolist(ctx, Todolist{ID: "list-1", Owner: "user-1"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	stored, err := s.GetTodolist(ctx, "list-1")
	if err != nil {
		t.Fatalf("GetTodolist() error = %v", err)
	}
	if stored.Items == nil {
		t.Fatal("expected empty, non-nil items")
	}

	updated, err := s.ReplaceItems(ctx, "list-1", stored.Version, []Item{{ID: "a", Description: "sweep"}})
	if err != nil {
		t.Fatalf("ReplaceItems() error = %v", err)
	}
	if updated.Version != stored.Version+1 || len(updated.Items) != 1 {
		t.Fatalf("unexpected replace result: %+v", updated)
	}
	if _, err := s.ReplaceItems(ctx, "list-1", stored.Version, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.ReplaceItems(ctx, "missing", 0, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.CreateUser(ctx, User{ID: "user-1", Email: "Avery@example.com", DisplayName: "Avery"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.CreateUser(ctx, User{ID: "user-2", Email: "avery@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	if err := s.UpdateTodolistField(ctx, "list-1", ListField("items"), "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if err := s.InsertTodolist(ctx, Todolist{ID: "list-2", Owner: "user-2"}); err != nil {
		t.Fatalf("InsertTodolist() error = %v", err)
	}
	all, err := s.AllTodolists(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("AllTodolists() = %d lists, %v", len(all), err)
	}

	deleted, err := s.DeleteTodolist(ctx, "list-1")
	if err != nil || !deleted {
		t.Fatalf("DeleteTodolist() = %v, %v", deleted, err)
	}
}
