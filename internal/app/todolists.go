package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"
	"todolists/api/internal/auth"
	"todolists/api/internal/rbac"
	"todolists/api/internal/search"
	"todolists/api/internal/store"
	"todolists/api/internal/todolist"
	"todolists/api/internal/util"
)

// ItemsResult is the outcome of an items mutation. When Changed is false,
// Items is the last persisted collection and nothing was written.
type ItemsResult struct {
	Items    []store.Item   `json:"items"`
	Changed  bool           `json:"changed"`
	NotFound bool           `json:"notFound,omitempty"`
	Order    todolist.Order `json:"order,omitempty"`
}

func notFoundResult() ItemsResult {
	return ItemsResult{Items: []store.Item{}, NotFound: true}
}

const (
	opAddItem         = "add_item"
	opDeleteItem      = "delete_item"
	opUpdateItemField = "update_item_field"
	opReorderItems    = "reorder_items"
	opSortItems       = "sort_items"
	opRestoreOrder    = "restore_order"
	opAddTodolist     = "add_todolist"
	opDeleteTodolist  = "delete_todolist"
	opUpdateListField = "update_list_field"
)

const (
	msgListNotFound   = "Todolist not found"
	msgCouldNotAdd    = "Could not add item"
	msgCouldNotCreate = "Could not add todolist"
)

// CreatedResult carries either the id of what was created or the reason it
// was not.
type CreatedResult struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// loadList fetches a list the requester may act on. Lists owned by someone
// else are reported exactly like missing ones.
func (s *Service) loadList(ctx context.Context, id string, action rbac.Action) (store.Todolist, auth.Identity, error) {
	identity, err := requester(ctx)
	if err != nil {
		return store.Todolist{}, auth.Identity{}, err
	}
	list, err := s.store.GetTodolist(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Todolist{}, identity, ErrListNotFound
	}
	if err != nil {
		return store.Todolist{}, identity, fmt.Errorf("load todolist %s: %w", id, err)
	}
	if !rbac.CanAccessList(rbac.Normalize(identity.Role), identity.UserID, list.Owner, action) {
		return store.Todolist{}, identity, ErrListNotFound
	}
	return list, identity, nil
}

// itemsChange computes the next collection from the current one. It reports
// false when there is nothing to write.
type itemsChange func(current []store.Item) ([]store.Item, bool, error)

// mutateItems is the read-modify-write every items operation shares: load,
// compute, replace at the loaded version. A failed or conflicting write
// yields the loaded items with Changed=false.
func (s *Service) mutateItems(ctx context.Context, operation, listID string, change itemsChange) (ItemsResult, error) {
	list, _, err := s.loadList(ctx, listID, rbac.ActionWrite)
	if errors.Is(err, ErrListNotFound) {
		s.metrics.observeMutation(operation, outcomeNotFound)
		return notFoundResult(), nil
	}
	if err != nil {
		return ItemsResult{}, err
	}

	next, changed, err := change(list.Items)
	if err != nil {
		s.metrics.observeMutation(operation, outcomeRejected)
		return ItemsResult{Items: list.Items}, err
	}
	if !changed {
		s.metrics.observeMutation(operation, outcomeUnchanged)
		return ItemsResult{Items: list.Items}, nil
	}

	updated, err := s.store.ReplaceItems(ctx, list.ID, list.Version, next)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.metrics.observeMutation(operation, outcomeNotFound)
		return notFoundResult(), nil
	case err != nil:
		s.logger.Warn("items write not applied",
			zap.String("operation", operation),
			zap.String("list_id", list.ID),
			zap.Int64("version", list.Version),
			zap.Error(err),
		)
		s.metrics.observeMutation(operation, outcomeUnchanged)
		return ItemsResult{Items: list.Items}, nil
	}

	s.metrics.observeMutation(operation, outcomeChanged)
	s.search.IndexTodolist(updated)
	return ItemsResult{Items: updated.Items, Changed: true}, nil
}

// GetAllTodos lists the requester's todolists; failures degrade to empty.
func (s *Service) GetAllTodos(ctx context.Context) []store.Todolist {
	identity, err := requester(ctx)
	if err != nil {
		return []store.Todolist{}
	}
	lists, err := s.store.ListTodolists(ctx, identity.UserID)
	if err != nil {
		s.logger.Error("list todolists", zap.String("owner", identity.UserID), zap.Error(err))
		return []store.Todolist{}
	}
	if lists == nil {
		return []store.Todolist{}
	}
	return lists
}

// GetTodoByID reports false when the list is missing or not the requester's.
func (s *Service) GetTodoByID(ctx context.Context, id string) (store.Todolist, bool) {
	list, _, err := s.loadList(ctx, id, rbac.ActionRead)
	if err != nil {
		if !errors.Is(err, ErrListNotFound) {
			s.logger.Error("get todolist", zap.String("list_id", id), zap.Error(err))
		}
		return store.Todolist{}, false
	}
	return list, true
}

type AddTodolistInput struct {
	Name  string
	Owner string
	Items []store.Item
}

// AddTodolist persists a new list and returns its generated id. The owner
// defaults to the requester; only admins may create lists for others.
func (s *Service) AddTodolist(ctx context.Context, input AddTodolistInput) (CreatedResult, error) {
	identity, err := requester(ctx)
	if err != nil {
		return CreatedResult{}, err
	}
	owner := strings.TrimSpace(input.Owner)
	if owner == "" {
		owner = identity.UserID
	}
	if !rbac.CanAccessList(rbac.Normalize(identity.Role), identity.UserID, owner, rbac.ActionWrite) {
		s.metrics.observeMutation(opAddTodolist, outcomeRejected)
		return CreatedResult{}, domainError(http.StatusForbidden, "FORBIDDEN", "Cannot create lists for another user", nil)
	}

	items, err := withItemIDs(input.Items)
	if err != nil {
		s.metrics.observeMutation(opAddTodolist, outcomeRejected)
		return CreatedResult{}, validationError(err.Error(), nil)
	}

	list := store.Todolist{
		ID:    util.NewID(""),
		Name:  strings.TrimSpace(input.Name),
		Owner: owner,
		Items: items,
	}
	if err := s.store.InsertTodolist(ctx, list); err != nil {
		s.logger.Error("insert todolist", zap.String("owner", owner), zap.Error(err))
		s.metrics.observeMutation(opAddTodolist, outcomeUnchanged)
		return CreatedResult{Error: msgCouldNotCreate}, nil
	}
	s.metrics.observeMutation(opAddTodolist, outcomeChanged)
	s.search.IndexTodolist(list)
	return CreatedResult{ID: list.ID}, nil
}

// withItemIDs assigns ids to items that lack one and rejects duplicates.
func withItemIDs(items []store.Item) ([]store.Item, error) {
	out := make([]store.Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			item.ID = util.NewID("")
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %q", item.ID)
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

// DeleteTodolist reports whether a list was removed.
func (s *Service) DeleteTodolist(ctx context.Context, id string) bool {
	if _, _, err := s.loadList(ctx, id, rbac.ActionDelete); err != nil {
		s.metrics.observeMutation(opDeleteTodolist, outcomeNotFound)
		return false
	}
	deleted, err := s.store.DeleteTodolist(ctx, id)
	if err != nil {
		s.logger.Error("delete todolist", zap.String("list_id", id), zap.Error(err))
		s.metrics.observeMutation(opDeleteTodolist, outcomeUnchanged)
		return false
	}
	if !deleted {
		s.metrics.observeMutation(opDeleteTodolist, outcomeNotFound)
		return false
	}
	s.metrics.observeMutation(opDeleteTodolist, outcomeChanged)
	s.search.DeleteTodolist(id)
	return true
}

// UpdateTodolistField echoes value on success and returns "" when nothing
// was written. Unknown field names are a validation error.
func (s *Service) UpdateTodolistField(ctx context.Context, id, field, value string) (string, error) {
	listField, err := todolist.ParseListField(field)
	if err != nil {
		s.metrics.observeMutation(opUpdateListField, outcomeRejected)
		return "", validationError(err.Error(), map[string]any{"field": field})
	}
	if listField == store.ListFieldOwner {
		value = strings.TrimSpace(value)
		if value == "" {
			s.metrics.observeMutation(opUpdateListField, outcomeRejected)
			return "", validationError("owner must not be empty", map[string]any{"field": field})
		}
	}
	_, identity, err := s.loadList(ctx, id, rbac.ActionWrite)
	if err != nil {
		if errors.Is(err, ErrListNotFound) {
			s.metrics.observeMutation(opUpdateListField, outcomeNotFound)
			return "", nil
		}
		return "", err
	}
	// Handing a list over follows the same rule as creating one for someone.
	if listField == store.ListFieldOwner &&
		!rbac.CanAccessList(rbac.Normalize(identity.Role), identity.UserID, value, rbac.ActionWrite) {
		s.metrics.observeMutation(opUpdateListField, outcomeRejected)
		return "", domainError(http.StatusForbidden, "FORBIDDEN", "Cannot give lists to another user", nil)
	}
	if err := s.store.UpdateTodolistField(ctx, id, listField, value); err != nil {
		s.logger.Warn("update todolist field", zap.String("list_id", id), zap.String("field", field), zap.Error(err))
		s.metrics.observeMutation(opUpdateListField, outcomeUnchanged)
		return "", nil
	}
	s.metrics.observeMutation(opUpdateListField, outcomeChanged)
	if updated, err := s.store.GetTodolist(ctx, id); err == nil {
		s.search.IndexTodolist(updated)
	}
	return value, nil
}

// AddItem inserts item at index (negative appends) and returns its id,
// generating one when blank.
func (s *Service) AddItem(ctx context.Context, listID string, item store.Item, index int) (CreatedResult, error) {
	if strings.TrimSpace(item.ID) == "" {
		item.ID = util.NewID("")
	}
	result, err := s.mutateItems(ctx, opAddItem, listID, func(current []store.Item) ([]store.Item, bool, error) {
		next, err := todolist.Insert(current, item, index)
		if err != nil {
			return nil, false, validationError(err.Error(), map[string]any{"itemId": item.ID})
		}
		return next, true, nil
	})
	if err != nil {
		return CreatedResult{}, err
	}
	if result.NotFound {
		return CreatedResult{Error: msgListNotFound}, nil
	}
	if !result.Changed {
		return CreatedResult{Error: msgCouldNotAdd}, nil
	}
	return CreatedResult{ID: item.ID}, nil
}

func (s *Service) DeleteItem(ctx context.Context, listID, itemID string) (ItemsResult, error) {
	return s.mutateItems(ctx, opDeleteItem, listID, func(current []store.Item) ([]store.Item, bool, error) {
		next, removed := todolist.Remove(current, itemID)
		return next, removed, nil
	})
}

// UpdateItemField overwrites one enumerated field. With translate set the
// completed field accepts "complete" and "incomplete".
func (s *Service) UpdateItemField(ctx context.Context, listID, itemID, field, value string, translate bool) (ItemsResult, error) {
	update, err := todolist.ParseItemUpdate(field, value, translate)
	if err != nil {
		s.metrics.observeMutation(opUpdateItemField, outcomeRejected)
		return ItemsResult{}, validationError(err.Error(), map[string]any{"field": field})
	}
	return s.mutateItems(ctx, opUpdateItemField, listID, func(current []store.Item) ([]store.Item, bool, error) {
		next, found := todolist.ApplyItemUpdate(current, itemID, update)
		return next, found, nil
	})
}

func (s *Service) ReorderItems(ctx context.Context, listID, itemID string, move todolist.Move) (ItemsResult, error) {
	if !move.Valid() {
		s.metrics.observeMutation(opReorderItems, outcomeRejected)
		return ItemsResult{}, validationError("direction must be -1 or 1", map[string]any{"direction": int(move)})
	}
	return s.mutateItems(ctx, opReorderItems, listID, func(current []store.Item) ([]store.Item, bool, error) {
		next, swapped := todolist.SwapNeighbor(current, itemID, move)
		return next, swapped, nil
	})
}

// SortItems orders the list by key, descending when the persisted order is
// already ascending. Order reports the direction only when it was written.
func (s *Service) SortItems(ctx context.Context, listID string, key todolist.Key) (ItemsResult, error) {
	var order todolist.Order
	result, err := s.mutateItems(ctx, opSortItems+"_"+string(key), listID, func(current []store.Item) ([]store.Item, bool, error) {
		var sorted []store.Item
		sorted, order = todolist.Sort(current, key)
		return sorted, !slices.Equal(todolist.IDs(current), todolist.IDs(sorted)), nil
	})
	if err == nil && result.Changed {
		result.Order = order
	}
	return result, err
}

// RestoreOrder rebuilds the list in the given id order; unlisted items are
// dropped.
func (s *Service) RestoreOrder(ctx context.Context, listID string, order []string) (ItemsResult, error) {
	return s.mutateItems(ctx, opRestoreOrder, listID, func(current []store.Item) ([]store.Item, bool, error) {
		next := todolist.Restore(current, order)
		return next, !slices.Equal(todolist.IDs(current), todolist.IDs(next)), nil
	})
}

// Search matches the requester's lists by name, item description or assignee.
func (s *Service) Search(ctx context.Context, text string, limit int) (search.Response, error) {
	identity, err := requester(ctx)
	if err != nil {
		return search.Response{}, err
	}
	q := search.Query{Text: strings.TrimSpace(text), Owner: identity.UserID, Limit: limit}
	if q.Text == "" {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(ctx, q), nil
}

// Seed gives a new account a starter list.
func (s *Service) Seed(ctx context.Context, userID string) (string, error) {
	list := store.Todolist{
		ID:    util.NewID(""),
		Name:  "Getting started",
		Owner: userID,
		Items: []store.Item{
			{ID: util.NewID(""), Description: "Add your first item", AssignedTo: "me"},
			{ID: util.NewID(""), Description: "Sort the list by due date", DueDate: "2030-01-01", AssignedTo: "me"},
			{ID: util.NewID(""), Description: "Mark an item complete", AssignedTo: "me", Completed: true},
		},
	}
	if err := s.store.InsertTodolist(ctx, list); err != nil {
		return "", fmt.Errorf("seed todolist: %w", err)
	}
	s.search.IndexTodolist(list)
	return list.ID, nil
}
