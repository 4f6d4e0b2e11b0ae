package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-local document store. Every read and write
// copies the items slice so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	todolists map[string]Todolist
	users     map[string]User
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		todolists: make(map[string]Todolist),
		users:     make(map[string]User),
		now:       time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) ListTodolists(_ context.Context, owner string) ([]Todolist, error) {
	return s.collect(func(list Todolist) bool { return list.Owner == owner }), nil
}

// AllTodolists returns every list regardless of owner.
func (s *MemoryStore) AllTodolists(context.Context) ([]Todolist, error) {
	return s.collect(func(Todolist) bool { return true }), nil
}

func (s *MemoryStore) collect(match func(Todolist) bool) []Todolist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lists := make([]Todolist, 0)
	for _, list := range s.todolists {
		if match(list) {
			lists = append(lists, list.Clone())
		}
	}
	sort.SliceStable(lists, func(i, j int) bool {
		if lists[i].CreatedAt.Equal(lists[j].CreatedAt) {
			return lists[i].ID < lists[j].ID
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})
	return lists
}

func (s *MemoryStore) GetTodolist(_ context.Context, id string) (Todolist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.todolists[id]
	if !ok {
		return Todolist{}, ErrNotFound
	}
	return list.Clone(), nil
}

func (s *MemoryStore) InsertTodolist(_ context.Context, list Todolist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.todolists[list.ID]; exists {
		return ErrDuplicate
	}
	now := s.now().UTC()
	list = list.Clone()
	list.CreatedAt = now
	list.UpdatedAt = now
	s.todolists[list.ID] = list
	return nil
}

func (s *MemoryStore) ReplaceItems(_ context.Context, id string, expectedVersion int64, items []Item) (Todolist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.todolists[id]
	if !ok {
		return Todolist{}, ErrNotFound
	}
	if list.Version != expectedVersion {
		return Todolist{}, ErrConflict
	}
	list.Items = CloneItems(items)
	list.Version++
	list.UpdatedAt = s.now().UTC()
	s.todolists[id] = list
	return list.Clone(), nil
}

func (s *MemoryStore) UpdateTodolistField(_ context.Context, id string, field ListField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !field.Valid() {
		return fmt.Errorf("update todolist field: %w %q", ErrUnknownField, field)
	}
	list, ok := s.todolists[id]
	if !ok {
		return ErrNotFound
	}
	switch field {
	case ListFieldName:
		list.Name = value
	case ListFieldOwner:
		list.Owner = value
	}
	list.Version++
	list.UpdatedAt = s.now().UTC()
	s.todolists[id] = list
	return nil
}

func (s *MemoryStore) DeleteTodolist(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todolists[id]; !ok {
		return false, nil
	}
	delete(s.todolists, id)
	return true, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	if _, exists := s.users[user.ID]; exists {
		return ErrDuplicate
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}
