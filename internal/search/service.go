package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"todolists/api/internal/store"
)

type index interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexTodolists(records []TodolistRecord) error
	DeleteTodolist(id string) error
}

// Service is the facade that tries Meilisearch first and falls back to a
// store scan.
type Service struct {
	index   index
	scanner *Scanner
	logger  *zap.Logger
	pending sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(logger *zap.Logger, meili *Meili, scanner *Scanner) *Service {
	s := &Service{scanner: scanner, logger: logger.Named("search")}
	if meili != nil {
		s.index = meili
	}
	return s
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to the scanner.
// Failures degrade to an empty response.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.indexReady() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to scan", zap.Error(err))
	}

	if s.scanner == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.scanner.Search(ctx, q)
	if err != nil {
		s.logger.Error("scan search failed", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTodolist indexes a list (fire-and-forget to Meilisearch).
func (s *Service) IndexTodolist(list store.Todolist) {
	if !s.indexReady() {
		return
	}
	record := RecordFromTodolist(list)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.index.IndexTodolists([]TodolistRecord{record}); err != nil {
			s.logger.Warn("index todolist", zap.String("list_id", record.ID), zap.Error(err))
		}
	}()
}

// DeleteTodolist removes a list from the index (fire-and-forget).
func (s *Service) DeleteTodolist(id string) {
	if !s.indexReady() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.index.DeleteTodolist(id); err != nil {
			s.logger.Warn("delete todolist from index", zap.String("list_id", id), zap.Error(err))
		}
	}()
}

// ErrIndexUnavailable means Meilisearch is not configured or not healthy.
var ErrIndexUnavailable = errors.New("search index unavailable")

// ReindexAll pushes every given list to Meilisearch in one batch and
// reports how many were sent.
func (s *Service) ReindexAll(lists []store.Todolist) (int, error) {
	if !s.indexReady() {
		return 0, ErrIndexUnavailable
	}
	if len(lists) == 0 {
		return 0, nil
	}
	records := make([]TodolistRecord, 0, len(lists))
	for _, list := range lists {
		records = append(records, RecordFromTodolist(list))
	}
	if err := s.index.IndexTodolists(records); err != nil {
		return 0, fmt.Errorf("reindex %d todolists: %w", len(records), err)
	}
	return len(records), nil
}

// Wait blocks until in-flight index writes finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
