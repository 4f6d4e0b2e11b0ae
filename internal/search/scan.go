package search

import (
	"context"
	"fmt"
	"strings"

	"todolists/api/internal/store"
)

// ListSource is the slice of the store the fallback scanner reads.
type ListSource interface {
	ListTodolists(ctx context.Context, owner string) ([]store.Todolist, error)
}

// Scanner matches a query against the owner's lists directly in the store.
// It is the fallback when Meilisearch is not configured or unhealthy.
type Scanner struct {
	source ListSource
}

func NewScanner(source ListSource) *Scanner {
	return &Scanner{source: source}
}

// Search returns one hit per matching list name and one per matching item,
// in list order then item order.
func (s *Scanner) Search(ctx context.Context, q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}
	lists, err := s.source.ListTodolists(ctx, q.Owner)
	if err != nil {
		return nil, 0, fmt.Errorf("scan todolists: %w", err)
	}

	var results []Result
	for _, list := range lists {
		if strings.Contains(strings.ToLower(list.Name), needle) {
			results = append(results, Result{Type: ResultList, ListID: list.ID, Title: list.Name, Snippet: list.Name})
		}
		for _, item := range list.Items {
			if !strings.Contains(strings.ToLower(item.Description), needle) &&
				!strings.Contains(strings.ToLower(item.AssignedTo), needle) {
				continue
			}
			results = append(results, Result{
				Type:    ResultItem,
				ListID:  list.ID,
				ItemID:  item.ID,
				Title:   list.Name,
				Snippet: item.Description,
			})
		}
	}

	total := len(results)
	if limit := limitOrDefault(q.Limit); len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}
