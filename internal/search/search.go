// Package search finds todolists by name, item description or assignee.
package search

import "todolists/api/internal/store"

// ResultType identifies what matched inside a todolist.
type ResultType string

const (
	ResultList ResultType = "todolist"
	ResultItem ResultType = "item"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ListID  string     `json:"listId"`
	ItemID  string     `json:"itemId,omitempty"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request. Owner scopes hits to one user's lists.
type Query struct {
	Text  string
	Owner string
	Limit int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// TodolistRecord is the data we index for a todolist.
type TodolistRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Owner        string   `json:"owner"`
	ItemIDs      []string `json:"itemIds"`
	Descriptions []string `json:"descriptions"`
	Assignees    []string `json:"assignees"`
}

// RecordFromTodolist flattens a list into its indexed form. Descriptions and
// ItemIDs stay index-aligned so a highlighted description maps back to its item.
func RecordFromTodolist(list store.Todolist) TodolistRecord {
	record := TodolistRecord{
		ID:           list.ID,
		Name:         list.Name,
		Owner:        list.Owner,
		ItemIDs:      make([]string, 0, len(list.Items)),
		Descriptions: make([]string, 0, len(list.Items)),
		Assignees:    make([]string, 0, len(list.Items)),
	}
	for _, item := range list.Items {
		record.ItemIDs = append(record.ItemIDs, item.ID)
		record.Descriptions = append(record.Descriptions, item.Description)
		record.Assignees = append(record.Assignees, item.AssignedTo)
	}
	return record
}

const defaultLimit = 20

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
