package search

import (
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMeiliCloseStopsHealthLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewMeili(zap.NewNop(), "http://127.0.0.1:1", "")
	if m.Healthy() {
		t.Fatal("expected unreachable meilisearch to be unhealthy")
	}
	if _, _, err := m.Search(Query{Text: "milk"}); err == nil {
		t.Fatal("expected search against unhealthy index to fail")
	}
	m.Close()
	m.Close()
}

func TestHitToResultPrefersHighlightedItem(t *testing.T) {
	hit := meili.Hit{
		"id":      json.RawMessage(`"list-1"`),
		"name":    json.RawMessage(`"Groceries"`),
		"itemIds": json.RawMessage(`["i1","i2"]`),
		"_formatted": json.RawMessage(`{
			"name": "Groceries",
			"descriptions": ["Buy eggs", "Buy <mark>milk</mark>"]
		}`),
	}

	got := hitToResult(hit)
	want := Result{Type: ResultItem, ListID: "list-1", ItemID: "i2", Title: "Groceries", Snippet: "Buy <mark>milk</mark>"}
	if got != want {
		t.Fatalf("hitToResult() = %+v, want %+v", got, want)
	}
}

func TestHitToResultFallsBackToListName(t *testing.T) {
	hit := meili.Hit{
		"id":         json.RawMessage(`"list-1"`),
		"name":       json.RawMessage(`"Groceries"`),
		"_formatted": json.RawMessage(`{"name": "<mark>Groc</mark>eries", "descriptions": ["Buy eggs"]}`),
	}

	got := hitToResult(hit)
	if got.Type != ResultList || got.Snippet != "<mark>Groc</mark>eries" || got.ItemID != "" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
