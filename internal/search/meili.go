package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxTodolists = "todolists"

const healthInterval = 10 * time.Second

// Meili indexes and searches todolists via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

// NewMeili creates a Meilisearch client and configures the index. An
// unreachable server is not an error: the client reports unhealthy and the
// health loop keeps probing.
func NewMeili(logger *zap.Logger, url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger.Named("meili"),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	m.stopped.Add(1)
	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxTodolists,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", idxTodolists), zap.Error(err))
	}

	index := m.client.Index(idxTodolists)
	filterable := []interface{}{"owner"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", zap.Error(err))
	}
	searchable := []string{"name", "descriptions", "assignees"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	defer m.stopped.Done()
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor and waits for it to exit.
func (m *Meili) Close() {
	m.once.Do(func() { close(m.done) })
	m.stopped.Wait()
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	request := &meili.SearchRequest{
		IndexUID:              idxTodolists,
		Query:                 q.Text,
		Limit:                 int64(limitOrDefault(q.Limit)),
		AttributesToHighlight: []string{"name", "descriptions"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.Owner != "" {
		request.Filter = fmt.Sprintf("owner = %q", q.Owner)
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{request},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

// hitToResult reports an item hit when a description carries a highlight,
// otherwise a list hit on the name.
func hitToResult(hit meili.Hit) Result {
	r := Result{
		Type:   ResultList,
		ListID: decodeString(hit, "id"),
		Title:  decodeString(hit, "name"),
	}

	formatted := decodeFormatted(hit)
	if name := decodeFormattedString(formatted, "name"); name != "" {
		r.Snippet = name
	}

	itemIDs := decodeStrings(hit["itemIds"])
	for i, description := range decodeStrings(formatted["descriptions"]) {
		if !strings.Contains(description, "<mark>") {
			continue
		}
		r.Type = ResultItem
		r.Snippet = description
		if i < len(itemIDs) {
			r.ItemID = itemIDs[i]
		}
		break
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func decodeFormatted(hit meili.Hit) map[string]json.RawMessage {
	raw, ok := hit["_formatted"]
	if !ok {
		return nil
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return nil
	}
	return formatted
}

func decodeFormattedString(formatted map[string]json.RawMessage, key string) string {
	raw, ok := formatted[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// IndexTodolists adds or replaces todolists in the index.
func (m *Meili) IndexTodolists(records []TodolistRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTodolists).AddDocuments(records, nil)
	return err
}

func (m *Meili) DeleteTodolist(id string) error {
	_, err := m.client.Index(idxTodolists).DeleteDocument(id, nil)
	return err
}
