package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"taskflow/api/internal/logger"
)

const idxCards = "taskflow_cards"

// Meili indexes cards in Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  logger.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the card index. An
// unreachable server is not an error; the client reports itself unhealthy
// until the health loop sees it come back.
func NewMeili(url, apiKey string, log logger.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: log,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn("search: meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxCards,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("search: create index (may already exist)", zap.String("index", idxCards), zap.Error(err))
	}

	index := m.client.Index(idxCards)
	filterable := []interface{}{"boardId", "listId", "labels", "assignees", "archived", "status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("search: update filterable attrs", zap.Error(err))
	}
	searchable := []string{"title", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("search: update searchable attrs", zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
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
				m.logger.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// SearchCardIDs returns matching card ids. Ordering is left to the caller,
// which re-reads the cards from the store.
func (m *Meili) SearchCardIDs(q Query) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 50
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID: idxCards,
			Query:    q.Text,
			Filter:   cardFilter(q),
			Limit:    limit,
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	ids := []string{}
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			if id := decodeString(hit, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// cardFilter renders the query's constraints in Meilisearch filter syntax.
func cardFilter(q Query) []string {
	filters := []string{"archived = false"}
	if len(q.BoardIDs) > 0 {
		quoted := make([]string, len(q.BoardIDs))
		for i, id := range q.BoardIDs {
			quoted[i] = fmt.Sprintf("%q", id)
		}
		filters = append(filters, "boardId IN ["+strings.Join(quoted, ", ")+"]")
	}
	if q.Label != "" {
		filters = append(filters, fmt.Sprintf("labels = %q", q.Label))
	}
	if q.Assignee != "" {
		filters = append(filters, fmt.Sprintf("assignees = %q", q.Assignee))
	}
	return filters
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexCards adds or replaces cards in the index.
func (m *Meili) IndexCards(records []CardRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCards).AddDocuments(records, nil)
	return err
}

// DeleteCards removes cards from the index.
func (m *Meili) DeleteCards(ids []string) error {
	for _, id := range ids {
		if _, err := m.client.Index(idxCards).DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("delete card %s: %w", id, err)
		}
	}
	return nil
}
