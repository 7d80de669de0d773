package search

import (
	"context"

	"go.uber.org/zap"

	"taskflow/api/internal/logger"
	"taskflow/api/internal/store"
)

// Service tries Meilisearch first and falls back to a SQL scan of the store.
// Results always come from the store, so they reflect committed state and
// current ordering even when the index lags.
type Service struct {
	meili  *Meili
	store  CardStore
	logger logger.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, cards CardStore, log logger.Logger) *Service {
	return &Service{meili: meili, store: cards, logger: log}
}

func (s *Service) SearchCards(ctx context.Context, q Query) ([]store.Card, error) {
	if len(q.BoardIDs) == 0 {
		return []store.Card{}, nil
	}
	f := q.filter()
	if s.meili != nil && s.meili.Healthy() {
		ids, err := s.meili.SearchCardIDs(q)
		if err == nil {
			f = store.CardFilter{BoardIDs: q.BoardIDs, IDs: ids, Limit: q.Limit}
		} else {
			s.logger.WarnWithContext(ctx, "search: meilisearch error, falling back to sql", zap.Error(err))
		}
	}
	cards, err := s.store.SearchCards(ctx, f)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []store.Card{}
	}
	return cards, nil
}

// Indexing reports whether index updates currently go anywhere.
func (s *Service) Indexing() bool {
	return s.meili != nil && s.meili.Healthy()
}

// IndexCards pushes cards to Meilisearch when it is available. It is a
// no-op otherwise; the SQL fallback never needs indexing.
func (s *Service) IndexCards(records ...CardRecord) error {
	if !s.Indexing() {
		return nil
	}
	return s.meili.IndexCards(records)
}

func (s *Service) DeleteCards(ids ...string) error {
	if !s.Indexing() || len(ids) == 0 {
		return nil
	}
	return s.meili.DeleteCards(ids)
}
