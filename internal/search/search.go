package search

import (
	"context"

	"taskflow/api/internal/store"
)

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID          string   `json:"id"`
	BoardID     string   `json:"boardId"`
	ListID      string   `json:"listId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Labels      []string `json:"labels"`
	Assignees   []string `json:"assignees"`
	Archived    bool     `json:"archived"`
}

// Query describes a card search. BoardIDs bounds it to boards the caller
// may read.
type Query struct {
	BoardIDs []string
	Text     string
	Label    string
	Assignee string
	Limit    int
}

func (q Query) filter() store.CardFilter {
	return store.CardFilter{
		BoardIDs: q.BoardIDs,
		Query:    q.Text,
		Label:    q.Label,
		Assignee: q.Assignee,
		Limit:    q.Limit,
	}
}

// NewCardRecord flattens a card for indexing. Positions are not indexed;
// result order always comes from the store.
func NewCardRecord(c store.Card) CardRecord {
	labels, assignees := c.Labels, c.Assignees
	if labels == nil {
		labels = []string{}
	}
	if assignees == nil {
		assignees = []string{}
	}
	return CardRecord{
		ID:          c.ID,
		BoardID:     c.BoardID,
		ListID:      c.ListID,
		Title:       c.Title,
		Description: c.Description,
		Status:      c.Status,
		Labels:      labels,
		Assignees:   assignees,
		Archived:    c.IsArchived,
	}
}

// CardStore is the part of the store that answers card searches.
type CardStore interface {
	SearchCards(ctx context.Context, f store.CardFilter) ([]store.Card, error)
}
