package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"taskflow/api/internal/ordering"
)

// collection adapts one parent's children to ordering.Collection.
type collection struct {
	q          *queries
	parent     string // parent table
	versionCol string
	child      string // child table
	parentCol  string
	parentID   string
	onDelete   func(ctx context.Context, id string) error
}

// BoardLists is the ordered set of lists on a board.
func (tx *Tx) BoardLists(boardID string) ordering.Collection {
	return &collection{q: tx.queries, parent: "boards", versionCol: "list_order_version",
		child: "lists", parentCol: "board_id", parentID: boardID}
}

// ListCards is the ordered set of cards in a list. Deleting a card through it
// also removes the card's checklist, assignees and attachments.
func (tx *Tx) ListCards(listID string) ordering.Collection {
	return &collection{q: tx.queries, parent: "lists", versionCol: "card_order_version",
		child: "cards", parentCol: "list_id", parentID: listID,
		onDelete: func(ctx context.Context, id string) error {
			return tx.deleteCardDependents(ctx, id)
		}}
}

// CardChecklist is the ordered set of checklist items on a card.
func (tx *Tx) CardChecklist(cardID string) ordering.Collection {
	return &collection{q: tx.queries, parent: "cards", versionCol: "checklist_order_version",
		child: "checklist_items", parentCol: "card_id", parentID: cardID}
}

func (c *collection) Version(ctx context.Context) (int64, error) {
	var v int64
	err := c.q.queryRow(ctx, c.q.sb.Select(c.versionCol).From(c.parent).Where(sq.Eq{"id": c.parentID}), &v)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", c.versionCol, err)
	}
	return v, nil
}

func (c *collection) Bump(ctx context.Context) error {
	err := c.q.execOne(ctx, c.q.sb.Update(c.parent).
		Set(c.versionCol, sq.Expr(c.versionCol+" + 1")).
		Set("updated_at", c.q.nowMillis()).
		Where(sq.Eq{"id": c.parentID}))
	if err != nil {
		return fmt.Errorf("bump %s: %w", c.versionCol, err)
	}
	return nil
}

func (c *collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.q.queryRow(ctx, c.q.sb.Select("COUNT(*)").From(c.child).
		Where(sq.Eq{c.parentCol: c.parentID}).
		Where(sq.GtOrEq{"position": 0}), &n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.child, err)
	}
	return n, nil
}

func (c *collection) PositionOf(ctx context.Context, id string) (int, error) {
	var pos int
	err := c.q.queryRow(ctx, c.q.sb.Select("position").From(c.child).
		Where(sq.Eq{"id": id, c.parentCol: c.parentID}), &pos)
	if errors.Is(err, ErrNotFound) {
		return 0, ordering.ErrNotChild
	}
	if err != nil {
		return 0, fmt.Errorf("read position: %w", err)
	}
	return pos, nil
}

func (c *collection) Shift(ctx context.Context, lo, hi, delta int) error {
	b := c.q.sb.Update(c.child).
		Set("position", sq.Expr("position + ?", delta)).
		Where(sq.Eq{c.parentCol: c.parentID}).
		Where(sq.GtOrEq{"position": lo})
	if hi >= 0 {
		b = b.Where(sq.LtOrEq{"position": hi})
	}
	if _, err := c.q.exec(ctx, b); err != nil {
		return fmt.Errorf("shift %s: %w", c.child, err)
	}
	return nil
}

func (c *collection) Place(ctx context.Context, id string, pos int) error {
	err := c.q.execOne(ctx, c.q.sb.Update(c.child).
		Set("position", pos).
		Set("updated_at", c.q.nowMillis()).
		Where(sq.Eq{"id": id, c.parentCol: c.parentID}))
	if errors.Is(err, ErrNotFound) {
		return ordering.ErrNotChild
	}
	if err != nil {
		return fmt.Errorf("place %s: %w", c.child, err)
	}
	return nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	if c.onDelete != nil {
		if err := c.onDelete(ctx, id); err != nil {
			return err
		}
	}
	err := c.q.execOne(ctx, c.q.sb.Delete(c.child).Where(sq.Eq{"id": id, c.parentCol: c.parentID}))
	if errors.Is(err, ErrNotFound) {
		return ordering.ErrNotChild
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.child, err)
	}
	return nil
}

func (c *collection) Order(ctx context.Context) ([]string, error) {
	rows, err := c.q.query(ctx, c.q.sb.Select("id").From(c.child).
		Where(sq.Eq{c.parentCol: c.parentID}).
		Where(sq.GtOrEq{"position": 0}).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("read %s order: %w", c.child, err)
	}
	ids, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s order: %w", c.child, err)
	}
	return ids, nil
}

// Assign rewrites every position in a single UPDATE.
func (c *collection) Assign(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	positions := sq.Case("id")
	for i, id := range ids {
		positions = positions.When(sq.Expr("?", id), sq.Expr("CAST(? AS INTEGER)", i))
	}
	_, err := c.q.exec(ctx, c.q.sb.Update(c.child).
		Set("position", positions).
		Set("updated_at", c.q.nowMillis()).
		Where(sq.Eq{c.parentCol: c.parentID, "id": ids}))
	if err != nil {
		return fmt.Errorf("assign %s positions: %w", c.child, err)
	}
	return nil
}
