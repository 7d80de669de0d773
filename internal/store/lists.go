package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var listColumns = []string{
	"id", "board_id", "title", "position", "created_by", "is_archived", "is_active",
	"card_order_version", "created_at", "updated_at",
}

func scanList(row interface{ Scan(...any) error }) (List, error) {
	var (
		l                List
		created, updated int64
	)
	if err := row.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedBy, &l.IsArchived,
		&l.IsActive, &l.CardOrderVersion, &created, &updated); err != nil {
		return List{}, err
	}
	l.CreatedAt, l.UpdatedAt = fromMillis(created), fromMillis(updated)
	return l, nil
}

func (q *queries) GetList(ctx context.Context, id string) (List, error) {
	query, args, err := q.sb.Select(listColumns...).From("lists").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return List{}, fmt.Errorf("build query: %w", err)
	}
	l, err := scanList(q.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return List{}, fmt.Errorf("get list: %w", handleSQLError(err))
	}
	return l, nil
}

// ListsByBoard returns the board's lists in position order.
func (q *queries) ListsByBoard(ctx context.Context, boardID string) ([]List, error) {
	rows, err := q.query(ctx, q.sb.Select(listColumns...).From("lists").
		Where(sq.Eq{"board_id": boardID}).OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()
	var out []List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	return out, nil
}

// InsertList writes a new list at l.Position. The caller has already made
// room for it.
func (q *queries) InsertList(ctx context.Context, l List) (List, error) {
	now := q.nowMillis()
	_, err := q.exec(ctx, q.sb.Insert("lists").
		Columns(listColumns...).
		Values(l.ID, l.BoardID, l.Title, l.Position, l.CreatedBy, false, true, 0, now, now))
	if err != nil {
		return List{}, fmt.Errorf("insert list: %w", err)
	}
	l.IsArchived, l.IsActive, l.CardOrderVersion = false, true, 0
	l.CreatedAt, l.UpdatedAt = fromMillis(now), fromMillis(now)
	return l, nil
}

func (q *queries) RenameList(ctx context.Context, id, title string) error {
	err := q.execOne(ctx, q.sb.Update("lists").
		Set("title", title).
		Set("updated_at", q.nowMillis()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("rename list: %w", err)
	}
	return nil
}

func (q *queries) SetListFlags(ctx context.Context, id string, archived, active bool) error {
	err := q.execOne(ctx, q.sb.Update("lists").
		Set("is_archived", archived).
		Set("is_active", active).
		Set("updated_at", q.nowMillis()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set list flags: %w", err)
	}
	return nil
}

// AttachList reparents a detached list and places it in one write.
func (q *queries) AttachList(ctx context.Context, id, boardID string, pos int) error {
	err := q.execOne(ctx, q.sb.Update("lists").
		Set("board_id", boardID).
		Set("position", pos).
		Set("updated_at", q.nowMillis()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("attach list: %w", err)
	}
	return nil
}

// DeleteCardsInList removes every card of the list together with the
// rows that hang off each card. It returns the deleted card ids.
func (q *queries) DeleteCardsInList(ctx context.Context, listID string) ([]string, error) {
	rows, err := q.query(ctx, q.sb.Select("id").From("cards").Where(sq.Eq{"list_id": listID}))
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	ids, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan cards: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := q.deleteCardDependents(ctx, ids...); err != nil {
		return nil, err
	}
	if _, err := q.exec(ctx, q.sb.Delete("cards").Where(sq.Eq{"list_id": listID})); err != nil {
		return nil, fmt.Errorf("delete cards: %w", err)
	}
	return ids, nil
}

func (q *queries) deleteCardDependents(ctx context.Context, cardIDs ...string) error {
	for _, table := range []string{"checklist_items", "card_assignees", "card_attachments", "card_comments"} {
		if _, err := q.exec(ctx, q.sb.Delete(table).Where(sq.Eq{"card_id": cardIDs})); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// ListPositions returns the positions of the board's lists, for integrity
// checks.
func (q *queries) ListPositions(ctx context.Context, boardID string) ([]int, error) {
	return q.positions(ctx, "lists", "board_id", boardID)
}

func (q *queries) CardPositions(ctx context.Context, listID string) ([]int, error) {
	return q.positions(ctx, "cards", "list_id", listID)
}

func (q *queries) positions(ctx context.Context, table, parentCol, parentID string) ([]int, error) {
	rows, err := q.query(ctx, q.sb.Select("position").From(table).
		Where(sq.Eq{parentCol: parentID}).OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	defer rows.Close()
	out := []int{}
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
