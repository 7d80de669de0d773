package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var checklistColumns = []string{"id", "card_id", "text", "completed", "position", "created_at", "updated_at"}

func scanChecklistItem(row interface{ Scan(...any) error }) (ChecklistItem, error) {
	var (
		it               ChecklistItem
		created, updated int64
	)
	if err := row.Scan(&it.ID, &it.CardID, &it.Text, &it.Completed, &it.Position, &created, &updated); err != nil {
		return ChecklistItem{}, err
	}
	it.CreatedAt, it.UpdatedAt = fromMillis(created), fromMillis(updated)
	return it, nil
}

func (q *queries) ChecklistItems(ctx context.Context, cardID string) ([]ChecklistItem, error) {
	rows, err := q.query(ctx, q.sb.Select(checklistColumns...).From("checklist_items").
		Where(sq.Eq{"card_id": cardID}).OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("list checklist: %w", err)
	}
	defer rows.Close()
	out := []ChecklistItem{}
	for rows.Next() {
		it, err := scanChecklistItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checklist: %w", err)
	}
	return out, nil
}

func (q *queries) GetChecklistItem(ctx context.Context, id string) (ChecklistItem, error) {
	query, args, err := q.sb.Select(checklistColumns...).From("checklist_items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return ChecklistItem{}, fmt.Errorf("build query: %w", err)
	}
	it, err := scanChecklistItem(q.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return ChecklistItem{}, fmt.Errorf("get checklist item: %w", handleSQLError(err))
	}
	return it, nil
}

func (q *queries) InsertChecklistItem(ctx context.Context, it ChecklistItem) (ChecklistItem, error) {
	now := q.nowMillis()
	_, err := q.exec(ctx, q.sb.Insert("checklist_items").
		Columns(checklistColumns...).
		Values(it.ID, it.CardID, it.Text, false, it.Position, now, now))
	if err != nil {
		return ChecklistItem{}, fmt.Errorf("insert checklist item: %w", err)
	}
	it.Completed = false
	it.CreatedAt, it.UpdatedAt = fromMillis(now), fromMillis(now)
	return it, nil
}

func (q *queries) SetChecklistCompleted(ctx context.Context, id string, completed bool) error {
	err := q.execOne(ctx, q.sb.Update("checklist_items").
		Set("completed", completed).
		Set("updated_at", q.nowMillis()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set checklist completed: %w", err)
	}
	return nil
}
