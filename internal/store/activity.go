package store

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (q *queries) InsertActivity(ctx context.Context, a Activity) error {
	details := []byte("{}")
	if len(a.Details) > 0 {
		var err error
		if details, err = json.Marshal(a.Details); err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
	}
	createdAt := q.nowMillis()
	if !a.CreatedAt.IsZero() {
		createdAt = toMillis(a.CreatedAt)
	}
	_, err := q.exec(ctx, q.sb.Insert("activity_log").
		Columns("id", "actor_id", "workspace_id", "board_id", "action", "target_type", "target_id", "details", "created_at").
		Values(a.ID, a.ActorID, a.WorkspaceID, a.BoardID, a.Action, a.TargetType, a.TargetID, string(details), createdAt).
		Suffix("ON CONFLICT (id) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// BoardActivity returns the newest entries for a board first.
func (q *queries) BoardActivity(ctx context.Context, boardID string, limit int) ([]Activity, error) {
	b := q.sb.Select("id", "actor_id", "workspace_id", "board_id", "action", "target_type", "target_id", "details", "created_at").
		From("activity_log").
		Where(sq.Eq{"board_id": boardID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := q.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := []Activity{}
	for rows.Next() {
		var (
			a       Activity
			details string
			created int64
		)
		if err := rows.Scan(&a.ID, &a.ActorID, &a.WorkspaceID, &a.BoardID, &a.Action, &a.TargetType, &a.TargetID, &details, &created); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
			return nil, fmt.Errorf("decode activity details: %w", err)
		}
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
