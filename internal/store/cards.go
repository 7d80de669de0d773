package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var cardColumns = []string{
	"c.id", "c.list_id", "l.board_id", "c.title", "c.description", "c.status", "c.labels",
	"c.due_date", "c.position", "c.created_by", "c.is_archived", "c.checklist_order_version",
	"c.created_at", "c.updated_at",
}

func (q *queries) selectCards() sq.SelectBuilder {
	return q.sb.Select(cardColumns...).From("cards c").Join("lists l ON l.id = c.list_id")
}

func scanCard(row interface{ Scan(...any) error }) (Card, error) {
	var (
		c                Card
		labels           string
		due              *int64
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.ListID, &c.BoardID, &c.Title, &c.Description, &c.Status, &labels,
		&due, &c.Position, &c.CreatedBy, &c.IsArchived, &c.ChecklistOrderVersion, &created, &updated); err != nil {
		return Card{}, err
	}
	if err := json.Unmarshal([]byte(labels), &c.Labels); err != nil {
		return Card{}, fmt.Errorf("decode labels: %w", err)
	}
	if due != nil {
		t := fromMillis(*due)
		c.DueDate = &t
	}
	c.CreatedAt, c.UpdatedAt = fromMillis(created), fromMillis(updated)
	return c, nil
}

func encodeLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encode labels: %w", err)
	}
	return string(raw), nil
}

// GetCard returns the card with its assignees, attachments and checklist.
func (q *queries) GetCard(ctx context.Context, id string) (Card, error) {
	query, args, err := q.selectCards().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return Card{}, fmt.Errorf("build query: %w", err)
	}
	c, err := scanCard(q.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Card{}, fmt.Errorf("get card: %w", handleSQLError(err))
	}
	if err := q.loadCardDetails(ctx, &c); err != nil {
		return Card{}, err
	}
	return c, nil
}

func (q *queries) loadCardDetails(ctx context.Context, c *Card) error {
	rows, err := q.query(ctx, q.sb.Select("user_id").From("card_assignees").
		Where(sq.Eq{"card_id": c.ID}).OrderBy("user_id"))
	if err != nil {
		return fmt.Errorf("list assignees: %w", err)
	}
	if c.Assignees, err = scanStrings(rows); err != nil {
		return fmt.Errorf("scan assignees: %w", err)
	}

	rows, err = q.query(ctx, q.sb.Select("media_id").From("card_attachments").
		Where(sq.Eq{"card_id": c.ID}).OrderBy("media_id"))
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	if c.Attachments, err = scanStrings(rows); err != nil {
		return fmt.Errorf("scan attachments: %w", err)
	}

	rows, err = q.query(ctx, q.sb.Select("message_id").From("card_comments").
		Where(sq.Eq{"card_id": c.ID}).OrderBy("created_at", "message_id"))
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	if c.Comments, err = scanStrings(rows); err != nil {
		return fmt.Errorf("scan comments: %w", err)
	}

	c.Checklist, err = q.ChecklistItems(ctx, c.ID)
	return err
}

// CardsByBoard returns the board's unarchived cards ordered by list
// position, then card position.
func (q *queries) CardsByBoard(ctx context.Context, boardID string) ([]Card, error) {
	return q.cards(ctx, q.selectCards().
		Where(sq.Eq{"l.board_id": boardID, "c.is_archived": false}).
		OrderBy("l.position", "c.position"))
}

// CardsByList returns the list's cards in position order. Assignees,
// attachments and checklist are loaded for each card.
func (q *queries) CardsByList(ctx context.Context, listID string) ([]Card, error) {
	return q.cards(ctx, q.selectCards().Where(sq.Eq{"c.list_id": listID}).OrderBy("c.position"))
}

// SearchCards matches unarchived cards on the given boards, ordered by list
// position and then card position.
func (q *queries) SearchCards(ctx context.Context, f CardFilter) ([]Card, error) {
	if len(f.BoardIDs) == 0 {
		return nil, nil
	}
	b := q.selectCards().
		Where(sq.Eq{"l.board_id": f.BoardIDs}).
		Where(sq.Eq{"c.is_archived": false})
	if f.IDs != nil {
		b = b.Where(sq.Eq{"c.id": f.IDs})
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		pattern := likePattern(term)
		b = b.Where(sq.Or{
			sq.Expr(`LOWER(c.title) LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`LOWER(c.description) LIKE ? ESCAPE '\'`, pattern),
		})
	}
	if f.Label != "" {
		encoded, err := json.Marshal(f.Label)
		if err != nil {
			return nil, fmt.Errorf("encode label: %w", err)
		}
		b = b.Where(sq.Expr(`c.labels LIKE ? ESCAPE '\'`, "%"+escapeLike(string(encoded))+"%"))
	}
	if f.Assignee != "" {
		b = b.Where(sq.Expr("EXISTS (SELECT 1 FROM card_assignees a WHERE a.card_id = c.id AND a.user_id = ?)", f.Assignee))
	}
	b = b.OrderBy("l.position", "c.position")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	return q.cards(ctx, b)
}

func (q *queries) cards(ctx context.Context, b sq.SelectBuilder) ([]Card, error) {
	rows, err := q.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	var out []Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list cards: %w", err)
	}
	rows.Close()

	for i := range out {
		if err := q.loadCardDetails(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q *queries) InsertCard(ctx context.Context, c Card) (Card, error) {
	labels, err := encodeLabels(c.Labels)
	if err != nil {
		return Card{}, err
	}
	if c.Status == "" {
		c.Status = "todo"
	}
	var due *int64
	if c.DueDate != nil {
		ms := toMillis(*c.DueDate)
		due = &ms
	}
	now := q.nowMillis()
	_, err = q.exec(ctx, q.sb.Insert("cards").
		Columns("id", "list_id", "title", "description", "status", "labels", "due_date", "position",
			"created_by", "is_archived", "checklist_order_version", "created_at", "updated_at").
		Values(c.ID, c.ListID, c.Title, c.Description, c.Status, labels, due, c.Position,
			c.CreatedBy, false, 0, now, now))
	if err != nil {
		return Card{}, fmt.Errorf("insert card: %w", err)
	}
	if c.Labels == nil {
		c.Labels = []string{}
	}
	c.CreatedAt, c.UpdatedAt = fromMillis(now), fromMillis(now)
	return c, nil
}

func (q *queries) UpdateCard(ctx context.Context, id string, p CardPatch) error {
	b := q.sb.Update("cards").Set("updated_at", q.nowMillis()).Where(sq.Eq{"id": id})
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Description != nil {
		b = b.Set("description", *p.Description)
	}
	if p.Status != nil {
		b = b.Set("status", *p.Status)
	}
	if p.Labels != nil {
		labels, err := encodeLabels(*p.Labels)
		if err != nil {
			return err
		}
		b = b.Set("labels", labels)
	}
	switch {
	case p.ClearDueDate:
		b = b.Set("due_date", nil)
	case p.DueDate != nil:
		b = b.Set("due_date", toMillis(*p.DueDate))
	}
	if err := q.execOne(ctx, b); err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return nil
}

func (q *queries) SetCardArchived(ctx context.Context, id string, archived bool) error {
	err := q.execOne(ctx, q.sb.Update("cards").
		Set("is_archived", archived).
		Set("updated_at", q.nowMillis()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set card archived: %w", err)
	}
	return nil
}

// AttachCard reparents a detached card and places it in one write.
func (q *queries) AttachCard(ctx context.Context, id, listID string, pos int) error {
	err := q.execOne(ctx, q.sb.Update("cards").
		Set("list_id", listID).
		Set("position", pos).
		Set("updated_at", q.nowMillis()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("attach card: %w", err)
	}
	return nil
}

func (q *queries) AddAssignee(ctx context.Context, cardID, userID string) error {
	_, err := q.exec(ctx, q.sb.Insert("card_assignees").
		Columns("card_id", "user_id").Values(cardID, userID).
		Suffix("ON CONFLICT (card_id, user_id) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("add assignee: %w", err)
	}
	return nil
}

func (q *queries) RemoveAssignee(ctx context.Context, cardID, userID string) error {
	if err := q.execOne(ctx, q.sb.Delete("card_assignees").
		Where(sq.Eq{"card_id": cardID, "user_id": userID})); err != nil {
		return fmt.Errorf("remove assignee: %w", err)
	}
	return nil
}

func (q *queries) AddAttachment(ctx context.Context, cardID, mediaID string) error {
	_, err := q.exec(ctx, q.sb.Insert("card_attachments").
		Columns("card_id", "media_id").Values(cardID, mediaID).
		Suffix("ON CONFLICT (card_id, media_id) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}
	return nil
}

func (q *queries) RemoveAttachment(ctx context.Context, cardID, mediaID string) error {
	if err := q.execOne(ctx, q.sb.Delete("card_attachments").
		Where(sq.Eq{"card_id": cardID, "media_id": mediaID})); err != nil {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}

func (q *queries) AddComment(ctx context.Context, cardID, messageID string) error {
	_, err := q.exec(ctx, q.sb.Insert("card_comments").
		Columns("card_id", "message_id", "created_at").Values(cardID, messageID, q.nowMillis()).
		Suffix("ON CONFLICT (card_id, message_id) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

func (q *queries) RemoveComment(ctx context.Context, cardID, messageID string) error {
	if err := q.execOne(ctx, q.sb.Delete("card_comments").
		Where(sq.Eq{"card_id": cardID, "message_id": messageID})); err != nil {
		return fmt.Errorf("remove comment: %w", err)
	}
	return nil
}

func likePattern(term string) string {
	return "%" + escapeLike(strings.ToLower(term)) + "%"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
