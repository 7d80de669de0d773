package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (q *queries) CreateWorkspace(ctx context.Context, ws Workspace) (Workspace, error) {
	now := q.nowMillis()
	_, err := q.exec(ctx, q.sb.Insert("workspaces").
		Columns("id", "name", "owner_id", "is_deleted", "created_at", "updated_at").
		Values(ws.ID, ws.Name, ws.OwnerID, false, now, now))
	if err != nil {
		return Workspace{}, fmt.Errorf("insert workspace: %w", err)
	}
	ws.CreatedAt, ws.UpdatedAt = fromMillis(now), fromMillis(now)
	return ws, nil
}

// GetWorkspace returns the workspace with its member roles, including
// soft-deleted workspaces. Callers decide what deletion means.
func (q *queries) GetWorkspace(ctx context.Context, id string) (Workspace, error) {
	var (
		ws               Workspace
		created, updated int64
	)
	err := q.queryRow(ctx, q.sb.Select("id", "name", "owner_id", "is_deleted", "created_at", "updated_at").
		From("workspaces").Where(sq.Eq{"id": id}),
		&ws.ID, &ws.Name, &ws.OwnerID, &ws.IsDeleted, &created, &updated)
	if err != nil {
		return Workspace{}, fmt.Errorf("get workspace: %w", err)
	}
	ws.CreatedAt, ws.UpdatedAt = fromMillis(created), fromMillis(updated)

	rows, err := q.query(ctx, q.sb.Select("workspace_id", "user_id", "role").
		From("workspace_members").Where(sq.Eq{"workspace_id": id}).OrderBy("user_id"))
	if err != nil {
		return Workspace{}, fmt.Errorf("list workspace members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role); err != nil {
			return Workspace{}, fmt.Errorf("scan workspace member: %w", err)
		}
		ws.Members = append(ws.Members, m)
	}
	if err := rows.Err(); err != nil {
		return Workspace{}, fmt.Errorf("list workspace members: %w", err)
	}
	return ws, nil
}

func (q *queries) SoftDeleteWorkspace(ctx context.Context, id string) error {
	err := q.execOne(ctx, q.sb.Update("workspaces").
		Set("is_deleted", true).
		Set("updated_at", q.nowMillis()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("soft delete workspace: %w", err)
	}
	return nil
}

func (q *queries) RestoreWorkspace(ctx context.Context, id string) error {
	err := q.execOne(ctx, q.sb.Update("workspaces").
		Set("is_deleted", false).
		Set("updated_at", q.nowMillis()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("restore workspace: %w", err)
	}
	return nil
}

// RemoveWorkspaceMember drops the member and their board memberships in
// the workspace.
func (q *queries) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	_, err := q.exec(ctx, q.sb.Delete("board_members").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Expr("board_id IN (SELECT id FROM boards WHERE workspace_id = ?)", workspaceID)))
	if err != nil {
		return fmt.Errorf("remove board memberships: %w", err)
	}
	if err := q.execOne(ctx, q.sb.Delete("workspace_members").
		Where(sq.Eq{"workspace_id": workspaceID, "user_id": userID})); err != nil {
		return fmt.Errorf("remove workspace member: %w", err)
	}
	return nil
}

// PutWorkspaceMember inserts the member or updates the role of an existing one.
func (q *queries) PutWorkspaceMember(ctx context.Context, m WorkspaceMember) error {
	_, err := q.exec(ctx, q.sb.Insert("workspace_members").
		Columns("workspace_id", "user_id", "role").
		Values(m.WorkspaceID, m.UserID, m.Role).
		Suffix("ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = excluded.role"))
	if err != nil {
		return fmt.Errorf("put workspace member: %w", err)
	}
	return nil
}

func (q *queries) CreateBoard(ctx context.Context, b Board) (Board, error) {
	now := q.nowMillis()
	_, err := q.exec(ctx, q.sb.Insert("boards").
		Columns("id", "workspace_id", "title", "created_by", "list_order_version", "created_at", "updated_at").
		Values(b.ID, b.WorkspaceID, b.Title, b.CreatedBy, 0, now, now))
	if err != nil {
		return Board{}, fmt.Errorf("insert board: %w", err)
	}
	b.ListOrderVersion = 0
	b.CreatedAt, b.UpdatedAt = fromMillis(now), fromMillis(now)
	return b, nil
}

func (q *queries) GetBoard(ctx context.Context, id string) (Board, error) {
	var (
		b                Board
		created, updated int64
	)
	err := q.queryRow(ctx, q.sb.Select("id", "workspace_id", "title", "created_by", "list_order_version", "created_at", "updated_at").
		From("boards").Where(sq.Eq{"id": id}),
		&b.ID, &b.WorkspaceID, &b.Title, &b.CreatedBy, &b.ListOrderVersion, &created, &updated)
	if err != nil {
		return Board{}, fmt.Errorf("get board: %w", err)
	}
	b.CreatedAt, b.UpdatedAt = fromMillis(created), fromMillis(updated)
	return b, nil
}

func (q *queries) BoardMembers(ctx context.Context, boardID string) ([]string, error) {
	rows, err := q.query(ctx, q.sb.Select("user_id").From("board_members").
		Where(sq.Eq{"board_id": boardID}).OrderBy("user_id"))
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	members, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan board members: %w", err)
	}
	return members, nil
}

func (q *queries) AddBoardMember(ctx context.Context, boardID, userID string) error {
	_, err := q.exec(ctx, q.sb.Insert("board_members").
		Columns("board_id", "user_id").
		Values(boardID, userID).
		Suffix("ON CONFLICT (board_id, user_id) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("add board member: %w", err)
	}
	return nil
}

func (q *queries) RemoveBoardMember(ctx context.Context, boardID, userID string) error {
	if err := q.execOne(ctx, q.sb.Delete("board_members").
		Where(sq.Eq{"board_id": boardID, "user_id": userID})); err != nil {
		return fmt.Errorf("remove board member: %w", err)
	}
	return nil
}

// BoardsInWorkspace lists board ids of a workspace, oldest first.
func (q *queries) BoardsInWorkspace(ctx context.Context, workspaceID string) ([]string, error) {
	rows, err := q.query(ctx, q.sb.Select("id").From("boards").
		Where(sq.Eq{"workspace_id": workspaceID}).OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	ids, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("scan boards: %w", err)
	}
	return ids, nil
}
