package app

import (
	"context"
	"strings"

	"taskflow/api/internal/engine"
	"taskflow/api/internal/ordering"
	"taskflow/api/internal/rbac"
	"taskflow/api/internal/store"
	"taskflow/api/internal/util"
)

type CreateListInput struct {
	Title    string `json:"title"`
	Position *int   `json:"position"`
}

type UpdateListInput struct {
	Title           *string `json:"title"`
	Position        *int    `json:"position"`
	ExpectedVersion *int64  `json:"expectedVersion"`
}

// ReorderInput is one drag-and-drop gesture: the item that was dragged
// from StartIndex and dropped at EndIndex.
type ReorderInput struct {
	ItemID          string `json:"-"`
	StartIndex      *int   `json:"startIndex"`
	EndIndex        *int   `json:"endIndex"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

// MoveInput names the new parent and, optionally, the slot in it.
type MoveInput struct {
	TargetID       string `json:"-"`
	TargetPosition *int   `json:"targetPosition"`
}

var listStateActions = map[string]struct{}{
	"archive":    {},
	"unarchive":  {},
	"activate":   {},
	"deactivate": {},
}

func checkPosition(field string, pos *int) error {
	if pos != nil && *pos < 0 {
		return invalidOperation(field + " must be a non-negative integer")
	}
	return nil
}

func (s *Service) CreateList(ctx context.Context, actorID, boardID string, input CreateListInput) (map[string]any, error) {
	if err := requireID("boardId", util.PrefixBoard, boardID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	if err := checkPosition("position", input.Position); err != nil {
		return nil, err
	}
	chain, err := s.loader.Board(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "create_list", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionCreate); err != nil {
		return nil, err
	}

	var list store.List
	err = s.mutate(ctx, "create_list", func(ctx context.Context, tx *store.Tx) error {
		_, err := ordering.Insert(ctx, tx.BoardLists(boardID), input.Position, func(ctx context.Context, pos int) error {
			var err error
			list, err = tx.InsertList(ctx, store.List{
				ID:        util.NewID(util.PrefixList),
				BoardID:   boardID,
				Title:     title,
				Position:  pos,
				CreatedBy: actorID,
			})
			return err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, boardID)
	s.committed(actorID, change{
		Action: "list.created", TargetType: "list", TargetID: list.ID,
		WorkspaceID: chain.Workspace.ID, BoardID: boardID,
		Details: map[string]any{"title": list.Title, "position": list.Position},
	})
	return listPayload(list), nil
}

// ReorderLists applies a drag-and-drop gesture to the board's lists.
func (s *Service) ReorderLists(ctx context.Context, actorID, boardID string, input ReorderInput) (map[string]any, error) {
	if err := requireID("boardId", util.PrefixBoard, boardID); err != nil {
		return nil, err
	}
	if err := requireID("listId", util.PrefixList, input.ItemID); err != nil {
		return nil, err
	}
	if input.StartIndex == nil || input.EndIndex == nil {
		return nil, validationError("startIndex and endIndex are required")
	}
	chain, err := s.loader.ListOnBoard(ctx, input.ItemID, boardID)
	if err != nil {
		return nil, s.fail(ctx, "reorder_lists", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionReorder); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, "reorder_lists", func(ctx context.Context, tx *store.Tx) error {
		lists := tx.BoardLists(boardID)
		if err := ordering.Guard(ctx, lists, input.ExpectedVersion); err != nil {
			return err
		}
		order, err := lists.Order(ctx)
		if err != nil {
			return err
		}
		next, err := ordering.Splice(order, input.ItemID, *input.StartIndex, *input.EndIndex)
		if err != nil {
			return err
		}
		return ordering.ReorderBulk(ctx, lists, next)
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, boardID)
	s.committed(actorID, change{
		Action: "list.reordered", TargetType: "list", TargetID: input.ItemID,
		WorkspaceID: chain.Workspace.ID, BoardID: boardID,
		Details: map[string]any{"startIndex": *input.StartIndex, "endIndex": *input.EndIndex},
	})
	return s.boardListsPayload(ctx, "reorder_lists", chain.Board)
}

// GetList returns a list with its cards in order.
func (s *Service) GetList(ctx context.Context, actorID, listID string) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "get_list", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionRead); err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, chain.Board.ID)
	cards, err := s.store.CardsByList(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "get_list", err)
	}
	payload := listPayload(*chain.List)
	payload["cards"] = cardsPayload(cards)
	return payload, nil
}

// UpdateList renames a list and/or moves it within its board.
func (s *Service) UpdateList(ctx context.Context, actorID, listID string, input UpdateListInput) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	if input.Title == nil && input.Position == nil {
		return nil, validationError("nothing to update")
	}
	var title string
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validationError("title must be a non-empty string")
		}
	}
	if err := checkPosition("position", input.Position); err != nil {
		return nil, err
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "update_list", err)
	}
	// Renaming belongs to the creator; moving is open to every board writer.
	if input.Title != nil {
		if err := s.authorize(chain, actorID, chain.List.CreatedBy, rbac.ActionUpdate); err != nil {
			return nil, err
		}
	}
	if input.Position != nil {
		if err := s.authorize(chain, actorID, chain.List.CreatedBy, rbac.ActionReorder); err != nil {
			return nil, err
		}
	}

	boardID := chain.Board.ID
	err = s.mutate(ctx, "update_list", func(ctx context.Context, tx *store.Tx) error {
		if input.Position != nil {
			lists := tx.BoardLists(boardID)
			if err := ordering.Guard(ctx, lists, input.ExpectedVersion); err != nil {
				return err
			}
			if _, err := ordering.MoveWithin(ctx, lists, listID, *input.Position); err != nil {
				return err
			}
		}
		if input.Title != nil {
			return tx.RenameList(ctx, listID, title)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "update_list", err)
	}
	s.touch(actorID, chain.Workspace.ID, boardID)
	s.committed(actorID, change{
		Action: "list.updated", TargetType: "list", TargetID: listID,
		WorkspaceID: chain.Workspace.ID, BoardID: boardID,
		Details: map[string]any{"title": list.Title, "position": list.Position},
	})
	return listPayload(list), nil
}

// MoveListWithin moves a list to newPosition on its own board.
func (s *Service) MoveListWithin(ctx context.Context, actorID, listID string, newPosition *int, expectedVersion *int64) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	if newPosition == nil {
		return nil, validationError("newPosition is required")
	}
	if err := checkPosition("newPosition", newPosition); err != nil {
		return nil, err
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "move_list_within", err)
	}
	if err := s.authorize(chain, actorID, chain.List.CreatedBy, rbac.ActionReorder); err != nil {
		return nil, err
	}

	boardID := chain.Board.ID
	from := chain.List.Position
	var to int
	err = s.mutate(ctx, "move_list_within", func(ctx context.Context, tx *store.Tx) error {
		lists := tx.BoardLists(boardID)
		if err := ordering.Guard(ctx, lists, expectedVersion); err != nil {
			return err
		}
		var err error
		to, err = ordering.MoveWithin(ctx, lists, listID, *newPosition)
		return err
	})
	if err != nil {
		return nil, err
	}
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "move_list_within", err)
	}
	s.touch(actorID, chain.Workspace.ID, boardID)
	s.committed(actorID, change{
		Action: "list.moved", TargetType: "list", TargetID: listID,
		WorkspaceID: chain.Workspace.ID, BoardID: boardID,
		Details: map[string]any{"fromPosition": from, "toPosition": to},
	})
	return listPayload(list), nil
}

// DeleteList removes a list with all of its cards and closes the gap on
// the board.
func (s *Service) DeleteList(ctx context.Context, actorID, listID string) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "delete_list", err)
	}
	if err := s.authorize(chain, actorID, chain.List.CreatedBy, rbac.ActionDeleteList); err != nil {
		return nil, err
	}

	var deleted engine.Deletion
	err = s.mutate(ctx, "delete_list", func(ctx context.Context, tx *store.Tx) error {
		var err error
		deleted, err = engine.DeleteList(ctx, tx, chain.Board.ID, listID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, chain.Board.ID)
	s.unindex(deleted.CardIDs...)
	s.committed(actorID, change{
		Action: "list.deleted", TargetType: "list", TargetID: listID,
		WorkspaceID: chain.Workspace.ID, BoardID: chain.Board.ID,
		Details: map[string]any{"title": chain.List.Title, "position": deleted.Position, "deletedCards": len(deleted.CardIDs)},
	})
	return map[string]any{"ok": true, "listId": listID, "deletedCards": len(deleted.CardIDs)}, nil
}

// SetListState archives, unarchives, activates or deactivates a list. The
// list keeps its position.
func (s *Service) SetListState(ctx context.Context, actorID, listID, action string) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	action = strings.TrimSpace(action)
	if _, ok := listStateActions[action]; !ok {
		return nil, validationError("action must be one of archive, unarchive, activate, deactivate")
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "set_list_state", err)
	}
	if err := s.authorize(chain, actorID, chain.List.CreatedBy, rbac.ActionToggleList); err != nil {
		return nil, err
	}

	var list store.List
	err = s.mutate(ctx, "set_list_state", func(ctx context.Context, tx *store.Tx) error {
		var err error
		list, err = tx.GetList(ctx, listID)
		if err != nil {
			return err
		}
		switch action {
		case "archive":
			list.IsArchived = true
		case "unarchive":
			list.IsArchived = false
		case "activate":
			list.IsActive = true
		case "deactivate":
			list.IsActive = false
		}
		return tx.SetListFlags(ctx, listID, list.IsArchived, list.IsActive)
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, chain.Board.ID)
	s.committed(actorID, change{
		Action: "list." + action + "d", TargetType: "list", TargetID: listID,
		WorkspaceID: chain.Workspace.ID, BoardID: chain.Board.ID,
	})
	return listPayload(list), nil
}

// MoveListToBoard moves a list, cards included, to another board of the
// same workspace.
func (s *Service) MoveListToBoard(ctx context.Context, actorID, listID string, input MoveInput) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	if err := requireID("targetBoardId", util.PrefixBoard, input.TargetID); err != nil {
		return nil, err
	}
	if err := checkPosition("targetPosition", input.TargetPosition); err != nil {
		return nil, err
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "move_list", err)
	}
	if err := s.authorize(chain, actorID, chain.List.CreatedBy, rbac.ActionMoveList); err != nil {
		return nil, err
	}
	target, err := s.loader.Board(ctx, input.TargetID)
	if err != nil {
		return nil, s.fail(ctx, "move_list", err)
	}
	if target.Workspace.ID != chain.Workspace.ID {
		return nil, s.fail(ctx, "move_list", engine.ErrCrossWorkspace)
	}

	var moved engine.Move
	err = s.mutate(ctx, "move_list", func(ctx context.Context, tx *store.Tx) error {
		var err error
		moved, err = engine.MoveList(ctx, tx, listID, chain.Board.ID, input.TargetID, input.TargetPosition)
		return err
	})
	if err != nil {
		return nil, err
	}
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "move_list", err)
	}
	if s.search.Indexing() {
		cards, err := s.store.CardsByList(ctx, listID)
		if err == nil {
			ids := make([]string, len(cards))
			for i, c := range cards {
				ids[i] = c.ID
			}
			s.reindex(ids...)
		}
	}
	s.touch(actorID, chain.Workspace.ID, input.TargetID)
	details := map[string]any{
		"fromBoardId": chain.Board.ID, "toBoardId": input.TargetID,
		"fromPosition": moved.From, "toPosition": moved.To,
	}
	s.committed(actorID, change{Action: "list.moved", TargetType: "list", TargetID: listID, WorkspaceID: chain.Workspace.ID, BoardID: chain.Board.ID, Details: details})
	s.committed(actorID, change{Action: "list.moved", TargetType: "list", TargetID: listID, WorkspaceID: chain.Workspace.ID, BoardID: input.TargetID, Details: details})
	return listPayload(list), nil
}

// ClearList deletes every card of a list and keeps the list.
func (s *Service) ClearList(ctx context.Context, actorID, listID string) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "clear_list", err)
	}
	if err := s.authorize(chain, actorID, chain.List.CreatedBy, rbac.ActionUpdate); err != nil {
		return nil, err
	}

	var removed []string
	err = s.mutate(ctx, "clear_list", func(ctx context.Context, tx *store.Tx) error {
		var err error
		removed, err = engine.ClearList(ctx, tx, listID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, chain.Board.ID)
	s.unindex(removed...)
	s.committed(actorID, change{
		Action: "list.cleared", TargetType: "list", TargetID: listID,
		WorkspaceID: chain.Workspace.ID, BoardID: chain.Board.ID,
		Details: map[string]any{"deletedCards": len(removed)},
	})
	return map[string]any{"ok": true, "listId": listID, "deletedCards": len(removed)}, nil
}

func listPayload(l store.List) map[string]any {
	return map[string]any{
		"id":               l.ID,
		"boardId":          l.BoardID,
		"title":            l.Title,
		"position":         l.Position,
		"createdBy":        l.CreatedBy,
		"isArchived":       l.IsArchived,
		"isActive":         l.IsActive,
		"cardOrderVersion": l.CardOrderVersion,
		"createdAt":        l.CreatedAt,
		"updatedAt":        l.UpdatedAt,
	}
}
