package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskflow/api/internal/engine"
	"taskflow/api/internal/hierarchy"
	"taskflow/api/internal/ordering"
	"taskflow/api/internal/rbac"
	"taskflow/api/internal/search"
	"taskflow/api/internal/store"
	"taskflow/api/internal/util"
)

type CreateCardInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Labels      []string   `json:"labels"`
	DueDate     *time.Time `json:"dueDate"`
	Position    *int       `json:"position"`
}

type UpdateCardInput struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Labels       *[]string  `json:"labels"`
	DueDate      *time.Time `json:"dueDate"`
	ClearDueDate bool       `json:"clearDueDate"`
}

// SearchInput scopes a card search to one board or to every board of a
// workspace.
type SearchInput struct {
	BoardID     string
	WorkspaceID string
	Query       string
	Label       string
	Assignee    string
	Limit       int
}

var cardStatuses = map[string]struct{}{
	"todo":        {},
	"in-progress": {},
	"done":        {},
}

func checkStatus(status string) error {
	if _, ok := cardStatuses[status]; !ok {
		return validationError("status must be one of todo, in-progress, done")
	}
	return nil
}

func cleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// loadCard resolves the card's chain and authorizes action on it. The card
// creator counts for actions that allow creators.
func (s *Service) loadCard(ctx context.Context, op, actorID, cardID string, action rbac.Action) (hierarchy.Chain, error) {
	if err := requireID("cardId", util.PrefixCard, cardID); err != nil {
		return hierarchy.Chain{}, err
	}
	chain, err := s.loader.Card(ctx, cardID)
	if err != nil {
		return hierarchy.Chain{}, s.fail(ctx, op, err)
	}
	if err := s.authorize(chain, actorID, chain.Card.CreatedBy, action); err != nil {
		return hierarchy.Chain{}, err
	}
	s.touch(actorID, chain.Workspace.ID, chain.Board.ID)
	return chain, nil
}

// cardChanged re-reads the card after commit, records the change and
// refreshes the search index.
func (s *Service) cardChanged(ctx context.Context, op, actorID string, chain hierarchy.Chain, action string, details map[string]any) (map[string]any, error) {
	s.committed(actorID, change{
		Action: action, TargetType: "card", TargetID: chain.Card.ID,
		WorkspaceID: chain.Workspace.ID, BoardID: chain.Board.ID, Details: details,
	})
	s.reindex(chain.Card.ID)
	card, err := s.store.GetCard(ctx, chain.Card.ID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	return cardPayload(card), nil
}

// ListBoardCards returns the board's unarchived cards ordered by list, then
// by position.
func (s *Service) ListBoardCards(ctx context.Context, actorID, boardID string) (map[string]any, error) {
	if err := requireID("boardId", util.PrefixBoard, boardID); err != nil {
		return nil, err
	}
	chain, err := s.loader.Board(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "list_board_cards", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionRead); err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, boardID)
	cards, err := s.store.CardsByBoard(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "list_board_cards", err)
	}
	return map[string]any{"boardId": boardID, "cards": cardsPayload(cards)}, nil
}

// ListCards returns the cards of a list in order.
func (s *Service) ListCards(ctx context.Context, actorID, listID string) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "list_cards", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionRead); err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, chain.Board.ID)
	cards, err := s.store.CardsByList(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "list_cards", err)
	}
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "list_cards", err)
	}
	return map[string]any{
		"listId":           listID,
		"cardOrderVersion": list.CardOrderVersion,
		"cards":            cardsPayload(cards),
	}, nil
}

func (s *Service) CreateCard(ctx context.Context, actorID, listID string, input CreateCardInput) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	if err := checkPosition("position", input.Position); err != nil {
		return nil, err
	}
	chain, err := s.loader.List(ctx, listID)
	if err != nil {
		return nil, s.fail(ctx, "create_card", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionCreate); err != nil {
		return nil, err
	}

	cardID := util.NewID(util.PrefixCard)
	err = s.mutate(ctx, "create_card", func(ctx context.Context, tx *store.Tx) error {
		_, err := ordering.Insert(ctx, tx.ListCards(listID), input.Position, func(ctx context.Context, pos int) error {
			_, err := tx.InsertCard(ctx, store.Card{
				ID:          cardID,
				ListID:      listID,
				Title:       title,
				Description: strings.TrimSpace(input.Description),
				Labels:      cleanLabels(input.Labels),
				DueDate:     input.DueDate,
				Position:    pos,
				CreatedBy:   actorID,
			})
			return err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, chain.Board.ID)
	chain.Card = &store.Card{ID: cardID}
	return s.cardChanged(ctx, "create_card", actorID, chain, "card.created", map[string]any{"title": title, "listId": listID})
}

// ReorderCards applies a drag-and-drop gesture to the list's cards.
func (s *Service) ReorderCards(ctx context.Context, actorID, listID string, input ReorderInput) (map[string]any, error) {
	if err := requireID("listId", util.PrefixList, listID); err != nil {
		return nil, err
	}
	if err := requireID("cardId", util.PrefixCard, input.ItemID); err != nil {
		return nil, err
	}
	if input.StartIndex == nil || input.EndIndex == nil {
		return nil, validationError("startIndex and endIndex are required")
	}
	chain, err := s.loader.CardInList(ctx, input.ItemID, listID)
	if err != nil {
		return nil, s.fail(ctx, "reorder_cards", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionReorder); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, "reorder_cards", func(ctx context.Context, tx *store.Tx) error {
		cards := tx.ListCards(listID)
		if err := ordering.Guard(ctx, cards, input.ExpectedVersion); err != nil {
			return err
		}
		order, err := cards.Order(ctx)
		if err != nil {
			return err
		}
		next, err := ordering.Splice(order, input.ItemID, *input.StartIndex, *input.EndIndex)
		if err != nil {
			return err
		}
		return ordering.ReorderBulk(ctx, cards, next)
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, chain.Board.ID)
	s.committed(actorID, change{
		Action: "card.reordered", TargetType: "card", TargetID: input.ItemID,
		WorkspaceID: chain.Workspace.ID, BoardID: chain.Board.ID,
		Details: map[string]any{"listId": listID, "startIndex": *input.StartIndex, "endIndex": *input.EndIndex},
	})
	return s.ListCards(ctx, actorID, listID)
}

// SearchCards finds unarchived cards on the boards the actor can read,
// ordered by list position and then card position.
func (s *Service) SearchCards(ctx context.Context, actorID string, input SearchInput) (map[string]any, error) {
	var boardIDs []string
	switch {
	case input.BoardID != "":
		if err := requireID("boardId", util.PrefixBoard, input.BoardID); err != nil {
			return nil, err
		}
		chain, err := s.loader.Board(ctx, input.BoardID)
		if err != nil {
			return nil, s.fail(ctx, "search_cards", err)
		}
		if err := s.authorize(chain, actorID, "", rbac.ActionRead); err != nil {
			return nil, err
		}
		boardIDs = []string{input.BoardID}
	case input.WorkspaceID != "":
		if err := requireID("workspaceId", util.PrefixWorkspace, input.WorkspaceID); err != nil {
			return nil, err
		}
		ws, err := s.loader.Workspace(ctx, input.WorkspaceID)
		if err != nil {
			return nil, s.fail(ctx, "search_cards", err)
		}
		if rbac.Resolve(hierarchy.RBACWorkspace(ws), actorID) == rbac.RoleNone {
			return nil, forbidden("You are not a member of this workspace")
		}
		boardIDs, err = s.store.BoardsInWorkspace(ctx, input.WorkspaceID)
		if err != nil {
			return nil, s.fail(ctx, "search_cards", err)
		}
	default:
		return nil, validationError("boardId or workspaceId is required")
	}
	if input.Assignee != "" {
		if err := requireID("assignee", util.PrefixUser, input.Assignee); err != nil {
			return nil, err
		}
	}
	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	cards, err := s.search.SearchCards(ctx, search.Query{
		BoardIDs: boardIDs,
		Text:     strings.TrimSpace(input.Query),
		Label:    strings.TrimSpace(input.Label),
		Assignee: input.Assignee,
		Limit:    limit,
	})
	if err != nil {
		return nil, s.fail(ctx, "search_cards", err)
	}
	return map[string]any{"cards": cardsPayload(cards)}, nil
}

func (s *Service) GetCard(ctx context.Context, actorID, cardID string) (map[string]any, error) {
	chain, err := s.loadCard(ctx, "get_card", actorID, cardID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	return cardPayload(*chain.Card), nil
}

// UpdateCard edits the card's own fields. Position is never touched here.
func (s *Service) UpdateCard(ctx context.Context, actorID, cardID string, input UpdateCardInput) (map[string]any, error) {
	patch := store.CardPatch{DueDate: input.DueDate, ClearDueDate: input.ClearDueDate}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validationError("title must be a non-empty string")
		}
		patch.Title = &title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		patch.Description = &description
	}
	if input.Status != nil {
		if err := checkStatus(*input.Status); err != nil {
			return nil, err
		}
		patch.Status = input.Status
	}
	if input.Labels != nil {
		labels := cleanLabels(*input.Labels)
		patch.Labels = &labels
	}
	if patch == (store.CardPatch{}) {
		return nil, validationError("nothing to update")
	}
	chain, err := s.loadCard(ctx, "update_card", actorID, cardID, rbac.ActionUpdate)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "update_card", func(ctx context.Context, tx *store.Tx) error {
		return tx.UpdateCard(ctx, cardID, patch)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "update_card", actorID, chain, "card.updated", nil)
}

func (s *Service) DeleteCard(ctx context.Context, actorID, cardID string) (map[string]any, error) {
	chain, err := s.loadCard(ctx, "delete_card", actorID, cardID, rbac.ActionDeleteCard)
	if err != nil {
		return nil, err
	}
	var pos int
	err = s.mutate(ctx, "delete_card", func(ctx context.Context, tx *store.Tx) error {
		var err error
		pos, err = ordering.RemoveAndRenumber(ctx, tx.ListCards(chain.List.ID), cardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.unindex(cardID)
	s.committed(actorID, change{
		Action: "card.deleted", TargetType: "card", TargetID: cardID,
		WorkspaceID: chain.Workspace.ID, BoardID: chain.Board.ID,
		Details: map[string]any{"title": chain.Card.Title, "listId": chain.List.ID, "position": pos},
	})
	return map[string]any{"ok": true, "cardId": cardID}, nil
}

// MoveCardWithin moves a card to newPosition in its own list.
func (s *Service) MoveCardWithin(ctx context.Context, actorID, cardID string, newPosition *int, expectedVersion *int64) (map[string]any, error) {
	if newPosition == nil {
		return nil, validationError("newPosition is required")
	}
	if err := checkPosition("newPosition", newPosition); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "move_card_within", actorID, cardID, rbac.ActionReorder)
	if err != nil {
		return nil, err
	}
	listID := chain.List.ID
	from := chain.Card.Position
	var to int
	err = s.mutate(ctx, "move_card_within", func(ctx context.Context, tx *store.Tx) error {
		cards := tx.ListCards(listID)
		if err := ordering.Guard(ctx, cards, expectedVersion); err != nil {
			return err
		}
		var err error
		to, err = ordering.MoveWithin(ctx, cards, cardID, *newPosition)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "move_card_within", actorID, chain, "card.moved", map[string]any{"listId": listID, "fromPosition": from, "toPosition": to})
}

// MoveCardToList moves a card to another list, possibly on another board
// of the same workspace.
func (s *Service) MoveCardToList(ctx context.Context, actorID, cardID string, input MoveInput) (map[string]any, error) {
	if err := requireID("targetListId", util.PrefixList, input.TargetID); err != nil {
		return nil, err
	}
	if err := checkPosition("targetPosition", input.TargetPosition); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "move_card", actorID, cardID, rbac.ActionReorder)
	if err != nil {
		return nil, err
	}
	if chain.List.ID == input.TargetID {
		return nil, invalidOperation("card is already in this list; move it within the list instead")
	}
	target, err := s.loader.List(ctx, input.TargetID)
	if err != nil {
		return nil, s.fail(ctx, "move_card", err)
	}
	if target.Workspace.ID != chain.Workspace.ID {
		return nil, s.fail(ctx, "move_card", engine.ErrCrossWorkspace)
	}
	if err := s.authorize(target, actorID, "", rbac.ActionReorder); err != nil {
		return nil, err
	}

	var moved engine.Move
	err = s.mutate(ctx, "move_card", func(ctx context.Context, tx *store.Tx) error {
		var err error
		moved, err = engine.MoveCard(ctx, tx, cardID, chain.List.ID, input.TargetID, input.TargetPosition)
		return err
	})
	if err != nil {
		return nil, err
	}
	details := map[string]any{
		"fromListId": chain.List.ID, "toListId": input.TargetID,
		"fromPosition": moved.From, "toPosition": moved.To,
	}
	if target.Board.ID != chain.Board.ID {
		s.committed(actorID, change{
			Action: "card.moved", TargetType: "card", TargetID: cardID,
			WorkspaceID: target.Workspace.ID, BoardID: target.Board.ID, Details: details,
		})
	}
	return s.cardChanged(ctx, "move_card", actorID, chain, "card.moved", details)
}

func (s *Service) ArchiveCard(ctx context.Context, actorID, cardID string) (map[string]any, error) {
	return s.setCardArchived(ctx, actorID, cardID, true)
}

func (s *Service) RestoreCard(ctx context.Context, actorID, cardID string) (map[string]any, error) {
	return s.setCardArchived(ctx, actorID, cardID, false)
}

// setCardArchived flips the archive flag. Archived cards keep their
// position so that restoring them needs no reordering.
func (s *Service) setCardArchived(ctx context.Context, actorID, cardID string, archived bool) (map[string]any, error) {
	op, action := "archive_card", "card.archived"
	if !archived {
		op, action = "restore_card", "card.restored"
	}
	chain, err := s.loadCard(ctx, op, actorID, cardID, rbac.ActionUpdate)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, op, func(ctx context.Context, tx *store.Tx) error {
		return tx.SetCardArchived(ctx, cardID, archived)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, op, actorID, chain, action, nil)
}

// AssignCard adds userID to the card's assignees. The assignee must be able
// to see the board as a board member or workspace admin.
func (s *Service) AssignCard(ctx context.Context, actorID, cardID, userID string) (map[string]any, error) {
	if err := requireID("userId", util.PrefixUser, userID); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "assign_card", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	assignee := chain.Subject(userID, "")
	if !assignee.BoardMember && !assignee.Role.IsAdminOrOwner() {
		return nil, invalidOperation("assignee must be a board member or workspace admin")
	}
	err = s.mutate(ctx, "assign_card", func(ctx context.Context, tx *store.Tx) error {
		return tx.AddAssignee(ctx, cardID, userID)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "assign_card", actorID, chain, "card.assigned", map[string]any{"userId": userID})
}

func (s *Service) UnassignCard(ctx context.Context, actorID, cardID, userID string) (map[string]any, error) {
	if err := requireID("userId", util.PrefixUser, userID); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "unassign_card", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "unassign_card", func(ctx context.Context, tx *store.Tx) error {
		return tx.RemoveAssignee(ctx, cardID, userID)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "unassign_card", actorID, chain, "card.unassigned", map[string]any{"userId": userID})
}

func (s *Service) SetCardStatus(ctx context.Context, actorID, cardID, status string) (map[string]any, error) {
	status = strings.TrimSpace(status)
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "set_card_status", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "set_card_status", func(ctx context.Context, tx *store.Tx) error {
		return tx.UpdateCard(ctx, cardID, store.CardPatch{Status: &status})
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "set_card_status", actorID, chain, "card.status_changed", map[string]any{"status": status})
}

// SetCardLabels replaces the card's labels.
func (s *Service) SetCardLabels(ctx context.Context, actorID, cardID string, labels []string) (map[string]any, error) {
	cleaned := cleanLabels(labels)
	chain, err := s.loadCard(ctx, "set_card_labels", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "set_card_labels", func(ctx context.Context, tx *store.Tx) error {
		return tx.UpdateCard(ctx, cardID, store.CardPatch{Labels: &cleaned})
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "set_card_labels", actorID, chain, "card.labels_changed", map[string]any{"labels": cleaned})
}

// checkRefID validates an opaque id owned by another service, such as a
// media object or a chat message.
func checkRefID(field, value string) error {
	if value == "" || len(value) > 200 || strings.ContainsAny(value, "/ \t\n") {
		return invalidIdentifier(field, value)
	}
	return nil
}

// AttachMedia records an opaque media reference on the card.
func (s *Service) AttachMedia(ctx context.Context, actorID, cardID, mediaID string) (map[string]any, error) {
	if err := checkRefID("mediaId", mediaID); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "attach_media", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "attach_media", func(ctx context.Context, tx *store.Tx) error {
		return tx.AddAttachment(ctx, cardID, mediaID)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "attach_media", actorID, chain, "card.attachment_added", map[string]any{"mediaId": mediaID})
}

func (s *Service) DetachMedia(ctx context.Context, actorID, cardID, mediaID string) (map[string]any, error) {
	if err := checkRefID("mediaId", mediaID); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "detach_media", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "detach_media", func(ctx context.Context, tx *store.Tx) error {
		return tx.RemoveAttachment(ctx, cardID, mediaID)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "detach_media", actorID, chain, "card.attachment_removed", map[string]any{"mediaId": mediaID})
}

// AddComment links a chat message to the card as a comment.
func (s *Service) AddComment(ctx context.Context, actorID, cardID, messageID string) (map[string]any, error) {
	if err := checkRefID("messageId", messageID); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "add_comment", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "add_comment", func(ctx context.Context, tx *store.Tx) error {
		return tx.AddComment(ctx, cardID, messageID)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "add_comment", actorID, chain, "card.comment_added", map[string]any{"messageId": messageID})
}

// RemoveComment unlinks a comment. The message itself is not touched.
func (s *Service) RemoveComment(ctx context.Context, actorID, cardID, messageID string) (map[string]any, error) {
	if err := checkRefID("messageId", messageID); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "remove_comment", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "remove_comment", func(ctx context.Context, tx *store.Tx) error {
		return tx.RemoveComment(ctx, cardID, messageID)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "remove_comment", actorID, chain, "card.comment_removed", map[string]any{"messageId": messageID})
}

func (s *Service) AddChecklistItem(ctx context.Context, actorID, cardID, text string, position *int) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("text is required")
	}
	if err := checkPosition("position", position); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "add_checklist_item", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	itemID := util.NewID(util.PrefixChecklist)
	err = s.mutate(ctx, "add_checklist_item", func(ctx context.Context, tx *store.Tx) error {
		_, err := ordering.Insert(ctx, tx.CardChecklist(cardID), position, func(ctx context.Context, pos int) error {
			_, err := tx.InsertChecklistItem(ctx, store.ChecklistItem{ID: itemID, CardID: cardID, Text: text, Position: pos})
			return err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "add_checklist_item", actorID, chain, "card.checklist_added", map[string]any{"itemId": itemID})
}

// checklistItemOnCard fails with ErrNotFound when itemID does not belong to
// cardID.
func checklistItemOnCard(ctx context.Context, tx *store.Tx, cardID, itemID string) (store.ChecklistItem, error) {
	item, err := tx.GetChecklistItem(ctx, itemID)
	if err != nil {
		return store.ChecklistItem{}, err
	}
	if item.CardID != cardID {
		return store.ChecklistItem{}, fmt.Errorf("%w: checklist item %s on card %s", hierarchy.ErrNotFound, itemID, cardID)
	}
	return item, nil
}

func (s *Service) ToggleChecklistItem(ctx context.Context, actorID, cardID, itemID string) (map[string]any, error) {
	if err := requireID("itemId", util.PrefixChecklist, itemID); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "toggle_checklist_item", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	var completed bool
	err = s.mutate(ctx, "toggle_checklist_item", func(ctx context.Context, tx *store.Tx) error {
		item, err := checklistItemOnCard(ctx, tx, cardID, itemID)
		if err != nil {
			return err
		}
		completed = !item.Completed
		return tx.SetChecklistCompleted(ctx, itemID, completed)
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "toggle_checklist_item", actorID, chain, "card.checklist_toggled", map[string]any{"itemId": itemID, "completed": completed})
}

func (s *Service) MoveChecklistItem(ctx context.Context, actorID, cardID, itemID string, newPosition *int) (map[string]any, error) {
	if err := requireID("itemId", util.PrefixChecklist, itemID); err != nil {
		return nil, err
	}
	if newPosition == nil {
		return nil, validationError("newPosition is required")
	}
	if err := checkPosition("newPosition", newPosition); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "move_checklist_item", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "move_checklist_item", func(ctx context.Context, tx *store.Tx) error {
		if _, err := checklistItemOnCard(ctx, tx, cardID, itemID); err != nil {
			return err
		}
		_, err := ordering.MoveWithin(ctx, tx.CardChecklist(cardID), itemID, *newPosition)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "move_checklist_item", actorID, chain, "card.checklist_moved", map[string]any{"itemId": itemID})
}

func (s *Service) DeleteChecklistItem(ctx context.Context, actorID, cardID, itemID string) (map[string]any, error) {
	if err := requireID("itemId", util.PrefixChecklist, itemID); err != nil {
		return nil, err
	}
	chain, err := s.loadCard(ctx, "delete_checklist_item", actorID, cardID, rbac.ActionEditCard)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, "delete_checklist_item", func(ctx context.Context, tx *store.Tx) error {
		if _, err := checklistItemOnCard(ctx, tx, cardID, itemID); err != nil {
			return err
		}
		_, err := ordering.RemoveAndRenumber(ctx, tx.CardChecklist(cardID), itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.cardChanged(ctx, "delete_checklist_item", actorID, chain, "card.checklist_deleted", map[string]any{"itemId": itemID})
}

func cardsPayload(cards []store.Card) []map[string]any {
	items := make([]map[string]any, 0, len(cards))
	for _, c := range cards {
		items = append(items, cardPayload(c))
	}
	return items
}

func cardPayload(c store.Card) map[string]any {
	labels, assignees, attachments, comments := c.Labels, c.Assignees, c.Attachments, c.Comments
	if labels == nil {
		labels = []string{}
	}
	if assignees == nil {
		assignees = []string{}
	}
	if attachments == nil {
		attachments = []string{}
	}
	if comments == nil {
		comments = []string{}
	}
	checklist := make([]map[string]any, 0, len(c.Checklist))
	for _, it := range c.Checklist {
		checklist = append(checklist, map[string]any{
			"id":        it.ID,
			"text":      it.Text,
			"completed": it.Completed,
			"position":  it.Position,
		})
	}
	return map[string]any{
		"id":                    c.ID,
		"listId":                c.ListID,
		"boardId":               c.BoardID,
		"title":                 c.Title,
		"description":           c.Description,
		"status":                c.Status,
		"labels":                labels,
		"dueDate":               c.DueDate,
		"position":              c.Position,
		"createdBy":             c.CreatedBy,
		"isArchived":            c.IsArchived,
		"assignees":             assignees,
		"attachments":           attachments,
		"comments":              comments,
		"checklist":             checklist,
		"checklistOrderVersion": c.ChecklistOrderVersion,
		"createdAt":             c.CreatedAt,
		"updatedAt":             c.UpdatedAt,
	}
}
