// Package engine holds the multi-step hierarchy mutations: moving a list or
// card to a new parent and deleting a list with everything under it. Each
// function runs inside the caller's transaction and leaves every touched
// parent densely ordered.
package engine

import (
	"context"
	"errors"
	"fmt"

	"taskflow/api/internal/ordering"
	"taskflow/api/internal/store"
)

var (
	ErrSameParent     = errors.New("source and destination are the same")
	ErrCrossWorkspace = errors.New("source and destination are in different workspaces")
)

// Move reports where an item left and where it landed.
type Move struct {
	From int
	To   int
}

// MoveCard detaches cardID from fromListID and inserts it into toListID at
// target, or at the end when target is nil. Both lists must belong to the
// same workspace.
func MoveCard(ctx context.Context, tx *store.Tx, cardID, fromListID, toListID string, target *int) (Move, error) {
	if fromListID == toListID {
		return Move{}, fmt.Errorf("%w: card %s already in list %s", ErrSameParent, cardID, toListID)
	}
	from, err := tx.GetList(ctx, fromListID)
	if err != nil {
		return Move{}, err
	}
	to, err := tx.GetList(ctx, toListID)
	if err != nil {
		return Move{}, err
	}
	if err := sameWorkspace(ctx, tx, from.BoardID, to.BoardID); err != nil {
		return Move{}, err
	}

	old, err := ordering.Detach(ctx, tx.ListCards(fromListID), cardID)
	if err != nil {
		return Move{}, err
	}
	pos, err := ordering.Insert(ctx, tx.ListCards(toListID), target, func(ctx context.Context, pos int) error {
		return tx.AttachCard(ctx, cardID, toListID, pos)
	})
	if err != nil {
		return Move{}, err
	}
	return Move{From: old, To: pos}, nil
}

// MoveList detaches listID from fromBoardID and inserts it into toBoardID at
// target, or at the end when target is nil. Its cards travel with it.
func MoveList(ctx context.Context, tx *store.Tx, listID, fromBoardID, toBoardID string, target *int) (Move, error) {
	if fromBoardID == toBoardID {
		return Move{}, fmt.Errorf("%w: list %s already on board %s", ErrSameParent, listID, toBoardID)
	}
	if err := sameWorkspace(ctx, tx, fromBoardID, toBoardID); err != nil {
		return Move{}, err
	}

	old, err := ordering.Detach(ctx, tx.BoardLists(fromBoardID), listID)
	if err != nil {
		return Move{}, err
	}
	pos, err := ordering.Insert(ctx, tx.BoardLists(toBoardID), target, func(ctx context.Context, pos int) error {
		return tx.AttachList(ctx, listID, toBoardID, pos)
	})
	if err != nil {
		return Move{}, err
	}
	return Move{From: old, To: pos}, nil
}

func sameWorkspace(ctx context.Context, tx *store.Tx, boardA, boardB string) error {
	if boardA == boardB {
		return nil
	}
	a, err := tx.GetBoard(ctx, boardA)
	if err != nil {
		return err
	}
	b, err := tx.GetBoard(ctx, boardB)
	if err != nil {
		return err
	}
	if a.WorkspaceID != b.WorkspaceID {
		return fmt.Errorf("%w: board %s is in %s, board %s is in %s", ErrCrossWorkspace, a.ID, a.WorkspaceID, b.ID, b.WorkspaceID)
	}
	return nil
}

// Deletion describes what a cascade removed.
type Deletion struct {
	Position int
	CardIDs  []string
}

// DeleteList removes the list's cards, then the list, then closes the gap on
// the board.
func DeleteList(ctx context.Context, tx *store.Tx, boardID, listID string) (Deletion, error) {
	lists := tx.BoardLists(boardID)
	if _, err := lists.PositionOf(ctx, listID); err != nil {
		return Deletion{}, err
	}
	cards, err := tx.DeleteCardsInList(ctx, listID)
	if err != nil {
		return Deletion{}, err
	}
	pos, err := ordering.RemoveAndRenumber(ctx, lists, listID)
	if err != nil {
		return Deletion{}, err
	}
	return Deletion{Position: pos, CardIDs: cards}, nil
}

// ClearList removes every card of a list and keeps the list.
func ClearList(ctx context.Context, tx *store.Tx, listID string) ([]string, error) {
	if err := tx.ListCards(listID).Bump(ctx); err != nil {
		return nil, err
	}
	return tx.DeleteCardsInList(ctx, listID)
}
