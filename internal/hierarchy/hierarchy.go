// Package hierarchy loads the workspace → board → list → card chain above a
// node and checks that every link agrees with what the caller claimed.
package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"taskflow/api/internal/rbac"
	"taskflow/api/internal/store"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInconsistent = errors.New("inconsistent hierarchy")
)

// Reader is the slice of the store the loader reads from.
type Reader interface {
	GetWorkspace(ctx context.Context, id string) (store.Workspace, error)
	GetBoard(ctx context.Context, id string) (store.Board, error)
	BoardMembers(ctx context.Context, boardID string) ([]string, error)
	GetList(ctx context.Context, id string) (store.List, error)
	GetCard(ctx context.Context, id string) (store.Card, error)
}

// Chain is a node together with its ancestors. List and Card are nil when
// the chain was loaded from a higher level.
type Chain struct {
	Workspace    store.Workspace
	Board        store.Board
	BoardMembers []string
	List         *store.List
	Card         *store.Card
}

// Subject resolves userID against the chain. creatorID is the creator of
// the node being acted on, or empty when creation does not matter.
func (c Chain) Subject(userID, creatorID string) rbac.Subject {
	return rbac.NewSubject(RBACWorkspace(c.Workspace), c.BoardMembers, userID, creatorID)
}

func RBACWorkspace(ws store.Workspace) rbac.Workspace {
	out := rbac.Workspace{OwnerID: ws.OwnerID, Members: make([]rbac.Member, 0, len(ws.Members))}
	for _, m := range ws.Members {
		out.Members = append(out.Members, rbac.Member{UserID: m.UserID, Role: rbac.Role(m.Role)})
	}
	return out
}

type Loader struct {
	r Reader
}

func NewLoader(r Reader) *Loader {
	return &Loader{r: r}
}

// Workspace loads a live workspace. Soft-deleted workspaces are not found.
func (l *Loader) Workspace(ctx context.Context, workspaceID string) (store.Workspace, error) {
	ws, err := l.r.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return store.Workspace{}, notFound(err, "workspace", workspaceID)
	}
	if ws.IsDeleted {
		return store.Workspace{}, fmt.Errorf("%w: workspace %s", ErrNotFound, workspaceID)
	}
	return ws, nil
}

func (l *Loader) Board(ctx context.Context, boardID string) (Chain, error) {
	board, err := l.r.GetBoard(ctx, boardID)
	if err != nil {
		return Chain{}, notFound(err, "board", boardID)
	}
	ws, err := l.Workspace(ctx, board.WorkspaceID)
	if err != nil {
		return Chain{}, err
	}
	members, err := l.r.BoardMembers(ctx, boardID)
	if err != nil {
		return Chain{}, fmt.Errorf("load board members: %w", err)
	}
	return Chain{Workspace: ws, Board: board, BoardMembers: members}, nil
}

func (l *Loader) List(ctx context.Context, listID string) (Chain, error) {
	list, err := l.r.GetList(ctx, listID)
	if err != nil {
		return Chain{}, notFound(err, "list", listID)
	}
	chain, err := l.Board(ctx, list.BoardID)
	if err != nil {
		return Chain{}, err
	}
	chain.List = &list
	return chain, nil
}

// ListOnBoard loads a list and fails with ErrInconsistent when it does not
// sit on boardID.
func (l *Loader) ListOnBoard(ctx context.Context, listID, boardID string) (Chain, error) {
	chain, err := l.List(ctx, listID)
	if err != nil {
		return Chain{}, err
	}
	if chain.Board.ID != boardID {
		return Chain{}, fmt.Errorf("%w: list %s is on board %s, not %s", ErrInconsistent, listID, chain.Board.ID, boardID)
	}
	return chain, nil
}

func (l *Loader) Card(ctx context.Context, cardID string) (Chain, error) {
	card, err := l.r.GetCard(ctx, cardID)
	if err != nil {
		return Chain{}, notFound(err, "card", cardID)
	}
	chain, err := l.List(ctx, card.ListID)
	if err != nil {
		return Chain{}, err
	}
	if card.BoardID != chain.Board.ID {
		return Chain{}, fmt.Errorf("%w: card %s resolved to board %s through list %s", ErrInconsistent, cardID, chain.Board.ID, card.ListID)
	}
	chain.Card = &card
	return chain, nil
}

// CardInList loads a card and fails with ErrInconsistent when it is not in
// listID.
func (l *Loader) CardInList(ctx context.Context, cardID, listID string) (Chain, error) {
	chain, err := l.Card(ctx, cardID)
	if err != nil {
		return Chain{}, err
	}
	if chain.List.ID != listID {
		return Chain{}, fmt.Errorf("%w: card %s is in list %s, not %s", ErrInconsistent, cardID, chain.List.ID, listID)
	}
	return chain, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
