package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/api/internal/ordering"
	"taskflow/api/internal/store"
	"taskflow/api/internal/store/storetest"
	"taskflow/api/internal/util"
)

type world struct {
	s  *store.Store
	ws store.Workspace
}

func newWorld(t *testing.T) *world {
	t.Helper()
	s := storetest.New(t)
	ws, err := s.CreateWorkspace(context.Background(), store.Workspace{ID: util.NewID(util.PrefixWorkspace), Name: "W", OwnerID: "usr_owner"})
	require.NoError(t, err)
	return &world{s: s, ws: ws}
}

func (w *world) board(t *testing.T, workspaceID string) string {
	t.Helper()
	b, err := w.s.CreateBoard(context.Background(), store.Board{ID: util.NewID(util.PrefixBoard), WorkspaceID: workspaceID, Title: "B", CreatedBy: "usr_owner"})
	require.NoError(t, err)
	return b.ID
}

func (w *world) list(t *testing.T, boardID string, cards int) (string, []string) {
	t.Helper()
	ctx := context.Background()
	listID := util.NewID(util.PrefixList)
	var cardIDs []string
	err := w.s.InTx(ctx, func(tx *store.Tx) error {
		_, err := ordering.Insert(ctx, tx.BoardLists(boardID), nil, func(ctx context.Context, pos int) error {
			_, err := tx.InsertList(ctx, store.List{ID: listID, BoardID: boardID, Title: "L", Position: pos, CreatedBy: "usr_owner"})
			return err
		})
		if err != nil {
			return err
		}
		for i := 0; i < cards; i++ {
			id := util.NewID(util.PrefixCard)
			_, err := ordering.Insert(ctx, tx.ListCards(listID), nil, func(ctx context.Context, pos int) error {
				_, err := tx.InsertCard(ctx, store.Card{ID: id, ListID: listID, Title: "C", Position: pos, CreatedBy: "usr_owner"})
				return err
			})
			if err != nil {
				return err
			}
			cardIDs = append(cardIDs, id)
		}
		return nil
	})
	require.NoError(t, err)
	return listID, cardIDs
}

func (w *world) cardOrder(t *testing.T, listID string) []string {
	t.Helper()
	cards, err := w.s.CardsByList(context.Background(), listID)
	require.NoError(t, err)
	ids := []string{}
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func (w *world) listOrder(t *testing.T, boardID string) []string {
	t.Helper()
	lists, err := w.s.ListsByBoard(context.Background(), boardID)
	require.NoError(t, err)
	ids := []string{}
	for _, l := range lists {
		ids = append(ids, l.ID)
	}
	return ids
}

func intp(v int) *int { return &v }

func TestMoveCardAcrossLists(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b := w.board(t, w.ws.ID)
	l1, c1 := w.list(t, b, 3)
	l2, c2 := w.list(t, b, 1)

	var move Move
	err := w.s.InTx(ctx, func(tx *store.Tx) error {
		var err error
		move, err = MoveCard(ctx, tx, c1[1], l1, l2, intp(0))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, Move{From: 1, To: 0}, move)

	assert.Equal(t, []string{c1[0], c1[2]}, w.cardOrder(t, l1))
	assert.Equal(t, []string{c1[1], c2[0]}, w.cardOrder(t, l2))

	p1, err := w.s.CardPositions(ctx, l1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, p1)
	p2, err := w.s.CardPositions(ctx, l2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, p2)

	moved, err := w.s.GetCard(ctx, c1[1])
	require.NoError(t, err)
	assert.Equal(t, l2, moved.ListID)
	assert.Equal(t, b, moved.BoardID)
}

func TestMoveCardToAnotherBoardDerivesBoard(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b1, b2 := w.board(t, w.ws.ID), w.board(t, w.ws.ID)
	l1, c1 := w.list(t, b1, 2)
	l2, _ := w.list(t, b2, 2)

	err := w.s.InTx(ctx, func(tx *store.Tx) error {
		_, err := MoveCard(ctx, tx, c1[0], l1, l2, nil)
		return err
	})
	require.NoError(t, err)

	moved, err := w.s.GetCard(ctx, c1[0])
	require.NoError(t, err)
	assert.Equal(t, b2, moved.BoardID)
	assert.Equal(t, 2, moved.Position)
}

func TestMoveConservesItems(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b := w.board(t, w.ws.ID)
	l1, _ := w.list(t, b, 4)
	l2, _ := w.list(t, b, 3)

	for _, target := range []*int{nil, intp(0), intp(99), intp(2)} {
		src := w.cardOrder(t, l1)
		err := w.s.InTx(ctx, func(tx *store.Tx) error {
			_, err := MoveCard(ctx, tx, src[0], l1, l2, target)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 7, len(w.cardOrder(t, l1))+len(w.cardOrder(t, l2)))
		l1, l2 = l2, l1
	}
}

func TestMoveCardRejections(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b := w.board(t, w.ws.ID)
	l1, c1 := w.list(t, b, 2)
	l2, _ := w.list(t, b, 1)

	other, err := w.s.CreateWorkspace(ctx, store.Workspace{ID: util.NewID(util.PrefixWorkspace), Name: "X", OwnerID: "usr_owner"})
	require.NoError(t, err)
	foreignList, _ := w.list(t, w.board(t, other.ID), 0)

	tests := []struct {
		name    string
		card    string
		from    string
		to      string
		wantErr error
	}{
		{name: "same list", card: c1[0], from: l1, to: l1, wantErr: ErrSameParent},
		{name: "other workspace", card: c1[0], from: l1, to: foreignList, wantErr: ErrCrossWorkspace},
		{name: "card not in source", card: c1[0], from: l2, to: l1, wantErr: ordering.ErrNotChild},
		{name: "missing destination", card: c1[0], from: l1, to: "lst_missing", wantErr: store.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := w.s.InTx(ctx, func(tx *store.Tx) error {
				_, err := MoveCard(ctx, tx, tc.card, tc.from, tc.to, nil)
				return err
			})
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, c1, w.cardOrder(t, l1))
		})
	}
}

func TestMoveList(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b1, b2 := w.board(t, w.ws.ID), w.board(t, w.ws.ID)
	la, cards := w.list(t, b1, 2)
	lb, _ := w.list(t, b1, 0)
	lc, _ := w.list(t, b2, 0)

	err := w.s.InTx(ctx, func(tx *store.Tx) error {
		_, err := MoveList(ctx, tx, la, b1, b2, intp(0))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{lb}, w.listOrder(t, b1))
	assert.Equal(t, []string{la, lc}, w.listOrder(t, b2))

	card, err := w.s.GetCard(ctx, cards[0])
	require.NoError(t, err)
	assert.Equal(t, b2, card.BoardID)

	other, err := w.s.CreateWorkspace(ctx, store.Workspace{ID: util.NewID(util.PrefixWorkspace), Name: "X", OwnerID: "usr_owner"})
	require.NoError(t, err)
	foreign := w.board(t, other.ID)
	err = w.s.InTx(ctx, func(tx *store.Tx) error {
		_, err := MoveList(ctx, tx, la, b2, foreign, nil)
		return err
	})
	assert.ErrorIs(t, err, ErrCrossWorkspace)

	err = w.s.InTx(ctx, func(tx *store.Tx) error {
		_, err := MoveList(ctx, tx, la, b2, b2, nil)
		return err
	})
	assert.ErrorIs(t, err, ErrSameParent)
}

func TestDeleteListCascades(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b := w.board(t, w.ws.ID)
	l0, _ := w.list(t, b, 1)
	l1, doomed := w.list(t, b, 3)
	l2, _ := w.list(t, b, 2)
	require.NoError(t, w.s.AddAssignee(ctx, doomed[0], "usr_a"))

	var del Deletion
	err := w.s.InTx(ctx, func(tx *store.Tx) error {
		var err error
		del, err = DeleteList(ctx, tx, b, l1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, del.Position)
	assert.ElementsMatch(t, doomed, del.CardIDs)

	assert.Equal(t, []string{l0, l2}, w.listOrder(t, b))
	positions, err := w.s.ListPositions(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, positions)
	for _, id := range doomed {
		_, err := w.s.GetCard(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
}

func TestDeleteListIsAllOrNothing(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b := w.board(t, w.ws.ID)
	w.list(t, b, 1)
	l1, cards := w.list(t, b, 3)
	before := w.listOrder(t, b)

	boom := errors.New("crash after cascade")
	err := w.s.InTx(ctx, func(tx *store.Tx) error {
		if _, err := DeleteList(ctx, tx, b, l1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, before, w.listOrder(t, b))
	assert.Equal(t, cards, w.cardOrder(t, l1))
}

func TestMovesAreAllOrNothing(t *testing.T) {
	storetest.Engines(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		ws, err := s.CreateWorkspace(ctx, store.Workspace{ID: util.NewID(util.PrefixWorkspace), Name: "W", OwnerID: "usr_owner"})
		require.NoError(t, err)
		w := &world{s: s, ws: ws}
		b1, b2 := w.board(t, ws.ID), w.board(t, ws.ID)
		l1, c1 := w.list(t, b1, 3)
		l2, c2 := w.list(t, b1, 2)
		l3, _ := w.list(t, b2, 0)

		boom := errors.New("crash after move")
		err = s.InTx(ctx, func(tx *store.Tx) error {
			if _, err := MoveCard(ctx, tx, c1[0], l1, l2, intp(1)); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, c1, w.cardOrder(t, l1))
		assert.Equal(t, c2, w.cardOrder(t, l2))

		err = s.InTx(ctx, func(tx *store.Tx) error {
			if _, err := MoveList(ctx, tx, l1, b1, b2, nil); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, []string{l1, l2}, w.listOrder(t, b1))
		assert.Equal(t, []string{l3}, w.listOrder(t, b2))

		for _, list := range []string{l1, l2} {
			positions, err := s.CardPositions(ctx, list)
			require.NoError(t, err)
			require.True(t, ordering.Dense(positions), "list %s: %v", list, positions)
		}
		for _, board := range []string{b1, b2} {
			positions, err := s.ListPositions(ctx, board)
			require.NoError(t, err)
			require.True(t, ordering.Dense(positions), "board %s: %v", board, positions)
		}
		moved, err := s.GetList(ctx, l1)
		require.NoError(t, err)
		assert.Equal(t, b1, moved.BoardID)
	})
}

func TestDeleteListOnWrongBoard(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b1, b2 := w.board(t, w.ws.ID), w.board(t, w.ws.ID)
	l, cards := w.list(t, b1, 2)

	err := w.s.InTx(ctx, func(tx *store.Tx) error {
		_, err := DeleteList(ctx, tx, b2, l)
		return err
	})
	assert.ErrorIs(t, err, ordering.ErrNotChild)
	assert.Equal(t, cards, w.cardOrder(t, l))
}

func TestClearList(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	b := w.board(t, w.ws.ID)
	l, cards := w.list(t, b, 3)

	var removed []string
	err := w.s.InTx(ctx, func(tx *store.Tx) error {
		var err error
		removed, err = ClearList(ctx, tx, l)
		return err
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, cards, removed)
	assert.Empty(t, w.cardOrder(t, l))
	assert.Equal(t, []string{l}, w.listOrder(t, b))

	list, err := w.s.GetList(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, int64(4), list.CardOrderVersion)
}
