package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/api/internal/ordering"
	"taskflow/api/internal/store"
	"taskflow/api/internal/store/storetest"
	"taskflow/api/internal/util"
)

type fixture struct {
	ws    store.Workspace
	board store.Board
	lists []store.List
}

// seed creates a workspace with one board holding the given number of lists.
func seed(t *testing.T, s *store.Store, lists int) fixture {
	t.Helper()
	ctx := context.Background()
	ws, err := s.CreateWorkspace(ctx, store.Workspace{ID: util.NewID(util.PrefixWorkspace), Name: "Acme", OwnerID: "usr_owner"})
	require.NoError(t, err)
	board, err := s.CreateBoard(ctx, store.Board{ID: util.NewID(util.PrefixBoard), WorkspaceID: ws.ID, Title: "Roadmap", CreatedBy: "usr_owner"})
	require.NoError(t, err)

	f := fixture{ws: ws, board: board}
	for i := 0; i < lists; i++ {
		f.lists = append(f.lists, addList(t, s, board.ID, nil))
	}
	return f
}

func addList(t *testing.T, s *store.Store, boardID string, at *int) store.List {
	t.Helper()
	var created store.List
	err := s.InTx(context.Background(), func(tx *store.Tx) error {
		_, err := ordering.Insert(context.Background(), tx.BoardLists(boardID), at, func(ctx context.Context, pos int) error {
			var err error
			created, err = tx.InsertList(ctx, store.List{ID: util.NewID(util.PrefixList), BoardID: boardID, Title: "L", Position: pos, CreatedBy: "usr_owner"})
			return err
		})
		return err
	})
	require.NoError(t, err)
	return created
}

func addCard(t *testing.T, s *store.Store, listID, title string) store.Card {
	t.Helper()
	var created store.Card
	err := s.InTx(context.Background(), func(tx *store.Tx) error {
		_, err := ordering.Insert(context.Background(), tx.ListCards(listID), nil, func(ctx context.Context, pos int) error {
			var err error
			created, err = tx.InsertCard(ctx, store.Card{ID: util.NewID(util.PrefixCard), ListID: listID, Title: title, Position: pos, CreatedBy: "usr_owner"})
			return err
		})
		return err
	})
	require.NoError(t, err)
	return created
}

func listOrder(t *testing.T, s *store.Store, boardID string) []string {
	t.Helper()
	lists, err := s.ListsByBoard(context.Background(), boardID)
	require.NoError(t, err)
	ids := make([]string, len(lists))
	for i, l := range lists {
		ids[i] = l.ID
	}
	return ids
}

func TestWorkspaceMembers(t *testing.T) {
	storetest.Engines(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		f := seed(t, s, 0)

		require.NoError(t, s.PutWorkspaceMember(ctx, store.WorkspaceMember{WorkspaceID: f.ws.ID, UserID: "usr_a", Role: "viewer"}))
		require.NoError(t, s.PutWorkspaceMember(ctx, store.WorkspaceMember{WorkspaceID: f.ws.ID, UserID: "usr_a", Role: "admin"}))
		require.NoError(t, s.AddBoardMember(ctx, f.board.ID, "usr_b"))
		require.NoError(t, s.AddBoardMember(ctx, f.board.ID, "usr_b"))

		ws, err := s.GetWorkspace(ctx, f.ws.ID)
		require.NoError(t, err)
		require.Len(t, ws.Members, 1)
		assert.Equal(t, "admin", ws.Members[0].Role)

		members, err := s.BoardMembers(ctx, f.board.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"usr_b"}, members)

		require.NoError(t, s.SoftDeleteWorkspace(ctx, f.ws.ID))
		ws, err = s.GetWorkspace(ctx, f.ws.ID)
		require.NoError(t, err)
		assert.True(t, ws.IsDeleted)

		_, err = s.GetWorkspace(ctx, "ws_missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestListOrderingOnDatabase(t *testing.T) {
	storetest.Engines(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		f := seed(t, s, 4)
		a, b, c, d := f.lists[0].ID, f.lists[1].ID, f.lists[2].ID, f.lists[3].ID

		board, err := s.GetBoard(ctx, f.board.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), board.ListOrderVersion)

		err = s.InTx(ctx, func(tx *store.Tx) error {
			_, err := ordering.MoveWithin(ctx, tx.BoardLists(f.board.ID), a, 2)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, []string{b, c, a, d}, listOrder(t, s, f.board.ID))

		err = s.InTx(ctx, func(tx *store.Tx) error {
			return ordering.ReorderBulk(ctx, tx.BoardLists(f.board.ID), []string{d, c, b, a})
		})
		require.NoError(t, err)
		assert.Equal(t, []string{d, c, b, a}, listOrder(t, s, f.board.ID))

		front := 0
		e := addList(t, s, f.board.ID, &front)
		assert.Equal(t, []string{e.ID, d, c, b, a}, listOrder(t, s, f.board.ID))

		err = s.InTx(ctx, func(tx *store.Tx) error {
			_, err := ordering.RemoveAndRenumber(ctx, tx.BoardLists(f.board.ID), c)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, []string{e.ID, d, b, a}, listOrder(t, s, f.board.ID))

		positions, err := s.ListPositions(ctx, f.board.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 3}, positions)
	})
}

func TestInTxRollsBackOnError(t *testing.T) {
	storetest.Engines(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		f := seed(t, s, 3)
		before := listOrder(t, s, f.board.ID)

		boom := errors.New("boom")
		err := s.InTx(ctx, func(tx *store.Tx) error {
			if _, err := ordering.MoveWithin(ctx, tx.BoardLists(f.board.ID), f.lists[0].ID, 2); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, before, listOrder(t, s, f.board.ID))

		board, err := s.GetBoard(ctx, f.board.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), board.ListOrderVersion)
	})
}

func TestCollectionRejectsForeignChild(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	f := seed(t, s, 1)
	other := seed(t, s, 1)

	err := s.InTx(ctx, func(tx *store.Tx) error {
		_, err := ordering.MoveWithin(ctx, tx.BoardLists(f.board.ID), other.lists[0].ID, 0)
		return err
	})
	assert.ErrorIs(t, err, ordering.ErrNotChild)
}

func TestCardDetails(t *testing.T) {
	storetest.Engines(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		f := seed(t, s, 1)
		card := addCard(t, s, f.lists[0].ID, "Write docs")

		due := time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)
		labels := []string{"docs", "q4"}
		status := "in-progress"
		require.NoError(t, s.UpdateCard(ctx, card.ID, store.CardPatch{Labels: &labels, Status: &status, DueDate: &due}))
		require.NoError(t, s.AddAssignee(ctx, card.ID, "usr_a"))
		require.NoError(t, s.AddAttachment(ctx, card.ID, "med_1"))
		err := s.InTx(ctx, func(tx *store.Tx) error {
			_, err := ordering.Insert(ctx, tx.CardChecklist(card.ID), nil, func(ctx context.Context, pos int) error {
				_, err := tx.InsertChecklistItem(ctx, store.ChecklistItem{ID: util.NewID(util.PrefixChecklist), CardID: card.ID, Text: "outline", Position: pos})
				return err
			})
			return err
		})
		require.NoError(t, err)

		got, err := s.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, f.board.ID, got.BoardID)
		assert.Equal(t, labels, got.Labels)
		assert.Equal(t, status, got.Status)
		require.NotNil(t, got.DueDate)
		assert.True(t, due.Equal(*got.DueDate))
		assert.Equal(t, []string{"usr_a"}, got.Assignees)
		assert.Equal(t, []string{"med_1"}, got.Attachments)
		require.Len(t, got.Checklist, 1)
		assert.Equal(t, "outline", got.Checklist[0].Text)

		require.NoError(t, s.UpdateCard(ctx, card.ID, store.CardPatch{ClearDueDate: true}))
		got, err = s.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assert.Nil(t, got.DueDate)

		assert.ErrorIs(t, s.RemoveAssignee(ctx, card.ID, "usr_nobody"), store.ErrNotFound)
	})
}

func TestDeleteCardsInList(t *testing.T) {
	storetest.Engines(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		f := seed(t, s, 1)
		c1 := addCard(t, s, f.lists[0].ID, "one")
		addCard(t, s, f.lists[0].ID, "two")
		require.NoError(t, s.AddAssignee(ctx, c1.ID, "usr_a"))

		var deleted []string
		err := s.InTx(ctx, func(tx *store.Tx) error {
			var err error
			deleted, err = tx.DeleteCardsInList(ctx, f.lists[0].ID)
			return err
		})
		require.NoError(t, err)
		assert.Len(t, deleted, 2)

		cards, err := s.CardsByList(ctx, f.lists[0].ID)
		require.NoError(t, err)
		assert.Empty(t, cards)
	})
}

func TestSearchCards(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	f := seed(t, s, 2)
	first := addCard(t, s, f.lists[1].ID, "Fix login bug")
	second := addCard(t, s, f.lists[0].ID, "Login page copy")
	archived := addCard(t, s, f.lists[0].ID, "Old login flow")
	addCard(t, s, f.lists[0].ID, "Unrelated")
	require.NoError(t, s.SetCardArchived(ctx, archived.ID, true))

	labels := []string{"bug"}
	require.NoError(t, s.UpdateCard(ctx, first.ID, store.CardPatch{Labels: &labels}))
	require.NoError(t, s.AddAssignee(ctx, second.ID, "usr_a"))

	ids := func(cards []store.Card) []string {
		out := []string{}
		for _, c := range cards {
			out = append(out, c.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter store.CardFilter
		want   []string
	}{
		{name: "text ordered by list then card", filter: store.CardFilter{Query: "LOGIN"}, want: []string{second.ID, first.ID}},
		{name: "label", filter: store.CardFilter{Label: "bug"}, want: []string{first.ID}},
		{name: "assignee", filter: store.CardFilter{Assignee: "usr_a"}, want: []string{second.ID}},
		{name: "wildcards are literal", filter: store.CardFilter{Query: "%"}, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.filter.BoardIDs = []string{f.board.ID}
			got, err := s.SearchCards(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestBoardActivity(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	f := seed(t, s, 0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, action := range []string{"list.created", "card.moved"} {
		require.NoError(t, s.InsertActivity(ctx, store.Activity{
			ID: util.NewID(util.PrefixActivity), ActorID: "usr_owner", WorkspaceID: f.ws.ID, BoardID: f.board.ID,
			Action: action, TargetType: "list", TargetID: "lst_x",
			Details:   map[string]any{"n": i},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.BoardActivity(ctx, f.board.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "card.moved", entries[0].Action)
	assert.EqualValues(t, 1, entries[0].Details["n"])
}

func TestMembershipRemoval(t *testing.T) {
	storetest.Engines(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		f := seed(t, s, 0)
		other := seed(t, s, 0)

		require.NoError(t, s.PutWorkspaceMember(ctx, store.WorkspaceMember{WorkspaceID: f.ws.ID, UserID: "usr_a", Role: "member"}))
		require.NoError(t, s.AddBoardMember(ctx, f.board.ID, "usr_a"))
		require.NoError(t, s.AddBoardMember(ctx, other.board.ID, "usr_a"))

		require.NoError(t, s.RemoveWorkspaceMember(ctx, f.ws.ID, "usr_a"))
		ws, err := s.GetWorkspace(ctx, f.ws.ID)
		require.NoError(t, err)
		assert.Empty(t, ws.Members)
		members, err := s.BoardMembers(ctx, f.board.ID)
		require.NoError(t, err)
		assert.Empty(t, members)
		members, err = s.BoardMembers(ctx, other.board.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"usr_a"}, members)

		assert.ErrorIs(t, s.RemoveWorkspaceMember(ctx, f.ws.ID, "usr_a"), store.ErrNotFound)
		require.NoError(t, s.RemoveBoardMember(ctx, other.board.ID, "usr_a"))
		assert.ErrorIs(t, s.RemoveBoardMember(ctx, other.board.ID, "usr_a"), store.ErrNotFound)

		require.NoError(t, s.SoftDeleteWorkspace(ctx, f.ws.ID))
		require.NoError(t, s.RestoreWorkspace(ctx, f.ws.ID))
		ws, err = s.GetWorkspace(ctx, f.ws.ID)
		require.NoError(t, err)
		assert.False(t, ws.IsDeleted)
		assert.ErrorIs(t, s.RestoreWorkspace(ctx, "ws_missing"), store.ErrNotFound)
	})
}

func TestCardsByBoardAndComments(t *testing.T) {
	storetest.Engines(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()
		f := seed(t, s, 2)
		late := addCard(t, s, f.lists[1].ID, "late")
		early := addCard(t, s, f.lists[0].ID, "early")
		archived := addCard(t, s, f.lists[0].ID, "archived")
		require.NoError(t, s.SetCardArchived(ctx, archived.ID, true))

		cards, err := s.CardsByBoard(ctx, f.board.ID)
		require.NoError(t, err)
		require.Len(t, cards, 2)
		assert.Equal(t, early.ID, cards[0].ID)
		assert.Equal(t, late.ID, cards[1].ID)

		require.NoError(t, s.AddComment(ctx, early.ID, "msg_1"))
		require.NoError(t, s.AddComment(ctx, early.ID, "msg_1"))
		require.NoError(t, s.AddComment(ctx, early.ID, "msg_2"))
		got, err := s.GetCard(ctx, early.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"msg_1", "msg_2"}, got.Comments)

		require.NoError(t, s.RemoveComment(ctx, early.ID, "msg_1"))
		assert.ErrorIs(t, s.RemoveComment(ctx, early.ID, "msg_1"), store.ErrNotFound)

		err = s.InTx(ctx, func(tx *store.Tx) error {
			_, err := tx.DeleteCardsInList(ctx, f.lists[0].ID)
			return err
		})
		require.NoError(t, err)
		_, err = s.GetCard(ctx, early.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestClockStampsRows(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	f := seed(t, s, 1)
	assert.True(t, fixed.Equal(f.ws.CreatedAt))
	list, err := s.GetList(ctx, f.lists[0].ID)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(list.UpdatedAt))

	require.NoError(t, s.InsertActivity(ctx, store.Activity{
		ID: util.NewID(util.PrefixActivity), ActorID: "usr_owner", WorkspaceID: f.ws.ID, BoardID: f.board.ID,
		Action: "list.created", TargetType: "list", TargetID: f.lists[0].ID,
	}))
	entries, err := s.BoardActivity(ctx, f.board.ID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, fixed.Equal(entries[0].CreatedAt))
}

// Two unversioned moves whose transactions overlap on Postgres: the second
// writer to bump the board version fails with a serialization error.
func TestOverlappingMovesConflictOnPostgres(t *testing.T) {
	s := storetest.NewPostgres(t)
	require.Equal(t, store.EnginePostgres, s.Engine())
	ctx := context.Background()
	f := seed(t, s, 3)
	a, b, c := f.lists[0].ID, f.lists[1].ID, f.lists[2].ID

	secondRead := make(chan struct{})
	firstCommitted := make(chan struct{})
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- s.InTx(ctx, func(tx *store.Tx) error {
			if _, err := tx.BoardLists(f.board.ID).Version(ctx); err != nil {
				return err
			}
			<-secondRead
			_, err := ordering.MoveWithin(ctx, tx.BoardLists(f.board.ID), a, 2)
			return err
		})
		close(firstCommitted)
	}()

	err := s.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.BoardLists(f.board.ID).Version(ctx); err != nil {
			return err
		}
		close(secondRead)
		<-firstCommitted
		_, err := ordering.MoveWithin(ctx, tx.BoardLists(f.board.ID), c, 0)
		return err
	})
	require.NoError(t, <-firstErr)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, []string{b, c, a}, listOrder(t, s, f.board.ID))

	positions, err := s.ListPositions(ctx, f.board.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions)
}
