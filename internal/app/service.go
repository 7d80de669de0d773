package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"taskflow/api/internal/auth"
	"taskflow/api/internal/config"
	"taskflow/api/internal/hierarchy"
	"taskflow/api/internal/logger"
	"taskflow/api/internal/rbac"
	"taskflow/api/internal/realtime"
	"taskflow/api/internal/search"
	"taskflow/api/internal/store"
	"taskflow/api/internal/util"
)

// Session is the authenticated caller of one request.
type Session struct {
	UserID   string
	UserName string
}

type dataStore interface {
	hierarchy.Reader
	InTx(ctx context.Context, fn func(tx *store.Tx) error) error
	Ping(context.Context) error
	ListsByBoard(context.Context, string) ([]store.List, error)
	CardsByList(context.Context, string) ([]store.Card, error)
	CardsByBoard(context.Context, string) ([]store.Card, error)
	BoardsInWorkspace(context.Context, string) ([]string, error)
	BoardActivity(context.Context, string, int) ([]store.Activity, error)
	InsertActivity(context.Context, store.Activity) error
}

type cardSearch interface {
	SearchCards(context.Context, search.Query) ([]store.Card, error)
	Indexing() bool
	IndexCards(...search.CardRecord) error
	DeleteCards(...string) error
}

type presenceTracker interface {
	Heartbeat(context.Context, realtime.PresenceEntry) error
	Online(context.Context, string) ([]realtime.PresenceEntry, error)
}

type boardNotifier interface {
	Publish(context.Context, realtime.Event) error
}

// Deps are the optional collaborators of the service. Nil fields disable
// the matching side effect; search falls back to the store.
type Deps struct {
	Logger   logger.Logger
	Metrics  *Metrics
	Search   *search.Service
	Presence *realtime.Presence
	Notifier *realtime.Notifier
}

// Service is the single entry point for reads and mutations of the
// hierarchy. Every mutation resolves the ownership chain, authorizes the
// actor against it, runs in one store transaction and only then hands off
// to side effects.
type Service struct {
	cfg      config.Config
	store    dataStore
	loader   *hierarchy.Loader
	search   cardSearch
	presence presenceTracker
	notifier boardNotifier
	effects  *Effects
	metrics  *Metrics
	logger   logger.Logger
	tracer   trace.Tracer
}

func New(cfg config.Config, dataStore *store.Store, deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	s := &Service{
		cfg:     cfg,
		store:   dataStore,
		loader:  hierarchy.NewLoader(dataStore),
		metrics: deps.Metrics,
		logger:  log,
		tracer:  otel.Tracer("taskflow/api/internal/app"),
		effects: NewEffects(cfg.EffectsWorkers, cfg.EffectsQueue, log, deps.Metrics),
	}
	if deps.Search != nil {
		s.search = deps.Search
	} else {
		s.search = search.NewService(nil, dataStore, log)
	}
	if deps.Presence != nil {
		s.presence = deps.Presence
	}
	if deps.Notifier != nil {
		s.notifier = deps.Notifier
	}
	return s
}

// Close waits for queued side effects to finish.
func (s *Service) Close() {
	s.effects.Close()
}

// Ping checks the health of the database.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if !util.ValidID(util.PrefixUser, claims.Subject) {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{UserID: claims.Subject, UserName: claims.Name}, nil
}

func requireID(field, prefix, value string) error {
	if !util.ValidID(prefix, value) {
		return invalidIdentifier(field, value)
	}
	return nil
}

// fail converts err for the caller and logs failures that are not the
// caller's fault.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	out := asDomainError(err)
	var domainErr *DomainError
	if errors.As(out, &domainErr) && domainErr.Status >= http.StatusInternalServerError {
		s.logger.ErrorWithContext(ctx, "operation failed", zap.String("operation", op), zap.Error(err))
	}
	return out
}

func (s *Service) authorize(chain hierarchy.Chain, actorID, creatorID string, action rbac.Action) error {
	if !rbac.Can(chain.Subject(actorID, creatorID), action) {
		return forbidden("You are not allowed to " + string(action) + " here")
	}
	return nil
}

// mutate runs fn in one transaction bounded by the mutation timeout. The
// returned error is already a DomainError.
func (s *Service) mutate(ctx context.Context, op string, fn func(ctx context.Context, tx *store.Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "app."+op, trace.WithAttributes(attribute.String("taskflow.operation", op)))
	defer span.End()
	if s.cfg.MutationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.MutationTimeout)
		defer cancel()
	}

	started := time.Now()
	err := s.store.InTx(ctx, func(tx *store.Tx) error { return fn(ctx, tx) })
	out := s.fail(ctx, op, err)
	s.metrics.observeMutation(op, time.Since(started), out)
	if out != nil {
		span.RecordError(out)
		span.SetStatus(codes.Error, out.Error())
	}
	return out
}

// change describes a committed mutation for the activity log and board
// subscribers.
type change struct {
	Action      string
	TargetType  string
	TargetID    string
	WorkspaceID string
	BoardID     string
	Details     map[string]any
}

func (s *Service) committed(actorID string, c change) {
	now := time.Now().UTC()
	entry := store.Activity{
		ID:          util.NewID(util.PrefixActivity),
		ActorID:     actorID,
		WorkspaceID: c.WorkspaceID,
		BoardID:     c.BoardID,
		Action:      c.Action,
		TargetType:  c.TargetType,
		TargetID:    c.TargetID,
		Details:     c.Details,
		CreatedAt:   now,
	}
	s.effects.Dispatch("activity", func(ctx context.Context) error {
		return s.store.InsertActivity(ctx, entry)
	})
	if s.notifier != nil && c.BoardID != "" {
		event := realtime.Event{
			Type:     c.Action,
			BoardID:  c.BoardID,
			ActorID:  actorID,
			TargetID: c.TargetID,
			Payload:  c.Details,
			At:       now,
		}
		s.effects.Dispatch("notify", func(ctx context.Context) error {
			return s.notifier.Publish(ctx, event)
		})
	}
}

// touch records the actor as present in the workspace. It never affects
// the request.
func (s *Service) touch(actorID, workspaceID, boardID string) {
	if s.presence == nil {
		return
	}
	entry := realtime.PresenceEntry{UserID: actorID, WorkspaceID: workspaceID, BoardID: boardID, SeenAt: time.Now().UTC()}
	s.effects.Dispatch("presence", func(ctx context.Context) error {
		return s.presence.Heartbeat(ctx, entry)
	})
}

// reindex pushes the current state of the cards to the search index.
func (s *Service) reindex(cardIDs ...string) {
	if len(cardIDs) == 0 || !s.search.Indexing() {
		return
	}
	s.effects.Dispatch("search-index", func(ctx context.Context) error {
		records := make([]search.CardRecord, 0, len(cardIDs))
		for _, id := range cardIDs {
			card, err := s.store.GetCard(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			records = append(records, search.NewCardRecord(card))
		}
		return s.search.IndexCards(records...)
	})
}

func (s *Service) unindex(cardIDs ...string) {
	if len(cardIDs) == 0 || !s.search.Indexing() {
		return
	}
	s.effects.Dispatch("search-delete", func(context.Context) error {
		return s.search.DeleteCards(cardIDs...)
	})
}

func (s *Service) CreateWorkspace(ctx context.Context, actorID, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}
	var ws store.Workspace
	err := s.mutate(ctx, "create_workspace", func(ctx context.Context, tx *store.Tx) error {
		var err error
		ws, err = tx.CreateWorkspace(ctx, store.Workspace{ID: util.NewID(util.PrefixWorkspace), Name: name, OwnerID: actorID})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.committed(actorID, change{Action: "workspace.created", TargetType: "workspace", TargetID: ws.ID, WorkspaceID: ws.ID})
	return workspacePayload(ws), nil
}

// SoftDeleteWorkspace hides a workspace and everything under it. Only the
// owner may do it.
func (s *Service) SoftDeleteWorkspace(ctx context.Context, actorID, workspaceID string) error {
	if err := requireID("workspaceId", util.PrefixWorkspace, workspaceID); err != nil {
		return err
	}
	ws, err := s.loader.Workspace(ctx, workspaceID)
	if err != nil {
		return s.fail(ctx, "soft_delete_workspace", err)
	}
	if rbac.Resolve(hierarchy.RBACWorkspace(ws), actorID) != rbac.RoleOwner {
		return forbidden("Only the workspace owner can delete it")
	}
	err = s.mutate(ctx, "soft_delete_workspace", func(ctx context.Context, tx *store.Tx) error {
		return tx.SoftDeleteWorkspace(ctx, workspaceID)
	})
	if err != nil {
		return err
	}
	s.committed(actorID, change{Action: "workspace.deleted", TargetType: "workspace", TargetID: ws.ID, WorkspaceID: ws.ID})
	return nil
}

func (s *Service) AddWorkspaceMember(ctx context.Context, actorID, workspaceID, userID, role string) (map[string]any, error) {
	if err := requireID("workspaceId", util.PrefixWorkspace, workspaceID); err != nil {
		return nil, err
	}
	if err := requireID("userId", util.PrefixUser, userID); err != nil {
		return nil, err
	}
	parsed, ok := rbac.ParseRole(role)
	if !ok {
		return nil, validationError("role must be one of admin, member, viewer")
	}
	ws, err := s.loader.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "add_workspace_member", err)
	}
	if !rbac.Resolve(hierarchy.RBACWorkspace(ws), actorID).IsAdminOrOwner() {
		return nil, forbidden("Only workspace admins can manage members")
	}
	if userID == ws.OwnerID {
		return nil, invalidOperation("the owner's role cannot be changed")
	}
	err = s.mutate(ctx, "add_workspace_member", func(ctx context.Context, tx *store.Tx) error {
		return tx.PutWorkspaceMember(ctx, store.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: string(parsed)})
	})
	if err != nil {
		return nil, err
	}
	s.committed(actorID, change{Action: "workspace.member_added", TargetType: "user", TargetID: userID, WorkspaceID: workspaceID, Details: map[string]any{"role": string(parsed)}})

	ws, err = s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "add_workspace_member", err)
	}
	return workspacePayload(ws), nil
}

// RestoreWorkspace brings back a soft-deleted workspace. The owner and
// admins may do it.
func (s *Service) RestoreWorkspace(ctx context.Context, actorID, workspaceID string) (map[string]any, error) {
	if err := requireID("workspaceId", util.PrefixWorkspace, workspaceID); err != nil {
		return nil, err
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "restore_workspace", err)
	}
	if !rbac.Resolve(hierarchy.RBACWorkspace(ws), actorID).IsAdminOrOwner() {
		return nil, forbidden("Only workspace admins can restore it")
	}
	if !ws.IsDeleted {
		return nil, invalidOperation("workspace is already active")
	}
	err = s.mutate(ctx, "restore_workspace", func(ctx context.Context, tx *store.Tx) error {
		return tx.RestoreWorkspace(ctx, workspaceID)
	})
	if err != nil {
		return nil, err
	}
	s.committed(actorID, change{Action: "workspace.restored", TargetType: "workspace", TargetID: ws.ID, WorkspaceID: ws.ID})
	ws.IsDeleted = false
	return workspacePayload(ws), nil
}

func workspaceMember(ws store.Workspace, userID string) (store.WorkspaceMember, bool) {
	for _, m := range ws.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return store.WorkspaceMember{}, false
}

// UpdateWorkspaceMemberRole changes the role of an existing member. Only
// the owner may do it.
func (s *Service) UpdateWorkspaceMemberRole(ctx context.Context, actorID, workspaceID, userID, role string) (map[string]any, error) {
	if err := requireID("workspaceId", util.PrefixWorkspace, workspaceID); err != nil {
		return nil, err
	}
	if err := requireID("userId", util.PrefixUser, userID); err != nil {
		return nil, err
	}
	parsed, ok := rbac.ParseRole(role)
	if !ok {
		return nil, validationError("role must be one of admin, member, viewer")
	}
	ws, err := s.loader.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "update_member_role", err)
	}
	if rbac.Resolve(hierarchy.RBACWorkspace(ws), actorID) != rbac.RoleOwner {
		return nil, forbidden("Only the workspace owner can change roles")
	}
	if userID == ws.OwnerID {
		return nil, invalidOperation("the owner's role cannot be changed")
	}
	if _, ok := workspaceMember(ws, userID); !ok {
		return nil, s.fail(ctx, "update_member_role", hierarchy.ErrNotFound)
	}
	err = s.mutate(ctx, "update_member_role", func(ctx context.Context, tx *store.Tx) error {
		return tx.PutWorkspaceMember(ctx, store.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: string(parsed)})
	})
	if err != nil {
		return nil, err
	}
	s.committed(actorID, change{Action: "workspace.member_role_changed", TargetType: "user", TargetID: userID, WorkspaceID: workspaceID, Details: map[string]any{"role": string(parsed)}})

	ws, err = s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "update_member_role", err)
	}
	return workspacePayload(ws), nil
}

// RemoveWorkspaceMember takes a member out of the workspace and off every
// board in it.
func (s *Service) RemoveWorkspaceMember(ctx context.Context, actorID, workspaceID, userID string) (map[string]any, error) {
	if err := requireID("workspaceId", util.PrefixWorkspace, workspaceID); err != nil {
		return nil, err
	}
	if err := requireID("userId", util.PrefixUser, userID); err != nil {
		return nil, err
	}
	ws, err := s.loader.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "remove_workspace_member", err)
	}
	if !rbac.Resolve(hierarchy.RBACWorkspace(ws), actorID).IsAdminOrOwner() {
		return nil, forbidden("Only workspace admins can manage members")
	}
	if userID == ws.OwnerID {
		return nil, invalidOperation("the workspace owner cannot be removed")
	}
	if _, ok := workspaceMember(ws, userID); !ok {
		return nil, s.fail(ctx, "remove_workspace_member", hierarchy.ErrNotFound)
	}
	err = s.mutate(ctx, "remove_workspace_member", func(ctx context.Context, tx *store.Tx) error {
		return tx.RemoveWorkspaceMember(ctx, workspaceID, userID)
	})
	if err != nil {
		return nil, err
	}
	s.committed(actorID, change{Action: "workspace.member_removed", TargetType: "user", TargetID: userID, WorkspaceID: workspaceID})

	ws, err = s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "remove_workspace_member", err)
	}
	return workspacePayload(ws), nil
}

// CreateBoard creates a board in the workspace. The creator becomes its
// first member.
func (s *Service) CreateBoard(ctx context.Context, actorID, workspaceID, title string) (map[string]any, error) {
	if err := requireID("workspaceId", util.PrefixWorkspace, workspaceID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}
	ws, err := s.loader.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "create_board", err)
	}
	if !rbac.Resolve(hierarchy.RBACWorkspace(ws), actorID).IsAdminOrOwner() {
		return nil, forbidden("Only workspace admins can create boards")
	}
	var board store.Board
	err = s.mutate(ctx, "create_board", func(ctx context.Context, tx *store.Tx) error {
		var err error
		board, err = tx.CreateBoard(ctx, store.Board{ID: util.NewID(util.PrefixBoard), WorkspaceID: workspaceID, Title: title, CreatedBy: actorID})
		if err != nil {
			return err
		}
		return tx.AddBoardMember(ctx, board.ID, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, workspaceID, board.ID)
	s.committed(actorID, change{Action: "board.created", TargetType: "board", TargetID: board.ID, WorkspaceID: workspaceID, BoardID: board.ID})
	return boardPayload(board, []string{actorID}), nil
}

// AddBoardMember grants a workspace member access to a board.
func (s *Service) AddBoardMember(ctx context.Context, actorID, boardID, userID string) (map[string]any, error) {
	if err := requireID("boardId", util.PrefixBoard, boardID); err != nil {
		return nil, err
	}
	if err := requireID("userId", util.PrefixUser, userID); err != nil {
		return nil, err
	}
	chain, err := s.loader.Board(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "add_board_member", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionManage); err != nil {
		return nil, err
	}
	if rbac.Resolve(hierarchy.RBACWorkspace(chain.Workspace), userID) == rbac.RoleNone {
		return nil, invalidOperation("user is not a member of the workspace")
	}
	err = s.mutate(ctx, "add_board_member", func(ctx context.Context, tx *store.Tx) error {
		return tx.AddBoardMember(ctx, boardID, userID)
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, boardID)
	s.committed(actorID, change{Action: "board.member_added", TargetType: "user", TargetID: userID, WorkspaceID: chain.Workspace.ID, BoardID: boardID})

	members, err := s.store.BoardMembers(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "add_board_member", err)
	}
	return boardPayload(chain.Board, members), nil
}

// RemoveBoardMember revokes a user's board membership. The workspace owner
// cannot be removed.
func (s *Service) RemoveBoardMember(ctx context.Context, actorID, boardID, userID string) (map[string]any, error) {
	if err := requireID("boardId", util.PrefixBoard, boardID); err != nil {
		return nil, err
	}
	if err := requireID("userId", util.PrefixUser, userID); err != nil {
		return nil, err
	}
	chain, err := s.loader.Board(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "remove_board_member", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionManage); err != nil {
		return nil, err
	}
	if userID == chain.Workspace.OwnerID {
		return nil, invalidOperation("the workspace owner cannot be removed from a board")
	}
	err = s.mutate(ctx, "remove_board_member", func(ctx context.Context, tx *store.Tx) error {
		return tx.RemoveBoardMember(ctx, boardID, userID)
	})
	if err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, boardID)
	s.committed(actorID, change{Action: "board.member_removed", TargetType: "user", TargetID: userID, WorkspaceID: chain.Workspace.ID, BoardID: boardID})

	members, err := s.store.BoardMembers(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "remove_board_member", err)
	}
	return boardPayload(chain.Board, members), nil
}

// GetBoardLists returns the board with its lists in order.
func (s *Service) GetBoardLists(ctx context.Context, actorID, boardID string) (map[string]any, error) {
	if err := requireID("boardId", util.PrefixBoard, boardID); err != nil {
		return nil, err
	}
	chain, err := s.loader.Board(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "get_board_lists", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionRead); err != nil {
		return nil, err
	}
	s.touch(actorID, chain.Workspace.ID, boardID)
	return s.boardListsPayload(ctx, "get_board_lists", chain.Board)
}

func (s *Service) boardListsPayload(ctx context.Context, op string, board store.Board) (map[string]any, error) {
	board, err := s.store.GetBoard(ctx, board.ID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	lists, err := s.store.ListsByBoard(ctx, board.ID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	items := make([]map[string]any, 0, len(lists))
	for _, l := range lists {
		items = append(items, listPayload(l))
	}
	return map[string]any{
		"boardId":          board.ID,
		"listOrderVersion": board.ListOrderVersion,
		"lists":            items,
	}, nil
}

// BoardActivity returns the newest activity entries of a board.
func (s *Service) BoardActivity(ctx context.Context, actorID, boardID string, limit int) (map[string]any, error) {
	if err := requireID("boardId", util.PrefixBoard, boardID); err != nil {
		return nil, err
	}
	chain, err := s.loader.Board(ctx, boardID)
	if err != nil {
		return nil, s.fail(ctx, "board_activity", err)
	}
	if err := s.authorize(chain, actorID, "", rbac.ActionRead); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.store.BoardActivity(ctx, boardID, limit)
	if err != nil {
		return nil, s.fail(ctx, "board_activity", err)
	}
	items := make([]map[string]any, 0, len(entries))
	for _, a := range entries {
		items = append(items, map[string]any{
			"id":         a.ID,
			"actorId":    a.ActorID,
			"action":     a.Action,
			"targetType": a.TargetType,
			"targetId":   a.TargetID,
			"details":    a.Details,
			"createdAt":  a.CreatedAt,
		})
	}
	return map[string]any{"boardId": boardID, "activity": items}, nil
}

// OnlineUsers lists who sent a heartbeat for the workspace recently.
func (s *Service) OnlineUsers(ctx context.Context, actorID, workspaceID string) (map[string]any, error) {
	if err := requireID("workspaceId", util.PrefixWorkspace, workspaceID); err != nil {
		return nil, err
	}
	ws, err := s.loader.Workspace(ctx, workspaceID)
	if err != nil {
		return nil, s.fail(ctx, "online_users", err)
	}
	if rbac.Resolve(hierarchy.RBACWorkspace(ws), actorID) == rbac.RoleNone {
		return nil, forbidden("You are not a member of this workspace")
	}
	online := []realtime.PresenceEntry{}
	if s.presence != nil {
		entries, err := s.presence.Online(ctx, workspaceID)
		if err != nil {
			s.logger.WarnWithContext(ctx, "presence lookup failed", zap.Error(err))
		} else {
			online = entries
		}
	}
	return map[string]any{"workspaceId": workspaceID, "online": online}, nil
}

func workspacePayload(ws store.Workspace) map[string]any {
	members := make([]map[string]any, 0, len(ws.Members))
	for _, m := range ws.Members {
		members = append(members, map[string]any{"userId": m.UserID, "role": m.Role})
	}
	return map[string]any{
		"id":        ws.ID,
		"name":      ws.Name,
		"ownerId":   ws.OwnerID,
		"members":   members,
		"createdAt": ws.CreatedAt,
		"updatedAt": ws.UpdatedAt,
	}
}

func boardPayload(b store.Board, members []string) map[string]any {
	if members == nil {
		members = []string{}
	}
	return map[string]any{
		"id":               b.ID,
		"workspaceId":      b.WorkspaceID,
		"title":            b.Title,
		"createdBy":        b.CreatedBy,
		"members":          members,
		"listOrderVersion": b.ListOrderVersion,
		"createdAt":        b.CreatedAt,
		"updatedAt":        b.UpdatedAt,
	}
}
