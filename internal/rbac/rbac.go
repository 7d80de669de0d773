// Package rbac resolves a user's effective role in a workspace and decides
// which hierarchy mutations that role permits. It performs no I/O; callers
// pass in the workspace and board snapshots they already loaded.
package rbac

type Role string
type Action string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
	RoleNone   Role = "none"
)

const (
	ActionRead       Action = "read"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDeleteList Action = "delete-list"
	ActionDeleteCard Action = "delete-card"
	ActionReorder    Action = "reorder"
	ActionMoveList   Action = "move-list"
	ActionToggleList Action = "toggle-list"
	ActionEditCard   Action = "edit-card"
	ActionManage     Action = "manage"
)

// Member is one entry of a workspace member list.
type Member struct {
	UserID string
	Role   Role
}

// Workspace is the subset of a workspace the resolver needs.
type Workspace struct {
	OwnerID string
	Members []Member
}

// Resolve returns the role userID holds in ws. The owner is always RoleOwner,
// whether or not the member list mentions them.
func Resolve(ws Workspace, userID string) Role {
	if userID == "" {
		return RoleNone
	}
	if ws.OwnerID == userID {
		return RoleOwner
	}
	for _, m := range ws.Members {
		if m.UserID == userID {
			return Normalize(string(m.Role))
		}
	}
	return RoleNone
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return Role(role)
	default:
		return RoleViewer
	}
}

// ParseRole is Normalize for input that must be rejected rather than
// coerced. Owner cannot be granted through membership.
func ParseRole(role string) (Role, bool) {
	switch Role(role) {
	case RoleAdmin, RoleMember, RoleViewer:
		return Role(role), true
	default:
		return "", false
	}
}

func (r Role) IsAdminOrOwner() bool {
	return r == RoleOwner || r == RoleAdmin
}

// IsMember reports whether the role may write at all.
func (r Role) IsMember() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// Subject is everything Can needs to know about an actor relative to one
// resource.
type Subject struct {
	UserID      string
	Role        Role
	BoardMember bool
	// CreatorID is the creator of the list or card being acted on, if any.
	CreatorID string
}

// NewSubject resolves the actor's role and board membership in one step.
func NewSubject(ws Workspace, boardMembers []string, userID, creatorID string) Subject {
	member := false
	for _, id := range boardMembers {
		if id == userID {
			member = true
			break
		}
	}
	return Subject{
		UserID:      userID,
		Role:        Resolve(ws, userID),
		BoardMember: member,
		CreatorID:   creatorID,
	}
}

func (s Subject) IsCreatorOrAdmin() bool {
	if s.Role.IsAdminOrOwner() {
		return true
	}
	return s.CreatorID != "" && s.CreatorID == s.UserID && s.Role.IsMember()
}

func (s Subject) boardWriter() bool {
	if s.Role.IsAdminOrOwner() {
		return true
	}
	return s.BoardMember && s.Role == RoleMember
}

func Can(s Subject, action Action) bool {
	switch action {
	case ActionRead:
		return s.Role != RoleNone || s.BoardMember
	case ActionCreate, ActionReorder, ActionEditCard:
		return s.boardWriter()
	case ActionUpdate, ActionToggleList, ActionDeleteCard:
		return s.IsCreatorOrAdmin()
	case ActionDeleteList, ActionMoveList, ActionManage:
		return s.Role.IsAdminOrOwner()
	default:
		return false
	}
}
