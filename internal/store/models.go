package store

import "time"

type Workspace struct {
	ID        string
	Name      string
	OwnerID   string
	IsDeleted bool
	Members   []WorkspaceMember
	CreatedAt time.Time
	UpdatedAt time.Time
}

type WorkspaceMember struct {
	WorkspaceID string
	UserID      string
	Role        string
}

type Board struct {
	ID               string
	WorkspaceID      string
	Title            string
	CreatedBy        string
	ListOrderVersion int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type List struct {
	ID               string
	BoardID          string
	Title            string
	Position         int
	CreatedBy        string
	IsArchived       bool
	IsActive         bool
	CardOrderVersion int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Card.BoardID is not a column; it is read through the card's list.
type Card struct {
	ID                    string
	ListID                string
	BoardID               string
	Title                 string
	Description           string
	Status                string
	Labels                []string
	DueDate               *time.Time
	Position              int
	CreatedBy             string
	IsArchived            bool
	ChecklistOrderVersion int64
	Assignees             []string
	Attachments           []string
	Comments              []string
	Checklist             []ChecklistItem
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type ChecklistItem struct {
	ID        string
	CardID    string
	Text      string
	Completed bool
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Activity struct {
	ID          string
	ActorID     string
	WorkspaceID string
	BoardID     string
	Action      string
	TargetType  string
	TargetID    string
	Details     map[string]any
	CreatedAt   time.Time
}

// CardPatch carries the editable card fields; nil leaves a field unchanged.
type CardPatch struct {
	Title        *string
	Description  *string
	Status       *string
	Labels       *[]string
	DueDate      *time.Time
	ClearDueDate bool
}

type CardFilter struct {
	BoardIDs []string
	// IDs narrows the search to these cards when non-nil.
	IDs      []string
	Query    string
	Label    string
	Assignee string
	Limit    int
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
