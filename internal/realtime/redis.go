// Package realtime keeps short-lived collaboration state in Redis: who is
// looking at a workspace right now, and a pub/sub feed of board changes.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect parses redisURL and checks the server answers.
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// PresenceEntry is what a heartbeat stores for one user.
type PresenceEntry struct {
	UserID      string    `json:"userId"`
	WorkspaceID string    `json:"workspaceId"`
	BoardID     string    `json:"boardId,omitempty"`
	SeenAt      time.Time `json:"seenAt"`
}

// Presence records heartbeats under keys that expire after ttl.
type Presence struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Presence{client: client, prefix: "presence:", ttl: ttl}
}

func (p *Presence) key(workspaceID, userID string) string {
	return p.prefix + workspaceID + ":" + userID
}

func (p *Presence) Heartbeat(ctx context.Context, entry PresenceEntry) error {
	if entry.SeenAt.IsZero() {
		entry.SeenAt = time.Now().UTC()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	if err := p.client.Set(ctx, p.key(entry.WorkspaceID, entry.UserID), payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("save presence: %w", err)
	}
	return nil
}

// Online lists the users with a live heartbeat in the workspace, sorted by
// user id.
func (p *Presence) Online(ctx context.Context, workspaceID string) ([]PresenceEntry, error) {
	var keys []string
	iter := p.client.Scan(ctx, 0, p.key(workspaceID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence: %w", err)
	}
	if len(keys) == 0 {
		return []PresenceEntry{}, nil
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}
	out := make([]PresenceEntry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		var entry PresenceEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal presence: %w", err)
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Event is one change broadcast to subscribers of a board.
type Event struct {
	Type     string         `json:"type"`
	BoardID  string         `json:"boardId"`
	ActorID  string         `json:"actorId"`
	TargetID string         `json:"targetId"`
	Payload  map[string]any `json:"payload,omitempty"`
	At       time.Time      `json:"at"`
}

// Notifier publishes board events on one channel per board.
type Notifier struct {
	client *redis.Client
	prefix string
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client, prefix: "board:"}
}

func (n *Notifier) Channel(boardID string) string {
	return n.prefix + boardID
}

func (n *Notifier) Publish(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.BoardID) == "" {
		return fmt.Errorf("publish %s: missing board id", event.Type)
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, n.Channel(event.BoardID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
