package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := Connect("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, s
}

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect("not a url"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestPresenceHeartbeatAndExpiry(t *testing.T) {
	client, s := setupTestRedis(t)
	ctx := context.Background()
	presence := NewPresence(client, 30*time.Second)

	for _, user := range []string{"usr_b", "usr_a"} {
		if err := presence.Heartbeat(ctx, PresenceEntry{UserID: user, WorkspaceID: "ws_1"}); err != nil {
			t.Fatalf("Heartbeat failed: %v", err)
		}
	}
	if err := presence.Heartbeat(ctx, PresenceEntry{UserID: "usr_c", WorkspaceID: "ws_2"}); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	online, err := presence.Online(ctx, "ws_1")
	if err != nil {
		t.Fatalf("Online failed: %v", err)
	}
	if len(online) != 2 || online[0].UserID != "usr_a" || online[1].UserID != "usr_b" {
		t.Fatalf("unexpected presence: %+v", online)
	}

	s.FastForward(31 * time.Second)

	online, err = presence.Online(ctx, "ws_1")
	if err != nil {
		t.Fatalf("Online failed: %v", err)
	}
	if len(online) != 0 {
		t.Fatalf("expected presence to expire, got %+v", online)
	}
}

func TestNotifierPublish(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	notifier := NewNotifier(client)

	sub := client.Subscribe(ctx, notifier.Channel("brd_1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := notifier.Publish(ctx, Event{Type: "card.moved", BoardID: "brd_1", ActorID: "usr_a", TargetID: "crd_1"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Channel != "board:brd_1" {
			t.Fatalf("unexpected channel %q", msg.Channel)
		}
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.Type != "card.moved" || event.TargetID != "crd_1" || event.At.IsZero() {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestNotifierRequiresBoard(t *testing.T) {
	client, _ := setupTestRedis(t)
	if err := NewNotifier(client).Publish(context.Background(), Event{Type: "x"}); err == nil {
		t.Fatal("expected error without board id")
	}
}
