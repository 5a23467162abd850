package data

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAppendAndListMessages(t *testing.T) {
	sqlDB := newTestDB(t)
	users := NewUsersStore(sqlDB)
	chats := NewChatsStore(sqlDB)
	msgs := NewMessagesStore(sqlDB)
	ctx := context.Background()

	alice := mustUser(t, users, "555-0100", "Alice")
	bob := mustUser(t, users, "555-0101", "Bob")
	chatID, err := chats.ResolveChat(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("ResolveChat: %v", err)
	}

	empty, err := msgs.ListMessages(ctx, chatID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}

	sent, err := msgs.AppendMessage(ctx, chatID, alice.ID, "hi bob")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if sent.ID == 0 || sent.ChatID != chatID || sent.SenderID != alice.ID {
		t.Fatalf("unexpected record: %+v", sent)
	}
	if sent.SenderName != "Alice" || sent.Status != StatusSent || sent.CreatedAt.IsZero() {
		t.Fatalf("record missing sender name, status or time: %+v", sent)
	}

	if _, err := msgs.AppendMessage(ctx, chatID, bob.ID, "hello alice"); err != nil {
		t.Fatalf("AppendMessage 2: %v", err)
	}

	history, err := msgs.ListMessages(ctx, chatID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0] != *sent {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", history[0], *sent)
	}
	if history[1].SenderName != "Bob" || history[1].Message != "hello alice" {
		t.Fatalf("unexpected second message: %+v", history[1])
	}
}

func TestAppendMessageRejectsEmpty(t *testing.T) {
	sqlDB := newTestDB(t)
	users := NewUsersStore(sqlDB)
	chats := NewChatsStore(sqlDB)
	msgs := NewMessagesStore(sqlDB)
	ctx := context.Background()

	alice := mustUser(t, users, "555-0100", "Alice")
	bob := mustUser(t, users, "555-0101", "Bob")
	chatID, err := chats.ResolveChat(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("ResolveChat: %v", err)
	}

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := msgs.AppendMessage(ctx, chatID, alice.ID, text); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("AppendMessage(%q) err = %v, want ErrEmptyMessage", text, err)
		}
	}

	var count int
	if err := sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no inserts, got %d rows", count)
	}
}

func TestListMessagesOrder(t *testing.T) {
	sqlDB := newTestDB(t)
	users := NewUsersStore(sqlDB)
	chats := NewChatsStore(sqlDB)
	msgs := NewMessagesStore(sqlDB)
	ctx := context.Background()

	alice := mustUser(t, users, "555-0100", "Alice")
	bob := mustUser(t, users, "555-0101", "Bob")
	chatID, err := chats.ResolveChat(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("ResolveChat: %v", err)
	}

	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	// Same millisecond twice, then one earlier: order is by time, then id.
	stamps := []time.Time{base, base, base.Add(-time.Second)}
	texts := []string{"first", "second", "earliest"}
	for i := range stamps {
		at := stamps[i]
		msgs.now = func() time.Time { return at }
		if _, err := msgs.AppendMessage(ctx, chatID, alice.ID, texts[i]); err != nil {
			t.Fatalf("append %q: %v", texts[i], err)
		}
	}

	history, err := msgs.ListMessages(ctx, chatID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	want := []string{"earliest", "first", "second"}
	for i, m := range history {
		if m.Message != want[i] {
			t.Fatalf("position %d = %q, want %q", i, m.Message, want[i])
		}
		if i > 0 && m.CreatedAt.Before(history[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d", i)
		}
	}
}

func TestListMessagesScopedToChat(t *testing.T) {
	sqlDB := newTestDB(t)
	users := NewUsersStore(sqlDB)
	chats := NewChatsStore(sqlDB)
	msgs := NewMessagesStore(sqlDB)
	ctx := context.Background()

	alice := mustUser(t, users, "555-0100", "Alice")
	bob := mustUser(t, users, "555-0101", "Bob")
	carol := mustUser(t, users, "555-0102", "Carol")
	ab, _ := chats.ResolveChat(ctx, alice.ID, bob.ID)
	ac, _ := chats.ResolveChat(ctx, alice.ID, carol.ID)

	if _, err := msgs.AppendMessage(ctx, ab, alice.ID, "to bob"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := msgs.AppendMessage(ctx, ac, alice.ID, "to carol"); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := msgs.ListMessages(ctx, ab)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(history) != 1 || history[0].Message != "to bob" {
		t.Fatalf("unexpected history: %+v", history)
	}
}
