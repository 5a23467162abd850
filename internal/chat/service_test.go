package chat

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/db"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	s, _ := newTestServiceDB(t)
	return s
}

func newTestServiceDB(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	ctx := context.Background()
	d, err := db.Open(ctx, filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.CreateSchema(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	svc := NewService(
		data.NewUsersStore(d.SQL()),
		data.NewChatsStore(d.SQL()),
		data.NewMessagesStore(d.SQL()),
	)
	return svc, d.SQL()
}

func mustLogin(t *testing.T, s *Service, phone, name string) Caller {
	t.Helper()

	c, err := s.Login(context.Background(), phone, name)
	if err != nil {
		t.Fatalf("login %s: %v", phone, err)
	}
	return c
}

func TestScenarioAliceAndBob(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := mustLogin(t, s, "555-0100", "Alice")
	bob := mustLogin(t, s, "555-0101", "Bob")
	if alice.UserID != 1 || bob.UserID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", alice.UserID, bob.UserID)
	}

	posted, err := s.PostMessage(ctx, alice, bob.UserID, "hi")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	msgs, err := s.GetMessages(ctx, alice, bob.UserID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Message != "hi" || msgs[0].SenderName != "Alice" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if msgs[0].ID != posted.ID || msgs[0].SenderID != posted.SenderID {
		t.Fatalf("posted message changed on read: %+v vs %+v", msgs[0], posted)
	}

	chats, err := s.ListChats(ctx, bob)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats))
	}
	if chats[0].ContactName != "Alice" || chats[0].LastMessage == nil || *chats[0].LastMessage != "hi" {
		t.Fatalf("unexpected chat summary: %+v", chats[0])
	}
}

func TestLoginSamePhoneSameID(t *testing.T) {
	s := newTestService(t)

	first := mustLogin(t, s, "555-0100", "Alice")
	second := mustLogin(t, s, " 555-0100 ", "Alicia")
	if first.UserID != second.UserID {
		t.Fatalf("ids differ: %d vs %d", first.UserID, second.UserID)
	}
	if second.Name != "Alicia" {
		t.Fatalf("session name = %q, want the name given at login", second.Name)
	}

	// The stored name is what contacts and messages show.
	bob := mustLogin(t, s, "555-0101", "Bob")
	contacts, err := s.ListContacts(context.Background(), bob)
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Name != "Alice" {
		t.Fatalf("unexpected contacts: %+v", contacts)
	}
}

func TestLoginValidation(t *testing.T) {
	s := newTestService(t)

	cases := []struct{ phone, name string }{
		{"", "Alice"},
		{"555-0100", ""},
		{"   ", "Alice"},
		{"555-0100", " \t "},
	}
	for _, c := range cases {
		_, err := s.Login(context.Background(), c.phone, c.name)
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Fatalf("Login(%q, %q) err = %v, want validation error", c.phone, c.name, err)
		}
	}
}

func TestOperationsRequireCaller(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	bob := mustLogin(t, s, "555-0101", "Bob")

	var nobody Caller
	if _, err := s.ListContacts(ctx, nobody); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("ListContacts: %v", err)
	}
	if _, err := s.ListChats(ctx, nobody); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("ListChats: %v", err)
	}
	if _, err := s.GetMessages(ctx, nobody, bob.UserID); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("GetMessages: %v", err)
	}
	if _, err := s.PostMessage(ctx, nobody, bob.UserID, "hi"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("PostMessage: %v", err)
	}
}

func TestPostMessageRejectsEmptyWithoutCreatingChat(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustLogin(t, s, "555-0100", "Alice")
	bob := mustLogin(t, s, "555-0101", "Bob")

	for _, text := range []string{"", "  "} {
		if _, err := s.PostMessage(ctx, alice, bob.UserID, text); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Fatalf("PostMessage(%q) err = %v, want validation error", text, err)
		}
	}

	chats, err := s.ListChats(ctx, alice)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 0 {
		t.Fatalf("empty message created a chat: %+v", chats)
	}
}

func TestGetMessagesCreatesChatOnDemand(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustLogin(t, s, "555-0100", "Alice")
	bob := mustLogin(t, s, "555-0101", "Bob")

	msgs, err := s.GetMessages(ctx, bob, alice.UserID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}

	chats, err := s.ListChats(ctx, alice)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 1 || chats[0].ContactID != bob.UserID || chats[0].LastMessage != nil || chats[0].LastMessageTime != nil {
		t.Fatalf("unexpected chats: %+v", chats)
	}
}

func TestCounterpartRules(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustLogin(t, s, "555-0100", "Alice")

	if _, err := s.GetMessages(ctx, alice, alice.UserID); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("self chat err = %v, want validation error", err)
	}
	if _, err := s.PostMessage(ctx, alice, 0, "hi"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("zero id err = %v, want validation error", err)
	}
}

func TestUnregisteredCounterpartGetsChat(t *testing.T) {
	s, sqlDB := newTestServiceDB(t)
	ctx := context.Background()
	alice := mustLogin(t, s, "555-0100", "Alice")

	msgs, err := s.GetMessages(ctx, alice, 999)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty history, got %+v", msgs)
	}

	var chats int
	if err := sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chats WHERE user1_id = ? AND user2_id = 999`, alice.UserID).Scan(&chats); err != nil {
		t.Fatalf("count chats: %v", err)
	}
	if chats != 1 {
		t.Fatalf("chat rows = %d, want 1", chats)
	}

	posted, err := s.PostMessage(ctx, alice, 999, "anyone there?")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if posted.SenderName != "Alice" {
		t.Fatalf("unexpected message: %+v", posted)
	}
	msgs, err = s.GetMessages(ctx, alice, 999)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("GetMessages after post: %d messages, err %v", len(msgs), err)
	}
}

func TestMessagesOrderedAcrossSenders(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustLogin(t, s, "555-0100", "Alice")
	bob := mustLogin(t, s, "555-0101", "Bob")

	texts := []string{"one", "two", "three", "four"}
	for i, text := range texts {
		from, to := alice, bob
		if i%2 == 1 {
			from, to = bob, alice
		}
		if _, err := s.PostMessage(ctx, from, to.UserID, text); err != nil {
			t.Fatalf("post %q: %v", text, err)
		}
	}

	msgs, err := s.GetMessages(ctx, bob, alice.UserID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(texts))
	}
	for i, m := range msgs {
		if m.Message != texts[i] {
			t.Fatalf("position %d = %q, want %q", i, m.Message, texts[i])
		}
		if i > 0 && m.CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("creation time decreased at %d", i)
		}
	}
}

type failingChats struct{}

func (failingChats) ResolveChat(context.Context, int64, int64) (int64, error) {
	return 0, errors.New("database is locked")
}

func (failingChats) ListChats(context.Context, int64) ([]data.ChatSummary, error) {
	return nil, errors.New("database is locked")
}

type stubUsers struct{}

func (stubUsers) FindOrCreateByPhone(_ context.Context, phone, name string) (*data.User, bool, error) {
	return &data.User{ID: 1, Phone: phone, Name: name}, false, nil
}

func (stubUsers) UserExists(context.Context, int64) (bool, error) { return true, nil }

func (stubUsers) ListContacts(context.Context, int64) ([]data.Contact, error) { return nil, nil }

func TestStorageFailuresAreInternal(t *testing.T) {
	s := NewService(stubUsers{}, failingChats{}, nil)
	ctx := context.Background()
	caller := Caller{UserID: 1}

	_, err := s.ListChats(ctx, caller)
	if apperr.CodeOf(err) != apperr.CodeInternal {
		t.Fatalf("ListChats code = %s, want INTERNAL", apperr.CodeOf(err))
	}
	if apperr.PublicMessage(err) != "internal error" {
		t.Fatalf("storage detail leaked: %q", apperr.PublicMessage(err))
	}

	_, err = s.PostMessage(ctx, caller, 2, "hi")
	if apperr.CodeOf(err) != apperr.CodeInternal {
		t.Fatalf("PostMessage code = %s, want INTERNAL", apperr.CodeOf(err))
	}
}
