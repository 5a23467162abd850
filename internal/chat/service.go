// Package chat is the application core: login by phone, contact and chat
// listing, and reading or posting messages between two users. Every operation
// that acts for a user takes the caller explicitly; the package never looks at
// cookies, tokens or other ambient session state.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// Caller identifies the user an operation runs for. The transport layer
// builds it from a verified session; Name is the name given at login, which
// may differ from the stored one.
type Caller struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// UserStore is the subset of user storage the service needs.
type UserStore interface {
	FindOrCreateByPhone(ctx context.Context, phone, name string) (*data.User, bool, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	ListContacts(ctx context.Context, userID int64) ([]data.Contact, error)
}

// ChatStore resolves and lists chats.
type ChatStore interface {
	ResolveChat(ctx context.Context, a, b int64) (int64, error)
	ListChats(ctx context.Context, userID int64) ([]data.ChatSummary, error)
}

// MessageStore appends and lists messages.
type MessageStore interface {
	AppendMessage(ctx context.Context, chatID, senderID int64, text string) (*data.Message, error)
	ListMessages(ctx context.Context, chatID int64) ([]data.Message, error)
}

// Service implements the chat operations over the three stores.
type Service struct {
	users UserStore
	chats ChatStore
	msgs  MessageStore
}

// NewService returns a Service wired to the given stores.
func NewService(users UserStore, chats ChatStore, msgs MessageStore) *Service {
	return &Service{users: users, chats: chats, msgs: msgs}
}

var (
	_ UserStore    = (*data.UsersStore)(nil)
	_ ChatStore    = (*data.ChatsStore)(nil)
	_ MessageStore = (*data.MessagesStore)(nil)
)

// Login finds or registers the user owning phone. The returned Caller carries
// the name supplied now even when the stored name differs.
func (s *Service) Login(ctx context.Context, phone, name string) (Caller, error) {
	phone = normalize.Phone(phone)
	name = normalize.Name(name)
	if phone == "" || name == "" {
		return Caller{}, apperr.Invalid("Phone and name are required")
	}

	user, created, err := s.users.FindOrCreateByPhone(ctx, phone, name)
	if err != nil {
		return Caller{}, internal("login", err)
	}
	if created {
		log.Printf("registered user %d", user.ID)
	}
	return Caller{UserID: user.ID, Name: name, Phone: user.Phone}, nil
}

// ListContacts returns every other registered user, ordered by name.
func (s *Service) ListContacts(ctx context.Context, caller Caller) ([]data.Contact, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	contacts, err := s.users.ListContacts(ctx, caller.UserID)
	if err != nil {
		return nil, internal("list contacts", err)
	}
	return contacts, nil
}

// ListChats returns the caller's chats, most recently active first.
func (s *Service) ListChats(ctx context.Context, caller Caller) ([]data.ChatSummary, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	chats, err := s.chats.ListChats(ctx, caller.UserID)
	if err != nil {
		return nil, internal("list chats", err)
	}
	return chats, nil
}

// GetMessages returns the conversation with counterpartID, creating the chat
// if the two users have never talked.
func (s *Service) GetMessages(ctx context.Context, caller Caller, counterpartID int64) ([]data.Message, error) {
	chatID, err := s.resolveChat(ctx, caller, counterpartID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.msgs.ListMessages(ctx, chatID)
	if err != nil {
		return nil, internal("list messages", err)
	}
	return msgs, nil
}

// PostMessage sends text to counterpartID and returns the stored message.
// Blank text is rejected before any chat is created.
func (s *Service) PostMessage(ctx context.Context, caller Caller, counterpartID int64, text string) (*data.Message, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Invalid("Message is required")
	}

	chatID, err := s.resolveChat(ctx, caller, counterpartID)
	if err != nil {
		return nil, err
	}
	msg, err := s.msgs.AppendMessage(ctx, chatID, caller.UserID, text)
	if err != nil {
		if errors.Is(err, data.ErrEmptyMessage) {
			return nil, apperr.Invalid("Message is required")
		}
		return nil, internal("post message", err)
	}
	return msg, nil
}

// resolveChat checks the counterpart and maps the pair to its chat, creating
// the chat on first contact. An unregistered counterpart still gets a chat.
func (s *Service) resolveChat(ctx context.Context, caller Caller, counterpartID int64) (int64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	if counterpartID <= 0 {
		return 0, apperr.Invalid("invalid contact id")
	}
	if counterpartID == caller.UserID {
		return 0, apperr.Invalid("cannot chat with yourself")
	}

	ok, err := s.users.UserExists(ctx, counterpartID)
	if err != nil {
		return 0, internal("check contact", err)
	}
	if !ok {
		log.Printf("user %d opened a chat with unregistered user %d", caller.UserID, counterpartID)
	}

	chatID, err := s.chats.ResolveChat(ctx, caller.UserID, counterpartID)
	if err != nil {
		return 0, internal("resolve chat", err)
	}
	return chatID, nil
}

func requireCaller(caller Caller) error {
	if caller.UserID <= 0 {
		return apperr.ErrUnauthenticated
	}
	return nil
}

func internal(op string, err error) error {
	log.Printf("%s failed: %v", op, err)
	return apperr.Wrap(apperr.CodeInternal, op, err)
}
