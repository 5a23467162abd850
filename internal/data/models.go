package data

import (
	"errors"
	"time"
)

// StatusSent is the only message status this system assigns.
const StatusSent = "sent"

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyMessage is returned by AppendMessage for blank text; nothing is
	// written.
	ErrEmptyMessage = errors.New("message is required")
)

// User is a registered phone number and the name it first logged in with.
type User struct {
	ID        int64     `json:"id" bson:"_id"`
	Phone     string    `json:"phone" bson:"phone"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Chat is the conversation between one unordered pair of users, stored with
// User1ID < User2ID.
type Chat struct {
	ID        int64     `json:"id" bson:"_id"`
	User1ID   int64     `json:"user1_id" bson:"user1_id"`
	User2ID   int64     `json:"user2_id" bson:"user2_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Message is one text sent in a chat, joined with its sender's name.
type Message struct {
	ID         int64     `json:"id" bson:"_id"`
	ChatID     int64     `json:"chat_id" bson:"chat_id"`
	SenderID   int64     `json:"sender_id" bson:"sender_id"`
	SenderName string    `json:"sender_name" bson:"sender_name,omitempty"`
	Message    string    `json:"message" bson:"message"`
	Status     string    `json:"status" bson:"status"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Contact is another registered user as seen by the caller.
type Contact struct {
	ID    int64  `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
}

// ChatSummary is one entry of a user's chat list. LastMessage and
// LastMessageTime are nil until the chat has a message.
type ChatSummary struct {
	ID              int64      `json:"id"`
	ContactID       int64      `json:"contact_id"`
	ContactName     string     `json:"contact_name"`
	ContactPhone    string     `json:"contact_phone"`
	LastMessage     *string    `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time"`
}

// CanonicalPair orders two user ids so the smaller comes first. Every chat is
// stored and looked up under its canonical pair.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
