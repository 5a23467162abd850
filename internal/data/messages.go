package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessagesStore appends and lists chat messages.
type MessagesStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewMessagesStore returns a MessagesStore using the provided handle.
func NewMessagesStore(db *sql.DB) *MessagesStore {
	return &MessagesStore{db: db, now: time.Now}
}

const selectMessage = `
	SELECT m.id, m.chat_id, m.sender_id, u.name, m.message, m.status, m.created_at
	  FROM messages m
	  JOIN users u ON u.id = m.sender_id`

// AppendMessage stores text as a new message from senderID in chatID and
// returns the stored record, sender name included.
func (m *MessagesStore) AppendMessage(ctx context.Context, chatID, senderID int64, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	res, err := m.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, message, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		chatID, senderID, text, StatusSent, toMillis(m.now()))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	msg, err := scanMessage(m.db.QueryRowContext(ctx, selectMessage+` WHERE m.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("read inserted message %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read inserted message %d: %w", id, err)
	}
	return msg, nil
}

// ListMessages returns every message of chatID oldest first.
func (m *MessagesStore) ListMessages(ctx context.Context, chatID int64) ([]Message, error) {
	rows, err := m.db.QueryContext(ctx,
		selectMessage+` WHERE m.chat_id = ? ORDER BY m.created_at, m.id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		msg       Message
		createdAt int64
	)
	if err := row.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.SenderName, &msg.Message, &msg.Status, &createdAt); err != nil {
		return nil, err
	}
	msg.CreatedAt = fromMillis(createdAt)
	return &msg, nil
}
