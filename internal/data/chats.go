package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ChatsStore resolves chats between user pairs and lists a user's chats.
type ChatsStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewChatsStore returns a ChatsStore using the provided handle.
func NewChatsStore(db *sql.DB) *ChatsStore {
	return &ChatsStore{db: db, now: time.Now}
}

// FindChat returns the id of the chat between a and b, in either order.
func (c *ChatsStore) FindChat(ctx context.Context, a, b int64) (int64, error) {
	lo, hi := CanonicalPair(a, b)
	var id int64
	err := c.db.QueryRowContext(ctx,
		`SELECT id FROM chats WHERE user1_id = ? AND user2_id = ?`, lo, hi).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("find chat: %w", err)
	}
	return id, nil
}

// ResolveChat returns the chat between a and b, creating it on first contact.
// ResolveChat(a, b) and ResolveChat(b, a) always return the same id.
func (c *ChatsStore) ResolveChat(ctx context.Context, a, b int64) (int64, error) {
	id, err := c.FindChat(ctx, a, b)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	lo, hi := CanonicalPair(a, b)
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO chats (user1_id, user2_id, created_at) VALUES (?, ?, ?)`,
		lo, hi, toMillis(c.now()))
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent first contact inserted the pair; use its row.
			return c.FindChat(ctx, a, b)
		}
		return 0, fmt.Errorf("create chat: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create chat: %w", err)
	}
	return id, nil
}

// ListChats returns one summary per chat userID takes part in, most recent
// message first. Chats without messages come last.
func (c *ChatsStore) ListChats(ctx context.Context, userID int64) ([]ChatSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT c.id,
		       u.id,
		       u.name,
		       u.phone,
		       (SELECT m.message FROM messages m WHERE m.chat_id = c.id
		         ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message,
		       (SELECT m.created_at FROM messages m WHERE m.chat_id = c.id
		         ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message_time
		  FROM chats c
		  JOIN users u ON u.id = CASE WHEN c.user1_id = ? THEN c.user2_id ELSE c.user1_id END
		 WHERE c.user1_id = ? OR c.user2_id = ?
		 ORDER BY last_message_time IS NULL, last_message_time DESC, c.id DESC`,
		userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := []ChatSummary{}
	for rows.Next() {
		var (
			s        ChatSummary
			lastText sql.NullString
			lastTime sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.ContactID, &s.ContactName, &s.ContactPhone, &lastText, &lastTime); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		if lastText.Valid {
			text := lastText.String
			s.LastMessage = &text
		}
		if lastTime.Valid {
			at := fromMillis(lastTime.Int64)
			s.LastMessageTime = &at
		}
		chats = append(chats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}
