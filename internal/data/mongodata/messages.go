package mongodata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MessagesStore appends and lists messages in the messages collection.
type MessagesStore struct {
	coll     *mongo.Collection
	users    *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

// NewMessagesStore returns a MessagesStore. users is read to attach sender
// names.
func NewMessagesStore(coll, users, counters *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll, users: users, counters: counters, now: time.Now}
}

// AppendMessage inserts a message document and returns the stored record.
func (m *MessagesStore) AppendMessage(ctx context.Context, chatID, senderID int64, text string) (*data.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, data.ErrEmptyMessage
	}

	var sender data.User
	if err := m.users.FindOne(ctx, bson.M{"_id": senderID}).Decode(&sender); err != nil {
		return nil, fmt.Errorf("load sender %d: %w", senderID, err)
	}

	id, err := nextID(ctx, m.counters, "messages")
	if err != nil {
		return nil, err
	}
	msg := &data.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Message:   text,
		Status:    data.StatusSent,
		CreatedAt: stamp(m.now),
	}
	// SenderName is omitempty and still blank here, so it is not stored.
	if _, err := m.coll.InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	msg.SenderName = sender.Name
	return msg, nil
}

// ListMessages returns every message of chatID oldest first, joined with the
// sender's name.
func (m *MessagesStore) ListMessages(ctx context.Context, chatID int64) ([]data.Message, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "chat_id", Value: chatID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: m.users.Name()},
			{Key: "localField", Value: "sender_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "sender"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "sender_name", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$sender.name", 0}}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "sender", Value: 0}}}},
	}

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []data.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i := range messages {
		messages[i].CreatedAt = messages[i].CreatedAt.UTC()
	}
	return messages, nil
}
