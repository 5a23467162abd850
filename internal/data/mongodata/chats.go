package mongodata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ChatsStore resolves and lists chats in the chats collection.
type ChatsStore struct {
	coll     *mongo.Collection
	users    *mongo.Collection
	messages *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

// NewChatsStore returns a ChatsStore. users and messages are joined when
// listing chats.
func NewChatsStore(coll, users, messages, counters *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll, users: users, messages: messages, counters: counters, now: time.Now}
}

// FindChat returns the id of the chat between a and b, in either order.
func (c *ChatsStore) FindChat(ctx context.Context, a, b int64) (int64, error) {
	lo, hi := data.CanonicalPair(a, b)
	var chat data.Chat
	err := c.coll.FindOne(ctx, bson.M{"user1_id": lo, "user2_id": hi}).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, data.ErrNotFound
		}
		return 0, fmt.Errorf("find chat: %w", err)
	}
	return chat.ID, nil
}

// ResolveChat returns the chat between a and b, creating it on first contact.
func (c *ChatsStore) ResolveChat(ctx context.Context, a, b int64) (int64, error) {
	id, err := c.FindChat(ctx, a, b)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, data.ErrNotFound) {
		return 0, err
	}

	id, err = nextID(ctx, c.counters, "chats")
	if err != nil {
		return 0, err
	}
	lo, hi := data.CanonicalPair(a, b)
	chat := data.Chat{ID: id, User1ID: lo, User2ID: hi, CreatedAt: stamp(c.now)}
	if _, err := c.coll.InsertOne(ctx, chat); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// The unique (user1_id, user2_id) index rejected a racing insert.
			return c.FindChat(ctx, a, b)
		}
		return 0, fmt.Errorf("create chat: %w", err)
	}
	return id, nil
}

type chatRow struct {
	ID        int64 `bson:"_id"`
	ContactID int64 `bson:"contact_id"`
	Contact   struct {
		Name  string `bson:"name"`
		Phone string `bson:"phone"`
	} `bson:"contact"`
	Last *struct {
		Message   string    `bson:"message"`
		CreatedAt time.Time `bson:"created_at"`
	} `bson:"last,omitempty"`
}

// ListChats returns one summary per chat userID takes part in, most recent
// message first. Missing values sort lowest in MongoDB, so chats without
// messages land at the end of the descending sort.
func (c *ChatsStore) ListChats(ctx context.Context, userID int64) ([]data.ChatSummary, error) {
	cursor, err := c.coll.Aggregate(ctx, c.listChatsPipeline(userID))
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []chatRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	chats := make([]data.ChatSummary, 0, len(rows))
	for _, r := range rows {
		s := data.ChatSummary{
			ID:           r.ID,
			ContactID:    r.ContactID,
			ContactName:  r.Contact.Name,
			ContactPhone: r.Contact.Phone,
		}
		if r.Last != nil {
			text := r.Last.Message
			at := r.Last.CreatedAt.UTC()
			s.LastMessage = &text
			s.LastMessageTime = &at
		}
		chats = append(chats, s)
	}
	return chats, nil
}

// listChatsPipeline matches the caller's chats, joins the counterpart's user
// document and the newest message, and sorts by that message.
func (c *ChatsStore) listChatsPipeline(userID int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "user1_id", Value: userID}},
				bson.D{{Key: "user2_id", Value: userID}},
			}},
		}}},
		// The counterpart is whichever participant is not the caller.
		{{Key: "$addFields", Value: bson.D{
			{Key: "contact_id", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$user1_id", userID}}},
				"$user2_id",
				"$user1_id",
			}}}},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: c.users.Name()},
			{Key: "localField", Value: "contact_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "contact"},
		}}},
		{{Key: "$unwind", Value: "$contact"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: c.messages.Name()},
			{Key: "let", Value: bson.D{{Key: "cid", Value: "$_id"}}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
					{Key: "$eq", Value: bson.A{"$chat_id", "$$cid"}},
				}}}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
				bson.D{{Key: "$limit", Value: 1}},
			}},
			{Key: "as", Value: "last"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "last", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$last", 0}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}, {Key: "_id", Value: -1}}}},
	}
}
