package mongodata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/data"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs user operations on the users collection.
type UsersStore struct {
	coll     *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

// NewUsersStore returns a UsersStore using the given collections.
func NewUsersStore(coll, counters *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll, counters: counters, now: time.Now}
}

// FindOrCreateByPhone returns the user registered under phone, inserting it
// with name when the phone is new.
func (u *UsersStore) FindOrCreateByPhone(ctx context.Context, phone, name string) (*data.User, bool, error) {
	user, err := u.findOne(ctx, bson.M{"phone": phone})
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, data.ErrNotFound) {
		return nil, false, err
	}

	id, err := nextID(ctx, u.counters, "users")
	if err != nil {
		return nil, false, err
	}
	user = &data.User{ID: id, Phone: phone, Name: name, CreatedAt: stamp(u.now)}
	if _, err := u.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Concurrent first login with the same phone won.
			user, err = u.findOne(ctx, bson.M{"phone": phone})
			return user, false, err
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

// GetUserByID finds a user by id.
func (u *UsersStore) GetUserByID(ctx context.Context, id int64) (*data.User, error) {
	return u.findOne(ctx, bson.M{"_id": id})
}

func (u *UsersStore) findOne(ctx context.Context, filter bson.M) (*data.User, error) {
	var user data.User
	if err := u.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, data.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UserExists checks if a user with id exists.
func (u *UsersStore) UserExists(ctx context.Context, id int64) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return count > 0, nil
}

// ListContacts returns every user except userID, ordered by name.
func (u *UsersStore) ListContacts(ctx context.Context, userID int64) ([]data.Contact, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"name": 1, "phone": 1})

	cursor, err := u.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer cursor.Close(ctx)

	contacts := []data.Contact{}
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}
