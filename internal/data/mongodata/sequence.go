// Package mongodata implements the user, chat and message stores on MongoDB.
// Documents use int64 _id values handed out by a counters collection so ids
// stay monotonically increasing like the SQLite backend.
package mongodata

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// nextID atomically increments and returns the counter named seq.
func nextID(ctx context.Context, counters *mongo.Collection, seq string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	err := counters.FindOneAndUpdate(ctx,
		bson.M{"_id": seq},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", seq, err)
	}
	return doc.Seq, nil
}

// Mongo dates have millisecond precision; truncate up front so returned
// records match what a later read decodes.
func stamp(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Millisecond)
}
