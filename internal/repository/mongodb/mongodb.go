// Package mongodb implements the repositories on MongoDB. Documents use string
// uuids as _id so ids look the same whichever backend issued them.
package mongodb

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/repository"
)

func NewSet(m *database.MongoDB) repository.Set {
	return repository.Set{
		Profiles:      NewProfileRepository(m.DB),
		Messages:      NewMessageRepository(m.DB),
		Groups:        NewGroupRepository(m.DB),
		GroupMessages: NewGroupMessageRepository(m.DB),
	}
}

// literalRegex matches query anywhere in a field, ignoring case and treating
// regex metacharacters as plain text.
func literalRegex(query string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
}

// distinctValues runs a grouped scan and returns the distinct values of field.
func distinctValues(ctx context.Context, coll *mongo.Collection, match bson.M, field string) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$" + field}}}},
	}

	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", field, err)
	}

	var groups []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", field, err)
	}

	values := make([]string, 0, len(groups))
	for _, g := range groups {
		values = append(values, g.ID)
	}
	return values, nil
}
