package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/repository/room"
)

type repo struct {
	collection *mongo.Collection
}

func NewRepo(db *mongo.Database) *repo {
	return &repo{
		collection: db.Collection("rooms"),
	}
}

// EnsureIndexes creates the index FindActive relies on.
func (r *repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "mode", Value: 1}, {Key: "is_active", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create rooms index: %w", err)
	}

	return nil
}

func (r *repo) FindOne(ctx context.Context, roomID string) (*domain.Room, error) {
	var rm domain.Room
	if err := r.collection.FindOne(ctx, bson.M{"_id": roomID}).Decode(&rm); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, room.ErrRoomNotFound
		}

		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return &rm, nil
}

func (r *repo) FindActive(ctx context.Context, mode domain.Mode) ([]*domain.Room, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"mode": mode, "is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to find active rooms: %w", err)
	}

	var rooms []*domain.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode active rooms: %w", err)
	}

	return rooms, nil
}

func (r *repo) Save(ctx context.Context, rm *domain.Room) error {
	funcName := "room.mongo.Save"
	expected := rm.Version

	next := *rm
	next.Version = expected + 1

	if expected == 0 {
		if _, err := r.collection.InsertOne(ctx, &next); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return room.ErrVersionConflict
			}

			return fmt.Errorf("failed to insert room: %w", err)
		}
	} else {
		res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rm.ID, "version": expected}, &next)
		if err != nil {
			return fmt.Errorf("failed to replace room: %w", err)
		}
		if res.MatchedCount == 0 {
			slog.DebugContext(ctx, funcName, "room_id", rm.ID, "version", expected, "error", room.ErrVersionConflict)
			return room.ErrVersionConflict
		}
	}

	rm.Version = next.Version
	return nil
}
