package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/i474232898/weather-etl/internal/logger"
	"github.com/i474232898/weather-etl/internal/weather"
)

const (
	indexUpdatedAt = "updated_at_1"
	indexCityDT    = "city_dt_unique"
)

// MongoStore is the staging collection in MongoDB.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectMongo opens a client for uri. It does not ping; callers check
// reachability with Ping so the failure can be reported as a connection error.
func ConnectMongo(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// NewMongoStore wraps an existing collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{
		client:     coll.Database().Client(),
		collection: coll,
	}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the updated_at cursor index and the unique (city, dt) index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetName(indexUpdatedAt),
		},
		{
			Keys:    bson.D{{Key: "city", Value: 1}, {Key: "dt", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexCityDT),
		},
	})
	if err != nil {
		return err
	}
	logger.Debugf("mongo indexes ensured collection=%s", s.collection.Name())
	return nil
}

// Upsert writes rec with a single atomic pipeline update keyed by _id.
func (s *MongoStore) Upsert(ctx context.Context, rec weather.WeatherRecord) (weather.WriteOp, error) {
	pipeline, err := upsertPipeline(rec)
	if err != nil {
		return weather.WriteNoop, err
	}

	res, err := s.collection.UpdateOne(
		ctx,
		bson.D{{Key: "_id", Value: rec.ID}},
		pipeline,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return weather.WriteNoop, err
	}

	switch {
	case res.UpsertedCount > 0:
		return weather.WriteInserted, nil
	case res.ModifiedCount > 0:
		return weather.WriteModified, nil
	default:
		return weather.WriteNoop, nil
	}
}

// Disconnect closes the client.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// upsertPipeline builds a $replaceWith update. The record is wrapped in
// $literal so string values starting with "$" are not read as field paths.
// ingested_at survives replacement, and updated_at becomes
// max(now, previous + 1ms) so the replication cursor strictly increases.
func upsertPipeline(rec weather.WeatherRecord) (mongo.Pipeline, error) {
	raw, err := bson.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %q: %w", rec.ID, err)
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode record %q: %w", rec.ID, err)
	}

	body := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if e.Key == "updated_at" || e.Key == "ingested_at" {
			continue
		}
		body = append(body, e)
	}

	now := rec.UpdatedAt.UTC()
	cursor := bson.D{
		{Key: "ingested_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$ingested_at", now}}}},
		{Key: "updated_at", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$gt", Value: bson.A{now, "$updated_at"}}},
			now,
			bson.D{{Key: "$add", Value: bson.A{"$updated_at", 1}}},
		}}}},
	}

	return mongo.Pipeline{
		{{Key: "$replaceWith", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{
			bson.D{{Key: "$literal", Value: body}},
			cursor,
		}}}}},
	}, nil
}
