package store

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NewMongoAdapter connects to MongoDB. The URI path names the database,
// e.g. mongodb://localhost:27017/stress.
func NewMongoAdapter(ctx context.Context, uri string) (*DocumentAdapter, error) {
	dbName := mongoDatabaseName(uri)
	if dbName == "" {
		return nil, fmt.Errorf("%w: MongoDB URI must name a database in its path", ErrConnectionFailure)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to MongoDB: %w", ErrConnectionFailure, err)
	}

	// The ping command is cheap and does not require auth
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: failed to ping MongoDB: %w", ErrConnectionFailure, err)
	}

	return newDocumentAdapter(&mongoBackend{
		client: client,
		db:     client.Database(dbName),
	}), nil
}

// mongoDatabaseName extracts the database from a mongodb:// or
// mongodb+srv:// URI. Host lists may hold several comma separated hosts, so
// net/url is not used here.
func mongoDatabaseName(uri string) string {
	_, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return ""
	}
	_, path, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(path, "?")
	return name
}

type mongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

func (b *mongoBackend) name() string { return "mongodb" }

func (b *mongoBackend) listCollections(ctx context.Context) ([]string, error) {
	return b.db.ListCollectionNames(ctx, bson.D{})
}

func (b *mongoBackend) insertMany(ctx context.Context, collection string, docs [][]field) error {
	batch := make([]interface{}, len(docs))
	for i, doc := range docs {
		batch[i] = toBSON(doc)
	}
	_, err := b.db.Collection(collection).InsertMany(ctx, batch)
	return err
}

func (b *mongoBackend) sampleIDs(ctx context.Context, collection string, size int) ([]any, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cur, err := b.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID any `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]any, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (b *mongoBackend) updateByID(ctx context.Context, collection string, id any, set []field) error {
	res, err := b.db.Collection(collection).UpdateByID(ctx, id, bson.D{{Key: "$set", Value: toBSON(set)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrObjectNotFound
	}
	return nil
}

func (b *mongoBackend) deleteByID(ctx context.Context, collection string, id any) error {
	res, err := b.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrObjectNotFound
	}
	return nil
}

func (b *mongoBackend) drop(ctx context.Context, collection string) error {
	return b.db.Collection(collection).Drop(ctx)
}

func (b *mongoBackend) count(ctx context.Context, collection string) (int64, error) {
	return b.db.Collection(collection).CountDocuments(ctx, bson.D{})
}

func (b *mongoBackend) close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

func toBSON(fields []field) bson.D {
	d := make(bson.D, len(fields))
	for i, f := range fields {
		d[i] = bson.E{Key: f.Name, Value: f.Value}
	}
	return d
}
