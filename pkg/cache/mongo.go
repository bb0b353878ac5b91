package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStorage persists entries as documents in one collection.
// Documents carry an expires_at field; a TTL index lets the server reap
// them, and reads still check expiry because the reaper runs lazily.
type MongoStorage struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

type mongoDoc struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	ExpiresAt time.Time `bson:"expires_at,omitempty"`
}

// NewMongoStorage connects to uri and uses database/collection.
func NewMongoStorage(ctx context.Context, uri, database, collection string) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &MongoStorage{client: client, coll: client.Database(database).Collection(collection), owned: true}
	if err := s.ensureIndex(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// NewMongoStorageWithCollection wraps an existing collection. Close does not
// disconnect the client.
func NewMongoStorageWithCollection(coll *mongo.Collection) *MongoStorage {
	return &MongoStorage{coll: coll}
}

func (m *MongoStorage) ensureIndex(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("create ttl index: %w", err)
	}
	return nil
}

func (m *MongoStorage) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *MongoStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc mongoDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if e := (entry{ExpiresAt: doc.ExpiresAt}); e.expired(time.Now()) {
		_, _ = m.coll.DeleteOne(ctx, bson.M{"_id": key})
		return nil, false, nil
	}
	return doc.Data, true, nil
}

func (m *MongoStorage) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	doc := mongoDoc{Key: key, Data: data, ExpiresAt: expiry(ttl)}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoStorage) Remove(ctx context.Context, key string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *MongoStorage) Clear(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{})
	return err
}

func (m *MongoStorage) Close() error {
	if !m.owned || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var (
	_ Storage = (*MongoStorage)(nil)
	_ Clearer = (*MongoStorage)(nil)
)
