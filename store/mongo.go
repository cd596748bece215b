package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/davrot/uodm/pkg/metrics"
)

// MongoStore is the MongoDB-backed store. Documents live in one Mongo
// collection per registered schema, keyed by the NameField; the driver's _id
// is left to the server and stripped on load.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore wraps an already-connected client. Caller keeps ownership of
// the client until Close is called.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

func (m *MongoStore) EnsureNameIndex(ctx context.Context, collection string) error {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: NameField, Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := m.db.Collection(collection).Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("ensure name index on %s: %w", collection, err)
	}
	return nil
}

func (m *MongoStore) Load(ctx context.Context, collection, name string) (Fields, error) {
	metrics.StoreOps.WithLabelValues("load").Inc()
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{NameField: name}).Decode(&raw)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		metrics.StoreErrors.WithLabelValues("load").Inc()
		return nil, err
	}
	delete(raw, "_id")
	delete(raw, NameField)
	return Fields(raw), nil
}

func (m *MongoStore) Insert(ctx context.Context, collection, name string, fields Fields) error {
	metrics.StoreOps.WithLabelValues("insert").Inc()
	doc := make(bson.M, len(fields)+1)
	doc[NameField] = name
	for k, v := range fields {
		doc[k] = v
	}
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateName
		}
		metrics.StoreErrors.WithLabelValues("insert").Inc()
		return err
	}
	return nil
}

func (m *MongoStore) Update(ctx context.Context, collection, name, field string, value any) error {
	return m.set(ctx, collection, name, bson.M{field: value})
}

func (m *MongoStore) UpdateFields(ctx context.Context, collection, name string, fields Fields) error {
	set := make(bson.M, len(fields))
	for k, v := range fields {
		set[k] = v
	}
	return m.set(ctx, collection, name, set)
}

func (m *MongoStore) set(ctx context.Context, collection, name string, set bson.M) error {
	metrics.StoreOps.WithLabelValues("update").Inc()
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{NameField: name}, bson.M{"$set": set})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("update").Inc()
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) Find(ctx context.Context, collection string, filter Fields) ([]Record, error) {
	metrics.StoreOps.WithLabelValues("find").Inc()
	q := bson.M{}
	for k, v := range filter {
		q[k] = v
	}
	cur, err := m.db.Collection(collection).Find(ctx, q)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("find").Inc()
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Record{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		name, ok := raw[NameField].(string)
		if !ok {
			// Foreign document without a name key; not ours to map.
			continue
		}
		delete(raw, "_id")
		delete(raw, NameField)
		out = append(out, Record{Name: name, Fields: Fields(raw)})
	}
	return out, cur.Err()
}

func (m *MongoStore) Delete(ctx context.Context, collection, name string) error {
	metrics.StoreOps.WithLabelValues("delete").Inc()
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{NameField: name})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
