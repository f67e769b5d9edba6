package db

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store is the read surface the catalog needs from the document store.
type Store interface {
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) (*mongo.Cursor, error)
	Find(ctx context.Context, collection string, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, collection string, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	CountDocuments(ctx context.Context, collection string, filter any) (int64, error)
	Distinct(ctx context.Context, collection, field string, filter any) ([]any, error)
}

// Mongo is a Store backed by one database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials uri and pings the primary, retrying while the server
// comes up.
func ConnectMongo(ctx context.Context, uri, database string, log logrus.FieldLogger) (*Mongo, error) {
	var client *mongo.Client
	err := retry.Do(
		func() error {
			c, err := mongo.Connect(ctx, options.Client().
				ApplyURI(uri).
				SetServerSelectionTimeout(5*time.Second).
				SetMaxPoolSize(50))
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := c.Ping(pingCtx, readpref.Primary()); err != nil {
				_ = c.Disconnect(context.Background())
				return err
			}
			client = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Warn("mongo not reachable, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) (*mongo.Cursor, error) {
	return m.db.Collection(collection).Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
}

func (m *Mongo) Find(ctx context.Context, collection string, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return m.db.Collection(collection).Find(ctx, filter, opts...)
}

func (m *Mongo) FindOne(ctx context.Context, collection string, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult {
	return m.db.Collection(collection).FindOne(ctx, filter, opts...)
}

func (m *Mongo) CountDocuments(ctx context.Context, collection string, filter any) (int64, error) {
	return m.db.Collection(collection).CountDocuments(ctx, filter)
}

func (m *Mongo) Distinct(ctx context.Context, collection, field string, filter any) ([]any, error) {
	return m.db.Collection(collection).Distinct(ctx, field, filter)
}
