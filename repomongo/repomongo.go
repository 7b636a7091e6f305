package repomongo

import (
	"context"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	eventsCollection = "events"
	logsCollection   = "logs"
)

// DBConfig contains configuration for the mongo database.
type DBConfig struct {
	ConnStr      string `yaml:"conn_str"`      // ConnStr is the mongo connection uri.
	DatabaseName string `yaml:"database_name"` // DatabaseName is the name of the database.
}

// DataBase provides MongoDB access for the federation journal and the logs.
type DataBase struct {
	inner *mongo.Database
	seq   *atomic.Int64
}

// Connect creates new connection to the repository and returns pointer to the DataBase.
func Connect(ctx context.Context, cfg DBConfig) (*DataBase, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.ConnStr))
	if err != nil {
		return nil, err
	}

	ctxx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	if err := cli.Ping(ctxx, readpref.Primary()); err != nil {
		return nil, err
	}

	db := &DataBase{inner: cli.Database(cfg.DatabaseName), seq: &atomic.Int64{}}
	last, err := db.lastSeq(ctx)
	if err != nil {
		return nil, err
	}
	db.seq.Store(last)

	return db, nil
}

// RunMigration creates indexes of the journal collection.
func (db DataBase) RunMigration(ctx context.Context) error {
	_, err := db.inner.Collection(eventsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tx_id", Value: 1}}},
	})
	return err
}

// Disconnect disconnects user from database.
func (db DataBase) Disconnect(ctx context.Context) error {
	return db.inner.Client().Disconnect(ctx)
}
