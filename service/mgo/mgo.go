package mgo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config represents the MongoDB configuration.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

var (
	mongoOnce sync.Once
	mongoMgr  *Manager
)

type Manager struct {
	client *mongo.Client
	db     *mongo.Database
}

// Init connects once (singleton). Ping with a short deadline so a dead
// mongod fails fast at startup instead of on the first write.
func Init(cfg Config) error {
	var initErr error
	mongoOnce.Do(func() {
		if cfg.URI == "" {
			initErr = errors.New("mongo uri is required")
			return
		}
		opts := options.Client().ApplyURI(cfg.URI)
		if cfg.MaxPoolSize > 0 {
			opts.SetMaxPoolSize(cfg.MaxPoolSize)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cli, err := mongo.Connect(ctx, opts)
		if err != nil {
			initErr = errors.Wrap(err, "mongo connect")
			return
		}
		if err := cli.Ping(ctx, nil); err != nil {
			initErr = errors.Wrap(err, "mongo ping")
			return
		}
		mongoMgr = &Manager{client: cli, db: cli.Database(cfg.Database)}
	})
	return initErr
}

func GetDB() *mongo.Database {
	if mongoMgr == nil {
		panic("mongo not initialized, call mgo.Init first")
	}
	return mongoMgr.db
}

// Coll is shorthand for the named collection on the default database.
func Coll(name string) *mongo.Collection {
	return GetDB().Collection(name)
}

func Close() error {
	if mongoMgr != nil && mongoMgr.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return mongoMgr.client.Disconnect(ctx)
	}
	return nil
}
