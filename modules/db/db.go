package db

import (
	"context"
	"time"

	a "github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/config"

	"github.com/chebyrash/promise"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CONNECT_TIMEOUT = 10 * time.Second

type Db interface {
	Database(name string, opts ...*options.DatabaseOptions) *mongo.Database
}

type db struct {
	conf *config.Config[DbConfig]
	*mongo.Client
}

var _ a.Plugin = &db{}
var _ Db = &db{}

func New(conf *config.Config[DbConfig]) *db {
	return &db{conf: conf}
}

// The driver connects lazily, so Init never blocks on the server
func (db *db) Init() error {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(db.conf.Get().DbURI))
	if err != nil {
		return err
	}
	db.Client = client
	return nil
}

// Resolves once the server answered a ping
func (db *db) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		ctx, cancel := context.WithTimeout(context.Background(), CONNECT_TIMEOUT)
		defer cancel()
		if err := db.Ping(ctx, nil); err != nil {
			reject(err)
			return
		}
		resolve(nil)
	})
}

func (db *db) Stop() error {
	if db.Client == nil {
		return nil
	}
	return db.Disconnect(context.Background())
}
