package db

import (
	a "github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/config"

	"github.com/chebyrash/promise"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DbInstance struct {
	*mongo.Database

	db   Db
	conf *config.Config[DbConfig]
	opts []*options.DatabaseOptions
}

var _ a.Plugin = &DbInstance{}

func NewDbInstance(db Db, conf *config.Config[DbConfig], opts ...*options.DatabaseOptions) *DbInstance {
	return &DbInstance{db: db, conf: conf, opts: opts}
}

// Init implements aggregate.Plugin. The database handle needs the client,
// which only exists after the db plugin ran Init.
func (d *DbInstance) Init() error {
	d.Database = d.db.Database(d.conf.Get().DbName, d.opts...)
	return nil
}

// Start implements aggregate.Plugin.
func (d *DbInstance) Start() *promise.Promise[any] {
	return a.Resolved()
}

// Stop implements aggregate.Plugin.
func (d *DbInstance) Stop() error {
	return nil
}
