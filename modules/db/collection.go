package db

import (
	"context"
	"fmt"

	a "github.com/thebeyondr/sekiva/modules/aggregate"

	"github.com/chebyrash/promise"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// A named collection of a DbInstance. The handle and the declared indexes
// are only available once Init ran, after the instance's own Init.
type Collection struct {
	*mongo.Collection

	db      *DbInstance
	name    string
	indexes []mongo.IndexModel
	opts    []*options.CollectionOptions
}

var _ a.Plugin = &Collection{}

func NewCollection(db *DbInstance, name string, opts ...*options.CollectionOptions) *Collection {
	return &Collection{
		db:   db,
		name: name,
		opts: opts,
	}
}

// Indexes created on Init. Creating an index that already exists with the
// same options is a no-op in mongo, so restarts are fine.
func (c *Collection) WithIndexes(models ...mongo.IndexModel) *Collection {
	c.indexes = append(c.indexes, models...)
	return c
}

func (c *Collection) Name() string {
	return c.name
}

// Init implements aggregate.Plugin.
func (c *Collection) Init() error {
	c.Collection = c.db.Collection(c.name, c.opts...)
	if len(c.indexes) == 0 {
		return nil
	}
	if _, err := c.Indexes().CreateMany(context.Background(), c.indexes); err != nil {
		return fmt.Errorf("indexing %s: %w", c.name, err)
	}
	return nil
}

// Start implements aggregate.Plugin.
func (c *Collection) Start() *promise.Promise[any] {
	return a.Resolved()
}

// Stop implements aggregate.Plugin.
func (c *Collection) Stop() error {
	return nil
}
