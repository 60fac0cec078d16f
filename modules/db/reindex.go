package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Bump whenever a stored document layout changes. Collections written under
// another version are emptied on start.
var SCHEMA_VERSION uint64 = 1

const METADATA_COLLECTION = "metadata"

type DbReindex struct {
	*DbInstance
}

type schemaMetadata struct {
	Id            string `bson:"_id"`
	SchemaVersion uint64 `bson:"schema_version"`
}

func (dbr *DbReindex) Init() error {
	ctx := context.Background()
	col := dbr.Collection(METADATA_COLLECTION)

	meta := schemaMetadata{}
	err := col.FindOne(ctx, bson.M{"_id": "schema"}).Decode(&meta)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	if err == nil && meta.SchemaVersion == SCHEMA_VERSION {
		return nil
	}

	cols, err := dbr.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return err
	}
	for _, name := range cols {
		if name == METADATA_COLLECTION {
			continue
		}
		if _, err := dbr.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("emptying %s: %w", name, err)
		}
	}

	_, err = col.UpdateOne(ctx, bson.M{"_id": "schema"}, bson.M{
		"$set": bson.M{"schema_version": SCHEMA_VERSION},
	}, options.Update().SetUpsert(true))
	return err
}

func NewReindex(db *DbInstance) *DbReindex {
	return &DbReindex{db}
}
