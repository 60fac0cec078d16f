package sekiva

import (
	"context"

	a "github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/config"
	"github.com/thebeyondr/sekiva/modules/db"

	"go.mongodb.org/mongo-driver/bson"
)

type SekivaDb struct {
	*db.DbInstance
}

var _ a.Plugin = &SekivaDb{}

func New(d db.Db, dbConf *config.Config[db.DbConfig]) *SekivaDb {
	return &SekivaDb{db.NewDbInstance(d, dbConf)}
}

// Empties every collection; devnets start from a clean slate with it
func (db *SekivaDb) Nuke() error {
	ctx := context.Background()

	colsNames, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return err
	}

	for _, colName := range colsNames {
		_, err := db.Collection(colName).DeleteMany(ctx, bson.M{})
		if err != nil {
			return err
		}
	}

	return nil
}
