package contract_states

import (
	"context"

	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/db"
	"github.com/thebeyondr/sekiva/modules/db/sekiva"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type contractStates struct {
	*db.Collection
}

func New(d *sekiva.SekivaDb) ContractStates {
	col := db.NewCollection(d.DbInstance, "contract_states").WithIndexes(mongo.IndexModel{
		Keys: bson.D{
			{Key: "address", Value: 1},
			{Key: "height", Value: -1},
		},
		Options: options.Index().SetUnique(true),
	})
	return &contractStates{col}
}

// Saving the same contract twice at one height keeps the later document
func (cs *contractStates) SaveState(record ContractStateRecord) error {
	filter := bson.M{
		"address": record.Address,
		"height":  record.Height,
	}
	opts := options.Replace().SetUpsert(true)
	_, err := cs.ReplaceOne(context.Background(), filter, record, opts)
	return err
}

func (cs *contractStates) GetLatest(address common.Address) (ContractStateRecord, error) {
	opts := options.FindOne().SetSort(bson.M{"height": -1})
	record := ContractStateRecord{}
	err := cs.FindOne(context.Background(), bson.M{"address": address}, opts).Decode(&record)
	if err != nil {
		return ContractStateRecord{}, err
	}
	return record, nil
}

func (cs *contractStates) History(address common.Address, limit int64) ([]ContractStateRecord, error) {
	ctx := context.Background()
	opts := options.Find().SetSort(bson.M{"height": -1}).SetLimit(limit)
	cur, err := cs.Find(ctx, bson.M{"address": address}, opts)
	if err != nil {
		return nil, err
	}
	records := make([]ContractStateRecord, 0)
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
