package event_log

import (
	"context"

	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/db"
	"github.com/thebeyondr/sekiva/modules/db/sekiva"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type eventLog struct {
	*db.Collection
}

func New(d *sekiva.SekivaDb) EventLog {
	col := db.NewCollection(d.DbInstance, "event_log").WithIndexes(
		mongo.IndexModel{Keys: bson.D{{Key: "contract", Value: 1}, {Key: "height", Value: 1}, {Key: "index", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "tx_id", Value: 1}}},
	)
	return &eventLog{col}
}

func (e *eventLog) Append(records ...EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = r
	}
	_, err := e.InsertMany(context.Background(), docs)
	return err
}

func (e *eventLog) find(filter bson.M, opts *options.FindOptions) ([]EventRecord, error) {
	ctx := context.Background()
	cur, err := e.Find(ctx, filter, opts.SetSort(bson.D{{Key: "height", Value: 1}, {Key: "index", Value: 1}}))
	if err != nil {
		return nil, err
	}
	records := make([]EventRecord, 0)
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (e *eventLog) ByContract(address common.Address, offset int64, limit int64) ([]EventRecord, error) {
	return e.find(bson.M{"contract": address}, options.Find().SetSkip(offset).SetLimit(limit))
}

func (e *eventLog) ByTransaction(txId string) ([]EventRecord, error) {
	return e.find(bson.M{"tx_id": txId}, options.Find())
}
