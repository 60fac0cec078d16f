package nonces

import (
	"context"

	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/db"
	"github.com/thebeyondr/sekiva/modules/db/sekiva"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type nonceDb struct {
	*db.Collection
}

func New(d *sekiva.SekivaDb) Nonces {
	col := db.NewCollection(d.DbInstance, "nonces").WithIndexes(mongo.IndexModel{
		Keys:    bson.D{{Key: "account", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &nonceDb{col}
}

// Next nonce the account has to use. mongo.ErrNoDocuments for new accounts.
func (n *nonceDb) GetNonce(account common.Address) (NonceRecord, error) {
	nonceRecord := NonceRecord{}
	err := n.FindOne(context.Background(), bson.M{"account": account}).Decode(&nonceRecord)
	if err != nil {
		return NonceRecord{}, err
	}
	return nonceRecord, nil
}

func (n *nonceDb) SetNonce(account common.Address, nonce uint64) error {
	opts := options.Update().SetUpsert(true)
	_, err := n.UpdateOne(context.Background(), bson.M{
		"account": account,
	}, bson.M{
		"$set": bson.M{
			"nonce": nonce,
		},
	}, opts)
	return err
}
