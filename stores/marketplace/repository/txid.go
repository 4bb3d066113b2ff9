package repository

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
	"github.com/nftmarket/goapi/service/query"
)

var timeNow = time.Now

type txCounter struct {
	Id    string `bson:"_id"`
	Value int64  `bson:"value"`
}

type txIdImpl struct {
	q query.Mongo
}

func NewTxId(q query.Mongo) marketplace.TxIdRepo {
	return &txIdImpl{q: q}
}

// Reserve allocates n consecutive transaction ids and returns the first one.
// The counter only moves forward, so ids handed out are never reused even
// when the caller abandons them.
func (im *txIdImpl) Reserve(c ctx.Ctx, n int64) (int64, error) {
	counter := txCounter{}
	if err := im.q.Increment(c, domain.TableTxCounter, bson.M{"_id": "marketplace"}, &counter, "value", n); err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"n":   n,
		}).Error("q.Increment failed")
		return 0, err
	}
	return counter.Value - n, nil
}
