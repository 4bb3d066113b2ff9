package repository

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
	"github.com/nftmarket/goapi/service/query"
)

type activityImpl struct {
	q query.Mongo
}

func NewActivity(q query.Mongo) marketplace.ActivityRepo {
	return &activityImpl{q: q}
}

func (im *activityImpl) Insert(c ctx.Ctx, activity *marketplace.Activity) error {
	activity.Collection = activity.Collection.ToLower()
	activity.CreatedAt = timeNow()
	if err := im.q.Insert(c, domain.TableActivities, activity); err != nil {
		c.WithFields(log.Fields{
			"err":      err,
			"activity": activity,
		}).Error("q.Insert failed")
		return err
	}
	return nil
}

func (im *activityImpl) FindByListing(c ctx.Ctx, id marketplace.ListingId, offset, limit int32) ([]*marketplace.Activity, error) {
	q := bson.M{
		"collection": id.Collection.ToLower(),
		"tokenId":    id.TokenId,
	}
	res := []*marketplace.Activity{}
	if err := im.q.Search(c, domain.TableActivities, int(offset), int(limit), "-createdAt", q, &res); err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}
