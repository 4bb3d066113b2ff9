package repository

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
	"github.com/nftmarket/goapi/service/cache"
	compoundcache "github.com/nftmarket/goapi/service/cache/compoundCache"
	"github.com/nftmarket/goapi/service/cache/provider/primitive"
	redisCache "github.com/nftmarket/goapi/service/cache/provider/redis"
	"github.com/nftmarket/goapi/service/query"
	"github.com/nftmarket/goapi/service/redis"
)

type listingImpl struct {
	q            query.Mongo
	listingCache cache.Service
}

func NewListing(q query.Mongo, redisService redis.Service) marketplace.Repo {
	cacheServices := []cache.Service{
		cache.New(cache.ServiceConfig{
			Ttl:   10 * time.Second,
			Pfx:   "listing",
			Cache: primitive.NewPrimitive("listing", 64),
		}),
	}

	if redisService != nil {
		cacheServices = append(cacheServices, cache.New(cache.ServiceConfig{
			Ttl:   10 * time.Minute,
			Pfx:   "listing",
			Cache: redisCache.NewRedis(redisService),
		}))
	}

	return &listingImpl{
		q:            q,
		listingCache: compoundcache.NewCompoundCache(cacheServices),
	}
}

func cacheKey(id marketplace.ListingId) string {
	return fmt.Sprintf("%s:%s", id.Collection.ToLower(), id.TokenId)
}

func idSelector(id marketplace.ListingId) bson.M {
	return bson.M{
		"collection": id.Collection.ToLower(),
		"tokenId":    id.TokenId,
	}
}

func (im *listingImpl) FindOne(c ctx.Ctx, id marketplace.ListingId) (*marketplace.Listing, error) {
	res := &marketplace.Listing{}
	if err := im.listingCache.GetByFunc(c, cacheKey(id), res, func() (interface{}, error) {
		return im.fetch(c, id)
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// FindOneFresh skips the cache tiers entirely. Saga slot holders read through
// this so they never act on a snapshot older than the claim.
func (im *listingImpl) FindOneFresh(c ctx.Ctx, id marketplace.ListingId) (*marketplace.Listing, error) {
	return im.fetch(c, id)
}

func (im *listingImpl) fetch(c ctx.Ctx, id marketplace.ListingId) (*marketplace.Listing, error) {
	listing := &marketplace.Listing{}
	if err := im.q.FindOne(c, domain.TableListings, idSelector(id), listing); err == query.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.FindOne failed")
		return nil, err
	}
	return listing, nil
}

func (im *listingImpl) FindAll(c ctx.Ctx, opts ...marketplace.FindAllOptionsFunc) ([]*marketplace.Listing, error) {
	options, err := marketplace.GetFindAllOptions(opts...)
	if err != nil {
		return nil, err
	}

	q := bson.M{}
	if options.Owner != nil {
		q["owner"] = *options.Owner
	}
	if options.Collection != nil {
		q["collection"] = *options.Collection
	}
	if options.OnSale != nil {
		q["price"] = bson.M{"$exists": *options.OnSale}
	}
	if options.HasAuction != nil {
		q["auction"] = bson.M{"$exists": *options.HasAuction}
	}

	offset := 0
	limit := 0
	if options.Offset != nil {
		offset = int(*options.Offset)
	}
	if options.Limit != nil {
		limit = int(*options.Limit)
	}

	res := []*marketplace.Listing{}
	if err := im.q.Search(c, domain.TableListings, offset, limit, "_id", q, &res); err != nil {
		c.WithFields(log.Fields{
			"err":   err,
			"query": q,
		}).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (im *listingImpl) Create(c ctx.Ctx, listing *marketplace.Listing) error {
	listing.Collection = listing.Collection.ToLower()
	listing.Owner = listing.Owner.ToLower()
	now := timeNow()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if listing.Offers == nil {
		listing.Offers = []marketplace.Offer{}
	}

	if err := im.q.Insert(c, domain.TableListings, listing); err != nil {
		c.WithFields(log.Fields{
			"err":     err,
			"listing": listing,
		}).Error("q.Insert failed")
		return err
	}
	im.invalidate(c, listing.ToId())
	return nil
}

func (im *listingImpl) SetSaleInfo(c ctx.Ctx, id marketplace.ListingId, currency *domain.Address, price *string) error {
	set := bson.M{"updatedAt": timeNow()}
	unset := bson.M{}
	if currency != nil {
		set["currency"] = currency.ToLower()
	} else {
		unset["currency"] = ""
	}
	if price != nil {
		set["price"] = *price
	} else {
		unset["price"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	if err := im.q.CustomPatch(c, domain.TableListings, idSelector(id), update, false); err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.CustomPatch failed")
		return err
	}
	im.invalidate(c, id)
	return nil
}

func (im *listingImpl) SetOwner(c ctx.Ctx, id marketplace.ListingId, owner domain.Address) error {
	update := bson.M{"$set": bson.M{"owner": owner.ToLower(), "updatedAt": timeNow()}}
	if err := im.q.CustomPatch(c, domain.TableListings, idSelector(id), update, false); err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.CustomPatch failed")
		return err
	}
	im.invalidate(c, id)
	return nil
}

// BeginTx claims the saga slot only when it is vacant; the conditional update
// is the single-slot advisory lock of the listing.
func (im *listingImpl) BeginTx(c ctx.Ctx, id marketplace.ListingId, tx *marketplace.PendingTx) (bool, *marketplace.PendingTx, error) {
	selector := idSelector(id)
	selector["pendingTx"] = bson.M{"$exists": false}
	update := bson.M{"$set": bson.M{"pendingTx": tx, "updatedAt": timeNow()}}

	err := im.q.CustomPatch(c, domain.TableListings, selector, update, false)
	if err == nil {
		im.invalidate(c, id)
		return true, tx, nil
	}
	if err != query.ErrNotFound {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.CustomPatch failed")
		return false, nil, err
	}

	// slot taken or listing missing; report what is stored
	listing := &marketplace.Listing{}
	if err := im.q.FindOne(c, domain.TableListings, idSelector(id), listing); err == query.ErrNotFound {
		return false, nil, domain.ErrNotFound
	} else if err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.FindOne failed")
		return false, nil, err
	}
	if listing.PendingTx == nil {
		// raced with a concurrent completion; the caller retries
		return false, nil, domain.ErrWrongTransaction
	}
	return false, listing.PendingTx, nil
}

func (im *listingImpl) ClearTx(c ctx.Ctx, id marketplace.ListingId) error {
	update := bson.M{
		"$unset": bson.M{"pendingTx": ""},
		"$set":   bson.M{"updatedAt": timeNow()},
	}
	if err := im.q.CustomPatch(c, domain.TableListings, idSelector(id), update, false); err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.CustomPatch failed")
		return err
	}
	im.invalidate(c, id)
	return nil
}

func (im *listingImpl) SetAuction(c ctx.Ctx, id marketplace.ListingId, auction *marketplace.Auction) error {
	var update bson.M
	if auction != nil {
		update = bson.M{"$set": bson.M{"auction": auction, "updatedAt": timeNow()}}
	} else {
		update = bson.M{
			"$unset": bson.M{"auction": ""},
			"$set":   bson.M{"updatedAt": timeNow()},
		}
	}
	if err := im.q.CustomPatch(c, domain.TableListings, idSelector(id), update, false); err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.CustomPatch failed")
		return err
	}
	im.invalidate(c, id)
	return nil
}

func (im *listingImpl) CompleteSale(c ctx.Ctx, id marketplace.ListingId, newOwner domain.Address) error {
	update := bson.M{
		"$set":   bson.M{"owner": newOwner.ToLower(), "updatedAt": timeNow()},
		"$unset": bson.M{"price": "", "auction": "", "pendingTx": ""},
	}
	if err := im.q.CustomPatch(c, domain.TableListings, idSelector(id), update, false); err != nil {
		c.WithFields(log.Fields{
			"err":      err,
			"id":       id,
			"newOwner": newOwner,
		}).Error("q.CustomPatch failed")
		return err
	}
	im.invalidate(c, id)
	return nil
}

func (im *listingImpl) AddOffer(c ctx.Ctx, id marketplace.ListingId, offer marketplace.Offer) error {
	offer.Offerer = offer.Offerer.ToLower()
	if offer.Currency != nil {
		offer.Currency = offer.Currency.ToLowerPtr()
	}
	update := bson.M{
		"$push": bson.M{"offers": offer},
		"$set":  bson.M{"updatedAt": timeNow()},
	}
	if err := im.q.CustomPatch(c, domain.TableListings, idSelector(id), update, false); err != nil {
		c.WithFields(log.Fields{
			"err":   err,
			"id":    id,
			"offer": offer,
		}).Error("q.CustomPatch failed")
		return err
	}
	im.invalidate(c, id)
	return nil
}

func (im *listingImpl) RemoveOffer(c ctx.Ctx, id marketplace.ListingId, currency *domain.Address, price string) error {
	key := bson.M{"price": price}
	if currency != nil {
		key["currency"] = currency.ToLower()
	} else {
		key["currency"] = bson.M{"$exists": false}
	}
	update := bson.M{
		"$pull": bson.M{"offers": key},
		"$set":  bson.M{"updatedAt": timeNow()},
	}
	if err := im.q.CustomPatch(c, domain.TableListings, idSelector(id), update, false); err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("q.CustomPatch failed")
		return err
	}
	im.invalidate(c, id)
	return nil
}

func (im *listingImpl) AddAllowedContract(c ctx.Ctx, kind domain.ContractKind, contract domain.Address) error {
	selector := bson.M{"kind": kind, "contract": contract.ToLower()}
	if err := im.q.Upsert(c, domain.TableAllowedContracts, selector, selector); err != nil {
		c.WithFields(log.Fields{
			"err":      err,
			"kind":     kind,
			"contract": contract,
		}).Error("q.Upsert failed")
		return err
	}
	return nil
}

func (im *listingImpl) IsAllowedContract(c ctx.Ctx, kind domain.ContractKind, contract domain.Address) (bool, error) {
	selector := bson.M{"kind": kind, "contract": contract.ToLower()}
	res := bson.M{}
	if err := im.q.FindOne(c, domain.TableAllowedContracts, selector, &res); err == query.ErrNotFound {
		return false, nil
	} else if err != nil {
		c.WithFields(log.Fields{
			"err":      err,
			"kind":     kind,
			"contract": contract,
		}).Error("q.FindOne failed")
		return false, err
	}
	return true, nil
}

func (im *listingImpl) invalidate(c ctx.Ctx, id marketplace.ListingId) {
	if err := im.listingCache.Del(c, cacheKey(id)); err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Warn("listingCache.Del failed")
	}
}
