package usecase

import (
	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
)

// Fixed-price purchase. The external steps run under one reserved id block:
//
//	base+0                 asset into market custody
//	base+1                 price from buyer into custody (currency listings)
//	base+2 .. base+n+1     one leg per payee
//	base+n+2               asset released to the buyer
//	base+n+3               asset returned to the seller on rollback
//
// Failures before the disbursement clear the slot and roll the asset back;
// once the market holds both sides the only way forward is resumption, so
// later failures keep the slot and report domain.ErrRerunTransaction.
func (im *impl) Buy(c ctx.Ctx, caller domain.Address, id marketplace.ListingId, value string) (*marketplace.ItemSold, error) {
	listing, err := im.listingRepo.FindOne(c, id)
	if err == domain.ErrNotFound {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	if listing.Auction != nil {
		return nil, domain.ErrAuctionActive
	}
	if listing.Price == nil {
		return nil, domain.ErrNotOnSale
	}
	price := *listing.Price
	if listing.IsNative() && !marketplace.Equal(value, price) {
		return nil, domain.ErrValueMismatch
	}

	payouts, err := im.buildPayouts(c, id.Collection, listing.Owner, price)
	if err != nil {
		return nil, err
	}
	n := int64(len(payouts))

	tx := &marketplace.PendingTx{
		Kind:     marketplace.TxKindSale,
		Account:  caller.ToLower(),
		Currency: listing.Currency,
		Price:    price,
	}
	base, resumed, err := im.beginOrResume(c, id, tx, n+4)
	if err != nil {
		return nil, err
	}
	if resumed {
		c.WithFields(log.Fields{
			"id":    id,
			"txId":  base,
			"buyer": caller,
		}).Info("resuming interrupted sale")
	}

	// a sale or re-listing can have committed between the snapshot and the
	// claim; the payouts and the collected price derive from the snapshot, so
	// the purchase only proceeds when the fresh copy still matches it
	fresh, err := im.listingRepo.FindOneFresh(c, id)
	if err != nil {
		return nil, err
	}
	if fresh.Auction != nil {
		return nil, im.releaseSlot(c, id, domain.ErrAuctionActive)
	}
	if fresh.Price == nil ||
		!marketplace.Equal(*fresh.Price, price) ||
		!marketplace.SameCurrency(fresh.Currency, listing.Currency) ||
		!fresh.Owner.Equals(listing.Owner) {
		return nil, im.releaseSlot(c, id, domain.ErrNotOnSale)
	}
	listing = fresh

	// asset into custody
	if err := im.gateway.TransferAsset(c, base, id.Collection, im.market, id.TokenId); err != nil {
		return nil, im.abortSale(c, id, listing.Owner, base+n+3, false)
	}

	// collect the price; native value arrived attached to the request
	if listing.Currency != nil {
		if err := im.gateway.TransferCurrency(c, base+1, *listing.Currency, caller, im.market, price); err != nil {
			return nil, im.abortSale(c, id, listing.Owner, base+n+3, true)
		}
	}

	sold, err := im.settleTrade(c, listing, caller, price, payouts, base+2, marketplace.EventItemSold)
	if err != nil {
		return nil, err
	}
	return &marketplace.ItemSold{
		Event:      marketplace.EventItemSold,
		Collection: sold.Collection,
		TokenId:    sold.TokenId,
		NewOwner:   sold.NewOwner,
		Price:      sold.Price,
	}, nil
}

// abortSale undoes a sale that failed before its point of no return. When the
// asset already sits in custody it is sent back under the reserved rollback
// id; if even that transfer fails the slot is kept so a resubmission can
// replay the whole sequence instead of stranding the asset.
func (im *impl) abortSale(c ctx.Ctx, id marketplace.ListingId, owner domain.Address, rollbackTxId int64, assetEscrowed bool) error {
	if assetEscrowed {
		if err := im.gateway.TransferAsset(c, rollbackTxId, id.Collection, owner, id.TokenId); err != nil {
			c.WithFields(log.Fields{
				"err":  err,
				"id":   id,
				"txId": rollbackTxId,
			}).Error("asset rollback failed")
			return domain.ErrRerunTransaction
		}
	}
	if err := im.listingRepo.ClearTx(c, id); err != nil {
		return err
	}
	return domain.ErrTransferFailed
}

// settleTrade is the irreversible tail shared by purchases, accepted offers
// and won auctions: disburse the payouts, release the asset, then commit the
// ownership change and clear the slot in one write. Any failure here leaves
// the slot populated and demands resumption.
type tradeResult struct {
	Collection domain.Address
	TokenId    domain.TokenId
	NewOwner   domain.Address
	Price      string
}

func (im *impl) settleTrade(c ctx.Ctx, listing *marketplace.Listing, buyer domain.Address, price string, payouts []marketplace.Payout, payoutBase int64, event marketplace.EventType) (*tradeResult, error) {
	id := listing.ToId()
	n := int64(len(payouts))

	if err := im.disburse(c, payoutBase, listing.Currency, payouts); err != nil {
		return nil, domain.ErrRerunTransaction
	}
	if err := im.gateway.TransferAsset(c, payoutBase+n, id.Collection, buyer, id.TokenId); err != nil {
		c.WithFields(log.Fields{
			"err":  err,
			"id":   id,
			"txId": payoutBase + n,
		}).Error("asset release failed")
		return nil, domain.ErrRerunTransaction
	}

	if err := im.listingRepo.CompleteSale(c, id, buyer); err != nil {
		return nil, err
	}
	im.recordActivity(c, id, event, buyer, price)

	return &tradeResult{
		Collection: listing.Collection,
		TokenId:    listing.TokenId,
		NewOwner:   buyer.ToLower(),
		Price:      price,
	}, nil
}
