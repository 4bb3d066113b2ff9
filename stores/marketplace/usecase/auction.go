package usecase

import (
	"time"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
)

func (im *impl) CreateAuction(c ctx.Ctx, caller domain.Address, id marketplace.ListingId, currency *domain.Address, minPrice string, bidPeriod, duration time.Duration) (*marketplace.AuctionCreated, error) {
	if bidPeriod < marketplace.MinBidPeriod || duration < marketplace.MinBidPeriod {
		return nil, domain.ErrInvalidPeriod
	}
	if !validPrice(currency, minPrice) {
		return nil, domain.ErrInvalidPrice
	}
	if currency != nil {
		if allowed, err := im.listingRepo.IsAllowedContract(c, domain.ContractKindCurrency, *currency); err != nil {
			return nil, err
		} else if !allowed {
			return nil, domain.ErrNotApprovedContract
		}
	}

	listing, err := im.listingRepo.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	if !listing.Owner.Equals(caller) {
		return nil, domain.ErrNotOwner
	}
	tx := &marketplace.PendingTx{
		Kind:     marketplace.TxKindCreateAuction,
		Account:  caller.ToLower(),
		Currency: currency,
		Price:    minPrice,
	}
	if listing.Auction != nil {
		// an interrupted creation that already opened the auction only
		// needs its slot released
		if listing.PendingTx != nil && listing.PendingTx.Matches(tx) {
			if err := im.listingRepo.ClearTx(c, id); err != nil {
				return nil, err
			}
			return &marketplace.AuctionCreated{
				Event:      marketplace.EventAuctionCreated,
				Collection: id.Collection.ToLower(),
				TokenId:    id.TokenId,
				MinPrice:   minPrice,
				EndsAt:     listing.Auction.EndsAt,
			}, nil
		}
		return nil, domain.ErrAuctionExists
	}
	if listing.Price != nil {
		return nil, domain.ErrOnSale
	}
	base, _, err := im.beginOrResume(c, id, tx, 1)
	if err != nil {
		return nil, err
	}

	// an auction or sale set up between the snapshot and the claim must not
	// be overwritten; it can carry bids whose escrow would vanish with it
	fresh, err := im.listingRepo.FindOneFresh(c, id)
	if err != nil {
		return nil, err
	}
	if fresh.Auction != nil {
		return nil, im.releaseSlot(c, id, domain.ErrAuctionExists)
	}
	if fresh.Price != nil {
		return nil, im.releaseSlot(c, id, domain.ErrOnSale)
	}
	if !fresh.Owner.Equals(caller) {
		return nil, im.releaseSlot(c, id, domain.ErrNotOwner)
	}

	// the asset sits in market custody for the whole life of the auction
	if err := im.gateway.TransferAsset(c, base, id.Collection, im.market, id.TokenId); err != nil {
		return nil, im.releaseSlot(c, id, domain.ErrTransferFailed)
	}

	now := timeNow()
	auction := &marketplace.Auction{
		BidPeriod:     bidPeriod,
		StartedAt:     now,
		EndsAt:        now.Add(duration),
		CurrentPrice:  minPrice,
		CurrentWinner: domain.EmptyAddress,
	}
	if err := im.listingRepo.SetSaleInfo(c, id, currency, nil); err != nil {
		return nil, err
	}
	if err := im.listingRepo.SetAuction(c, id, auction); err != nil {
		return nil, err
	}
	if err := im.listingRepo.ClearTx(c, id); err != nil {
		return nil, err
	}
	im.recordActivity(c, id, marketplace.EventAuctionCreated, caller, minPrice)

	return &marketplace.AuctionCreated{
		Event:      marketplace.EventAuctionCreated,
		Collection: id.Collection.ToLower(),
		TokenId:    id.TokenId,
		MinPrice:   minPrice,
		EndsAt:     auction.EndsAt,
	}, nil
}

func (im *impl) Bid(c ctx.Ctx, caller domain.Address, id marketplace.ListingId, price, value string) (*marketplace.BidAccepted, error) {
	listing, err := im.listingRepo.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	auction := listing.Auction
	if auction == nil {
		return nil, domain.ErrNoAuction
	}
	now := timeNow()
	if auction.Ended(now) {
		return nil, domain.ErrAuctionEnded
	}
	// the price ladder only climbs, so a bid the snapshot already beats can be
	// rejected before touching the slot; a possible resumption goes through
	if !bidApplied(auction, caller, price) && !marketplace.GreaterThan(price, auction.CurrentPrice) {
		return nil, domain.ErrPriceTooLow
	}
	if listing.IsNative() {
		if !marketplace.Equal(value, price) {
			return nil, domain.ErrValueMismatch
		}
		return im.bidNative(c, caller, listing, price, now)
	}
	return im.bidCurrency(c, caller, listing, price, now)
}

// bidApplied reports whether the auction already records this exact bid as
// the leading one.
func bidApplied(a *marketplace.Auction, bidder domain.Address, price string) bool {
	return a.HasWinner() && a.CurrentWinner.Equals(bidder) && marketplace.Equal(a.CurrentPrice, price)
}

// claimBidSlot claims the saga slot for a bid and re-reads the listing from
// the backing store. The snapshot that passed the precondition checks can
// predate a rival bid that committed in the meantime, so everything decided
// after the claim runs on the fresh copy.
func (im *impl) claimBidSlot(c ctx.Ctx, id marketplace.ListingId, tx *marketplace.PendingTx, nIds int64, now time.Time) (*marketplace.Listing, int64, bool, error) {
	base, resumed, err := im.beginOrResume(c, id, tx, nIds)
	if err != nil {
		return nil, 0, false, err
	}
	listing, err := im.listingRepo.FindOneFresh(c, id)
	if err != nil {
		return nil, 0, false, err
	}
	auction := listing.Auction
	if auction == nil || !marketplace.SameCurrency(listing.Currency, tx.Currency) {
		return nil, 0, false, im.releaseSlot(c, id, domain.ErrNoAuction)
	}
	if auction.Ended(now) {
		return nil, 0, false, im.releaseSlot(c, id, domain.ErrAuctionEnded)
	}
	return listing, base, resumed, nil
}

// releaseSlot clears the saga slot and reports cause as the operation's
// outcome.
func (im *impl) releaseSlot(c ctx.Ctx, id marketplace.ListingId, cause error) error {
	if err := im.listingRepo.ClearTx(c, id); err != nil {
		return err
	}
	return cause
}

// bidNative takes the bid's value straight off the request, so the only
// external effect is repaying the displaced bidder. That repayment runs under
// the saga slot: a retry resumes the slot and replays the reserved id, which
// the remote ledger treats as a no-op when the first send landed.
func (im *impl) bidNative(c ctx.Ctx, caller domain.Address, listing *marketplace.Listing, price string, now time.Time) (*marketplace.BidAccepted, error) {
	id := listing.ToId()
	tx := &marketplace.PendingTx{
		Kind:    marketplace.TxKindBid,
		Account: caller.ToLower(),
		Price:   price,
	}
	listing, base, resumed, err := im.claimBidSlot(c, id, tx, 1, now)
	if err != nil {
		return nil, err
	}
	auction := listing.Auction

	// interrupted after the state change: nothing external left to do
	if resumed && bidApplied(auction, caller, price) {
		if err := im.listingRepo.ClearTx(c, id); err != nil {
			return nil, err
		}
		return bidAcceptedEvent(listing, caller, price), nil
	}
	if !marketplace.GreaterThan(price, auction.CurrentPrice) {
		return nil, im.releaseSlot(c, id, domain.ErrPriceTooLow)
	}

	if auction.HasWinner() {
		if err := im.gateway.SendValue(c, base, auction.CurrentWinner, auction.CurrentPrice); err != nil {
			c.WithFields(log.Fields{
				"err":     err,
				"account": auction.CurrentWinner,
				"txId":    base,
			}).Error("displaced bidder repayment failed")
			// the send may have landed; only a replay of the same id is safe
			return nil, domain.ErrRerunTransaction
		}
	}
	return im.acceptBid(c, listing, caller, price, nil, now)
}

// bidCurrency runs the escrow ladder: settle the previous displaced bidder's
// refund, pull the new bidder's funds, and only then displace the current
// winner, recording the refund owed to them. The recorded refund keeps its
// transaction id across retries so it can never pay out twice.
func (im *impl) bidCurrency(c ctx.Ctx, caller domain.Address, listing *marketplace.Listing, price string, now time.Time) (*marketplace.BidAccepted, error) {
	id := listing.ToId()
	tx := &marketplace.PendingTx{
		Kind:     marketplace.TxKindBid,
		Account:  caller.ToLower(),
		Currency: listing.Currency,
		Price:    price,
	}
	listing, base, resumed, err := im.claimBidSlot(c, id, tx, 2, now)
	if err != nil {
		return nil, err
	}
	auction := listing.Auction

	// interrupted after the state change: nothing external left to do
	if resumed && bidApplied(auction, caller, price) {
		if err := im.listingRepo.ClearTx(c, id); err != nil {
			return nil, err
		}
		return bidAcceptedEvent(listing, caller, price), nil
	}
	if !marketplace.GreaterThan(price, auction.CurrentPrice) {
		return nil, im.releaseSlot(c, id, domain.ErrPriceTooLow)
	}

	if auction.PendingRefund != nil {
		if err := im.resolveRefund(c, listing, auction.PendingRefund); err != nil {
			return nil, im.releaseSlot(c, id, domain.ErrTransferFailed)
		}
		auction.PendingRefund = nil
		if err := im.listingRepo.SetAuction(c, id, auction); err != nil {
			return nil, err
		}
	}

	// pull first; the displaced bidder is made whole later, the market must
	// never be short
	if err := im.gateway.TransferCurrency(c, base, *listing.Currency, caller, im.market, price); err != nil {
		return nil, im.releaseSlot(c, id, domain.ErrTransferFailed)
	}

	if auction.HasWinner() {
		auction.PendingRefund = &marketplace.Refund{
			Account: auction.CurrentWinner,
			Amount:  auction.CurrentPrice,
			TxId:    base + 1,
		}
	}
	return im.acceptBid(c, listing, caller, price, auction.PendingRefund, now)
}

// acceptBid commits the new leading bid and applies the anti-sniping
// extension. endsAt never moves backwards.
func (im *impl) acceptBid(c ctx.Ctx, listing *marketplace.Listing, bidder domain.Address, price string, refund *marketplace.Refund, now time.Time) (*marketplace.BidAccepted, error) {
	id := listing.ToId()
	auction := listing.Auction

	auction.CurrentPrice = price
	auction.CurrentWinner = bidder.ToLower()
	auction.PendingRefund = refund
	if auction.EndsAt.Sub(now) < auction.BidPeriod {
		auction.EndsAt = now.Add(auction.BidPeriod)
	}

	if err := im.listingRepo.SetAuction(c, id, auction); err != nil {
		return nil, err
	}
	if err := im.listingRepo.ClearTx(c, id); err != nil {
		return nil, err
	}
	im.recordActivity(c, id, marketplace.EventBidAccepted, bidder, price)

	return bidAcceptedEvent(listing, bidder, price), nil
}

func bidAcceptedEvent(listing *marketplace.Listing, bidder domain.Address, price string) *marketplace.BidAccepted {
	return &marketplace.BidAccepted{
		Event:      marketplace.EventBidAccepted,
		Collection: listing.Collection,
		TokenId:    listing.TokenId,
		Bidder:     bidder.ToLower(),
		Price:      price,
		EndsAt:     listing.Auction.EndsAt,
	}
}

// resolveRefund retries the one outstanding refund with its recorded id.
func (im *impl) resolveRefund(c ctx.Ctx, listing *marketplace.Listing, refund *marketplace.Refund) error {
	var err error
	if listing.Currency != nil {
		err = im.gateway.TransferCurrency(c, refund.TxId, *listing.Currency, im.market, refund.Account, refund.Amount)
	} else {
		err = im.gateway.SendValue(c, refund.TxId, refund.Account, refund.Amount)
	}
	if err != nil {
		c.WithFields(log.Fields{
			"err":     err,
			"refund":  refund,
			"listing": listing.ToId(),
		}).Error("refund resolution failed")
	}
	return err
}

// SettleAuction finalizes an ended auction. The slot is claimed with an empty
// account so that any caller, not just the original one, can drive a stuck
// settlement to completion. Everything past the fresh re-check is the
// irreversible tail: the market already holds the asset and the winning funds,
// so failures keep the slot and report domain.ErrRerunTransaction.
func (im *impl) SettleAuction(c ctx.Ctx, caller domain.Address, id marketplace.ListingId) (*marketplace.AuctionOutcome, error) {
	// the slot's parameters and the payout legs derive from this read, so it
	// must not come out of a cache tier
	listing, err := im.listingRepo.FindOneFresh(c, id)
	if err != nil {
		return nil, err
	}
	auction := listing.Auction
	if auction == nil {
		return nil, domain.ErrNoAuction
	}
	if !auction.Ended(timeNow()) {
		return nil, domain.ErrAuctionNotEnded
	}

	var payouts []marketplace.Payout
	nIds := int64(1)
	if auction.HasWinner() {
		payouts, err = im.buildPayouts(c, id.Collection, listing.Owner, auction.CurrentPrice)
		if err != nil {
			return nil, err
		}
		nIds = int64(len(payouts)) + 1
	}

	tx := &marketplace.PendingTx{
		Kind:     marketplace.TxKindSettleAuction,
		Account:  domain.EmptyAddress,
		Currency: listing.Currency,
		Price:    auction.CurrentPrice,
	}
	base, _, err := im.beginOrResume(c, id, tx, nIds)
	if err != nil {
		return nil, err
	}

	// a bid that slipped in between the snapshot and the claim extends the
	// auction past its old deadline, so re-checking the deadline on a fresh
	// read is enough to rule out a stale snapshot
	listing, err = im.listingRepo.FindOneFresh(c, id)
	if err != nil {
		return nil, err
	}
	auction = listing.Auction
	if auction == nil {
		return nil, im.releaseSlot(c, id, domain.ErrNoAuction)
	}
	if !auction.Ended(timeNow()) {
		return nil, im.releaseSlot(c, id, domain.ErrAuctionNotEnded)
	}

	if auction.PendingRefund != nil {
		if err := im.resolveRefund(c, listing, auction.PendingRefund); err != nil {
			return nil, domain.ErrRerunTransaction
		}
	}

	if !auction.HasWinner() {
		// no bids: hand the asset back, no funds ever moved
		if err := im.gateway.TransferAsset(c, base, id.Collection, listing.Owner, id.TokenId); err != nil {
			c.WithFields(log.Fields{
				"err": err,
				"id":  id,
			}).Error("asset return failed")
			return nil, domain.ErrRerunTransaction
		}
		if err := im.listingRepo.CompleteSale(c, id, listing.Owner); err != nil {
			return nil, err
		}
		im.recordActivity(c, id, marketplace.EventAuctionCancelled, listing.Owner, "")
		return &marketplace.AuctionOutcome{
			Event:      marketplace.EventAuctionCancelled,
			Collection: listing.Collection,
			TokenId:    listing.TokenId,
		}, nil
	}

	sold, err := im.settleTrade(c, listing, auction.CurrentWinner, auction.CurrentPrice, payouts, base, marketplace.EventAuctionSettled)
	if err != nil {
		return nil, err
	}
	return &marketplace.AuctionOutcome{
		Event:      marketplace.EventAuctionSettled,
		Collection: sold.Collection,
		TokenId:    sold.TokenId,
		Winner:     sold.NewOwner,
		Price:      sold.Price,
	}, nil
}
