package usecase

import (
	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
)

func (im *impl) AddOffer(c ctx.Ctx, caller domain.Address, id marketplace.ListingId, currency *domain.Address, price, value string) (*marketplace.OfferAdded, error) {
	if !validPrice(currency, price) {
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
	if listing.Auction != nil {
		return nil, domain.ErrAuctionActive
	}
	if offer := listing.FindOffer(currency, price); offer != nil {
		// an interrupted escrow pull that already recorded the offer only
		// needs its slot released
		if pending := listing.PendingTx; pending != nil &&
			pending.Kind == marketplace.TxKindOffer &&
			pending.Account.Equals(caller) &&
			pending.Price == price &&
			marketplace.SameCurrency(pending.Currency, currency) {
			if err := im.listingRepo.ClearTx(c, id); err != nil {
				return nil, err
			}
			return &marketplace.OfferAdded{
				Event:      marketplace.EventOfferAdded,
				Collection: id.Collection.ToLower(),
				TokenId:    id.TokenId,
				Currency:   currency,
				Price:      price,
				Offerer:    caller.ToLower(),
			}, nil
		}
		return nil, domain.ErrDuplicateOffer
	}

	if currency == nil {
		// native offers arrive with their escrow attached to the request
		if !marketplace.Equal(value, price) {
			return nil, domain.ErrValueMismatch
		}
		// the snapshot can predate a rival offer or a slot claim; re-check on
		// a fresh copy so the attached value never backs a second entry at
		// the same price
		fresh, err := im.listingRepo.FindOneFresh(c, id)
		if err != nil {
			return nil, err
		}
		if fresh.Auction != nil {
			return nil, domain.ErrAuctionActive
		}
		if fresh.FindOffer(currency, price) != nil {
			return nil, domain.ErrDuplicateOffer
		}
		if fresh.PendingTx != nil {
			return nil, domain.ErrWrongTransaction
		}
	} else {
		tx := &marketplace.PendingTx{
			Kind:     marketplace.TxKindOffer,
			Account:  caller.ToLower(),
			Currency: currency,
			Price:    price,
		}
		base, resumed, err := im.beginOrResume(c, id, tx, 1)
		if err != nil {
			return nil, err
		}
		// a rival offer at this price can have committed between the snapshot
		// and the claim; pulling escrow behind a second entry at the same
		// price would strand it
		fresh, err := im.listingRepo.FindOneFresh(c, id)
		if err != nil {
			return nil, err
		}
		if fresh.Auction != nil {
			return nil, im.releaseSlot(c, id, domain.ErrAuctionActive)
		}
		if offer := fresh.FindOffer(currency, price); offer != nil {
			if resumed && offer.Offerer.Equals(caller) {
				// the interrupted run already pulled escrow and recorded it
				if err := im.listingRepo.ClearTx(c, id); err != nil {
					return nil, err
				}
				return &marketplace.OfferAdded{
					Event:      marketplace.EventOfferAdded,
					Collection: id.Collection.ToLower(),
					TokenId:    id.TokenId,
					Currency:   currency,
					Price:      price,
					Offerer:    caller.ToLower(),
				}, nil
			}
			return nil, im.releaseSlot(c, id, domain.ErrDuplicateOffer)
		}
		if err := im.gateway.TransferCurrency(c, base, *currency, caller, im.market, price); err != nil {
			if err := im.listingRepo.ClearTx(c, id); err != nil {
				return nil, err
			}
			return nil, domain.ErrTransferFailed
		}
	}

	offer := marketplace.Offer{
		Currency: currency,
		Price:    price,
		Offerer:  caller.ToLower(),
	}
	if err := im.listingRepo.AddOffer(c, id, offer); err != nil {
		return nil, err
	}
	if currency != nil {
		if err := im.listingRepo.ClearTx(c, id); err != nil {
			return nil, err
		}
	}
	im.recordActivity(c, id, marketplace.EventOfferAdded, caller, price)

	return &marketplace.OfferAdded{
		Event:      marketplace.EventOfferAdded,
		Collection: id.Collection.ToLower(),
		TokenId:    id.TokenId,
		Currency:   currency,
		Price:      price,
		Offerer:    caller.ToLower(),
	}, nil
}

// AcceptOffer settles against funds the offerer escrowed when the offer was
// made, so the id block has no collect step:
//
//	base+0             asset into market custody
//	base+1 .. base+n   one leg per payee
//	base+n+1           asset released to the offerer
func (im *impl) AcceptOffer(c ctx.Ctx, caller domain.Address, id marketplace.ListingId, currency *domain.Address, price string) (*marketplace.OfferAccepted, error) {
	listing, err := im.listingRepo.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	if !listing.Owner.Equals(caller) {
		return nil, domain.ErrNotOwner
	}
	if listing.Auction != nil {
		return nil, domain.ErrAuctionActive
	}

	// the offer entry is removed before the irreversible tail, so a resumed
	// acceptance recovers the offerer from the saga slot instead
	var offerer domain.Address
	if offer := listing.FindOffer(currency, price); offer != nil {
		offerer = offer.Offerer
	} else if pending := listing.PendingTx; pending != nil &&
		pending.Kind == marketplace.TxKindAcceptOffer &&
		pending.Price == price &&
		marketplace.SameCurrency(pending.Currency, currency) {
		offerer = pending.Account
	} else {
		return nil, domain.ErrNoSuchOffer
	}

	payouts, err := im.buildPayouts(c, id.Collection, listing.Owner, price)
	if err != nil {
		return nil, err
	}
	n := int64(len(payouts))

	tx := &marketplace.PendingTx{
		Kind:     marketplace.TxKindAcceptOffer,
		Account:  offerer,
		Currency: currency,
		Price:    price,
	}
	base, resumed, err := im.beginOrResume(c, id, tx, n+2)
	if err != nil {
		return nil, err
	}
	if resumed {
		c.WithFields(log.Fields{
			"id":      id,
			"txId":    base,
			"offerer": offerer,
		}).Info("resuming interrupted offer acceptance")
	}

	// a withdrawal can have refunded the offer between the snapshot and the
	// claim; settling against it then would pay out escrow the market no
	// longer holds
	fresh, err := im.listingRepo.FindOneFresh(c, id)
	if err != nil {
		return nil, err
	}
	if fresh.Auction != nil {
		return nil, im.releaseSlot(c, id, domain.ErrAuctionActive)
	}
	if !fresh.Owner.Equals(caller) {
		return nil, im.releaseSlot(c, id, domain.ErrNotOwner)
	}
	if offer := fresh.FindOffer(currency, price); offer != nil {
		if !offer.Offerer.Equals(offerer) {
			// withdrawn and re-made by someone else; accepting it needs a
			// resubmission against the current offerer
			return nil, im.releaseSlot(c, id, domain.ErrNoSuchOffer)
		}
	} else if !resumed {
		return nil, im.releaseSlot(c, id, domain.ErrNoSuchOffer)
	}
	listing = fresh

	// the offer trades in its own denomination, not the listing's
	saleListing := *listing
	saleListing.Currency = currency

	if err := im.gateway.TransferAsset(c, base, id.Collection, im.market, id.TokenId); err != nil {
		if err := im.listingRepo.ClearTx(c, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrTransferFailed
	}

	if err := im.listingRepo.RemoveOffer(c, id, currency, price); err != nil {
		return nil, err
	}

	sold, err := im.settleTrade(c, &saleListing, offerer, price, payouts, base+1, marketplace.EventOfferAccepted)
	if err != nil {
		return nil, err
	}

	return &marketplace.OfferAccepted{
		Event:      marketplace.EventOfferAccepted,
		Collection: sold.Collection,
		TokenId:    sold.TokenId,
		NewOwner:   sold.NewOwner,
		Price:      sold.Price,
	}, nil
}

func (im *impl) WithdrawOffer(c ctx.Ctx, caller domain.Address, id marketplace.ListingId, currency *domain.Address, price string) (*marketplace.OfferWithdrawn, error) {
	listing, err := im.listingRepo.FindOne(c, id)
	if err != nil {
		return nil, err
	}
	offer := listing.FindOffer(currency, price)
	if offer == nil {
		// an interrupted withdrawal that already dropped the offer only
		// needs its slot released
		if pending := listing.PendingTx; pending != nil &&
			pending.Kind == marketplace.TxKindWithdrawOffer &&
			pending.Account.Equals(caller) &&
			pending.Price == price &&
			marketplace.SameCurrency(pending.Currency, currency) {
			if err := im.listingRepo.ClearTx(c, id); err != nil {
				return nil, err
			}
			return &marketplace.OfferWithdrawn{
				Event:      marketplace.EventOfferWithdrawn,
				Collection: id.Collection.ToLower(),
				TokenId:    id.TokenId,
				Currency:   currency,
				Price:      price,
			}, nil
		}
		return nil, domain.ErrNoSuchOffer
	}
	if !offer.Offerer.Equals(caller) {
		return nil, domain.ErrNotOfferer
	}

	// the refund runs under the saga slot so a retry replays the reserved id
	// instead of paying the offerer again under a fresh one
	tx := &marketplace.PendingTx{
		Kind:     marketplace.TxKindWithdrawOffer,
		Account:  offer.Offerer,
		Currency: currency,
		Price:    price,
	}
	base, resumed, err := im.beginOrResume(c, id, tx, 1)
	if err != nil {
		return nil, err
	}

	// the snapshot's offer can have been consumed by an acceptance that
	// completed before the claim; the refund must run against the offer as
	// stored now
	listing, err = im.listingRepo.FindOneFresh(c, id)
	if err != nil {
		return nil, err
	}
	if offer = listing.FindOffer(currency, price); offer == nil {
		if resumed {
			// the interrupted run already refunded and dropped the offer
			if err := im.listingRepo.ClearTx(c, id); err != nil {
				return nil, err
			}
			return &marketplace.OfferWithdrawn{
				Event:      marketplace.EventOfferWithdrawn,
				Collection: id.Collection.ToLower(),
				TokenId:    id.TokenId,
				Currency:   currency,
				Price:      price,
			}, nil
		}
		return nil, im.releaseSlot(c, id, domain.ErrNoSuchOffer)
	}
	if !offer.Offerer.Equals(caller) {
		return nil, im.releaseSlot(c, id, domain.ErrNotOfferer)
	}

	if currency == nil {
		err = im.gateway.SendValue(c, base, offer.Offerer, price)
	} else {
		err = im.gateway.TransferCurrency(c, base, *currency, im.market, offer.Offerer, price)
	}
	if err != nil {
		c.WithFields(log.Fields{
			"err":     err,
			"account": offer.Offerer,
			"txId":    base,
		}).Error("offer repayment failed")
		// the refund may have landed; only a replay of the same id is safe
		return nil, domain.ErrRerunTransaction
	}

	if err := im.listingRepo.RemoveOffer(c, id, currency, price); err != nil {
		return nil, err
	}
	if err := im.listingRepo.ClearTx(c, id); err != nil {
		return nil, err
	}
	im.recordActivity(c, id, marketplace.EventOfferWithdrawn, caller, price)

	return &marketplace.OfferWithdrawn{
		Event:      marketplace.EventOfferWithdrawn,
		Collection: id.Collection.ToLower(),
		TokenId:    id.TokenId,
		Currency:   currency,
		Price:      price,
	}, nil
}
