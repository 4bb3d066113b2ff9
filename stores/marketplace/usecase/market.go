package usecase

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/escrow"
	"github.com/nftmarket/goapi/domain/marketplace"
)

var timeNow = time.Now

type MarketplaceUseCaseCfg struct {
	ListingRepo  marketplace.Repo
	TxIdRepo     marketplace.TxIdRepo
	ActivityRepo marketplace.ActivityRepo
	Gateway      escrow.Gateway
	Ownership    escrow.AssetOwnership
	Payouts      escrow.PayoutCalculator

	// Admin may register contracts; Treasury collects the fee; Market is the
	// custodial account trades are escrowed into.
	Admin    domain.Address
	Treasury domain.Address
	Market   domain.Address
	FeeBps   int
}

type impl struct {
	listingRepo  marketplace.Repo
	txIdRepo     marketplace.TxIdRepo
	activityRepo marketplace.ActivityRepo
	gateway      escrow.Gateway
	ownership    escrow.AssetOwnership
	payouts      escrow.PayoutCalculator
	admin        domain.Address
	treasury     domain.Address
	market       domain.Address
	feeBps       int
}

// New validates the market configuration once; a bad fee or a missing account
// is a deployment error, not something a caller can trigger.
func New(cfg *MarketplaceUseCaseCfg) (marketplace.UseCase, error) {
	if cfg.FeeBps <= 0 || cfg.FeeBps > marketplace.MaxTreasuryFeeBps {
		return nil, xerrors.Errorf("treasury fee %d bps out of range (0, %d]", cfg.FeeBps, marketplace.MaxTreasuryFeeBps)
	}
	if cfg.Admin.IsEmpty() || cfg.Treasury.IsEmpty() || cfg.Market.IsEmpty() {
		return nil, xerrors.New("admin, treasury and market accounts are required")
	}
	return &impl{
		listingRepo:  cfg.ListingRepo,
		txIdRepo:     cfg.TxIdRepo,
		activityRepo: cfg.ActivityRepo,
		gateway:      cfg.Gateway,
		ownership:    cfg.Ownership,
		payouts:      cfg.Payouts,
		admin:        cfg.Admin.ToLower(),
		treasury:     cfg.Treasury.ToLower(),
		market:       cfg.Market.ToLower(),
		feeBps:       cfg.FeeBps,
	}, nil
}

func (im *impl) RegisterAssetContract(c ctx.Ctx, caller, contract domain.Address) (*marketplace.Registered, error) {
	return im.registerContract(c, caller, contract, domain.ContractKindAsset)
}

func (im *impl) RegisterCurrencyContract(c ctx.Ctx, caller, contract domain.Address) (*marketplace.Registered, error) {
	return im.registerContract(c, caller, contract, domain.ContractKindCurrency)
}

func (im *impl) registerContract(c ctx.Ctx, caller, contract domain.Address, kind domain.ContractKind) (*marketplace.Registered, error) {
	if !caller.Equals(im.admin) {
		return nil, domain.ErrNotAdmin
	}
	if contract.IsEmpty() {
		return nil, domain.ErrInvalidAddress
	}
	if err := im.listingRepo.AddAllowedContract(c, kind, contract); err != nil {
		c.WithFields(log.Fields{
			"err":      err,
			"kind":     kind,
			"contract": contract,
		}).Error("listingRepo.AddAllowedContract failed")
		return nil, err
	}
	return &marketplace.Registered{
		Event:    marketplace.EventRegistered,
		Kind:     kind,
		Contract: contract.ToLower(),
	}, nil
}

func (im *impl) List(c ctx.Ctx, caller domain.Address, id marketplace.ListingId, currency *domain.Address, price *string) (*marketplace.Listed, error) {
	if allowed, err := im.listingRepo.IsAllowedContract(c, domain.ContractKindAsset, id.Collection); err != nil {
		return nil, err
	} else if !allowed {
		return nil, domain.ErrNotApprovedContract
	}
	if currency != nil {
		if allowed, err := im.listingRepo.IsAllowedContract(c, domain.ContractKindCurrency, *currency); err != nil {
			return nil, err
		} else if !allowed {
			return nil, domain.ErrNotApprovedContract
		}
	}
	if price != nil && !validPrice(currency, *price) {
		return nil, domain.ErrInvalidPrice
	}

	// ownership is checked against the asset service, not our record, so a
	// transfer that happened outside the marketplace re-lists cleanly
	owner, err := im.ownership.OwnerOf(c, id.Collection, id.TokenId)
	if err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("ownership.OwnerOf failed")
		return nil, err
	}
	if !owner.Equals(caller) {
		return nil, domain.ErrNotOwner
	}

	listing, err := im.listingRepo.FindOne(c, id)
	if err == domain.ErrNotFound {
		listing = &marketplace.Listing{
			Collection: id.Collection.ToLower(),
			TokenId:    id.TokenId,
			Owner:      caller.ToLower(),
			Currency:   currency,
			Price:      price,
			Offers:     []marketplace.Offer{},
		}
		if err := im.listingRepo.Create(c, listing); err != nil {
			return nil, err
		}
		return listedEvent(listing), nil
	} else if err != nil {
		return nil, err
	}

	if listing.PendingTx != nil {
		return nil, domain.ErrWrongTransaction
	}
	if listing.Auction != nil {
		return nil, domain.ErrAlreadyListed
	}

	if !listing.Owner.Equals(caller) {
		if err := im.listingRepo.SetOwner(c, id, caller); err != nil {
			return nil, err
		}
		listing.Owner = caller.ToLower()
	}
	if err := im.listingRepo.SetSaleInfo(c, id, currency, price); err != nil {
		return nil, err
	}
	listing.Currency = currency
	listing.Price = price
	return listedEvent(listing), nil
}

func (im *impl) GetListing(c ctx.Ctx, id marketplace.ListingId) (*marketplace.Listing, error) {
	listing, err := im.listingRepo.FindOne(c, id)
	if err == domain.ErrNotFound {
		return &marketplace.Listing{
			Collection: id.Collection.ToLower(),
			TokenId:    id.TokenId,
			Offers:     []marketplace.Offer{},
		}, nil
	} else if err != nil {
		return nil, err
	}
	return listing, nil
}

func (im *impl) GetListings(c ctx.Ctx, opts ...marketplace.FindAllOptionsFunc) ([]*marketplace.Listing, error) {
	return im.listingRepo.FindAll(c, opts...)
}

func (im *impl) GetActivities(c ctx.Ctx, id marketplace.ListingId, offset, limit int32) ([]*marketplace.Activity, error) {
	return im.activityRepo.FindByListing(c, id, offset, limit)
}

func listedEvent(listing *marketplace.Listing) *marketplace.Listed {
	return &marketplace.Listed{
		Event:      marketplace.EventListed,
		Collection: listing.Collection,
		TokenId:    listing.TokenId,
		Owner:      listing.Owner,
		Currency:   listing.Currency,
		Price:      listing.Price,
	}
}

// validPrice applies the denomination rules: currency amounts must be
// strictly positive, native amounts must clear the dust threshold.
func validPrice(currency *domain.Address, price string) bool {
	if currency != nil {
		return marketplace.ValidAmount(price)
	}
	return marketplace.AboveMinimumValue(price)
}

func (im *impl) recordActivity(c ctx.Ctx, id marketplace.ListingId, event marketplace.EventType, account domain.Address, price string) {
	activity := &marketplace.Activity{
		Collection: id.Collection,
		TokenId:    id.TokenId,
		Event:      event,
		Account:    account.ToLower(),
		Price:      price,
	}
	if err := im.activityRepo.Insert(c, activity); err != nil {
		c.WithFields(log.Fields{
			"err":      err,
			"activity": activity,
		}).Warn("activityRepo.Insert failed")
	}
}
