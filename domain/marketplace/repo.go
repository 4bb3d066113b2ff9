package marketplace

import (
	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/domain"
)

type FindAllOptions struct {
	Owner      *domain.Address
	Collection *domain.Address
	OnSale     *bool
	HasAuction *bool
	Offset     *int32
	Limit      *int32
}

type FindAllOptionsFunc func(*FindAllOptions) error

func GetFindAllOptions(opts ...FindAllOptionsFunc) (FindAllOptions, error) {
	res := FindAllOptions{}
	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func WithOwner(owner domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Owner = owner.ToLowerPtr()
		return nil
	}
}

func WithCollection(collection domain.Address) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Collection = collection.ToLowerPtr()
		return nil
	}
}

func WithOnSale(onSale bool) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.OnSale = &onSale
		return nil
	}
}

func WithHasAuction(hasAuction bool) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.HasAuction = &hasAuction
		return nil
	}
}

func WithPagination(offset, limit int32) FindAllOptionsFunc {
	return func(options *FindAllOptions) error {
		options.Offset = &offset
		options.Limit = &limit
		return nil
	}
}

// Repo persists listings and the contract allow-lists. Mutators invalidate
// any cached copy of the listing.
type Repo interface {
	// FindOne returns domain.ErrNotFound when the listing does not exist.
	FindOne(c ctx.Ctx, id ListingId) (*Listing, error)
	// FindOneFresh reads the backing store directly, never a cached copy.
	// Decisions made while holding the saga slot must run on this read.
	FindOneFresh(c ctx.Ctx, id ListingId) (*Listing, error)
	FindAll(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Listing, error)
	Create(c ctx.Ctx, listing *Listing) error
	SetSaleInfo(c ctx.Ctx, id ListingId, currency *domain.Address, price *string) error
	SetOwner(c ctx.Ctx, id ListingId, owner domain.Address) error

	// BeginTx atomically claims the listing's single saga slot. When the slot
	// is already held it returns claimed == false together with the stored
	// slot; the caller decides between resumption and ErrWrongTransaction.
	BeginTx(c ctx.Ctx, id ListingId, tx *PendingTx) (claimed bool, current *PendingTx, err error)
	ClearTx(c ctx.Ctx, id ListingId) error

	SetAuction(c ctx.Ctx, id ListingId, auction *Auction) error
	// CompleteSale commits the irreversible tail in one write: new owner,
	// price unset, auction unset, saga slot cleared.
	CompleteSale(c ctx.Ctx, id ListingId, newOwner domain.Address) error

	AddOffer(c ctx.Ctx, id ListingId, offer Offer) error
	RemoveOffer(c ctx.Ctx, id ListingId, currency *domain.Address, price string) error

	AddAllowedContract(c ctx.Ctx, kind domain.ContractKind, contract domain.Address) error
	IsAllowedContract(c ctx.Ctx, kind domain.ContractKind, contract domain.Address) (bool, error)
}

// TxIdRepo hands out blocks of transaction ids from the persistent monotonic
// counter. Reserve returns the first id of a block of n consecutive ids.
type TxIdRepo interface {
	Reserve(c ctx.Ctx, n int64) (int64, error)
}

type ActivityRepo interface {
	Insert(c ctx.Ctx, activity *Activity) error
	FindByListing(c ctx.Ctx, id ListingId, offset, limit int32) ([]*Activity, error)
}
