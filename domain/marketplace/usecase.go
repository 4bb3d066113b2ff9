package marketplace

import (
	"time"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/domain"
)

// UseCase is the marketplace action surface. Callers are identified by the
// authenticated address; value carries the native amount the payments host
// attached to the request ("" when none).
type UseCase interface {
	RegisterAssetContract(c ctx.Ctx, caller, contract domain.Address) (*Registered, error)
	RegisterCurrencyContract(c ctx.Ctx, caller, contract domain.Address) (*Registered, error)

	List(c ctx.Ctx, caller domain.Address, id ListingId, currency *domain.Address, price *string) (*Listed, error)

	Buy(c ctx.Ctx, caller domain.Address, id ListingId, value string) (*ItemSold, error)

	CreateAuction(c ctx.Ctx, caller domain.Address, id ListingId, currency *domain.Address, minPrice string, bidPeriod, duration time.Duration) (*AuctionCreated, error)
	Bid(c ctx.Ctx, caller domain.Address, id ListingId, price, value string) (*BidAccepted, error)
	SettleAuction(c ctx.Ctx, caller domain.Address, id ListingId) (*AuctionOutcome, error)

	AddOffer(c ctx.Ctx, caller domain.Address, id ListingId, currency *domain.Address, price, value string) (*OfferAdded, error)
	AcceptOffer(c ctx.Ctx, caller domain.Address, id ListingId, currency *domain.Address, price string) (*OfferAccepted, error)
	WithdrawOffer(c ctx.Ctx, caller domain.Address, id ListingId, currency *domain.Address, price string) (*OfferWithdrawn, error)

	// GetListing returns an empty record, never an error, for unknown ids.
	GetListing(c ctx.Ctx, id ListingId) (*Listing, error)
	GetListings(c ctx.Ctx, opts ...FindAllOptionsFunc) ([]*Listing, error)
	GetActivities(c ctx.Ctx, id ListingId, offset, limit int32) ([]*Activity, error)
}
