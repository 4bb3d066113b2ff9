package marketplace

import (
	"time"

	"github.com/nftmarket/goapi/domain"
)

type EventType string

const (
	EventRegistered       EventType = "Registered"
	EventListed           EventType = "Listed"
	EventItemSold         EventType = "ItemSold"
	EventAuctionCreated   EventType = "AuctionCreated"
	EventBidAccepted      EventType = "BidAccepted"
	EventAuctionSettled   EventType = "AuctionSettled"
	EventAuctionCancelled EventType = "AuctionCancelled"
	EventOfferAdded       EventType = "OfferAdded"
	EventOfferAccepted    EventType = "OfferAccepted"
	EventOfferWithdrawn   EventType = "OfferWithdrawn"
)

type Registered struct {
	Event    EventType           `json:"event"`
	Kind     domain.ContractKind `json:"kind"`
	Contract domain.Address      `json:"contract"`
}

type Listed struct {
	Event      EventType       `json:"event"`
	Collection domain.Address  `json:"collection"`
	TokenId    domain.TokenId  `json:"tokenId"`
	Owner      domain.Address  `json:"owner"`
	Currency   *domain.Address `json:"currency,omitempty"`
	Price      *string         `json:"price,omitempty"`
}

type ItemSold struct {
	Event      EventType      `json:"event"`
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	NewOwner   domain.Address `json:"newOwner"`
	Price      string         `json:"price"`
}

type AuctionCreated struct {
	Event      EventType      `json:"event"`
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	MinPrice   string         `json:"minPrice"`
	EndsAt     time.Time      `json:"endsAt"`
}

type BidAccepted struct {
	Event      EventType      `json:"event"`
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	Bidder     domain.Address `json:"bidder"`
	Price      string         `json:"price"`
	EndsAt     time.Time      `json:"endsAt"`
}

// AuctionOutcome reports either EventAuctionSettled or EventAuctionCancelled.
type AuctionOutcome struct {
	Event      EventType      `json:"event"`
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	Winner     domain.Address `json:"winner,omitempty"`
	Price      string         `json:"price,omitempty"`
}

type OfferAdded struct {
	Event      EventType       `json:"event"`
	Collection domain.Address  `json:"collection"`
	TokenId    domain.TokenId  `json:"tokenId"`
	Currency   *domain.Address `json:"currency,omitempty"`
	Price      string          `json:"price"`
	Offerer    domain.Address  `json:"offerer"`
}

type OfferAccepted struct {
	Event      EventType      `json:"event"`
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	NewOwner   domain.Address `json:"newOwner"`
	Price      string         `json:"price"`
}

type OfferWithdrawn struct {
	Event      EventType       `json:"event"`
	Collection domain.Address  `json:"collection"`
	TokenId    domain.TokenId  `json:"tokenId"`
	Currency   *domain.Address `json:"currency,omitempty"`
	Price      string          `json:"price"`
}

// Activity is the persisted history entry for a marketplace event.
type Activity struct {
	Collection domain.Address `json:"collection" bson:"collection"`
	TokenId    domain.TokenId `json:"tokenId" bson:"tokenId"`
	Event      EventType      `json:"event" bson:"event"`
	Account    domain.Address `json:"account" bson:"account"`
	Price      string         `json:"price" bson:"price"`
	CreatedAt  time.Time      `json:"createdAt" bson:"createdAt"`
}
