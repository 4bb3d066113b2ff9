package marketplace

import (
	"time"

	"github.com/nftmarket/goapi/domain"
)

const (
	// MinimumValue is the dust threshold for amounts denominated in native value
	MinimumValue = "500"

	// MinBidPeriod bounds both the bid period and the auction duration
	MinBidPeriod = time.Minute

	// MaxTreasuryFeeBps caps the marketplace cut at 5%
	MaxTreasuryFeeBps = 500

	BpsDenominator = 10000

	// NativeDecimals is the scale of native value amounts in display payloads
	NativeDecimals = 18
)

type ListingId struct {
	Collection domain.Address `json:"collection" bson:"collection"`
	TokenId    domain.TokenId `json:"tokenId" bson:"tokenId"`
}

// Offer is a standing offer escrowed against a listing. Currency == nil means
// the offer is denominated in native value held by the payments host.
type Offer struct {
	Currency *domain.Address `json:"currency" bson:"currency,omitempty"`
	Price    string          `json:"price" bson:"price"`
	Offerer  domain.Address  `json:"offerer" bson:"offerer"`
}

func (o *Offer) SameKey(currency *domain.Address, price string) bool {
	return SameCurrency(o.Currency, currency) && o.Price == price
}

// Refund is the single outstanding repayment owed to a displaced bidder.
// TxId is reused on every retry so the remote ledger never pays it twice.
type Refund struct {
	Account domain.Address `json:"account" bson:"account"`
	Amount  string         `json:"amount" bson:"amount"`
	TxId    int64          `json:"txId" bson:"txId"`
}

type Auction struct {
	BidPeriod     time.Duration  `json:"bidPeriod" bson:"bidPeriod"`
	StartedAt     time.Time      `json:"startedAt" bson:"startedAt"`
	EndsAt        time.Time      `json:"endsAt" bson:"endsAt"`
	CurrentPrice  string         `json:"currentPrice" bson:"currentPrice"`
	CurrentWinner domain.Address `json:"currentWinner" bson:"currentWinner"`
	PendingRefund *Refund        `json:"pendingRefund" bson:"pendingRefund,omitempty"`
}

func (a *Auction) Ended(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

func (a *Auction) HasWinner() bool {
	return !a.CurrentWinner.IsEmpty()
}

type TxKind string

const (
	TxKindSale          TxKind = "sale"
	TxKindCreateAuction TxKind = "createAuction"
	TxKindBid           TxKind = "bid"
	TxKindSettleAuction TxKind = "settleAuction"
	TxKindOffer         TxKind = "offer"
	TxKindAcceptOffer   TxKind = "acceptOffer"
	TxKindWithdrawOffer TxKind = "withdrawOffer"
)

// PendingTx is the single in-flight saga slot of a listing. A resubmitted
// request with the same kind and parameters resumes it; anything else is
// rejected until the slot is cleared.
type PendingTx struct {
	TxId     int64           `json:"txId" bson:"txId"`
	Kind     TxKind          `json:"kind" bson:"kind"`
	Account  domain.Address  `json:"account" bson:"account"`
	Currency *domain.Address `json:"currency" bson:"currency,omitempty"`
	Price    string          `json:"price" bson:"price"`
}

// Matches reports whether a requested operation is a resumption of this slot.
// The tx id is deliberately excluded: the resumed request reuses the stored one.
func (t *PendingTx) Matches(o *PendingTx) bool {
	return t.Kind == o.Kind &&
		t.Account.Equals(o.Account) &&
		SameCurrency(t.Currency, o.Currency) &&
		t.Price == o.Price
}

type Listing struct {
	Collection domain.Address  `json:"collection" bson:"collection"`
	TokenId    domain.TokenId  `json:"tokenId" bson:"tokenId"`
	Owner      domain.Address  `json:"owner" bson:"owner"`
	Currency   *domain.Address `json:"currency" bson:"currency,omitempty"`
	Price      *string         `json:"price" bson:"price,omitempty"`
	Auction    *Auction        `json:"auction" bson:"auction,omitempty"`
	Offers     []Offer         `json:"offers" bson:"offers"`
	PendingTx  *PendingTx      `json:"pendingTx" bson:"pendingTx,omitempty"`
	CreatedAt  time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt" bson:"updatedAt"`
}

func (l *Listing) ToId() ListingId {
	return ListingId{Collection: l.Collection, TokenId: l.TokenId}
}

func (l *Listing) IsNative() bool {
	return l.Currency == nil
}

func (l *Listing) FindOffer(currency *domain.Address, price string) *Offer {
	for i := range l.Offers {
		if l.Offers[i].SameKey(currency, price) {
			return &l.Offers[i]
		}
	}
	return nil
}

func SameCurrency(a, b *domain.Address) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equals(*b)
}
