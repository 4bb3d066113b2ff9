package usecase

import (
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/xerrors"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
)

var auctionStart = time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)

// auctionListing is a currency listing whose auction started at auctionStart
// with a 10 minute bid period and a one hour duration.
func (s *marketplaceSuite) auctionListing() *marketplace.Listing {
	return &marketplace.Listing{
		Collection: collAddr,
		TokenId:    "42",
		Owner:      sellerAddr,
		Currency:   addrPtr(currencyAddr),
		Offers:     []marketplace.Offer{},
		Auction: &marketplace.Auction{
			BidPeriod:     10 * time.Minute,
			StartedAt:     auctionStart,
			EndsAt:        auctionStart.Add(time.Hour),
			CurrentPrice:  "100",
			CurrentWinner: domain.EmptyAddress,
		},
	}
}

func (s *marketplaceSuite) freezeAt(t time.Time) {
	timeNow = func() time.Time { return t }
}

func (s *marketplaceSuite) TestCreateAuction() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()
	s.freezeAt(auctionStart)

	s.listingRepo.On("IsAllowedContract", mock.Anything, domain.ContractKindCurrency, currencyAddr).Return(true, nil).Once()
	s.listingRepo.On("FindOne", mock.Anything, id).Return(&marketplace.Listing{
		Collection: collAddr,
		TokenId:    "42",
		Owner:      sellerAddr,
		Offers:     []marketplace.Offer{},
	}, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(100), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindCreateAuction && tx.Account == sellerAddr && tx.Price == "100"
	})).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(&marketplace.Listing{
		Collection: collAddr,
		TokenId:    "42",
		Owner:      sellerAddr,
		Offers:     []marketplace.Offer{},
	}, nil).Once()
	s.gateway.On("TransferAsset", mock.Anything, int64(100), collAddr, marketAddr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("SetSaleInfo", mock.Anything, id, addrPtr(currencyAddr), (*string)(nil)).Return(nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.BidPeriod == 10*time.Minute &&
			a.StartedAt.Equal(auctionStart) &&
			a.EndsAt.Equal(auctionStart.Add(time.Hour)) &&
			a.CurrentPrice == "100" &&
			!a.HasWinner()
	})).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.CreateAuction(c, sellerAddr, id, addrPtr(currencyAddr), "100", 10*time.Minute, time.Hour)
	s.NoError(err)
	s.Equal(marketplace.EventAuctionCreated, res.Event)
	s.Equal(auctionStart.Add(time.Hour), res.EndsAt)
}

func (s *marketplaceSuite) TestCreateAuctionRejectsShortPeriod() {
	c := ctx.Background()

	_, err := s.im.CreateAuction(c, sellerAddr, s.listingId(), addrPtr(currencyAddr), "100", 30*time.Second, time.Hour)
	s.Equal(domain.ErrInvalidPeriod, err)
}

func (s *marketplaceSuite) TestCreateAuctionRejectsWhileOnSale() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("IsAllowedContract", mock.Anything, domain.ContractKindCurrency, currencyAddr).Return(true, nil).Once()
	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()

	_, err := s.im.CreateAuction(c, sellerAddr, id, addrPtr(currencyAddr), "100", 10*time.Minute, time.Hour)
	s.Equal(domain.ErrOnSale, err)
}

// An auction opened between the snapshot and the slot claim must survive; a
// second creation overwriting it would drop its bids and their escrow.
func (s *marketplaceSuite) TestCreateAuctionRacesExistingAuction() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart)

	s.listingRepo.On("IsAllowedContract", mock.Anything, domain.ContractKindCurrency, currencyAddr).Return(true, nil).Once()
	s.listingRepo.On("FindOne", mock.Anything, id).Return(&marketplace.Listing{
		Collection: collAddr,
		TokenId:    "42",
		Owner:      sellerAddr,
		Offers:     []marketplace.Offer{},
	}, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(100), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.auctionListing(), nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	// no SetAuction expectation: the running auction must stay untouched
	_, err := s.im.CreateAuction(c, sellerAddr, id, addrPtr(currencyAddr), "100", 10*time.Minute, time.Hour)
	s.Equal(domain.ErrAuctionExists, err)
}

func (s *marketplaceSuite) TestBidLadder() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	// first bid on a fresh auction: pull the funds, nobody to displace
	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.auctionListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(2)).Return(int64(110), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindBid && tx.Account == bidder1Addr && tx.Price == "150"
	})).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.auctionListing(), nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(110), currencyAddr, bidder1Addr, marketAddr, "150").Return(nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.CurrentPrice == "150" && a.CurrentWinner == bidder1Addr && a.PendingRefund == nil
	})).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.Bid(c, bidder1Addr, id, "150", "")
	s.NoError(err)
	s.Equal(bidder1Addr, res.Bidder)

	// second bid displaces the first: the refund owed to bidder1 is recorded
	// under the block's second id, not paid out yet
	leading := s.auctionListing()
	leading.Auction.CurrentPrice = "150"
	leading.Auction.CurrentWinner = bidder1Addr
	s.listingRepo.On("FindOne", mock.Anything, id).Return(leading, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(2)).Return(int64(120), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindBid && tx.Account == bidder2Addr && tx.Price == "200"
	})).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(leading, nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(120), currencyAddr, bidder2Addr, marketAddr, "200").Return(nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.CurrentWinner == bidder2Addr &&
			a.PendingRefund != nil &&
			a.PendingRefund.Account == bidder1Addr &&
			a.PendingRefund.Amount == "150" &&
			a.PendingRefund.TxId == 121
	})).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err = s.im.Bid(c, bidder2Addr, id, "200", "")
	s.NoError(err)
	s.Equal(bidder2Addr, res.Bidder)
}

func (s *marketplaceSuite) TestBidResolvesOutstandingRefund() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	listing := s.auctionListing()
	listing.Auction.CurrentPrice = "200"
	listing.Auction.CurrentWinner = bidder2Addr
	listing.Auction.PendingRefund = &marketplace.Refund{Account: bidder1Addr, Amount: "150", TxId: 121}

	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(2)).Return(int64(130), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(listing, nil).Once()
	// the stale refund settles with its recorded id before any new pull
	s.gateway.On("TransferCurrency", mock.Anything, int64(121), currencyAddr, marketAddr, bidder1Addr, "150").Return(nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.PendingRefund == nil
	})).Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(130), currencyAddr, bidder1Addr, marketAddr, "300").Return(nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.CurrentWinner == bidder1Addr &&
			a.PendingRefund != nil &&
			a.PendingRefund.Account == bidder2Addr &&
			a.PendingRefund.Amount == "200" &&
			a.PendingRefund.TxId == 131
	})).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.Bid(c, bidder1Addr, id, "300", "")
	s.NoError(err)
	s.Equal(bidder1Addr, res.Bidder)
}

// A rival bid can commit between the listing snapshot and the slot claim. The
// decision on who gets displaced has to come from the post-claim read, or the
// rival's escrowed funds would be overwritten with no refund recorded.
func (s *marketplaceSuite) TestBidRecordsRefundForBidLandedAfterSnapshot() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	// the snapshot still shows no winner
	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.auctionListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(2)).Return(int64(120), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()

	// by the time the slot is claimed, bidder1's 150 has committed
	landed := s.auctionListing()
	landed.Auction.CurrentPrice = "150"
	landed.Auction.CurrentWinner = bidder1Addr
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(landed, nil).Once()

	s.gateway.On("TransferCurrency", mock.Anything, int64(120), currencyAddr, bidder2Addr, marketAddr, "200").Return(nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.CurrentWinner == bidder2Addr &&
			a.PendingRefund != nil &&
			a.PendingRefund.Account == bidder1Addr &&
			a.PendingRefund.Amount == "150" &&
			a.PendingRefund.TxId == 121
	})).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.Bid(c, bidder2Addr, id, "200", "")
	s.NoError(err)
	s.Equal(bidder2Addr, res.Bidder)
}

// When the post-claim read shows the price already at or above the bid, the
// slot is released and no funds move.
func (s *marketplaceSuite) TestBidOutbidBeforeClaim() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.auctionListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(2)).Return(int64(120), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()

	landed := s.auctionListing()
	landed.Auction.CurrentPrice = "250"
	landed.Auction.CurrentWinner = bidder1Addr
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(landed, nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	_, err := s.im.Bid(c, bidder2Addr, id, "200", "")
	s.Equal(domain.ErrPriceTooLow, err)
}

// A resend of the already-leading bid with a vacant slot is a new operation,
// not a resumption, and must not pull the bidder's funds a second time.
func (s *marketplaceSuite) TestBidResendOfLeadingBidRejected() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	leading := s.auctionListing()
	leading.Auction.CurrentPrice = "200"
	leading.Auction.CurrentWinner = bidder2Addr
	s.listingRepo.On("FindOne", mock.Anything, id).Return(leading, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(2)).Return(int64(120), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(leading, nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	_, err := s.im.Bid(c, bidder2Addr, id, "200", "")
	s.Equal(domain.ErrPriceTooLow, err)
}

// A resumed bid whose state change already landed only releases the slot.
func (s *marketplaceSuite) TestBidResumeAfterAppliedStateChange() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	applied := s.auctionListing()
	applied.Auction.CurrentPrice = "200"
	applied.Auction.CurrentWinner = bidder2Addr
	stored := &marketplace.PendingTx{
		TxId:     120,
		Kind:     marketplace.TxKindBid,
		Account:  bidder2Addr,
		Currency: addrPtr(currencyAddr),
		Price:    "200",
	}
	applied.PendingTx = stored

	s.listingRepo.On("FindOne", mock.Anything, id).Return(applied, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(2)).Return(int64(130), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(false, stored, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(applied, nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.Bid(c, bidder2Addr, id, "200", "")
	s.NoError(err)
	s.Equal(bidder2Addr, res.Bidder)
}

func (s *marketplaceSuite) TestBidAntiSnipe() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	// two minutes before the close, inside the 10 minute bid period
	now := auctionStart.Add(58 * time.Minute)
	s.freezeAt(now)

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.auctionListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(2)).Return(int64(110), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.auctionListing(), nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(110), currencyAddr, bidder1Addr, marketAddr, "150").Return(nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.EndsAt.Equal(now.Add(10 * time.Minute))
	})).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.Bid(c, bidder1Addr, id, "150", "")
	s.NoError(err)
	s.Equal(now.Add(10*time.Minute), res.EndsAt)
}

func (s *marketplaceSuite) TestBidPriceTooLow() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.auctionListing(), nil).Once()

	_, err := s.im.Bid(c, bidder1Addr, id, "100", "")
	s.Equal(domain.ErrPriceTooLow, err)
}

func (s *marketplaceSuite) TestBidAfterEnd() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(2 * time.Hour))

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.auctionListing(), nil).Once()

	_, err := s.im.Bid(c, bidder1Addr, id, "150", "")
	s.Equal(domain.ErrAuctionEnded, err)
}

func (s *marketplaceSuite) nativeAuctionListing() *marketplace.Listing {
	listing := s.auctionListing()
	listing.Currency = nil
	listing.Auction.CurrentPrice = "1500"
	listing.Auction.CurrentWinner = bidder1Addr
	return listing
}

func (s *marketplaceSuite) TestBidNativeRepaysDisplacedBidder() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.nativeAuctionListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(140), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindBid && tx.Account == bidder2Addr && tx.Currency == nil && tx.Price == "2000"
	})).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.nativeAuctionListing(), nil).Once()

	// the new bid's value arrives attached to the request, so the only
	// external step is repaying the displaced bidder under the slot's id
	s.gateway.On("SendValue", mock.Anything, int64(140), bidder1Addr, "1500").Return(nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.CurrentWinner == bidder2Addr && a.CurrentPrice == "2000" && a.PendingRefund == nil
	})).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.Bid(c, bidder2Addr, id, "2000", "2000")
	s.NoError(err)
	s.Equal(bidder2Addr, res.Bidder)
}

// An interrupted native bid must repay the displaced bidder under the same
// transaction id on every attempt; a fresh id per attempt would pay twice.
func (s *marketplaceSuite) TestBidNativeRepaymentReplaysSameId() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	// first attempt: the repayment lands but the state change fails
	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.nativeAuctionListing(), nil).Twice()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(140), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.nativeAuctionListing(), nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.nativeAuctionListing(), nil).Once()
	s.gateway.On("SendValue", mock.Anything, int64(140), bidder1Addr, "1500").Return(nil).Twice()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.Anything).Return(xerrors.New("primary stepdown")).Once()

	_, err := s.im.Bid(c, bidder2Addr, id, "2000", "2000")
	s.Error(err)

	// the retry resumes the held slot and replays id 140, never a new one
	stored := &marketplace.PendingTx{
		TxId:    140,
		Kind:    marketplace.TxKindBid,
		Account: bidder2Addr,
		Price:   "2000",
	}
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(141), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(false, stored, nil).Once()
	s.listingRepo.On("SetAuction", mock.Anything, id, mock.MatchedBy(func(a *marketplace.Auction) bool {
		return a.CurrentWinner == bidder2Addr && a.CurrentPrice == "2000"
	})).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.Bid(c, bidder2Addr, id, "2000", "2000")
	s.NoError(err)
	s.Equal(bidder2Addr, res.Bidder)
}

// A failed repayment keeps the slot: the send may have landed remotely, so
// only a resumption that replays the same id is safe.
func (s *marketplaceSuite) TestBidNativeRepaymentFailureKeepsSlot() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(5 * time.Minute))

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.nativeAuctionListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(140), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.nativeAuctionListing(), nil).Once()
	s.gateway.On("SendValue", mock.Anything, int64(140), bidder1Addr, "1500").Return(xerrors.New("timeout")).Once()

	_, err := s.im.Bid(c, bidder2Addr, id, "2000", "2000")
	s.Equal(domain.ErrRerunTransaction, err)
}

func (s *marketplaceSuite) TestSettleAuction() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()
	s.freezeAt(auctionStart.Add(2 * time.Hour))

	listing := s.auctionListing()
	listing.Auction.CurrentPrice = "200"
	listing.Auction.CurrentWinner = bidder2Addr
	listing.Auction.PendingRefund = &marketplace.Refund{Account: bidder1Addr, Amount: "150", TxId: 121}
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(listing, nil).Twice()

	// 200 at 200 bps: 4 to the treasury, 196 split between seller and royalty
	s.payouts.On("ComputePayouts", mock.Anything, collAddr, sellerAddr, "196").
		Return(map[domain.Address]string{
			sellerAddr:  "186",
			royaltyAddr: "10",
		}, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(4)).Return(int64(150), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindSettleAuction &&
			tx.Account == domain.EmptyAddress &&
			tx.Price == "200"
	})).Return(true, nil, nil).Once()

	s.gateway.On("TransferCurrency", mock.Anything, int64(121), currencyAddr, marketAddr, bidder1Addr, "150").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(150), currencyAddr, marketAddr, royaltyAddr, "10").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(151), currencyAddr, marketAddr, sellerAddr, "186").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(152), currencyAddr, marketAddr, treasuryAddr, "4").Return(nil).Once()
	s.gateway.On("TransferAsset", mock.Anything, int64(153), collAddr, bidder2Addr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("CompleteSale", mock.Anything, id, bidder2Addr).Return(nil).Once()

	res, err := s.im.SettleAuction(c, sellerAddr, id)
	s.NoError(err)
	s.Equal(marketplace.EventAuctionSettled, res.Event)
	s.Equal(bidder2Addr, res.Winner)
	s.Equal("200", res.Price)
}

func (s *marketplaceSuite) TestSettleAuctionBeforeEnd() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(30 * time.Minute))

	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.auctionListing(), nil).Once()

	_, err := s.im.SettleAuction(c, sellerAddr, id)
	s.Equal(domain.ErrAuctionNotEnded, err)
}

// A last-second bid extends the deadline, so a settlement that claimed its
// slot against the pre-bid state backs off instead of paying out stale state.
func (s *marketplaceSuite) TestSettleAuctionBacksOffAfterLateBid() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(61 * time.Minute))

	ended := s.auctionListing()
	ended.Auction.CurrentPrice = "200"
	ended.Auction.CurrentWinner = bidder2Addr
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(ended, nil).Once()
	s.payouts.On("ComputePayouts", mock.Anything, collAddr, sellerAddr, "196").
		Return(map[domain.Address]string{sellerAddr: "196"}, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(3)).Return(int64(150), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()

	extended := s.auctionListing()
	extended.Auction.CurrentPrice = "300"
	extended.Auction.CurrentWinner = bidder1Addr
	extended.Auction.EndsAt = auctionStart.Add(70 * time.Minute)
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(extended, nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	_, err := s.im.SettleAuction(c, sellerAddr, id)
	s.Equal(domain.ErrAuctionNotEnded, err)
}

func (s *marketplaceSuite) TestSettleAuctionWithoutBids() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()
	s.freezeAt(auctionStart.Add(2 * time.Hour))

	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.auctionListing(), nil).Twice()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(160), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.gateway.On("TransferAsset", mock.Anything, int64(160), collAddr, sellerAddr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("CompleteSale", mock.Anything, id, sellerAddr).Return(nil).Once()

	res, err := s.im.SettleAuction(c, sellerAddr, id)
	s.NoError(err)
	s.Equal(marketplace.EventAuctionCancelled, res.Event)
}

func (s *marketplaceSuite) TestSettleAuctionRefundFailureKeepsSlot() {
	c := ctx.Background()
	id := s.listingId()
	s.freezeAt(auctionStart.Add(2 * time.Hour))

	listing := s.auctionListing()
	listing.Auction.CurrentPrice = "200"
	listing.Auction.CurrentWinner = bidder2Addr
	listing.Auction.PendingRefund = &marketplace.Refund{Account: bidder1Addr, Amount: "150", TxId: 121}
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(listing, nil).Twice()
	s.payouts.On("ComputePayouts", mock.Anything, collAddr, sellerAddr, "196").
		Return(map[domain.Address]string{sellerAddr: "196"}, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(3)).Return(int64(150), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(121), currencyAddr, marketAddr, bidder1Addr, "150").Return(xerrors.New("timeout")).Once()

	// any caller may resubmit and drive the settlement to completion
	_, err := s.im.SettleAuction(c, sellerAddr, id)
	s.Equal(domain.ErrRerunTransaction, err)
}
