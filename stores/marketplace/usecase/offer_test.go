package usecase

import (
	"github.com/stretchr/testify/mock"
	"golang.org/x/xerrors"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
)

func (s *marketplaceSuite) TestAddOfferNative() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.listingRepo.On("AddOffer", mock.Anything, id, marketplace.Offer{
		Price:   "5000",
		Offerer: buyerAddr,
	}).Return(nil).Once()

	res, err := s.im.AddOffer(c, buyerAddr, id, nil, "5000", "5000")
	s.NoError(err)
	s.Equal(marketplace.EventOfferAdded, res.Event)
	s.Equal(buyerAddr, res.Offerer)
	s.Nil(res.Currency)
}

func (s *marketplaceSuite) TestAddOfferNativeValueMismatch() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()

	_, err := s.im.AddOffer(c, buyerAddr, id, nil, "5000", "4999")
	s.Equal(domain.ErrValueMismatch, err)
}

func (s *marketplaceSuite) TestAddOfferDuplicate() {
	c := ctx.Background()
	id := s.listingId()

	listing := s.saleListing()
	listing.Offers = []marketplace.Offer{{Currency: addrPtr(currencyAddr), Price: "60", Offerer: bidder1Addr}}
	s.listingRepo.On("IsAllowedContract", mock.Anything, domain.ContractKindCurrency, currencyAddr).Return(true, nil).Once()
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()

	_, err := s.im.AddOffer(c, buyerAddr, id, addrPtr(currencyAddr), "60", "")
	s.Equal(domain.ErrDuplicateOffer, err)
}

func (s *marketplaceSuite) TestAddOfferDuringAuction() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.auctionListing(), nil).Once()

	_, err := s.im.AddOffer(c, buyerAddr, id, nil, "5000", "5000")
	s.Equal(domain.ErrAuctionActive, err)
}

func (s *marketplaceSuite) TestAddOfferCurrency() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	s.listingRepo.On("IsAllowedContract", mock.Anything, domain.ContractKindCurrency, currencyAddr).Return(true, nil).Once()
	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(170), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindOffer && tx.Account == bidder1Addr && tx.Price == "60"
	})).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(170), currencyAddr, bidder1Addr, marketAddr, "60").Return(nil).Once()
	s.listingRepo.On("AddOffer", mock.Anything, id, marketplace.Offer{
		Currency: addrPtr(currencyAddr),
		Price:    "60",
		Offerer:  bidder1Addr,
	}).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.AddOffer(c, bidder1Addr, id, addrPtr(currencyAddr), "60", "")
	s.NoError(err)
	s.Equal("60", res.Price)
}

func (s *marketplaceSuite) TestAddOfferEscrowPullFails() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("IsAllowedContract", mock.Anything, domain.ContractKindCurrency, currencyAddr).Return(true, nil).Once()
	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(170), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(170), currencyAddr, bidder1Addr, marketAddr, "60").Return(xerrors.New("insufficient funds")).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	_, err := s.im.AddOffer(c, bidder1Addr, id, addrPtr(currencyAddr), "60", "")
	s.Equal(domain.ErrTransferFailed, err)
}

// A rival offer at the same price can land between the snapshot and the slot
// claim; pulling escrow behind a second entry would strand it.
func (s *marketplaceSuite) TestAddOfferRivalLandedAfterSnapshot() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("IsAllowedContract", mock.Anything, domain.ContractKindCurrency, currencyAddr).Return(true, nil).Once()
	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(170), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()

	taken := s.saleListing()
	taken.Offers = []marketplace.Offer{{Currency: addrPtr(currencyAddr), Price: "60", Offerer: bidder1Addr}}
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(taken, nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	// no TransferCurrency expectation: the pull must not happen
	_, err := s.im.AddOffer(c, buyerAddr, id, addrPtr(currencyAddr), "60", "")
	s.Equal(domain.ErrDuplicateOffer, err)
}

func (s *marketplaceSuite) TestAcceptOffer() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	listing := s.saleListing()
	listing.Offers = []marketplace.Offer{{Currency: addrPtr(currencyAddr), Price: "60", Offerer: buyerAddr}}
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()

	// 60 at 200 bps: 1 to the treasury, 59 split between seller and royalty
	s.payouts.On("ComputePayouts", mock.Anything, collAddr, sellerAddr, "59").
		Return(map[domain.Address]string{
			sellerAddr:  "56",
			royaltyAddr: "3",
		}, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(5)).Return(int64(180), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindAcceptOffer && tx.Account == buyerAddr && tx.Price == "60"
	})).Return(true, nil, nil).Once()
	fresh := s.saleListing()
	fresh.Offers = []marketplace.Offer{{Currency: addrPtr(currencyAddr), Price: "60", Offerer: buyerAddr}}
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(fresh, nil).Once()

	s.gateway.On("TransferAsset", mock.Anything, int64(180), collAddr, marketAddr, domain.TokenId("42")).Return(nil).Once()
	// the offer entry goes away before the funds move so it can no longer be
	// withdrawn concurrently
	s.listingRepo.On("RemoveOffer", mock.Anything, id, addrPtr(currencyAddr), "60").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(181), currencyAddr, marketAddr, royaltyAddr, "3").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(182), currencyAddr, marketAddr, sellerAddr, "56").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(183), currencyAddr, marketAddr, treasuryAddr, "1").Return(nil).Once()
	s.gateway.On("TransferAsset", mock.Anything, int64(184), collAddr, buyerAddr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("CompleteSale", mock.Anything, id, buyerAddr).Return(nil).Once()

	res, err := s.im.AcceptOffer(c, sellerAddr, id, addrPtr(currencyAddr), "60")
	s.NoError(err)
	s.Equal(marketplace.EventOfferAccepted, res.Event)
	s.Equal(buyerAddr, res.NewOwner)
	s.Equal("60", res.Price)
}

func (s *marketplaceSuite) TestAcceptOfferResumesFromSlot() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	// the interrupted run already removed the offer entry; the offerer is
	// recovered from the saga slot and the whole block replays
	stored := &marketplace.PendingTx{
		TxId:     180,
		Kind:     marketplace.TxKindAcceptOffer,
		Account:  buyerAddr,
		Currency: addrPtr(currencyAddr),
		Price:    "60",
	}
	listing := s.saleListing()
	listing.PendingTx = stored
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()

	s.payouts.On("ComputePayouts", mock.Anything, collAddr, sellerAddr, "59").
		Return(map[domain.Address]string{
			sellerAddr:  "56",
			royaltyAddr: "3",
		}, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(5)).Return(int64(190), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(false, stored, nil).Once()
	// the fresh copy has no offer entry either; the resumed slot vouches for it
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()

	s.gateway.On("TransferAsset", mock.Anything, int64(180), collAddr, marketAddr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("RemoveOffer", mock.Anything, id, addrPtr(currencyAddr), "60").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(181), currencyAddr, marketAddr, royaltyAddr, "3").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(182), currencyAddr, marketAddr, sellerAddr, "56").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(183), currencyAddr, marketAddr, treasuryAddr, "1").Return(nil).Once()
	s.gateway.On("TransferAsset", mock.Anything, int64(184), collAddr, buyerAddr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("CompleteSale", mock.Anything, id, buyerAddr).Return(nil).Once()

	res, err := s.im.AcceptOffer(c, sellerAddr, id, addrPtr(currencyAddr), "60")
	s.NoError(err)
	s.Equal(buyerAddr, res.NewOwner)
}

// A withdrawal can refund the offer between the snapshot and the slot claim;
// settling anyway would disburse escrow the market no longer holds.
func (s *marketplaceSuite) TestAcceptOfferWithdrawnBeforeClaim() {
	c := ctx.Background()
	id := s.listingId()

	listing := s.saleListing()
	listing.Offers = []marketplace.Offer{{Currency: addrPtr(currencyAddr), Price: "60", Offerer: buyerAddr}}
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()

	s.payouts.On("ComputePayouts", mock.Anything, collAddr, sellerAddr, "59").
		Return(map[domain.Address]string{
			sellerAddr:  "56",
			royaltyAddr: "3",
		}, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(5)).Return(int64(180), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	// no gateway expectations: nothing may move
	_, err := s.im.AcceptOffer(c, sellerAddr, id, addrPtr(currencyAddr), "60")
	s.Equal(domain.ErrNoSuchOffer, err)
}

func (s *marketplaceSuite) TestAcceptOfferNotOwner() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()

	_, err := s.im.AcceptOffer(c, bidder1Addr, id, addrPtr(currencyAddr), "60")
	s.Equal(domain.ErrNotOwner, err)
}

func (s *marketplaceSuite) TestAcceptMissingOffer() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()

	_, err := s.im.AcceptOffer(c, sellerAddr, id, addrPtr(currencyAddr), "60")
	s.Equal(domain.ErrNoSuchOffer, err)
}

func (s *marketplaceSuite) withdrawableNativeListing() *marketplace.Listing {
	listing := s.saleListing()
	listing.Offers = []marketplace.Offer{{Price: "5000", Offerer: buyerAddr}}
	return listing
}

func (s *marketplaceSuite) TestWithdrawOfferNative() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.withdrawableNativeListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(195), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindWithdrawOffer && tx.Account == buyerAddr && tx.Currency == nil && tx.Price == "5000"
	})).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.withdrawableNativeListing(), nil).Once()
	s.gateway.On("SendValue", mock.Anything, int64(195), buyerAddr, "5000").Return(nil).Once()
	s.listingRepo.On("RemoveOffer", mock.Anything, id, (*domain.Address)(nil), "5000").Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.WithdrawOffer(c, buyerAddr, id, nil, "5000")
	s.NoError(err)
	s.Equal(marketplace.EventOfferWithdrawn, res.Event)
	s.Equal("5000", res.Price)
}

// A failed refund keeps the slot, and the retry replays the stored id so the
// offerer can never collect twice.
func (s *marketplaceSuite) TestWithdrawOfferRefundReplaysSameId() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.withdrawableNativeListing(), nil).Twice()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(195), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.withdrawableNativeListing(), nil).Twice()
	s.gateway.On("SendValue", mock.Anything, int64(195), buyerAddr, "5000").Return(xerrors.New("timeout")).Once()

	_, err := s.im.WithdrawOffer(c, buyerAddr, id, nil, "5000")
	s.Equal(domain.ErrRerunTransaction, err)

	stored := &marketplace.PendingTx{
		TxId:    195,
		Kind:    marketplace.TxKindWithdrawOffer,
		Account: buyerAddr,
		Price:   "5000",
	}
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(196), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(false, stored, nil).Once()
	s.gateway.On("SendValue", mock.Anything, int64(195), buyerAddr, "5000").Return(nil).Once()
	s.listingRepo.On("RemoveOffer", mock.Anything, id, (*domain.Address)(nil), "5000").Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.WithdrawOffer(c, buyerAddr, id, nil, "5000")
	s.NoError(err)
	s.Equal("5000", res.Price)
}

// An acceptance can consume the offer between the snapshot and the slot
// claim; the withdrawal then backs off without refunding anything.
func (s *marketplaceSuite) TestWithdrawOfferConsumedBeforeClaim() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.withdrawableNativeListing(), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(195), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	_, err := s.im.WithdrawOffer(c, buyerAddr, id, nil, "5000")
	s.Equal(domain.ErrNoSuchOffer, err)
}

func (s *marketplaceSuite) TestWithdrawOfferCurrency() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	listing := s.saleListing()
	listing.Offers = []marketplace.Offer{{Currency: addrPtr(currencyAddr), Price: "60", Offerer: buyerAddr}}
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(1)).Return(int64(196), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.Kind == marketplace.TxKindWithdrawOffer && tx.Account == buyerAddr && tx.Price == "60"
	})).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(listing, nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(196), currencyAddr, marketAddr, buyerAddr, "60").Return(nil).Once()
	s.listingRepo.On("RemoveOffer", mock.Anything, id, addrPtr(currencyAddr), "60").Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.WithdrawOffer(c, buyerAddr, id, addrPtr(currencyAddr), "60")
	s.NoError(err)
	s.Equal("60", res.Price)
}

func (s *marketplaceSuite) TestWithdrawOfferNotOfferer() {
	c := ctx.Background()
	id := s.listingId()

	listing := s.saleListing()
	listing.Offers = []marketplace.Offer{{Currency: addrPtr(currencyAddr), Price: "60", Offerer: buyerAddr}}
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()

	_, err := s.im.WithdrawOffer(c, bidder1Addr, id, addrPtr(currencyAddr), "60")
	s.Equal(domain.ErrNotOfferer, err)
}

func (s *marketplaceSuite) TestWithdrawMissingOffer() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()

	_, err := s.im.WithdrawOffer(c, buyerAddr, id, nil, "5000")
	s.Equal(domain.ErrNoSuchOffer, err)
}

func (s *marketplaceSuite) TestWithdrawOfferReleasesStaleSlot() {
	c := ctx.Background()
	id := s.listingId()

	// offer already dropped by an interrupted withdrawal; only its slot is left
	listing := s.saleListing()
	listing.PendingTx = &marketplace.PendingTx{
		TxId:     196,
		Kind:     marketplace.TxKindWithdrawOffer,
		Account:  buyerAddr,
		Currency: addrPtr(currencyAddr),
		Price:    "60",
	}
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	res, err := s.im.WithdrawOffer(c, buyerAddr, id, addrPtr(currencyAddr), "60")
	s.NoError(err)
	s.Equal(marketplace.EventOfferWithdrawn, res.Event)
}
