package usecase

import (
	"github.com/stretchr/testify/mock"
	"golang.org/x/xerrors"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
)

func addrPtr(a domain.Address) *domain.Address { return &a }
func strPtr(s string) *string                  { return &s }

// saleListing is a currency listing at price 100 owned by sellerAddr. With a
// 200 bps fee the settlement disburses 2 to the treasury and splits the
// remaining 98 as 93 to the seller and 5 to the royalty recipient; sorted by
// account the legs are royalty, seller, treasury.
func (s *marketplaceSuite) saleListing() *marketplace.Listing {
	return &marketplace.Listing{
		Collection: collAddr,
		TokenId:    "42",
		Owner:      sellerAddr,
		Currency:   addrPtr(currencyAddr),
		Price:      strPtr("100"),
		Offers:     []marketplace.Offer{},
	}
}

func (s *marketplaceSuite) expectSalePayouts() {
	s.payouts.On("ComputePayouts", mock.Anything, collAddr, sellerAddr, "98").
		Return(map[domain.Address]string{
			sellerAddr:  "93",
			royaltyAddr: "5",
		}, nil)
}

func (s *marketplaceSuite) TestBuy() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.expectSalePayouts()
	s.txIdRepo.On("Reserve", mock.Anything, int64(7)).Return(int64(100), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.MatchedBy(func(tx *marketplace.PendingTx) bool {
		return tx.TxId == 100 &&
			tx.Kind == marketplace.TxKindSale &&
			tx.Account == buyerAddr &&
			tx.Price == "100"
	})).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()

	s.gateway.On("TransferAsset", mock.Anything, int64(100), collAddr, marketAddr, domain.TokenId("42")).Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(101), currencyAddr, buyerAddr, marketAddr, "100").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(102), currencyAddr, marketAddr, royaltyAddr, "5").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(103), currencyAddr, marketAddr, sellerAddr, "93").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(104), currencyAddr, marketAddr, treasuryAddr, "2").Return(nil).Once()
	s.gateway.On("TransferAsset", mock.Anything, int64(105), collAddr, buyerAddr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("CompleteSale", mock.Anything, id, buyerAddr).Return(nil).Once()

	res, err := s.im.Buy(c, buyerAddr, id, "")
	s.NoError(err)
	s.Equal(marketplace.EventItemSold, res.Event)
	s.Equal(buyerAddr, res.NewOwner)
	s.Equal("100", res.Price)
}

func (s *marketplaceSuite) TestBuyDisbursementFailureThenResume() {
	c := ctx.Background()
	id := s.listingId()
	s.allowActivities()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Twice()
	s.expectSalePayouts()

	stored := &marketplace.PendingTx{
		TxId:     100,
		Kind:     marketplace.TxKindSale,
		Account:  buyerAddr,
		Currency: addrPtr(currencyAddr),
		Price:    "100",
	}
	s.txIdRepo.On("Reserve", mock.Anything, int64(7)).Return(int64(100), nil).Once()
	s.txIdRepo.On("Reserve", mock.Anything, int64(7)).Return(int64(200), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(false, stored, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Twice()

	// both runs replay the full sequence under the ids reserved the first
	// time; the second leg fails once and then succeeds
	s.gateway.On("TransferAsset", mock.Anything, int64(100), collAddr, marketAddr, domain.TokenId("42")).Return(nil).Twice()
	s.gateway.On("TransferCurrency", mock.Anything, int64(101), currencyAddr, buyerAddr, marketAddr, "100").Return(nil).Twice()
	s.gateway.On("TransferCurrency", mock.Anything, int64(102), currencyAddr, marketAddr, royaltyAddr, "5").Return(nil).Twice()
	s.gateway.On("TransferCurrency", mock.Anything, int64(103), currencyAddr, marketAddr, sellerAddr, "93").Return(xerrors.New("host unreachable")).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(103), currencyAddr, marketAddr, sellerAddr, "93").Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(104), currencyAddr, marketAddr, treasuryAddr, "2").Return(nil).Once()
	s.gateway.On("TransferAsset", mock.Anything, int64(105), collAddr, buyerAddr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("CompleteSale", mock.Anything, id, buyerAddr).Return(nil).Once()

	_, err := s.im.Buy(c, buyerAddr, id, "")
	s.Equal(domain.ErrRerunTransaction, err)

	res, err := s.im.Buy(c, buyerAddr, id, "")
	s.NoError(err)
	s.Equal(buyerAddr, res.NewOwner)
}

func (s *marketplaceSuite) TestBuyCollectFailureRollsBack() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.expectSalePayouts()
	s.txIdRepo.On("Reserve", mock.Anything, int64(7)).Return(int64(100), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()

	s.gateway.On("TransferAsset", mock.Anything, int64(100), collAddr, marketAddr, domain.TokenId("42")).Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(101), currencyAddr, buyerAddr, marketAddr, "100").Return(xerrors.New("insufficient funds")).Once()
	// the asset goes back to the seller under the reserved rollback id
	s.gateway.On("TransferAsset", mock.Anything, int64(106), collAddr, sellerAddr, domain.TokenId("42")).Return(nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	_, err := s.im.Buy(c, buyerAddr, id, "")
	s.Equal(domain.ErrTransferFailed, err)
}

func (s *marketplaceSuite) TestBuyRollbackFailureKeepsSlot() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.expectSalePayouts()
	s.txIdRepo.On("Reserve", mock.Anything, int64(7)).Return(int64(100), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(s.saleListing(), nil).Once()

	s.gateway.On("TransferAsset", mock.Anything, int64(100), collAddr, marketAddr, domain.TokenId("42")).Return(nil).Once()
	s.gateway.On("TransferCurrency", mock.Anything, int64(101), currencyAddr, buyerAddr, marketAddr, "100").Return(xerrors.New("timeout")).Once()
	s.gateway.On("TransferAsset", mock.Anything, int64(106), collAddr, sellerAddr, domain.TokenId("42")).Return(xerrors.New("timeout")).Once()

	// no ClearTx: the slot survives so a resubmission can replay the sale
	_, err := s.im.Buy(c, buyerAddr, id, "")
	s.Equal(domain.ErrRerunTransaction, err)
}

func (s *marketplaceSuite) TestBuyRelistedBeforeClaim() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.expectSalePayouts()
	s.txIdRepo.On("Reserve", mock.Anything, int64(7)).Return(int64(100), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(true, nil, nil).Once()

	// the owner re-listed at a higher price after the snapshot was taken; the
	// purchase backs out instead of collecting the price the buyer never saw
	relisted := s.saleListing()
	relisted.Price = strPtr("150")
	s.listingRepo.On("FindOneFresh", mock.Anything, id).Return(relisted, nil).Once()
	s.listingRepo.On("ClearTx", mock.Anything, id).Return(nil).Once()

	// no gateway expectations: nothing may move
	_, err := s.im.Buy(c, buyerAddr, id, "")
	s.Equal(domain.ErrNotOnSale, err)
}

func (s *marketplaceSuite) TestBuyConflictingTransaction() {
	c := ctx.Background()
	id := s.listingId()

	s.listingRepo.On("FindOne", mock.Anything, id).Return(s.saleListing(), nil).Once()
	s.expectSalePayouts()
	s.txIdRepo.On("Reserve", mock.Anything, int64(7)).Return(int64(100), nil).Once()
	s.listingRepo.On("BeginTx", mock.Anything, id, mock.Anything).Return(false, &marketplace.PendingTx{
		TxId:    80,
		Kind:    marketplace.TxKindOffer,
		Account: bidder1Addr,
		Price:   "60",
	}, nil).Once()

	_, err := s.im.Buy(c, buyerAddr, id, "")
	s.Equal(domain.ErrWrongTransaction, err)
}

func (s *marketplaceSuite) TestBuyNativeValueMismatch() {
	c := ctx.Background()
	id := s.listingId()

	listing := s.saleListing()
	listing.Currency = nil
	listing.Price = strPtr("1000")
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()

	_, err := s.im.Buy(c, buyerAddr, id, "999")
	s.Equal(domain.ErrValueMismatch, err)
}

func (s *marketplaceSuite) TestBuyNotOnSale() {
	c := ctx.Background()
	id := s.listingId()

	listing := s.saleListing()
	listing.Price = nil
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()

	_, err := s.im.Buy(c, buyerAddr, id, "")
	s.Equal(domain.ErrNotOnSale, err)
}

func (s *marketplaceSuite) TestBuyDuringAuction() {
	c := ctx.Background()
	id := s.listingId()

	listing := s.saleListing()
	listing.Auction = &marketplace.Auction{}
	s.listingRepo.On("FindOne", mock.Anything, id).Return(listing, nil).Once()

	_, err := s.im.Buy(c, buyerAddr, id, "")
	s.Equal(domain.ErrAuctionActive, err)
}
