package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	bCtx "github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/delivery"
	"github.com/nftmarket/goapi/base/metrics"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
	"github.com/nftmarket/goapi/middleware"
	authMiddleware "github.com/nftmarket/goapi/stores/auth/delivery/http/middleware"
)

var met metrics.Service

type handler struct {
	marketplace marketplace.UseCase
}

func New(e *echo.Echo, uc marketplace.UseCase, auth *authMiddleware.AuthMiddleware) {
	met = metrics.New("marketplace")

	h := &handler{
		marketplace: uc,
	}

	g := e.Group("/marketplace")

	g.POST("/contracts/asset", h.registerAssetContract, auth.Auth(), auth.IsAdmin())
	g.POST("/contracts/currency", h.registerCurrencyContract, auth.Auth(), auth.IsAdmin())

	g.GET("/listings", h.getListings, middleware.CacheHttp(10*time.Second))
	g.POST("/listings", h.list, auth.Auth())

	l := e.Group("/marketplace/listings/:collection/:tokenId")

	l.GET("", h.getListing)
	l.GET("/activities", h.getActivities, middleware.CacheHttp(10*time.Second))
	l.POST("/buy", h.buy, auth.Auth())
	l.POST("/auction", h.createAuction, auth.Auth())
	l.POST("/bids", h.bid, auth.Auth())
	l.POST("/settle", h.settleAuction, auth.Auth())
	l.POST("/offers", h.addOffer, auth.Auth())
	l.POST("/offers/accept", h.acceptOffer, auth.Auth())
	l.DELETE("/offers", h.withdrawOffer, auth.Auth())
}

func listingId(c echo.Context) marketplace.ListingId {
	return marketplace.ListingId{
		Collection: domain.Address(c.Param("collection")).ToLower(),
		TokenId:    domain.TokenId(c.Param("tokenId")),
	}
}

// errResp maps the failure taxonomy onto http statuses: validation errors are
// 400s, permission errors 403s, saga conflicts 409s, and external transfer
// failures 502s the caller is expected to retry or resume.
func errResp(c echo.Context, err error) error {
	switch err {
	case domain.ErrNotFound:
		return delivery.MakeJsonResp(c, http.StatusNotFound, err)
	case domain.ErrNotAdmin, domain.ErrNotOwner, domain.ErrNotOfferer:
		return delivery.MakeJsonResp(c, http.StatusForbidden, err)
	case domain.ErrWrongTransaction, domain.ErrRerunTransaction, domain.ErrConflict:
		return delivery.MakeJsonResp(c, http.StatusConflict, err)
	case domain.ErrTransferFailed:
		return delivery.MakeJsonResp(c, http.StatusBadGateway, err)
	case domain.ErrNotApprovedContract, domain.ErrNotOnSale, domain.ErrOnSale,
		domain.ErrAlreadyListed, domain.ErrAuctionActive, domain.ErrAuctionExists,
		domain.ErrNoAuction, domain.ErrAuctionEnded, domain.ErrAuctionNotEnded,
		domain.ErrPriceTooLow, domain.ErrInvalidPrice, domain.ErrInvalidPeriod,
		domain.ErrInvalidAmount, domain.ErrValueMismatch, domain.ErrDuplicateOffer,
		domain.ErrNoSuchOffer, domain.ErrInvalidAddress, domain.ErrBadParamInput:
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	default:
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
}

func (h *handler) registerAssetContract(c echo.Context) error {
	return h.registerContract(c, h.marketplace.RegisterAssetContract)
}

func (h *handler) registerCurrencyContract(c echo.Context) error {
	return h.registerContract(c, h.marketplace.RegisterCurrencyContract)
}

func (h *handler) registerContract(c echo.Context, register func(bCtx.Ctx, domain.Address, domain.Address) (*marketplace.Registered, error)) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	type params struct {
		Contract domain.Address `json:"contract" validate:"required"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err.Error())
	}

	if res, err := register(ctx, address, p.Contract); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, res)
	}
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	type params struct {
		Collection domain.Address  `json:"collection" validate:"required"`
		TokenId    domain.TokenId  `json:"tokenId" validate:"required"`
		Currency   *domain.Address `json:"currency"`
		Price      *string         `json:"price"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err.Error())
	}

	id := marketplace.ListingId{Collection: p.Collection.ToLower(), TokenId: p.TokenId}
	if res, err := h.marketplace.List(ctx, address, id, p.Currency, p.Price); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, res)
	}
}

func (h *handler) buy(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	type params struct {
		Value string `json:"value"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	if res, err := h.marketplace.Buy(ctx, address, listingId(c), p.Value); err != nil {
		return errResp(c, err)
	} else {
		met.BumpSum("trade.count", 1, "kind", "sale")
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}

func (h *handler) createAuction(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	type params struct {
		Currency  *domain.Address `json:"currency"`
		MinPrice  string          `json:"minPrice" validate:"required"`
		BidPeriod int64           `json:"bidPeriod" validate:"required,gt=0"`
		Duration  int64           `json:"duration" validate:"required,gt=0"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err.Error())
	}

	bidPeriod := time.Duration(p.BidPeriod) * time.Millisecond
	duration := time.Duration(p.Duration) * time.Millisecond
	if res, err := h.marketplace.CreateAuction(ctx, address, listingId(c), p.Currency, p.MinPrice, bidPeriod, duration); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, res)
	}
}

func (h *handler) bid(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	type params struct {
		Price string `json:"price" validate:"required"`
		Value string `json:"value"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err.Error())
	}

	if res, err := h.marketplace.Bid(ctx, address, listingId(c), p.Price, p.Value); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}

func (h *handler) settleAuction(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	if res, err := h.marketplace.SettleAuction(ctx, address, listingId(c)); err != nil {
		return errResp(c, err)
	} else {
		met.BumpSum("trade.count", 1, "kind", "auction")
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}

func (h *handler) addOffer(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	type params struct {
		Currency *domain.Address `json:"currency"`
		Price    string          `json:"price" validate:"required"`
		Value    string          `json:"value"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err.Error())
	}

	if res, err := h.marketplace.AddOffer(ctx, address, listingId(c), p.Currency, p.Price, p.Value); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, res)
	}
}

func (h *handler) acceptOffer(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	type params struct {
		Currency *domain.Address `json:"currency"`
		Price    string          `json:"price" validate:"required"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err.Error())
	}

	if res, err := h.marketplace.AcceptOffer(ctx, address, listingId(c), p.Currency, p.Price); err != nil {
		return errResp(c, err)
	} else {
		met.BumpSum("trade.count", 1, "kind", "offer")
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}

func (h *handler) withdrawOffer(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)
	address := c.Get("address").(domain.Address)

	type params struct {
		Currency *domain.Address `json:"currency"`
		Price    string          `json:"price" validate:"required"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err.Error())
	}

	if res, err := h.marketplace.WithdrawOffer(ctx, address, listingId(c), p.Currency, p.Price); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}

// listingResp decorates a listing with its price rendered at the native
// scale. Token prices pass through untouched, their scale lives with the
// currency contract.
type listingResp struct {
	*marketplace.Listing
	DisplayPrice *string `json:"displayPrice,omitempty"`
}

func toListingResp(l *marketplace.Listing) *listingResp {
	res := &listingResp{Listing: l}
	if l.Price != nil && l.IsNative() {
		if d, err := marketplace.DisplayAmount(*l.Price, marketplace.NativeDecimals); err == nil {
			res.DisplayPrice = &d
		}
	}
	return res
}

func toListingResps(listings []*marketplace.Listing) []*listingResp {
	res := make([]*listingResp, 0, len(listings))
	for _, l := range listings {
		res = append(res, toListingResp(l))
	}
	return res
}

func (h *handler) getListing(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)

	if res, err := h.marketplace.GetListing(ctx, listingId(c)); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, toListingResp(res))
	}
}

func (h *handler) getListings(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)

	type params struct {
		Owner      *domain.Address `query:"owner"`
		Collection *domain.Address `query:"collection"`
		OnSale     *bool           `query:"onSale"`
		HasAuction *bool           `query:"hasAuction"`
		Offset     int32           `query:"offset"`
		Limit      int32           `query:"limit"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	opts := []marketplace.FindAllOptionsFunc{}
	if p.Owner != nil {
		opts = append(opts, marketplace.WithOwner(*p.Owner))
	}
	if p.Collection != nil {
		opts = append(opts, marketplace.WithCollection(*p.Collection))
	}
	if p.OnSale != nil {
		opts = append(opts, marketplace.WithOnSale(*p.OnSale))
	}
	if p.HasAuction != nil {
		opts = append(opts, marketplace.WithHasAuction(*p.HasAuction))
	}
	if p.Offset != 0 || p.Limit != 0 {
		opts = append(opts, marketplace.WithPagination(p.Offset, p.Limit))
	}

	if res, err := h.marketplace.GetListings(ctx, opts...); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, toListingResps(res))
	}
}

func (h *handler) getActivities(c echo.Context) error {
	ctx := c.Get("ctx").(bCtx.Ctx)

	type params struct {
		Offset int32 `query:"offset"`
		Limit  int32 `query:"limit"`
	}
	p := &params{}
	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}
	if p.Limit == 0 {
		p.Limit = 50
	}

	if res, err := h.marketplace.GetActivities(ctx, listingId(c), p.Offset, p.Limit); err != nil {
		return errResp(c, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}
