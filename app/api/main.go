package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/database/mongoclient"
	"github.com/nftmarket/goapi/base/database/redisclient"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/base/metrics"
	bValidator "github.com/nftmarket/goapi/base/validator"
	"github.com/nftmarket/goapi/domain"
	mmiddleware "github.com/nftmarket/goapi/middleware"
	"github.com/nftmarket/goapi/service/custody"
	"github.com/nftmarket/goapi/service/payout"
	"github.com/nftmarket/goapi/service/query"
	"github.com/nftmarket/goapi/service/redis"
	auth_delivery "github.com/nftmarket/goapi/stores/auth/delivery/http"
	auth_middleware "github.com/nftmarket/goapi/stores/auth/delivery/http/middleware"
	auth_usecase "github.com/nftmarket/goapi/stores/auth/usecase"
	hc_delivery "github.com/nftmarket/goapi/stores/healthcheck/delivery/http"
	hc_repo "github.com/nftmarket/goapi/stores/healthcheck/repository"
	hc_usecase "github.com/nftmarket/goapi/stores/healthcheck/usecase"
	marketplace_delivery "github.com/nftmarket/goapi/stores/marketplace/delivery/http"
	marketplace_repository "github.com/nftmarket/goapi/stores/marketplace/repository"
	marketplace_usecase "github.com/nftmarket/goapi/stores/marketplace/usecase"
)

func init() {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(`infra/configs/config.yaml`)
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{}))
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	// init mongo client
	context.Info("init mongo")
	uri := viper.GetString("mongo.uri")
	authDBName := viper.GetString("mongo.authDBName")
	dbName := viper.GetString("mongo.dbName")
	enableSSL := viper.GetBool("mongo.enableSSL")
	checkIndex := viper.GetBool("mongo.checkIndex")
	mongoClient := mongoclient.MustConnectMongoClient(uri, authDBName, dbName, enableSSL, true, 2)
	q := query.New(mongoClient, checkIndex)

	// init redis service
	context.Info("init redis cache")
	redisCacheName := viper.GetString("redis_cache.name")
	redisCacheURI := viper.GetString("redis_cache.uri")
	redisCachePwd := viper.GetString("redis_cache.password")
	redisCachePoolMultiplier := viper.GetFloat64("redis_cache.poolMultiplier")
	redisCachePool := redisclient.MustConnectRedis(redisCacheURI, redisCachePwd, redisclient.RedisParam{
		PoolMultiplier: redisCachePoolMultiplier,
		Retry:          true,
	})
	redisCache := redis.New(redisCacheName, metrics.New(redisCacheName), &redis.Pools{
		Src: redisCachePool,
	})

	mmiddleware.SetupCache(redisCache)

	// external custodial services
	httpTimeout := viper.GetDuration("http.timeout")
	custodyCfg := &custody.ClientCfg{
		HttpClient:       http.Client{},
		Timeout:          httpTimeout,
		AssetEndpoint:    viper.GetString("custody.assetEndpoint"),
		CurrencyEndpoint: viper.GetString("custody.currencyEndpoint"),
	}
	escrowGateway := custody.NewClient(custodyCfg)
	assetOwnership := custody.NewOwnershipClient(custodyCfg)
	payoutCalculator := payout.NewClient(&payout.ClientCfg{
		HttpClient: http.Client{},
		Timeout:    httpTimeout,
		Endpoint:   viper.GetString("payout.endpoint"),
	})

	// construct repository, usecase and delivery
	hcRepo := hc_repo.New(mongoClient, redisCache)
	listingRepo := marketplace_repository.NewListing(q, redisCache)
	txIdRepo := marketplace_repository.NewTxId(q)
	activityRepo := marketplace_repository.NewActivity(q)

	hc := hc_usecase.New(hcRepo)
	auth := auth_usecase.New(
		viper.GetString("auth.jwtSecret"),
		viper.GetString("auth.signingMsgTemplate"),
	)
	marketplaceUC, err := marketplace_usecase.New(&marketplace_usecase.MarketplaceUseCaseCfg{
		ListingRepo:  listingRepo,
		TxIdRepo:     txIdRepo,
		ActivityRepo: activityRepo,
		Gateway:      escrowGateway,
		Ownership:    assetOwnership,
		Payouts:      payoutCalculator,
		Admin:        domain.Address(viper.GetString("market.admin")),
		Treasury:     domain.Address(viper.GetString("market.treasury")),
		Market:       domain.Address(viper.GetString("market.account")),
		FeeBps:       viper.GetInt("market.treasuryFeeBps"),
	})
	if err != nil {
		log.Log().WithField("err", err).Panic("invalid market configuration")
	}

	authMiddleware := auth_middleware.New(auth, viper.GetStringSlice("adminAddresses"))

	hc_delivery.New(e, hc)
	auth_delivery.New(e, auth, viper.GetString("auth.signingMsgTemplate"))
	marketplace_delivery.New(e, marketplaceUC, authMiddleware)

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	shutdownCtx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}
}
