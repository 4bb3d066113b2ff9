package payout

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	bCtx "github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/base/metrics"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/escrow"
)

type ClientCfg struct {
	HttpClient http.Client
	Timeout    time.Duration
	Endpoint   string
}

type client struct {
	client   http.Client
	timeout  time.Duration
	endpoint string
	met      metrics.Service
}

// NewClient talks to the royalty engine. The reply is deterministic per
// (collection, seller, amount), which the saga relies on when a resumed
// request recomputes its payout legs.
func NewClient(cfg *ClientCfg) escrow.PayoutCalculator {
	return &client{
		client:   cfg.HttpClient,
		timeout:  cfg.Timeout,
		endpoint: cfg.Endpoint,
		met:      metrics.New("payout"),
	}
}

func (c *client) ComputePayouts(ctx bCtx.Ctx, collection, seller domain.Address, amount string) (map[domain.Address]string, error) {
	defer c.met.BumpTime("latency").End()

	url := fmt.Sprintf("%s/payouts?collection=%s&seller=%s&amount=%s", c.endpoint, collection, seller, amount)

	cctx, cancel := bCtx.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.met.BumpSum("err", 1)
		ctx.WithFields(log.Fields{
			"url": url,
			"err": err,
		}).Error("client.Do failed")
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.met.BumpSum("err", 1)
		ctx.WithFields(log.Fields{
			"url":        url,
			"statusCode": resp.StatusCode,
		}).Error("payout service returned error")
		return nil, fmt.Errorf("payout: status %d", resp.StatusCode)
	}

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	res := struct {
		Payouts map[domain.Address]string `json:"payouts"`
	}{}
	if err := json.Unmarshal(raw, &res); err != nil {
		ctx.WithFields(log.Fields{
			"url": url,
			"err": err,
		}).Error("json.Unmarshal failed")
		return nil, err
	}
	return res.Payouts, nil
}
