package custody

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	bCtx "github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/base/metrics"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/escrow"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	requestIdHeader      = "X-Request-Id"
)

type ClientCfg struct {
	HttpClient       http.Client
	Timeout          time.Duration
	AssetEndpoint    string
	CurrencyEndpoint string
}

type client struct {
	client           http.Client
	timeout          time.Duration
	assetEndpoint    string
	currencyEndpoint string
	met              metrics.Service
}

// NewClient builds the escrow gateway over the asset and currency custodial
// services. Both transfer primitives carry the caller-chosen transaction id as
// an idempotency key, so replaying a finished step is a remote no-op.
func NewClient(cfg *ClientCfg) escrow.Gateway {
	return &client{
		client:           cfg.HttpClient,
		timeout:          cfg.Timeout,
		assetEndpoint:    cfg.AssetEndpoint,
		currencyEndpoint: cfg.CurrencyEndpoint,
		met:              metrics.New("custody"),
	}
}

// NewOwnershipClient exposes the asset service's ownership query.
func NewOwnershipClient(cfg *ClientCfg) escrow.AssetOwnership {
	return &client{
		client:        cfg.HttpClient,
		timeout:       cfg.Timeout,
		assetEndpoint: cfg.AssetEndpoint,
		met:           metrics.New("custody"),
	}
}

func (c *client) TransferAsset(ctx bCtx.Ctx, txId int64, collection, to domain.Address, tokenId domain.TokenId) error {
	url := fmt.Sprintf("%s/transfers", c.assetEndpoint)
	body := map[string]interface{}{
		"collection": collection,
		"to":         to,
		"tokenId":    tokenId,
	}
	return c.post(ctx, "transferAsset", url, txId, body)
}

func (c *client) TransferCurrency(ctx bCtx.Ctx, txId int64, currency domain.Address, from, to domain.Address, amount string) error {
	url := fmt.Sprintf("%s/transfers", c.currencyEndpoint)
	body := map[string]interface{}{
		"currency": currency,
		"from":     from,
		"to":       to,
		"amount":   amount,
	}
	return c.post(ctx, "transferCurrency", url, txId, body)
}

func (c *client) SendValue(ctx bCtx.Ctx, txId int64, to domain.Address, amount string) error {
	url := fmt.Sprintf("%s/value-transfers", c.currencyEndpoint)
	body := map[string]interface{}{
		"to":     to,
		"amount": amount,
	}
	return c.post(ctx, "sendValue", url, txId, body)
}

func (c *client) OwnerOf(ctx bCtx.Ctx, collection domain.Address, tokenId domain.TokenId) (domain.Address, error) {
	url := fmt.Sprintf("%s/owners?collection=%s&tokenId=%s", c.assetEndpoint, collection, tokenId)

	raw, err := c.get(ctx, url)
	if err != nil {
		ctx.WithFields(log.Fields{
			"url": url,
			"err": err,
		}).Error("c.get failed")
		return "", err
	}

	res := struct {
		Owner domain.Address `json:"owner"`
	}{}
	if err := json.Unmarshal(raw, &res); err != nil {
		ctx.WithFields(log.Fields{
			"url": url,
			"err": err,
		}).Error("json.Unmarshal failed")
		return "", err
	}
	return res.Owner.ToLower(), nil
}

func (c *client) post(ctx bCtx.Ctx, op, url string, txId int64, body interface{}) error {
	defer c.met.BumpTime("latency", "op", op).End()

	ctx, cancel := bCtx.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		ctx.WithFields(log.Fields{
			"url": url,
			"err": err,
		}).Error("NewRequestWithContext failed")
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIdHeader, uuid.NewString())
	req.Header.Set(idempotencyKeyHeader, strconv.FormatInt(txId, 10))

	resp, err := c.client.Do(req)
	if err != nil {
		c.met.BumpSum("err", 1, "op", op)
		ctx.WithFields(log.Fields{
			"url": url,
			"err": err,
		}).Error("client.Do failed")
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.met.BumpSum("err", 1, "op", op)
		ctx.WithFields(log.Fields{
			"url":        url,
			"statusCode": resp.StatusCode,
		}).Error("custody service returned error")
		return fmt.Errorf("custody: %s returned status %d", op, resp.StatusCode)
	}
	return nil
}

func (c *client) get(ctx bCtx.Ctx, url string) ([]byte, error) {
	ctx, cancel := bCtx.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custody: status %d", resp.StatusCode)
	}
	return ioutil.ReadAll(resp.Body)
}
