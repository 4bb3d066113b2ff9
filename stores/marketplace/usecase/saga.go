package usecase

import (
	"sort"

	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/base/log"
	"github.com/nftmarket/goapi/domain"
	"github.com/nftmarket/goapi/domain/marketplace"
)

// beginOrResume claims the listing's saga slot for the requested operation.
// A block of nIds consecutive transaction ids is reserved up front so every
// external step of the operation has a stable id; on resume the block recorded
// in the slot is reused instead and the fresh block is abandoned (the counter
// only grows, gaps are harmless).
//
// Returns the base transaction id and whether the operation is a resumption of
// an interrupted run. A slot held by a different operation, or by the same
// kind with different parameters, yields domain.ErrWrongTransaction.
func (im *impl) beginOrResume(c ctx.Ctx, id marketplace.ListingId, tx *marketplace.PendingTx, nIds int64) (int64, bool, error) {
	base, err := im.txIdRepo.Reserve(c, nIds)
	if err != nil {
		c.WithFields(log.Fields{
			"err": err,
			"id":  id,
		}).Error("txIdRepo.Reserve failed")
		return 0, false, err
	}
	tx.TxId = base

	claimed, current, err := im.listingRepo.BeginTx(c, id, tx)
	if err != nil {
		return 0, false, err
	}
	if claimed {
		return base, false, nil
	}
	if current.Matches(tx) {
		return current.TxId, true, nil
	}
	return 0, false, domain.ErrWrongTransaction
}

// buildPayouts turns a sale amount into the full disbursement: the royalty
// split over the net amount plus the treasury's cut. The slice is sorted by
// account so the per-payee transaction id offsets are identical on every
// replay.
func (im *impl) buildPayouts(c ctx.Ctx, collection, seller domain.Address, price string) ([]marketplace.Payout, error) {
	fee, err := marketplace.TreasuryFee(price, im.feeBps)
	if err != nil {
		return nil, err
	}
	net, err := marketplace.Sub(price, fee)
	if err != nil {
		return nil, err
	}

	split, err := im.payouts.ComputePayouts(c, collection, seller, net)
	if err != nil {
		c.WithFields(log.Fields{
			"err":        err,
			"collection": collection,
			"seller":     seller,
		}).Error("payouts.ComputePayouts failed")
		return nil, err
	}

	merged := map[domain.Address]string{}
	for account, amount := range split {
		merged[account.ToLower()] = amount
	}
	if current, ok := merged[im.treasury]; ok {
		sum, err := marketplace.Add(current, fee)
		if err != nil {
			return nil, err
		}
		merged[im.treasury] = sum
	} else {
		merged[im.treasury] = fee
	}

	accounts := make([]string, 0, len(merged))
	for account := range merged {
		accounts = append(accounts, string(account))
	}
	sort.Strings(accounts)

	res := make([]marketplace.Payout, 0, len(accounts))
	for _, account := range accounts {
		res = append(res, marketplace.Payout{
			Account: domain.Address(account),
			Amount:  merged[domain.Address(account)],
		})
	}
	return res, nil
}

// disburse pays every payee from market custody, one idempotent call per leg
// starting at txId base. Replaying after a mid-list failure re-runs the
// finished legs as remote no-ops.
func (im *impl) disburse(c ctx.Ctx, base int64, currency *domain.Address, payouts []marketplace.Payout) error {
	for i, payout := range payouts {
		txId := base + int64(i)
		var err error
		if currency != nil {
			err = im.gateway.TransferCurrency(c, txId, *currency, im.market, payout.Account, payout.Amount)
		} else {
			err = im.gateway.SendValue(c, txId, payout.Account, payout.Amount)
		}
		if err != nil {
			c.WithFields(log.Fields{
				"err":     err,
				"txId":    txId,
				"account": payout.Account,
			}).Error("payout disbursement failed")
			return err
		}
	}
	return nil
}
