// Package escrow defines the boundary to the external custodial services the
// marketplace settles trades through. Every transfer primitive is idempotent
// per transaction id: resubmitting an id after a prior success is a safe
// no-op, after a prior failure it retries the same effect.
package escrow

import (
	"github.com/nftmarket/goapi/base/ctx"
	"github.com/nftmarket/goapi/domain"
)

type Gateway interface {
	TransferAsset(c ctx.Ctx, txId int64, collection domain.Address, to domain.Address, tokenId domain.TokenId) error
	TransferCurrency(c ctx.Ctx, txId int64, currency domain.Address, from, to domain.Address, amount string) error

	// SendValue moves native value held in custody to an account.
	SendValue(c ctx.Ctx, txId int64, to domain.Address, amount string) error
}

type AssetOwnership interface {
	OwnerOf(c ctx.Ctx, collection domain.Address, tokenId domain.TokenId) (domain.Address, error)
}

// PayoutCalculator computes the royalty split for a sale. The result is
// deterministic for a given (collection, seller, amount) and sums to at most
// the amount; the seller's share is included.
type PayoutCalculator interface {
	ComputePayouts(c ctx.Ctx, collection domain.Address, seller domain.Address, amount string) (map[domain.Address]string, error)
}
