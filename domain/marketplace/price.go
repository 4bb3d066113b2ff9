package marketplace

import (
	"math/big"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/nftmarket/goapi/domain"
)

// Amounts travel as decimal strings since currency ledgers deal in integers
// larger than 64 bits. All arithmetic goes through math/big.

func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, xerrors.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// ValidAmount reports whether s is a strictly positive integer amount.
func ValidAmount(s string) bool {
	v, err := ParseAmount(s)
	return err == nil && v.Sign() > 0
}

// AboveMinimumValue reports whether a native amount exceeds the dust threshold.
func AboveMinimumValue(s string) bool {
	v, err := ParseAmount(s)
	if err != nil {
		return false
	}
	min, _ := new(big.Int).SetString(MinimumValue, 10)
	return v.Cmp(min) > 0
}

// GreaterThan reports a > b. Malformed input counts as not greater.
func GreaterThan(a, b string) bool {
	av, err := ParseAmount(a)
	if err != nil {
		return false
	}
	bv, err := ParseAmount(b)
	if err != nil {
		return false
	}
	return av.Cmp(bv) > 0
}

func Equal(a, b string) bool {
	av, err := ParseAmount(a)
	if err != nil {
		return false
	}
	bv, err := ParseAmount(b)
	if err != nil {
		return false
	}
	return av.Cmp(bv) == 0
}

// TreasuryFee computes floor(price * feeBps / 10000).
func TreasuryFee(price string, feeBps int) (string, error) {
	v, err := ParseAmount(price)
	if err != nil {
		return "", err
	}
	fee := new(big.Int).Mul(v, big.NewInt(int64(feeBps)))
	fee.Quo(fee, big.NewInt(BpsDenominator))
	return fee.String(), nil
}

func Add(a, b string) (string, error) {
	av, err := ParseAmount(a)
	if err != nil {
		return "", err
	}
	bv, err := ParseAmount(b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(av, bv).String(), nil
}

func Sub(a, b string) (string, error) {
	av, err := ParseAmount(a)
	if err != nil {
		return "", err
	}
	bv, err := ParseAmount(b)
	if err != nil {
		return "", err
	}
	res := new(big.Int).Sub(av, bv)
	if res.Sign() < 0 {
		return "", xerrors.Errorf("amount underflow: %s - %s", a, b)
	}
	return res.String(), nil
}

// DisplayAmount renders an integer amount at the currency's decimals for
// human-facing payloads.
func DisplayAmount(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", xerrors.Errorf("invalid amount %q: %w", amount, err)
	}
	return d.Shift(-decimals).String(), nil
}

// Payout is one leg of a multi-recipient disbursement.
type Payout struct {
	Account domain.Address
	Amount  string
}
