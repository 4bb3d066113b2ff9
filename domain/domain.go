package domain

import "strings"

type Address string

const EmptyAddress = Address("0x0000000000000000000000000000000000000000")

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerPtr() *Address {
	res := a.ToLower()
	return &res
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

func (a Address) IsEmpty() bool {
	return len(a) == 0 || a.Equals(EmptyAddress)
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

type TokenId string

func (i TokenId) String() string {
	return string(i)
}

// Table is the mongo collection name
type Table string

const (
	TableListings         Table = "listings"
	TableAllowedContracts Table = "allowed_contracts"
	TableTxCounter        Table = "tx_counter"
	TableActivities       Table = "activities"
	TableAccounts         Table = "accounts"
)

// ContractKind distinguishes the two allow-lists
type ContractKind string

const (
	ContractKindAsset    ContractKind = "asset"
	ContractKindCurrency ContractKind = "currency"
)
