package currencies

import (
	"slices"

	"github.com/sig-0/cnbrates/storage/types"
)

var (
	AUD types.Currency = "AUD"
	BGN types.Currency = "BGN"
	BRL types.Currency = "BRL"
	CAD types.Currency = "CAD"
	CHF types.Currency = "CHF"
	CNY types.Currency = "CNY"
	DKK types.Currency = "DKK"
	EUR types.Currency = "EUR"
	GBP types.Currency = "GBP"
	HKD types.Currency = "HKD"
	HRK types.Currency = "HRK"
	HUF types.Currency = "HUF"
	IDR types.Currency = "IDR"
	ILS types.Currency = "ILS"
	INR types.Currency = "INR"
	ISK types.Currency = "ISK"
	JPY types.Currency = "JPY"
	KRW types.Currency = "KRW"
	MXN types.Currency = "MXN"
	MYR types.Currency = "MYR"
	NOK types.Currency = "NOK"
	NZD types.Currency = "NZD"
	PHP types.Currency = "PHP"
	PLN types.Currency = "PLN"
	RON types.Currency = "RON"
	RUB types.Currency = "RUB"
	SEK types.Currency = "SEK"
	SGD types.Currency = "SGD"
	THB types.Currency = "THB"
	TRY types.Currency = "TRY"
	USD types.Currency = "USD"
	ZAR types.Currency = "ZAR"
)

// supported is the fixed set of currencies the CNB fixing is quoted in, sorted
var supported = []types.Currency{
	AUD, BGN, BRL, CAD, CHF, CNY, DKK, EUR,
	GBP, HKD, HRK, HUF, IDR, ILS, INR, ISK,
	JPY, KRW, MXN, MYR, NOK, NZD, PHP, PLN,
	RON, RUB, SEK, SGD, THB, TRY, USD, ZAR,
}

// IsSupported reports whether the currency is part of the recognized set
func IsSupported(c types.Currency) bool {
	_, found := slices.BinarySearch(supported, c)

	return found
}

// All returns a copy of the recognized currency set
func All() []types.Currency {
	return slices.Clone(supported)
}
