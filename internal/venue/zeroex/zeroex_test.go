package zeroex

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUnitConversionRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("1.5")

	units := toUnits(amount, 6)
	assert.Equal(t, "1500000", units.String())

	back := fromUnits(units, 6)
	assert.True(t, back.Equal(amount))
}

func TestToUnitsTruncatesDust(t *testing.T) {
	// Sub-unit precision cannot exist on chain.
	units := toUnits(decimal.RequireFromString("0.0000001"), 6)
	assert.Equal(t, "0", units.String())
}

func TestFromUnitsWeiScale(t *testing.T) {
	wei, ok := new(big.Int).SetString("1000000000000000000", 10)
	assert.True(t, ok)
	assert.Equal(t, "1", fromUnits(wei, 18).String())
}
