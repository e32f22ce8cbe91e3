package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	cases := []struct {
		issues, days, cost int
	}{
		{0, 2, 350},
		{1, 2, 500},
		{2, 5, 650},
		{5, 5, 1100},
	}
	for _, tc := range cases {
		days, cost := Quote(tc.issues)
		assert.Equal(t, tc.days, days, "days for %d issues", tc.issues)
		assert.Equal(t, tc.cost, cost, "cost for %d issues", tc.issues)
	}
}

func TestQuoteMonotonic(t *testing.T) {
	prevDays, prevCost := Quote(0)
	for n := 1; n <= 20; n++ {
		days, cost := Quote(n)
		assert.GreaterOrEqual(t, days, prevDays)
		assert.GreaterOrEqual(t, cost, prevCost)
		prevDays, prevCost = days, cost
	}
}

func TestWalletQuote(t *testing.T) {
	days, cost := WalletQuote(200)
	assert.Equal(t, 1, days)
	assert.Equal(t, 200, cost)
}
