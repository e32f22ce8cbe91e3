package audit

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanguard/internal/domain"
)

type fakeChain struct {
	balance    *big.Int
	txCount    uint64
	balanceErr error
	txErr      error
}

func (c fakeChain) Balance(context.Context, string) (*big.Int, error) {
	return c.balance, c.balanceErr
}

func (c fakeChain) TransactionCount(context.Context, string) (uint64, error) {
	return c.txCount, c.txErr
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestWalletScanLowActivityIsHighRisk(t *testing.T) {
	s := NewWalletScanner(fakeChain{balance: ether(3), txCount: 2}, DefaultWalletOptions())

	f := s.Scan(context.Background(), "0xabc123")

	assert.Equal(t, domain.TargetWallet, f.Kind)
	assert.Equal(t, "0xabc123", f.Target)
	assert.Equal(t, []string{"Transactions: 2 detected.", "Risk Level: HIGH"}, f.Issues)
	assert.Equal(t, domain.SeverityMedium, f.Severity)
	assert.Equal(t, "3.0000 ETH", f.Balance)
	assert.Equal(t, 1, f.RemediationDays)
	assert.Equal(t, 250, f.Cost)
	assert.Nil(t, f.Failure)
}

func TestWalletScanActiveIsLowRisk(t *testing.T) {
	wei, ok := new(big.Int).SetString("1234567890000000000", 10)
	require.True(t, ok)
	s := NewWalletScanner(fakeChain{balance: wei, txCount: 5}, WalletOptions{Cost: 200})

	f := s.Scan(context.Background(), "0xabc123")

	assert.Equal(t, []string{"Transactions: 5 detected.", "Risk Level: LOW"}, f.Issues)
	assert.Equal(t, domain.SeverityLow, f.Severity)
	assert.Equal(t, "1.2346 ETH", f.Balance)
	assert.Equal(t, 200, f.Cost)
}

func TestWalletScanProviderFailure(t *testing.T) {
	cases := map[string]fakeChain{
		"balance": {balanceErr: errors.New("invalid address")},
		"tx":      {balance: ether(1), txErr: errors.New("rpc unreachable")},
	}
	for name, chain := range cases {
		t.Run(name, func(t *testing.T) {
			f := NewWalletScanner(chain, DefaultWalletOptions()).Scan(context.Background(), "not-an-address")

			assert.Equal(t, []string{"RPC_ERROR: Chain state unreachable."}, f.Issues)
			assert.Equal(t, domain.SeverityCritical, f.Severity)
			assert.Equal(t, 0, f.Cost)
			assert.Equal(t, 0, f.RemediationDays)
			assert.Empty(t, f.Balance)
			require.NotNil(t, f.Failure)
			assert.Equal(t, domain.ProviderUnreachable, f.Failure.Kind)
		})
	}
}
