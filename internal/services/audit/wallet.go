package audit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vanguard/internal/domain"
	"vanguard/internal/ports"
)

const (
	weiDecimals = 18

	issueTransactions = "Transactions: %d detected."
	issueRiskLevel    = "Risk Level: %s"
	issueRPC          = "RPC_ERROR: Chain state unreachable."
)

type WalletOptions struct {
	// Cost is the fixed price of a completed wallet audit.
	Cost int
	// RiskThreshold is the transaction count below which a wallet is high risk.
	RiskThreshold uint64
}

func DefaultWalletOptions() WalletOptions {
	return WalletOptions{Cost: 250, RiskThreshold: 5}
}

// WalletScanner reads one address's balance and activity from a chain provider.
type WalletScanner struct {
	chain ports.ChainState
	opts  WalletOptions
}

func NewWalletScanner(chain ports.ChainState, opts WalletOptions) *WalletScanner {
	if opts.RiskThreshold == 0 {
		opts.RiskThreshold = 5
	}
	return &WalletScanner{chain: chain, opts: opts}
}

func (s *WalletScanner) Scan(ctx context.Context, address string) domain.Finding {
	f := domain.Finding{
		Kind:     domain.TargetWallet,
		Target:   address,
		Severity: domain.SeverityLow,
	}

	wei, err := s.chain.Balance(ctx, address)
	if err != nil {
		return unreachable(f, err)
	}
	txCount, err := s.chain.TransactionCount(ctx, address)
	if err != nil {
		return unreachable(f, err)
	}

	risk := "LOW"
	if txCount < s.opts.RiskThreshold {
		risk = "HIGH"
		f.Severity = f.Severity.Escalate(domain.SeverityMedium)
	}
	f.Balance = decimal.NewFromBigInt(wei, -weiDecimals).StringFixed(4) + " ETH"
	f.Issues = []string{
		fmt.Sprintf(issueTransactions, txCount),
		fmt.Sprintf(issueRiskLevel, risk),
	}
	f.RemediationDays, f.Cost = WalletQuote(s.opts.Cost)
	return f
}

// unreachable reports a scan that could not complete: nothing is billable.
func unreachable(f domain.Finding, err error) domain.Finding {
	f.Issues = []string{issueRPC}
	f.Severity = domain.SeverityCritical
	f.RemediationDays, f.Cost = 0, 0
	f.Failure = domain.NewFailure(domain.ProviderUnreachable, err)
	return f
}
