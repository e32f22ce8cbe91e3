package audit

const (
	baseCost     = 350
	costPerIssue = 150
)

// Quote prices a website finding from its issue count.
func Quote(issueCount int) (days, cost int) {
	days = 2
	if issueCount >= 2 {
		days = 5
	}
	return days, baseCost + issueCount*costPerIssue
}

// WalletQuote prices a completed wallet scan. The price does not depend on
// what the scan found.
func WalletQuote(fixedCost int) (days, cost int) {
	return 1, fixedCost
}
