package audit

import (
	"strings"

	"vanguard/internal/domain"
)

// Classify routes a raw target: anything containing a dot is a website,
// everything else a wallet address.
func Classify(raw string) domain.TargetKind {
	if strings.Contains(raw, ".") {
		return domain.TargetWebsite
	}
	return domain.TargetWallet
}
