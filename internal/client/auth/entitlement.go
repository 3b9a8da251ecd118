package auth

import (
	jwtauth "github.com/dmitrijs2005/quotekeeper/internal/auth"
)

// Entitlement decides whether a tier may use cloud sync. Local-only work
// is never gated.
type Entitlement interface {
	CanSync(tier string) bool
}

// TierSet entitles the tiers it contains.
type TierSet map[string]bool

func (s TierSet) CanSync(tier string) bool { return s[tier] }

// DefaultEntitlement lets paid tiers sync.
var DefaultEntitlement = TierSet{jwtauth.TierPro: true, jwtauth.TierTeam: true}

// AllowAll entitles everyone.
type AllowAll struct{}

func (AllowAll) CanSync(string) bool { return true }
