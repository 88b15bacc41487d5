package domain

import "time"

// Category classifies a market by topic.
type Category string

const (
	CategoryPolitics  Category = "politics"
	CategoryCrypto    Category = "crypto"
	CategorySports    Category = "sports"
	CategoryTech      Category = "tech"
	CategoryEconomics Category = "economics"
	CategoryOther     Category = "other"
)

// ParseCategory maps a raw category string to a known Category.
// Unknown values fall back to CategoryOther.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryPolitics, CategoryCrypto, CategorySports, CategoryTech, CategoryEconomics:
		return Category(s)
	}
	return CategoryOther
}

// ResolutionStatus is the lifecycle state of a market.
type ResolutionStatus string

const (
	StatusOpen     ResolutionStatus = "OPEN"
	StatusEnded    ResolutionStatus = "ENDED"
	StatusProposed ResolutionStatus = "PROPOSED"
	StatusResolved ResolutionStatus = "RESOLVED"
	StatusDisputed ResolutionStatus = "DISPUTED"
)

// ParseResolutionStatus maps a raw status string to a ResolutionStatus.
// The second return is false for unknown values.
func ParseResolutionStatus(s string) (ResolutionStatus, bool) {
	switch ResolutionStatus(s) {
	case StatusOpen, StatusEnded, StatusProposed, StatusResolved, StatusDisputed:
		return ResolutionStatus(s), true
	}
	return StatusOpen, false
}

// TokenSide identifies which binary outcome a token pays out on.
type TokenSide string

const (
	SideYes TokenSide = "YES"
	SideNo  TokenSide = "NO"
)

// ParseTokenSide maps a raw side string to a TokenSide.
func ParseTokenSide(s string) (TokenSide, bool) {
	switch TokenSide(s) {
	case SideYes, SideNo:
		return TokenSide(s), true
	}
	return SideYes, false
}

// Opposite returns the other side of the binary pair.
func (s TokenSide) Opposite() TokenSide {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Token is one tradeable side (YES/NO) of a market. Immutable once created.
type Token struct {
	TokenID  string
	MarketID string
	Side     TokenSide
	TickSize float64 // minimum price increment
	MinSize  float64 // minimum order size
}

// Market is a binary-outcome prediction market.
// Once ResolutionStatus is RESOLVED the value must be treated as immutable.
type Market struct {
	MarketID         string
	Slug             string
	Question         string
	Description      string
	Category         Category
	EndTime          time.Time
	ResolutionStatus ResolutionStatus

	YesToken *Token
	NoToken  *Token

	// Outcome is set when the market resolves.
	Outcome *TokenSide

	CreatedAt time.Time
	Volume24h float64
	Liquidity float64
}

// IsActive reports whether the market is still open for trading.
func (m Market) IsActive() bool {
	return m.ResolutionStatus == StatusOpen
}

// HoursToResolution returns the hours until EndTime, never negative.
func (m Market) HoursToResolution() float64 {
	if m.EndTime.IsZero() {
		return 0
	}
	h := time.Until(m.EndTime).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Token returns the market's token for the given side, or nil if absent.
func (m Market) Token(side TokenSide) *Token {
	if side == SideYes {
		return m.YesToken
	}
	return m.NoToken
}
