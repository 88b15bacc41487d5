package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryCrypto, ParseCategory("crypto"))
	assert.Equal(t, CategoryOther, ParseCategory("weather"))
	assert.Equal(t, CategoryOther, ParseCategory(""))
}

func TestParseResolutionStatus(t *testing.T) {
	status, ok := ParseResolutionStatus("RESOLVED")
	assert.True(t, ok)
	assert.Equal(t, StatusResolved, status)

	_, ok = ParseResolutionStatus("MAYBE")
	assert.False(t, ok)
}

func TestTokenSideOpposite(t *testing.T) {
	assert.Equal(t, SideNo, SideYes.Opposite())
	assert.Equal(t, SideYes, SideNo.Opposite())
}

func TestHoursToResolution(t *testing.T) {
	market := Market{EndTime: time.Now().UTC().Add(36 * time.Hour)}
	assert.InDelta(t, 36, market.HoursToResolution(), 0.01)

	past := Market{EndTime: time.Now().UTC().Add(-time.Hour)}
	assert.Equal(t, 0.0, past.HoursToResolution())

	assert.Equal(t, 0.0, Market{}.HoursToResolution())
}

func TestMarketToken(t *testing.T) {
	market := Market{
		YesToken: &Token{TokenID: "y", Side: SideYes},
		NoToken:  &Token{TokenID: "n", Side: SideNo},
	}
	assert.Equal(t, "y", market.Token(SideYes).TokenID)
	assert.Equal(t, "n", market.Token(SideNo).TokenID)
}

func TestIsActive(t *testing.T) {
	assert.True(t, Market{ResolutionStatus: StatusOpen}.IsActive())
	assert.False(t, Market{ResolutionStatus: StatusResolved}.IsActive())
	assert.False(t, Market{ResolutionStatus: StatusDisputed}.IsActive())
}
