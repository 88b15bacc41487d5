package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polysim/internal/domain"
)

// categoryKeywords maps tag slugs and question keywords to categories.
// Checked in order; the first hit wins.
var categoryKeywords = []struct {
	category domain.Category
	words    []string
}{
	{domain.CategoryCrypto, []string{"crypto", "bitcoin", "btc", "ethereum", "eth", "solana"}},
	{domain.CategorySports, []string{"sports", "nba", "nfl", "mlb", "soccer", "football", "tennis"}},
	{domain.CategoryPolitics, []string{"politics", "election", "president", "senate", "congress"}},
	{domain.CategoryTech, []string{"tech", "ai", "openai", "spacex"}},
	{domain.CategoryEconomics, []string{"economics", "fed", "inflation", "gdp", "rates"}},
}

// mapMarket converts a Gamma market payload into the domain model. Markets
// without exactly two CLOB tokens are not binary and map to ok=false.
func mapMarket(dto gammaMarket) (domain.Market, bool) {
	var tokenIDs []string
	if dto.ClobTokenIDs != "" {
		if err := json.Unmarshal([]byte(dto.ClobTokenIDs), &tokenIDs); err != nil {
			return domain.Market{}, false
		}
	}
	if len(tokenIDs) != 2 {
		return domain.Market{}, false
	}

	endTime, err := time.Parse(time.RFC3339, dto.EndDate)
	if err != nil {
		return domain.Market{}, false
	}

	tickSize := dto.OrderPriceMin
	if tickSize == 0 {
		tickSize = 0.001
	}

	market := domain.Market{
		MarketID:         dto.ID,
		Slug:             dto.Slug,
		Question:         dto.Question,
		Description:      dto.Description,
		Category:         classify(dto),
		EndTime:          endTime.UTC(),
		ResolutionStatus: mapStatus(dto),
		Volume24h:        dto.Volume24hr,
		Liquidity:        parseFloat(dto.Liquidity),
	}
	market.YesToken = &domain.Token{
		TokenID:  tokenIDs[0],
		MarketID: dto.ID,
		Side:     domain.SideYes,
		TickSize: tickSize,
		MinSize:  dto.OrderMinSize,
	}
	market.NoToken = &domain.Token{
		TokenID:  tokenIDs[1],
		MarketID: dto.ID,
		Side:     domain.SideNo,
		TickSize: tickSize,
		MinSize:  dto.OrderMinSize,
	}

	if market.ResolutionStatus == domain.StatusResolved {
		if outcome, ok := resolvedOutcome(dto); ok {
			market.Outcome = &outcome
		}
	}

	return market, true
}

func mapStatus(dto gammaMarket) domain.ResolutionStatus {
	switch {
	case strings.Contains(dto.UmaResolutions, "disputed"):
		return domain.StatusDisputed
	case dto.Closed:
		return domain.StatusResolved
	case strings.Contains(dto.UmaResolutions, "proposed"):
		return domain.StatusProposed
	case !dto.Active:
		return domain.StatusEnded
	default:
		return domain.StatusOpen
	}
}

// resolvedOutcome reads the settled side from outcomePrices, a JSON string
// array aligned with outcomes (e.g. ["1", "0"] means YES won).
func resolvedOutcome(dto gammaMarket) (domain.TokenSide, bool) {
	var prices []string
	if err := json.Unmarshal([]byte(dto.OutcomePrices), &prices); err != nil || len(prices) != 2 {
		return domain.SideYes, false
	}
	switch {
	case parseFloat(prices[0]) == 1:
		return domain.SideYes, true
	case parseFloat(prices[1]) == 1:
		return domain.SideNo, true
	}
	return domain.SideYes, false
}

func classify(dto gammaMarket) domain.Category {
	haystack := strings.ToLower(dto.Question + " " + dto.Slug)
	for _, t := range dto.RawTags {
		haystack += " " + strings.ToLower(t.Slug) + " " + strings.ToLower(t.Label)
	}
	for _, entry := range categoryKeywords {
		for _, word := range entry.words {
			if strings.Contains(haystack, word) {
				return entry.category
			}
		}
	}
	return domain.CategoryOther
}

// mapBook converts a CLOB book payload, sorting bids descending and asks
// ascending. The CLOB returns levels in arbitrary order.
func mapBook(dto bookResponse) domain.OrderBook {
	book := domain.OrderBook{
		TokenID:   dto.AssetID,
		Timestamp: parseTimestamp(dto.Timestamp),
	}
	for _, level := range dto.Bids {
		book.Bids = append(book.Bids, domain.BookLevel{
			Price: parseFloat(level.Price),
			Size:  parseFloat(level.Size),
		})
	}
	for _, level := range dto.Asks {
		book.Asks = append(book.Asks, domain.BookLevel{
			Price: parseFloat(level.Price),
			Size:  parseFloat(level.Size),
		})
	}
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseTimestamp handles the CLOB's millisecond epoch strings, falling back
// to now for anything unparsable.
func parseTimestamp(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}
