package polymarket

// gammaMarket is the Gamma API market payload. Several fields arrive as
// JSON-encoded strings inside strings (clobTokenIds, outcomes).
type gammaMarket struct {
	ID             string   `json:"id"`
	Slug           string   `json:"slug"`
	Question       string   `json:"question"`
	Description    string   `json:"description"`
	EndDate        string   `json:"endDate"`
	Closed         bool     `json:"closed"`
	Active         bool     `json:"active"`
	ClobTokenIDs   string   `json:"clobTokenIds"`
	Outcomes       string   `json:"outcomes"`
	OutcomePrices  string   `json:"outcomePrices"`
	Volume24hr     float64  `json:"volume24hr"`
	Liquidity      string   `json:"liquidity"`
	OrderPriceMin  float64  `json:"orderPriceMinTickSize"`
	OrderMinSize   float64  `json:"orderMinSize"`
	Tags           []string `json:"-"`
	RawTags        []tag    `json:"tags"`
	UmaResolutions string   `json:"umaResolutionStatus"`
}

type tag struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// bookLevel is a CLOB price level; prices and sizes come as strings.
type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// bookResponse is the CLOB /book payload.
type bookResponse struct {
	AssetID   string      `json:"asset_id"`
	Market    string      `json:"market"`
	Timestamp string      `json:"timestamp"`
	Bids      []bookLevel `json:"bids"`
	Asks      []bookLevel `json:"asks"`
}
