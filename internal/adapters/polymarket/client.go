// Package polymarket implements the market and book providers against the
// public Gamma and CLOB HTTP APIs.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polysim/internal/domain"
)

const (
	defaultGammaBase = "https://gamma-api.polymarket.com"
	defaultClobBase  = "https://clob.polymarket.com"

	requestTimeout = 10 * time.Second
)

// Config holds API endpoints and paging limits.
type Config struct {
	GammaBase  string
	ClobBase   string
	MaxMarkets int // cap on markets fetched per cycle
}

// Client talks to the Gamma and CLOB APIs with independent rate limits so a
// burst of book requests cannot starve market discovery.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	gammaLimiter *rate.Limiter
	clobLimiter  *rate.Limiter
}

// NewClient creates a Client with sane default endpoints and limits.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.GammaBase == "" {
		cfg.GammaBase = defaultGammaBase
	}
	if cfg.ClobBase == "" {
		cfg.ClobBase = defaultClobBase
	}
	if cfg.MaxMarkets <= 0 {
		cfg.MaxMarkets = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: requestTimeout},
		logger:       logger,
		gammaLimiter: rate.NewLimiter(rate.Limit(4), 4),
		clobLimiter:  rate.NewLimiter(rate.Limit(10), 10),
	}
}

// FetchMarkets returns active binary markets ordered by the API's default
// relevance, skipping payloads that do not map cleanly.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	if err := c.gammaLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("polymarket.FetchMarkets: %w", err)
	}

	query := url.Values{}
	query.Set("active", "true")
	query.Set("closed", "false")
	query.Set("limit", strconv.Itoa(c.cfg.MaxMarkets))
	query.Set("order", "volume24hr")
	query.Set("ascending", "false")

	endpoint := c.cfg.GammaBase + "/markets?" + query.Encode()

	var dtos []gammaMarket
	if err := c.getJSON(ctx, endpoint, &dtos); err != nil {
		return nil, fmt.Errorf("polymarket.FetchMarkets: %w", err)
	}

	markets := make([]domain.Market, 0, len(dtos))
	skipped := 0
	for _, dto := range dtos {
		market, ok := mapMarket(dto)
		if !ok {
			skipped++
			continue
		}
		markets = append(markets, market)
	}
	if skipped > 0 {
		c.logger.Debug("skipped unmappable markets", "count", skipped)
	}
	return markets, nil
}

// FetchBooks returns order book snapshots keyed by token id. Tokens whose
// book request fails are logged and omitted rather than failing the batch.
func (c *Client) FetchBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	books := make(map[string]domain.OrderBook, len(tokenIDs))

	for _, tokenID := range tokenIDs {
		if err := c.clobLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("polymarket.FetchBooks: %w", err)
		}

		endpoint := c.cfg.ClobBase + "/book?token_id=" + url.QueryEscape(tokenID)

		var dto bookResponse
		if err := c.getJSON(ctx, endpoint, &dto); err != nil {
			c.logger.Warn("failed to fetch book", "token_id", tokenID, "error", err)
			continue
		}
		if dto.AssetID == "" {
			dto.AssetID = tokenID
		}
		books[tokenID] = mapBook(dto)
	}

	return books, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
