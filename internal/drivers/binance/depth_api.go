package binance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nexustrade/paperdesk/internal/market"
)

const depthRequestTimeout = 10 * time.Second

// DepthClient fetches depth snapshots over REST. Requests are rate limited
// so a fast refresh cadence cannot hammer the exchange.
type DepthClient struct {
	symbol     string
	depth      int
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDepthClient creates a depth client for one symbol, truncating
// snapshots to depth levels per side.
func NewDepthClient(symbol string, depth int, logger *slog.Logger) *DepthClient {
	return &DepthClient{
		symbol:     symbol,
		depth:      depth,
		limiter:    rate.NewLimiter(rate.Limit(1), 2),
		httpClient: &http.Client{Timeout: depthRequestTimeout},
		logger:     logger.With("client", "binance-depth", "symbol", symbol),
	}
}

// Snapshot fetches, parses and truncates one depth snapshot. Any transport
// or payload failure comes back wrapping market.ErrFeedUnavailable; the
// caller keeps its previous snapshot.
func (d *DepthClient) Snapshot(ctx context.Context) (market.BookSnapshot, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return market.BookSnapshot{}, fmt.Errorf("%w: rate limiter: %v", market.ErrFeedUnavailable, err)
	}

	url := fmt.Sprintf("%s/depth?symbol=%s&limit=%d", apiBaseURL, d.symbol, d.depth)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return market.BookSnapshot{}, fmt.Errorf("%w: build request: %v", market.ErrFeedUnavailable, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return market.BookSnapshot{}, fmt.Errorf("%w: fetch depth: %v", market.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return market.BookSnapshot{}, fmt.Errorf("%w: depth status %d", market.ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return market.BookSnapshot{}, fmt.Errorf("%w: read depth body: %v", market.ErrFeedUnavailable, err)
	}

	snap, err := market.ParseDepthSnapshot(body, d.depth)
	if err != nil {
		d.logger.Debug("malformed depth payload", "error", err)
		return market.BookSnapshot{}, err
	}
	return snap, nil
}
