// Package kalshi is the REST client for the Kalshi exchange API.
package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/valuebot/internal/domain"
)

// searchWindow is the close-time window around a game's scheduled start used
// when discovering its markets.
const searchWindow = 24 * time.Hour

// rateLimitKey scopes all signed requests under one limiter bucket.
const rateLimitKey = "kalshi:api"

// soccerSeriesTickers lists the soccer game series polled during market
// discovery. Kalshi splits soccer across one series per league.
var soccerSeriesTickers = []string{
	"KXEPLGAME",
	"KXUCLGAME",
	"KXLALIGAGAME",
	"KXBUNDESLIGAGAME",
	"KXSERIEAGAME",
	"KXLIGUE1GAME",
	"KXMLSGAME",
}

// seriesTickers returns the series to query for a sport. An empty string
// entry means "query without a series filter".
func seriesTickers(sport domain.Sport) []string {
	switch sport {
	case domain.SportNBA:
		return []string{"KXNBAGAME"}
	case domain.SportNFL:
		return []string{"KXNFLGAME"}
	case domain.SportMLB:
		return []string{"KXMLBGAME"}
	case domain.SportSoccer:
		return soccerSeriesTickers
	case domain.SportNCAAFB:
		// College football has no single game series; search unfiltered.
		return []string{""}
	default:
		return nil
	}
}

// Client is the REST client for the Kalshi exchange API. It implements
// domain.Exchange.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client

	// limiter, when set, gates every signed request. limitPerSecond is the
	// per-second budget passed to it.
	limiter        domain.RateLimiter
	limitPerSecond int
}

// NewClient creates a new Kalshi REST client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
// apiKeyID is the Kalshi API key identifier.
func NewClient(baseURL, apiKeyID string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for RSA-signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// SetRateLimiter gates every signed request on the given limiter with a
// per-second budget. A limitPerSecond of 0 disables client-side limiting.
func (c *Client) SetRateLimiter(rl domain.RateLimiter, limitPerSecond int) {
	c.limiter = rl
	c.limitPerSecond = limitPerSecond
}

// SearchMarkets discovers markets for a specific game. It fetches open events
// with nested markets for each of the sport's series tickers, keeps events
// whose title mentions either team, and keeps markets whose close time falls
// inside a window around the scheduled start. If no event matches, it falls
// back to an unfiltered market search over the same close window.
func (c *Client) SearchMarkets(ctx context.Context, home, away string, scheduled time.Time, sport domain.Sport) ([]domain.MarketSnapshot, error) {
	minClose := scheduled.Add(-searchWindow)
	maxClose := scheduled.Add(searchWindow)

	homeLower := strings.ToLower(home)
	awayLower := strings.ToLower(away)

	var matched []domain.MarketSnapshot

	for _, series := range seriesTickers(sport) {
		params := url.Values{}
		params.Set("limit", "200")
		params.Set("with_nested_markets", "true")
		params.Set("status", "open")
		params.Set("min_close_ts", strconv.FormatInt(minClose.Unix(), 10))
		if series != "" {
			params.Set("series_ticker", series)
		}

		body, err := c.doSignedRequest(ctx, http.MethodGet, "/events?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("kalshi: get events for %s: %w", sport, err)
		}

		var resp struct {
			Events []Event `json:"events"`
			Cursor string  `json:"cursor"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("kalshi: decode events: %w", err)
		}

		for _, event := range resp.Events {
			eventText := strings.ToLower(event.Title + " " + event.SubTitle)
			if !strings.Contains(eventText, homeLower) && !strings.Contains(eventText, awayLower) {
				continue
			}

			for _, m := range event.Markets {
				snap := toSnapshot(m)
				if snap.CloseTime.Before(minClose) || snap.CloseTime.After(maxClose) {
					continue
				}
				if !snap.Active() {
					continue
				}
				matched = append(matched, snap)
			}
		}
	}

	if len(matched) > 0 {
		return matched, nil
	}

	// Fall back to searching markets directly over the same close window.
	params := url.Values{}
	params.Set("limit", "200")
	params.Set("status", "open")
	params.Set("min_close_ts", strconv.FormatInt(minClose.Unix(), 10))
	params.Set("max_close_ts", strconv.FormatInt(maxClose.Unix(), 10))

	body, err := c.doSignedRequest(ctx, http.MethodGet, "/markets?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: search markets: %w", err)
	}

	var resp struct {
		Markets []Market `json:"markets"`
		Cursor  string   `json:"cursor"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode markets: %w", err)
	}

	for _, m := range resp.Markets {
		text := strings.ToLower(m.Title + " " + m.Subtitle + " " + m.YesSubTitle + " " + m.NoSubTitle)
		if strings.Contains(text, homeLower) || strings.Contains(text, awayLower) {
			matched = append(matched, toSnapshot(m))
		}
	}

	return matched, nil
}

// GetMarket returns a fresh snapshot for a single market by its ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (domain.MarketSnapshot, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(ticker))

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market Market `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("kalshi: decode market: %w", err)
	}

	return toSnapshot(resp.Market), nil
}

// CreateOrder submits a market buy order for count contracts on side.
func (c *Client) CreateOrder(ctx context.Context, ticker string, side domain.TradeSide, count int64) (domain.OrderResult, error) {
	req := OrderRequest{
		Ticker: ticker,
		Action: "buy",
		Side:   string(side),
		Type:   "market",
		Count:  count,
	}

	body, err := c.doSignedRequest(ctx, http.MethodPost, "/portfolio/orders", req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("kalshi: create order %s: %w", ticker, err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("kalshi: decode order response: %w", err)
	}

	if resp.Order.Status == "canceled" {
		return domain.OrderResult{}, fmt.Errorf("kalshi: order was immediately cancelled")
	}

	return domain.OrderResult{
		OrderID:     resp.Order.OrderID,
		Status:      resp.Order.Status,
		FilledCount: resp.Order.FillCount,
	}, nil
}

// GetBalance returns the available account balance in cents.
func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	body, err := c.doSignedRequest(ctx, http.MethodGet, "/portfolio/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("kalshi: get balance: %w", err)
	}

	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("kalshi: decode balance: %w", err)
	}

	return resp.Balance, nil
}

// CancelOrder cancels an existing order by its ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/portfolio/orders/%s", url.PathEscape(orderID))

	_, err := c.doSignedRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("kalshi: cancel order %s: %w", orderID, err)
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doSignedRequest builds, signs (RSA), sends, and reads an HTTP request
// against the Kalshi API.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	if err := c.waitForSlot(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	// Sign the request with RSA. The signed path excludes the query string.
	signPath := path
	if i := strings.IndexByte(signPath, '?'); i >= 0 {
		signPath = signPath[:i]
	}
	if err := c.signRequest(req, method, signPath); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// waitForSlot blocks until the client-side rate limiter admits a request.
func (c *Client) waitForSlot(ctx context.Context) error {
	if c.limiter == nil || c.limitPerSecond <= 0 {
		return nil
	}

	for {
		allowed, err := c.limiter.Allow(ctx, rateLimitKey, c.limitPerSecond, time.Second)
		if err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(50 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// signRequest adds RSA authentication headers to the HTTP request.
// Kalshi uses RSA-PSS-SHA256 signatures over the timestamp + method + path
// message string.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	if c.privateKey == nil {
		// If no RSA key is set, we cannot sign. This is a configuration error.
		return fmt.Errorf("kalshi: RSA private key not configured")
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	// The message to sign is: timestamp + method + path
	message := ts + method + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	encodedSig := base64.StdEncoding.EncodeToString(signature)

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", encodedSig)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr ErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("kalshi: not found: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("kalshi: unauthorized: %s (%s)", apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("kalshi: %s (%s): %w", apiErr.Message, apiErr.Code, domain.ErrRateLimited)
	case http.StatusBadRequest:
		return fmt.Errorf("kalshi: bad request: %s (%s)", apiErr.Message, apiErr.Code)
	case http.StatusConflict:
		return fmt.Errorf("kalshi: conflict: %s (%s)", apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("kalshi: HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}

// Compile-time interface check.
var _ domain.Exchange = (*Client)(nil)
