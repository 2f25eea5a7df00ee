// REST API CLIENT FOR UPBIT SPOT TRADING
// RESTY + JWT REQUEST SIGNING
package connectors

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.upbit.com"

// AccountBalance is one currency line of the account snapshot.
type AccountBalance struct {
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	Locked       decimal.Decimal `json:"locked"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	UnitCurrency string          `json:"unit_currency"`
}

// Ticker is the current market price of one trading pair.
type Ticker struct {
	Market     string          `json:"market"`
	TradePrice decimal.Decimal `json:"trade_price"`
}

// OrderResult mirrors the exchange's order representation.
type OrderResult struct {
	UUID            string          `json:"uuid"`
	Market          string          `json:"market"`
	Side            string          `json:"side"`
	OrdType         string          `json:"ord_type"`
	State           string          `json:"state"`
	Price           decimal.Decimal `json:"price"`
	Volume          decimal.Decimal `json:"volume"`
	ExecutedVolume  decimal.Decimal `json:"executed_volume"`
	RemainingVolume decimal.Decimal `json:"remaining_volume"`
	PaidFee         decimal.Decimal `json:"paid_fee"`
	CreatedAt       string          `json:"created_at"`
}

// OrderParams describes one order placement request.
// Market buys fund with KRW via Price (ord_type "price"); market sells
// specify Volume (ord_type "market"); limit orders require both.
type OrderParams struct {
	Market  string
	Side    string // "bid" or "ask"
	OrdType string // "limit", "price" or "market"
	Volume  string
	Price   string
}

type apiError struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client is the authenticated Upbit REST client. It holds credentials and an
// HTTP session, nothing else; all durable state lives in the database.
type Client struct {
	accessKey string
	secretKey string
	baseURL   string
	http      *resty.Client
}

func NewClient(accessKey, secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	// No transport-level retry: a timed-out POST /v1/orders may still have
	// filled, so retries have to be an explicit caller decision.
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second)

	return &Client{
		accessKey: accessKey,
		secretKey: secretKey,
		baseURL:   baseURL,
		http:      httpClient,
	}
}

// authToken builds the Bearer JWT Upbit expects: HS256 over access_key plus a
// random nonce, and a SHA512 hash of the sorted query string when the request
// carries parameters.
func (c *Client) authToken(params map[string]string) (string, error) {
	claims := jwt.MapClaims{
		"access_key": c.accessKey,
		"nonce":      uuid.NewString(),
	}

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
		}

		sum := sha512.Sum512([]byte(strings.Join(pairs, "&")))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.secretKey))
}

func (c *Client) authHeader(params map[string]string) (string, error) {
	token, err := c.authToken(params)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return "Bearer " + token, nil
}

// GetAccounts fetches the full account snapshot. An empty slice means the
// account genuinely holds nothing; every failure path returns an error so an
// outage is never mistaken for an empty account.
func (c *Client) GetAccounts() ([]AccountBalance, error) {
	header, err := c.authHeader(nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetHeader("Authorization", header).
		Get("/v1/accounts")
	if err != nil {
		return nil, fmt.Errorf("%w: get accounts: %v", ErrConnectivity, err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: get accounts HTTP %d: %s",
			ErrConnectivity, resp.StatusCode(), string(resp.Body()))
	}

	var accounts []AccountBalance
	if err := json.Unmarshal(resp.Body(), &accounts); err != nil {
		return nil, fmt.Errorf("%w: decode accounts: %v", ErrConnectivity, err)
	}

	logger.WithField("accounts", len(accounts)).Debug("Retrieved account snapshot")

	return accounts, nil
}

// GetTicker returns the current price for one market. Public endpoint, no auth.
func (c *Client) GetTicker(market string) (*Ticker, error) {
	resp, err := c.http.R().
		SetQueryParam("markets", market).
		Get("/v1/ticker")
	if err != nil {
		return nil, fmt.Errorf("%w: get ticker %s: %v", ErrConnectivity, market, err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: get ticker %s HTTP %d: %s",
			ErrConnectivity, market, resp.StatusCode(), string(resp.Body()))
	}

	var tickers []Ticker
	if err := json.Unmarshal(resp.Body(), &tickers); err != nil {
		return nil, fmt.Errorf("%w: decode ticker %s: %v", ErrConnectivity, market, err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no ticker data for %s", ErrConnectivity, market)
	}

	return &tickers[0], nil
}

// PlaceOrder submits one order. Rejections and transient failures come back
// as distinct error types so callers can decide whether a retry is safe.
func (c *Client) PlaceOrder(p OrderParams) (*OrderResult, error) {
	params := map[string]string{
		"market":   p.Market,
		"side":     p.Side,
		"ord_type": p.OrdType,
	}

	switch p.OrdType {
	case "limit":
		params["volume"] = p.Volume
		params["price"] = p.Price
	case "price":
		// Market buy funded by a KRW amount.
		params["price"] = p.Price
	case "market":
		// Market sell of a fixed volume.
		params["volume"] = p.Volume
	default:
		return nil, &OrderRejectedError{Name: "invalid_ord_type", Message: p.OrdType}
	}

	header, err := c.authHeader(params)
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"market":   p.Market,
		"side":     p.Side,
		"ord_type": p.OrdType,
	}).Info("Placing order")

	resp, err := c.http.R().
		SetHeader("Authorization", header).
		SetHeader("Content-Type", "application/json").
		SetBody(params).
		Post("/v1/orders")
	if err != nil {
		return nil, &ExchangeUnavailableError{Err: err}
	}

	if resp.StatusCode() != 201 {
		if isTransientStatus(resp.StatusCode()) {
			return nil, &ExchangeUnavailableError{
				StatusCode: resp.StatusCode(),
				Message:    string(resp.Body()),
			}
		}

		var rejection apiError
		_ = json.Unmarshal(resp.Body(), &rejection)
		return nil, &OrderRejectedError{
			StatusCode: resp.StatusCode(),
			Name:       rejection.Error.Name,
			Message:    rejection.Error.Message,
		}
	}

	var order OrderResult
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"market":     order.Market,
		"side":       order.Side,
		"order_uuid": order.UUID,
		"state":      order.State,
	}).Info("Order placed")

	return &order, nil
}

// GetOrder fetches one order's current state by its exchange uuid.
func (c *Client) GetOrder(orderUUID string) (*OrderResult, error) {
	params := map[string]string{"uuid": orderUUID}

	header, err := c.authHeader(params)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetHeader("Authorization", header).
		SetQueryParam("uuid", orderUUID).
		Get("/v1/order")
	if err != nil {
		return nil, fmt.Errorf("%w: get order %s: %v", ErrConnectivity, orderUUID, err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: get order %s HTTP %d: %s",
			ErrConnectivity, orderUUID, resp.StatusCode(), string(resp.Body()))
	}

	var order OrderResult
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return nil, fmt.Errorf("%w: decode order %s: %v", ErrConnectivity, orderUUID, err)
	}

	return &order, nil
}

// CancelOrder cancels an open order by its exchange uuid.
func (c *Client) CancelOrder(orderUUID string) (*OrderResult, error) {
	params := map[string]string{"uuid": orderUUID}

	header, err := c.authHeader(params)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetHeader("Authorization", header).
		SetQueryParam("uuid", orderUUID).
		Delete("/v1/order")
	if err != nil {
		return nil, &ExchangeUnavailableError{Err: err}
	}

	if resp.StatusCode() != 200 {
		if isTransientStatus(resp.StatusCode()) {
			return nil, &ExchangeUnavailableError{
				StatusCode: resp.StatusCode(),
				Message:    string(resp.Body()),
			}
		}

		var rejection apiError
		_ = json.Unmarshal(resp.Body(), &rejection)
		return nil, &OrderRejectedError{
			StatusCode: resp.StatusCode(),
			Name:       rejection.Error.Name,
			Message:    rejection.Error.Message,
		}
	}

	var order OrderResult
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return nil, fmt.Errorf("decode cancel response: %w", err)
	}

	logger.WithField("order_uuid", orderUUID).Info("Order cancelled")

	return &order, nil
}

// NormalizeMarket converts a bare ticker like "BTC" into the exchange market
// identifier "KRW-BTC". Already-qualified markets pass through unchanged.
func NormalizeMarket(ticker string) string {
	upper := strings.ToUpper(strings.TrimSpace(ticker))
	if strings.HasPrefix(upper, "KRW-") {
		return upper
	}
	return "KRW-" + upper
}
