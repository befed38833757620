// Package flights searches flight prices through the Aviasales data API.
package flights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/aviabot/core/telegram/netutil"
)

// ErrExternal wraps every failure of the price API: transport errors,
// timeouts, non-200 responses and undecodable bodies.
var ErrExternal = errors.New("flights: external api failure")

const (
	DefaultBaseURL = "https://api.travelpayouts.com"
	pricesPath     = "/aviasales/v3/prices_for_dates"
	defaultLimit   = 50
)

// ClientConfig configures the price API client.
type ClientConfig struct {
	BaseURL  string
	Token    string
	Currency string
	Limit    int
	Timeout  time.Duration
}

// Offer is one entry of the prices_for_dates response.
type Offer struct {
	Origin             string `json:"origin"`
	Destination        string `json:"destination"`
	OriginAirport      string `json:"origin_airport"`
	DestinationAirport string `json:"destination_airport"`
	Price              int    `json:"price"`
	Airline            string `json:"airline"`
	FlightNumber       string `json:"flight_number"`
	DepartureAt        string `json:"departure_at"`
	Transfers          int    `json:"transfers"`
	Link               string `json:"link"`
}

type pricesResponse struct {
	Success bool    `json:"success"`
	Data    []Offer `json:"data"`
	Error   string  `json:"error"`
}

// Client calls the prices_for_dates endpoint. It never retries.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient applies defaults and builds the HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "rub"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: netutil.NewClient(netutil.ClientOptions{Timeout: cfg.Timeout}),
	}
}

// PricesForDates returns offers from origin to destination departing in
// month (YYYY-MM), cheapest first. An absent data list is an empty result.
func (c *Client) PricesForDates(ctx context.Context, origin, destination, month string) ([]Offer, error) {
	q := url.Values{
		"origin":       {origin},
		"destination":  {destination},
		"departure_at": {month},
		"sorting":      {"price"},
		"direct":       {"false"},
		"cy":           {c.cfg.Currency},
		"limit":        {strconv.Itoa(c.cfg.Limit)},
		"page":         {"1"},
		"token":        {c.cfg.Token},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + pricesPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrExternal, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternal, redact(err, c.cfg.Token))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}
	var body pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrExternal, err)
	}
	if !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "success=false"
		}
		return nil, fmt.Errorf("%w: %s", ErrExternal, msg)
	}
	return body.Data, nil
}

// StatusError reports a non-200 answer of the price API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrExternal, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrExternal }

// redact strips the API token from URL errors before they reach logs.
func redact(err error, token string) string {
	msg := err.Error()
	if token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, token, "<redacted>")
}
