// Package weather fetches daily forecasts from Meteosource via RapidAPI.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/core/telegram/netutil"
	"github.com/m3rciful/aviabot/internal/reference"
)

// ErrExternal wraps every failure of the weather API.
var ErrExternal = errors.New("weather: external api failure")

const (
	DefaultHost = "ai-weather-by-meteosource.p.rapidapi.com"
	dailyPath   = "/daily"
	apiName     = "meteosource"
	celsius     = "°C"
)

// Config configures the weather client.
type Config struct {
	// BaseURL overrides https://<Host>, for tests.
	BaseURL string
	Host    string
	Key     string
	Timeout time.Duration
}

// Day is one daily forecast entry. Temperature keeps the API's number text.
type Day struct {
	Day         string      `json:"day"`
	Temperature json.Number `json:"temperature"`
	Summary     string      `json:"summary"`
}

type dailyResponse struct {
	Daily struct {
		Data []Day `json:"data"`
	} `json:"daily"`
}

// Metrics receives API call observations. A nil Metrics is ignored.
type Metrics interface {
	ExternalCall(api, outcome string, took time.Duration)
}

// Service requests forecasts for reference cities.
type Service struct {
	cfg     Config
	http    *http.Client
	metrics Metrics
}

// NewService applies defaults and builds the HTTP client. It never retries.
func NewService(cfg Config, metrics Metrics) *Service {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Service{
		cfg:     cfg,
		http:    netutil.NewClient(netutil.ClientOptions{Timeout: cfg.Timeout}),
		metrics: metrics,
	}
}

// Forecast returns the daily entries for city, in API order.
func (s *Service) Forecast(ctx context.Context, city reference.City) ([]Day, error) {
	start := time.Now()
	days, err := s.daily(ctx, city.Lat, city.Lon)
	took := time.Since(start)

	attrs := []slog.Attr{
		slog.String("city", city.Code),
		slog.Duration("duration", took),
	}
	if err != nil {
		s.observe("fail", took)
		logger.Warn(ctx, logger.CompWeather, "forecast.done",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return nil, err
	}
	s.observe("ok", took)
	logger.Info(ctx, logger.CompWeather, "forecast.done",
		append(attrs, slog.String("status", "ok"), slog.Int("days", len(days)))...)
	return days, nil
}

func (s *Service) daily(ctx context.Context, lat, lon float64) ([]Day, error) {
	q := url.Values{
		"lat":      {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":      {strconv.FormatFloat(lon, 'f', -1, 64)},
		"timezone": {"auto"},
		"language": {"en"},
		"units":    {"metric"},
	}
	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + dailyPath + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrExternal, err)
	}
	req.Header.Set("X-RapidAPI-Key", s.cfg.Key)
	req.Header.Set("X-RapidAPI-Host", s.cfg.Host)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternal, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrExternal, resp.StatusCode)
	}

	var body dailyResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrExternal, err)
	}
	return body.Daily.Data, nil
}

func (s *Service) observe(outcome string, took time.Duration) {
	if s.metrics != nil {
		s.metrics.ExternalCall(apiName, outcome, took)
	}
}

// Render formats one day for the chat.
func Render(city reference.City, d Day) string {
	return fmt.Sprintf("Город: %s\nДата: %s\nТемпература воздуха: %s %s", city.Ru, d.Day, d.Temperature, celsius)
}
