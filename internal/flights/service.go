package flights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/internal/dialog"
	"github.com/m3rciful/aviabot/internal/reference"
)

// Order selects how surviving offers are listed.
type Order int

const (
	// ByPrice keeps the API order, cheapest first.
	ByPrice Order = iota
	// ByDepartureDesc lists the latest departures first.
	ByDepartureDesc
)

// Status distinguishes an empty search from an empty price window.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNoResults        Status = "no_results"
	StatusNoResultsInRange Status = "no_in_range"
)

// Query is a completed flight search.
type Query struct {
	Origin      reference.City
	Destination reference.City
	Month       string
	// Range, when set, keeps only offers priced within it.
	Range *dialog.PriceRange
	Order Order
}

// Flight is one offer ready for display.
type Flight struct {
	OriginCity         string
	DestinationCity    string
	DepartureAt        string
	Price              int
	OriginAirport      string
	DestinationAirport string
	Link               string
}

// Result is the outcome of a search. Flights is empty unless Status is StatusOK.
type Result struct {
	Status  Status
	Flights []Flight
}

// PriceSource is the price API.
type PriceSource interface {
	PricesForDates(ctx context.Context, origin, destination, month string) ([]Offer, error)
}

// Metrics receives API call and enrichment observations. A nil Metrics is ignored.
type Metrics interface {
	ExternalCall(api, outcome string, took time.Duration)
	AirportFallback()
}

// Service runs searches and enriches offers with airport names.
type Service struct {
	prices   PriceSource
	airports reference.Store
	metrics  Metrics
}

// NewService builds a Service. metrics may be nil.
func NewService(prices PriceSource, airports reference.Store, metrics Metrics) *Service {
	return &Service{prices: prices, airports: airports, metrics: metrics}
}

// Search queries the API and applies the price window and ordering of q.
// Airports missing from the reference store are shown by their IATA code.
func (s *Service) Search(ctx context.Context, q Query) (Result, error) {
	start := time.Now()
	offers, err := s.prices.PricesForDates(ctx, q.Origin.Code, q.Destination.Code, q.Month)
	took := time.Since(start)

	base := []slog.Attr{
		slog.String("origin", q.Origin.Code),
		slog.String("destination", q.Destination.Code),
		slog.String("month", q.Month),
		slog.Duration("duration", took),
	}
	if q.Range != nil {
		base = append(base, slog.Int("price_low", q.Range.Low), slog.Int("price_high", q.Range.High))
	}

	if err != nil {
		if !errors.Is(err, ErrExternal) {
			err = fmt.Errorf("%w: %v", ErrExternal, err)
		}
		s.observe("fail", took)
		logger.Warn(ctx, logger.CompFlights, "search.done",
			append(base, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return Result{}, err
	}

	res := Result{Status: StatusOK}
	switch {
	case len(offers) == 0:
		res.Status = StatusNoResults
	case q.Range != nil:
		offers = FilterByPrice(offers, *q.Range)
		if len(offers) == 0 {
			res.Status = StatusNoResultsInRange
		}
	}
	if res.Status == StatusOK {
		if q.Order == ByDepartureDesc {
			SortByDepartureDesc(offers)
		}
		res.Flights = make([]Flight, 0, len(offers))
		for _, o := range offers {
			res.Flights = append(res.Flights, s.enrich(ctx, q, o))
		}
	}

	s.observe(string(res.Status), took)
	logger.Info(ctx, logger.CompFlights, "search.done",
		append(base,
			slog.String("status", "ok"),
			slog.String("outcome", string(res.Status)),
			slog.Int("offers_shown", len(res.Flights)),
		)...)
	return res, nil
}

func (s *Service) observe(outcome string, took time.Duration) {
	if s.metrics != nil {
		s.metrics.ExternalCall("aviasales", outcome, took)
	}
}

func (s *Service) enrich(ctx context.Context, q Query, o Offer) Flight {
	return Flight{
		OriginCity:         q.Origin.Ru,
		DestinationCity:    q.Destination.Ru,
		DepartureAt:        trimDeparture(o.DepartureAt),
		Price:              o.Price,
		OriginAirport:      s.airportName(ctx, o.OriginAirport),
		DestinationAirport: s.airportName(ctx, o.DestinationAirport),
		Link:               o.Link,
	}
}

func (s *Service) airportName(ctx context.Context, code string) string {
	a, err := s.airports.AirportByCode(ctx, code)
	if err == nil && a.Name != "" {
		return a.Name
	}
	if s.metrics != nil {
		s.metrics.AirportFallback()
	}
	attrs := []slog.Attr{slog.String("airport", code)}
	if err != nil && !errors.Is(err, reference.ErrNotFound) {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.Debug(ctx, logger.CompFlights, "airport.fallback", attrs...)
	return code
}

// FilterByPrice keeps offers priced within r, preserving order. It is
// idempotent and never modifies offers.
func FilterByPrice(offers []Offer, r dialog.PriceRange) []Offer {
	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if r.Contains(o.Price) {
			out = append(out, o)
		}
	}
	return out
}

// SortByDepartureDesc orders offers latest departure first. Offers with an
// unparseable timestamp go last, in their original order.
func SortByDepartureDesc(offers []Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		ti, erri := time.Parse(time.RFC3339, offers[i].DepartureAt)
		tj, errj := time.Parse(time.RFC3339, offers[j].DepartureAt)
		switch {
		case erri != nil:
			return false
		case errj != nil:
			return true
		}
		return ti.After(tj)
	})
}

// trimDeparture drops the zone suffix: "2024-02-10T06:30:00+03:00" becomes
// "2024-02-10T06:30:00".
func trimDeparture(s string) string {
	if r := []rune(s); len(r) > 19 {
		return string(r[:19])
	}
	return s
}

// String renders the flight as one chat message.
func (f Flight) String() string {
	return "Город отправления: " + f.OriginCity +
		"\nГород прибытия: " + f.DestinationCity +
		"\nДата отправления: " + f.DepartureAt +
		"\nСтоимость: " + strconv.Itoa(f.Price) +
		"\nАэропорт отправления: " + f.OriginAirport +
		"\nАэропорт прибытия: " + f.DestinationAirport +
		"\nСсылка: aviasales.ru" + f.Link
}

// Notice is the user-facing text for an empty result.
func (s Status) Notice() string {
	switch s {
	case StatusNoResults:
		return "По вашему запросу нет доступных рейсов"
	case StatusNoResultsInRange:
		return "По вашему запросу нет доступных рейсов в указанном диапазоне цен"
	default:
		return ""
	}
}
