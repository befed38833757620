package flights

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/aviabot/internal/dialog"
	"github.com/m3rciful/aviabot/internal/reference"
)

type stubPrices struct {
	offers []Offer
	err    error
	calls  int
}

func (s *stubPrices) PricesForDates(context.Context, string, string, string) ([]Offer, error) {
	s.calls++
	return append([]Offer(nil), s.offers...), s.err
}

type countingMetrics struct {
	calls     map[string]int
	fallbacks int
}

func (m *countingMetrics) ExternalCall(_, outcome string, _ time.Duration) {
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[outcome]++
}

func (m *countingMetrics) AirportFallback() { m.fallbacks++ }

var (
	moscow = reference.City{Name: "Moscow", Ru: "Москва", Code: "MOW"}
	paris  = reference.City{Name: "Paris", Ru: "Париж", Code: "PAR"}
)

func airports() *reference.MemoryStore {
	return reference.NewMemoryStore(nil, []reference.Airport{
		{Code: "SVO", Name: "Шереметьево"},
		{Code: "CDG", Name: "Шарль-де-Голль"},
	})
}

func offer(price int, departure string) Offer {
	return Offer{
		Price: price, DepartureAt: departure, Link: "/search/x",
		OriginAirport: "SVO", DestinationAirport: "CDG",
	}
}

func TestSearchCustomRangeKeepsMatchingOffer(t *testing.T) {
	src := &stubPrices{offers: []Offer{
		offer(7000, "2024-02-10T06:30:00+03:00"),
		offer(12000, "2024-02-11T06:30:00+03:00"),
	}}
	svc := NewService(src, airports(), nil)

	res, err := svc.Search(context.Background(), Query{
		Origin: moscow, Destination: paris, Month: "2024-02",
		Range: &dialog.PriceRange{Low: 5000, High: 10000},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Status != StatusOK || len(res.Flights) != 1 {
		t.Fatalf("result = %+v", res)
	}
	row := res.Flights[0].String()
	for _, want := range []string{"Москва", "Париж", "Стоимость: 7000", "Шереметьево", "Шарль-де-Голль", "Дата отправления: 2024-02-10T06:30:00\n", "aviasales.ru/search/x"} {
		if !strings.Contains(row, want) {
			t.Errorf("row missing %q:\n%s", want, row)
		}
	}
	if strings.Contains(row, "12000") {
		t.Fatalf("out-of-range offer rendered:\n%s", row)
	}
}

func TestSearchDistinguishesEmptyRange(t *testing.T) {
	src := &stubPrices{offers: []Offer{offer(7000, ""), offer(12000, "")}}
	svc := NewService(src, airports(), nil)

	res, err := svc.Search(context.Background(), Query{
		Origin: moscow, Destination: paris, Month: "2024-02",
		Range: &dialog.PriceRange{Low: 100000, High: 200000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusNoResultsInRange || len(res.Flights) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if res.Status.Notice() != "По вашему запросу нет доступных рейсов в указанном диапазоне цен" {
		t.Fatalf("notice = %q", res.Status.Notice())
	}

	res, err = NewService(&stubPrices{}, airports(), nil).Search(context.Background(), Query{
		Origin: moscow, Destination: paris, Month: "2024-02",
		Range: &dialog.PriceRange{Low: 100000, High: 200000},
	})
	if err != nil || res.Status != StatusNoResults {
		t.Fatalf("empty api result = %+v, %v", res, err)
	}
	if res.Status.Notice() != "По вашему запросу нет доступных рейсов" {
		t.Fatalf("notice = %q", res.Status.Notice())
	}
}

func TestFilterByPriceIsIdempotent(t *testing.T) {
	offers := []Offer{offer(100, ""), offer(5000, ""), offer(7500, ""), offer(10000, ""), offer(10001, "")}
	r := dialog.PriceRange{Low: 5000, High: 10000}

	once := FilterByPrice(offers, r)
	twice := FilterByPrice(once, r)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("filter not idempotent: %v vs %v", once, twice)
	}
	if len(once) != 3 {
		t.Fatalf("kept %d offers, want 3", len(once))
	}
	if len(offers) != 5 {
		t.Fatal("input modified")
	}
	if got := FilterByPrice(offers, dialog.PriceRange{Low: 10000, High: 5000}); len(got) != 0 {
		t.Fatalf("reversed range kept %v", got)
	}
}

func TestSearchHighOrdersLatestFirst(t *testing.T) {
	src := &stubPrices{offers: []Offer{
		offer(3000, "2024-02-03T10:00:00+03:00"),
		offer(4000, "2024-02-27T10:00:00+03:00"),
		offer(5000, "2024-02-15T10:00:00+03:00"),
	}}
	res, err := NewService(src, airports(), nil).Search(context.Background(), Query{
		Origin: moscow, Destination: paris, Month: "2024-02", Order: ByDepartureDesc,
	})
	if err != nil {
		t.Fatal(err)
	}
	var prices []int
	for _, f := range res.Flights {
		prices = append(prices, f.Price)
	}
	if !reflect.DeepEqual(prices, []int{4000, 5000, 3000}) {
		t.Fatalf("order = %v", prices)
	}
}

func TestSearchAirportFallbackToCode(t *testing.T) {
	o := offer(7000, "2024-02-10T06:30:00+03:00")
	o.DestinationAirport = "ORY"
	metrics := &countingMetrics{}
	res, err := NewService(&stubPrices{offers: []Offer{o}}, airports(), metrics).Search(context.Background(), Query{
		Origin: moscow, Destination: paris, Month: "2024-02",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Flights[0].DestinationAirport != "ORY" || res.Flights[0].OriginAirport != "Шереметьево" {
		t.Fatalf("flight = %+v", res.Flights[0])
	}
	if metrics.fallbacks != 1 || metrics.calls["ok"] != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}
}

func TestSearchExternalFailure(t *testing.T) {
	metrics := &countingMetrics{}
	src := &stubPrices{err: errors.New("dial tcp: connection refused")}
	_, err := NewService(src, airports(), metrics).Search(context.Background(), Query{Origin: moscow, Destination: paris, Month: "2024-02"})
	if !errors.Is(err, ErrExternal) {
		t.Fatalf("err = %v, want ErrExternal", err)
	}
	if metrics.calls["fail"] != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}
}
