package bot

import (
	"context"
	"fmt"

	"github.com/m3rciful/aviabot/internal/dialog"
	"github.com/m3rciful/aviabot/internal/flights"
	"github.com/m3rciful/aviabot/internal/reference"
	"github.com/m3rciful/aviabot/internal/weather"
)

// FlightSearcher is the part of flights.Service the resolver needs.
type FlightSearcher interface {
	Search(ctx context.Context, q flights.Query) (flights.Result, error)
}

// Forecaster is the part of weather.Service the resolver needs.
type Forecaster interface {
	Forecast(ctx context.Context, city reference.City) ([]weather.Day, error)
}

// FlightResolver turns a completed low, high or custom session into flight rows.
func FlightResolver(s FlightSearcher) dialog.Resolver {
	return dialog.ResolverFunc(func(ctx context.Context, sess dialog.Session) ([]string, error) {
		q, err := flightQuery(sess)
		if err != nil {
			return nil, err
		}
		res, err := s.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		if res.Status != flights.StatusOK {
			return []string{res.Status.Notice()}, nil
		}
		out := make([]string, 0, len(res.Flights))
		for _, f := range res.Flights {
			out = append(out, f.String())
		}
		return out, nil
	})
}

func flightQuery(sess dialog.Session) (flights.Query, error) {
	origin, okO := sess.Answers.City(dialog.StepOrigin)
	dest, okD := sess.Answers.City(dialog.StepDestination)
	month, okM := sess.Answers.Month()
	if !okO || !okD || !okM {
		return flights.Query{}, fmt.Errorf("bot: incomplete %s session %s", sess.Kind, sess.ID)
	}
	q := flights.Query{Origin: origin, Destination: dest, Month: month}
	switch sess.Kind {
	case dialog.KindHigh:
		q.Order = flights.ByDepartureDesc
	case dialog.KindCustom:
		r, ok := sess.Answers.PriceRange()
		if !ok {
			return flights.Query{}, fmt.Errorf("bot: custom session %s without price range", sess.ID)
		}
		q.Range = &r
	}
	return q, nil
}

// WeatherResolver turns a completed weather session into one message per day.
func WeatherResolver(f Forecaster) dialog.Resolver {
	return dialog.ResolverFunc(func(ctx context.Context, sess dialog.Session) ([]string, error) {
		city, ok := sess.Answers.City(dialog.StepCity)
		if !ok {
			return nil, fmt.Errorf("bot: weather session %s without city", sess.ID)
		}
		days, err := f.Forecast(ctx, city)
		if err != nil {
			return nil, err
		}
		if len(days) == 0 {
			return []string{textNoForecast}, nil
		}
		out := make([]string, 0, len(days))
		for _, d := range days {
			out = append(out, weather.Render(city, d))
		}
		return out, nil
	})
}
