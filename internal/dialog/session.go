package dialog

import (
	"time"

	"github.com/m3rciful/aviabot/internal/reference"
)

// Kind names a dialog flow.
type Kind string

const (
	KindLow     Kind = "low"
	KindHigh    Kind = "high"
	KindCustom  Kind = "custom"
	KindWeather Kind = "weather"
)

// StepName names one step of a flow.
type StepName string

const (
	StepOrigin      StepName = "origin"
	StepDestination StepName = "destination"
	StepMonth       StepName = "month"
	StepPriceRange  StepName = "price_range"
	StepCity        StepName = "city"
	// StepResolve is the terminal marker; it has no definition of its own.
	StepResolve StepName = "resolve"
)

// PriceRange is an inclusive price interval. Low may exceed High.
type PriceRange struct {
	Low  int
	High int
}

// Contains reports whether price lies within the interval.
func (r PriceRange) Contains(price int) bool {
	return r.Low <= price && price <= r.High
}

// Answers maps each completed step to its validated value.
type Answers map[StepName]any

// City returns the city stored under step.
func (a Answers) City(step StepName) (reference.City, bool) {
	c, ok := a[step].(reference.City)
	return c, ok
}

// Month returns the YYYY-MM answer.
func (a Answers) Month() (string, bool) {
	m, ok := a[StepMonth].(string)
	return m, ok
}

// PriceRange returns the price interval answer.
func (a Answers) PriceRange() (PriceRange, bool) {
	r, ok := a[StepPriceRange].(PriceRange)
	return r, ok
}

// Session is one user's in-flight dialog. Answers holds exactly the steps
// before Step.
type Session struct {
	ID        string
	UserID    int64
	Kind      Kind
	Step      StepName
	Answers   Answers
	StartedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy that shares no map with s.
func (s Session) Clone() Session {
	out := s
	out.Answers = make(Answers, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	return out
}
