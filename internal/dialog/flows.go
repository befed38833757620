package dialog

import "github.com/m3rciful/aviabot/internal/reference"

const (
	promptOrigin      = "Введите название города отправления на русском языке"
	promptDestination = "Введите название города прибытия на русском языке"
	promptMonth       = "Введите год и месяц отправления в формате YYYY-MM (Например 2024-02)"
	promptPriceRange  = "Введите диапазон цен через дефис (например, 5000-10000)"
	promptWeatherCity = "Введите название города на русском языке, в котором необходимо узнать погоду"

	errOrigin      = "Город не найден в базе данных, либо город введен не корректно. Пожалуйста, введите город отправления."
	errDestination = "Город не найден в базе данных, либо город введен не корректно. Пожалуйста, введите город прибытия."
	errMonth       = "Некорректный формат даты. Пожалуйста, введите в формате YYYY-MM."
	errPriceRange  = "Некорректный формат диапазона цен. Пожалуйста, введите в формате нижняя_граница-верхняя_граница (например, 5000-10000)."
	errWeatherCity = "Город не найден в базе данных, либо введен некорректно. Пожалуйста, повторите ввод города."
)

// DefaultFlows returns the low, high, custom and weather flows.
func DefaultFlows(cities reference.Store) ([]Flow, error) {
	origin := StepDefinition{
		Name: StepOrigin, Validate: CityValidator(StepOrigin, cities),
		Prompt: promptOrigin, ErrorText: errOrigin, Next: StepDestination,
	}
	destination := StepDefinition{
		Name: StepDestination, Validate: CityValidator(StepDestination, cities),
		Prompt: promptDestination, ErrorText: errDestination, Next: StepMonth,
	}
	month := StepDefinition{
		Name: StepMonth, Validate: ValidateMonth,
		Prompt: promptMonth, ErrorText: errMonth, Next: StepResolve,
	}
	customMonth := month
	customMonth.Next = StepPriceRange
	priceRange := StepDefinition{
		Name: StepPriceRange, Validate: ValidatePriceRange,
		Prompt: promptPriceRange, ErrorText: errPriceRange, Next: StepResolve,
	}
	weatherCity := StepDefinition{
		Name: StepCity, Validate: CityValidator(StepCity, cities),
		Prompt: promptWeatherCity, ErrorText: errWeatherCity, Next: StepResolve,
	}

	specs := []struct {
		kind  Kind
		steps []StepDefinition
	}{
		{KindLow, []StepDefinition{origin, destination, month}},
		{KindHigh, []StepDefinition{origin, destination, month}},
		{KindCustom, []StepDefinition{origin, destination, customMonth, priceRange}},
		{KindWeather, []StepDefinition{weatherCity}},
	}
	flows := make([]Flow, 0, len(specs))
	for _, sp := range specs {
		f, err := NewFlow(sp.kind, sp.steps...)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, nil
}
