package domain

// Domain contains the request-scoped result models returned by the source adapters.
// JSON tags follow the dashboard's wire contract.

type NewsItem struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	Score            int    `json:"score"`
	Author           string `json:"by"`
	TimestampSeconds int64  `json:"time"`
	CommentCount     int    `json:"descendants"`
}

type NewsResult struct {
	Items []NewsItem `json:"items"`
	Total int        `json:"total"`
}

type Quote struct {
	Text   string   `json:"text"`
	Author string   `json:"author"`
	Tags   []string `json:"tags"`
}

// QuotesPage is one scraped page. Total counts the quotes on this page only;
// the site exposes no global count.
type QuotesPage struct {
	Quotes  []Quote `json:"quotes"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
	HasMore bool    `json:"hasMore"`
}

type GeoLocation struct {
	ID        int64   `json:"id,omitempty"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1,omitempty"`
}

type WeatherCurrent struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
	ObservedAt    string  `json:"time"`
}

type WeatherDay struct {
	Date           string  `json:"date"`
	TemperatureMax float64 `json:"temperatureMax"`
	TemperatureMin float64 `json:"temperatureMin"`
	WeatherCode    int     `json:"weathercode"`
}

type WeatherResult struct {
	City      string         `json:"city"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Current   WeatherCurrent `json:"current"`
	Daily     []WeatherDay   `json:"daily"`
}

const (
	MinPage      = 1
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 20
	DefaultCity  = "Belgrade"
	ForecastDays = 7
)
