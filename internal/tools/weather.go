package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// WeatherName is the tool name for the weather lookup.
const WeatherName = "get_weather_data"

// defaultWeatherBaseURL is the public wttr.in endpoint; its j1 format
// returns the full forecast as JSON.
const defaultWeatherBaseURL = "https://wttr.in"

// maxWeatherResponseSize caps how much of the response body is read (1 MiB).
const maxWeatherResponseSize = 1 << 20

// WeatherInput defines input for the get_weather_data tool.
type WeatherInput struct {
	Location string `json:"location" jsonschema_description:"Name of the city or location."`
}

// Weather holds dependencies for the weather lookup handler.
type Weather struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// WeatherOption configures optional Weather behavior.
type WeatherOption func(*Weather)

// WithWeatherBaseURL overrides the upstream endpoint, used by tests.
func WithWeatherBaseURL(u string) WeatherOption {
	return func(w *Weather) { w.baseURL = u }
}

// WithWeatherClient overrides the HTTP client.
func WithWeatherClient(c *http.Client) WeatherOption {
	return func(w *Weather) { w.client = c }
}

// NewWeather creates a Weather tool group backed by wttr.in.
func NewWeather(logger *slog.Logger, opts ...WeatherOption) (*Weather, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	w := &Weather{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: defaultWeatherBaseURL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Tools returns the weather tool descriptor.
func (w *Weather) Tools() []*Tool {
	return []*Tool{
		New(WeatherName,
			"Retrieve a concise weather summary for a given city: current conditions, "+
				"temperature, humidity, wind, today's sunrise and sunset, and a short "+
				"multi-day forecast.",
			w.Forecast),
	}
}

// wttr.in j1 payload, trimmed to the fields the summary needs. Every scalar
// is a string in the upstream schema, including numbers.
type wttrValue struct {
	Value string `json:"value"`
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempC         string      `json:"temp_C"`
		FeelsLikeC    string      `json:"FeelsLikeC"`
		Humidity      string      `json:"humidity"`
		WindspeedKmph string      `json:"windspeedKmph"`
		UVIndex       string      `json:"uvIndex"`
		WeatherDesc   []wttrValue `json:"weatherDesc"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []wttrValue `json:"areaName"`
		Country  []wttrValue `json:"country"`
	} `json:"nearest_area"`
	Weather []struct {
		Date      string `json:"date"`
		MaxTempC  string `json:"maxtempC"`
		MinTempC  string `json:"mintempC"`
		Astronomy []struct {
			Sunrise string `json:"sunrise"`
			Sunset  string `json:"sunset"`
		} `json:"astronomy"`
		Hourly []struct {
			ChanceOfRain string      `json:"chanceofrain"`
			WeatherDesc  []wttrValue `json:"weatherDesc"`
		} `json:"hourly"`
	} `json:"weather"`
}

// Forecast fetches and condenses the wttr.in forecast for a location.
// Upstream failures are business errors the model can relay to the user.
func (w *Weather) Forecast(ctx *ai.ToolContext, input WeatherInput) (Result, error) {
	if input.Location == "" {
		return Errf("Location cannot be empty."), nil
	}

	reqURL := fmt.Sprintf("%s/%s?format=j1", w.baseURL, url.PathEscape(input.Location))
	req, err := http.NewRequestWithContext(ctx.Context, http.MethodGet, reqURL, nil)
	if err != nil {
		return Errf("Weather data unavailable"), nil
	}

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Context != nil && ctx.Context.Err() != nil {
			return Result{}, fmt.Errorf("weather lookup canceled: %w", ctx.Context.Err())
		}
		w.logger.Warn("weather lookup failed", "location", input.Location, "error", err)
		return Errf("Weather data unavailable"), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.logger.Warn("weather lookup failed", "location", input.Location, "status", resp.StatusCode)
		return Errf("Weather data unavailable"), nil
	}

	var data wttrResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxWeatherResponseSize)).Decode(&data); err != nil {
		w.logger.Warn("weather response malformed", "location", input.Location, "error", err)
		return Errf("Weather data unavailable"), nil
	}
	if len(data.CurrentCondition) == 0 || len(data.Weather) == 0 || len(data.NearestArea) == 0 {
		return Errf("Weather data unavailable"), nil
	}

	current := data.CurrentCondition[0]
	today := data.Weather[0]
	area := data.NearestArea[0]

	forecast := make([]map[string]any, 0, len(data.Weather))
	for _, day := range data.Weather {
		entry := map[string]any{
			"date":            day.Date,
			"max_temperature": day.MaxTempC + "°C",
			"min_temperature": day.MinTempC + "°C",
		}
		// wttr.in reports 8 hourly slots per day; index 4 is mid-day.
		if len(day.Hourly) > 4 && len(day.Hourly[4].WeatherDesc) > 0 {
			entry["condition"] = day.Hourly[4].WeatherDesc[0].Value
		}
		forecast = append(forecast, entry)
	}

	summary := map[string]any{
		"location": wttrFirst(area.AreaName) + ", " + wttrFirst(area.Country),
		"current": map[string]any{
			"temperature": current.TempC + "°C",
			"feels_like":  current.FeelsLikeC + "°C",
			"condition":   wttrFirst(current.WeatherDesc),
			"humidity":    current.Humidity + "%",
			"wind":        current.WindspeedKmph + " km/h",
			"uv_index":    current.UVIndex,
		},
		"forecast": forecast,
		"note":     "AQI data not available.",
	}

	todayStats := map[string]any{}
	if len(today.Astronomy) > 0 {
		todayStats["sunrise"] = today.Astronomy[0].Sunrise
		todayStats["sunset"] = today.Astronomy[0].Sunset
	}
	if len(today.Hourly) > 0 {
		todayStats["rain_chance"] = today.Hourly[0].ChanceOfRain + "%"
	}
	summary["today_stats"] = todayStats

	return OKResult(summary), nil
}

func wttrFirst(vals []wttrValue) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0].Value
}
