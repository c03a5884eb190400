package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-etl/internal/logger"
	"github.com/i474232898/weather-etl/internal/weather"
)

// WeatherbitFetcher implements the weather.Fetcher interface for the Weatherbit hourly forecast API.
type WeatherbitFetcher struct {
	name    string
	apiKey  string
	city    string
	baseURL string
	client  *http.Client
}

// NewWeatherbitFetcher builds a fetcher for endpoint. The endpoint may carry
// its own query (hours, units, ...); key and, when non-empty, city are added.
func NewWeatherbitFetcher(client *http.Client, endpoint, apiKey, city string) *WeatherbitFetcher {
	return &WeatherbitFetcher{
		name:    weather.ProviderWeatherbit,
		apiKey:  apiKey,
		city:    city,
		baseURL: endpoint,
		client:  client,
	}
}

func (p *WeatherbitFetcher) Name() string {
	return p.name
}

func (p *WeatherbitFetcher) Fetch(ctx context.Context) (weather.Payload, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherbit api key is not configured")
	}

	u, err := p.requestURL()
	if err != nil {
		return nil, err
	}
	logger.Infof("using weatherbit url: %s", redact(u))

	payload, err := getJSON(ctx, p.client, u)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (p *WeatherbitFetcher) requestURL() (string, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid weatherbit endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid weatherbit endpoint %q: scheme and host are required", p.baseURL)
	}

	values := u.Query()
	values.Set("key", p.apiKey)
	if p.city != "" {
		values.Set("city", p.city)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}
