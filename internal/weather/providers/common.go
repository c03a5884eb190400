package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/i474232898/weather-etl/internal/weather"
)

// maxErrorBody caps how much of a non-200 body is kept for diagnostics.
const maxErrorBody = 2048

var errNoHTTPClient = errors.New("http client not configured")

// getJSON performs one GET and decodes the body. There is no retry here;
// retry policy belongs to whoever invokes the run.
func getJSON(ctx context.Context, client *http.Client, rawURL string) (weather.Payload, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redact(uerr.URL)
		}
		return nil, &weather.TransportError{URL: redact(rawURL), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &weather.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &weather.TransportError{URL: redact(rawURL), Err: err}
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &weather.DecodeError{Err: err}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, &weather.SchemaError{Field: "payload", Reason: fmt.Sprintf("is %T, not an object", decoded)}
	}
	return weather.Payload(obj), nil
}

// redact hides credentials in query strings before a URL is logged.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	for _, k := range []string{"key", "apikey", "appid", "api_key"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
