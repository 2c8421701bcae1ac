package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

const (
	// DefaultURLTemplate is the exchangerate-api.com pair endpoint.
	DefaultURLTemplate = "https://v6.exchangerate-api.com/v6/{key}/pair/{from}/{to}"

	// DefaultRatePath locates the rate in the exchangerate-api.com response.
	DefaultRatePath = "$.conversion_rate"
)

// HTTPProvider fetches spot rates from a JSON HTTP API.
//
// The request URL is built from a template where {key}, {from} and {to} are
// substituted; the rate is read from the response with a JSONPath expression.
type HTTPProvider struct {
	client      *http.Client
	urlTemplate string
	apiKey      string
	ratePath    string
}

// NewHTTPProvider returns a provider. Empty template or path use the defaults.
func NewHTTPProvider(client *http.Client, urlTemplate, apiKey, ratePath string) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	if ratePath == "" {
		ratePath = DefaultRatePath
	}
	return &HTTPProvider{
		client:      client,
		urlTemplate: urlTemplate,
		apiKey:      apiKey,
		ratePath:    ratePath,
	}
}

// SpotRate implements Provider.
func (p *HTTPProvider) SpotRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	addr := strings.NewReplacer(
		"{key}", p.apiKey,
		"{from}", from,
		"{to}", to,
	).Replace(p.urlTemplate)

	var body any
	if err := getJSON(ctx, p.client, addr, &body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s/%s: %v", ErrRateUnavailable, from, to, err)
	}

	value, err := jsonpath.Get(p.ratePath, body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s/%s: %q: %v", ErrRateUnavailable, from, to, p.ratePath, err)
	}
	// jsonpath returns a list for wildcard and slice expressions; keep the first answer.
	if list, ok := value.([]any); ok && len(list) > 0 {
		value = list[0]
	}

	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s/%s: not a number: %q", ErrRateUnavailable, from, to, v)
		}
		return rate, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s/%s: not a number: %v", ErrRateUnavailable, from, to, value)
	}
}

// getJSON performs a GET request and unmarshals the JSON response into data.
func getJSON(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v: %v", resp.Request.URL.Host, resp.Status)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(content, data)
}
