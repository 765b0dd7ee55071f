package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
)

const exchangeRateDefaultURL = "https://v6.exchangerate-api.com/v6"

// ExchangeRateAPI fetches fiat quotes from ExchangeRate-API:
//
//	GET {url}/{key}/latest/{BASE}
//
// Rates come back quoted the other way round (1 BASE = x CODE), so each pair
// is stored as CODE_BASE with the value taken verbatim, matching the cache
// pair convention.
type ExchangeRateAPI struct {
	client *http.Client
	url    string
	apiKey string
	base   string
	codes  []string
}

// NewExchangeRateAPI creates an ExchangeRate-API source for the given fiat
// codes against base. An empty baseURL selects the public v6 endpoint.
func NewExchangeRateAPI(baseURL, apiKey, base string, codes []string, timeout time.Duration) *ExchangeRateAPI {
	if baseURL == "" {
		baseURL = exchangeRateDefaultURL
	}
	return &ExchangeRateAPI{
		client: &http.Client{Timeout: timeout},
		url:    baseURL,
		apiKey: strings.TrimSpace(apiKey),
		base:   strings.ToUpper(base),
		codes:  codes,
	}
}

func (e *ExchangeRateAPI) Name() string { return "exchangerate-api" }

type exchangeRateResponse struct {
	Result    string             `json:"result"`
	ErrorType string             `json:"error-type"`
	Rates     map[string]float64 `json:"rates"`
	// v6 responses carry the table under conversion_rates
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// Fetch returns {"EUR_USD": rate, ...} for every configured code present in
// the response. A missing API key, an unsuccessful API status or an empty
// result all fail the source.
func (e *ExchangeRateAPI) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	if e.apiKey == "" {
		return nil, &domain.SourceUnavailableError{Source: e.Name(), Err: errors.New("EXCHANGERATE_API_KEY is not set")}
	}

	url := fmt.Sprintf("%s/%s/latest/%s", e.url, e.apiKey, e.base)
	body, err := fetchJSON(ctx, e.client, url)
	if err != nil {
		return nil, &domain.SourceUnavailableError{Source: e.Name(), Err: err}
	}

	var data exchangeRateResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &domain.SourceUnavailableError{Source: e.Name(), Err: errors.Wrap(err, "malformed JSON")}
	}
	if !strings.EqualFold(data.Result, "success") {
		reason := data.ErrorType
		if reason == "" {
			reason = "unknown error"
		}
		return nil, &domain.SourceUnavailableError{Source: e.Name(), Err: fmt.Errorf("API status: %s", reason)}
	}

	rates := data.Rates
	if len(rates) == 0 {
		rates = data.ConversionRates
	}
	if len(rates) == 0 {
		return nil, &domain.SourceUnavailableError{Source: e.Name(), Err: errors.New("no rates in response")}
	}

	out := make(map[string]decimal.Decimal)
	for _, code := range e.codes {
		if code == e.base {
			continue
		}
		rate, ok := rates[code]
		if !ok || rate <= 0 {
			continue
		}
		out[domain.PairKey(code, e.base)] = decimal.NewFromFloat(rate)
	}
	if len(out) == 0 {
		return nil, &domain.SourceUnavailableError{
			Source: e.Name(),
			Err:    fmt.Errorf("none of %v present for base %s", e.codes, e.base),
		}
	}
	return out, nil
}
