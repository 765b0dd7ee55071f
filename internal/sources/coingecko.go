package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutahub/valutahub/internal/domain"
)

const coinGeckoDefaultURL = "https://api.coingecko.com/api/v3/simple/price"

// CoinGecko fetches crypto quotes from the CoinGecko simple-price endpoint:
//
//	GET {url}?ids=bitcoin,ethereum&vs_currencies=usd
type CoinGecko struct {
	client *http.Client
	url    string
	// idMap maps currency codes to CoinGecko coin ids, e.g. BTC → bitcoin.
	idMap map[string]string
	codes []string
	quote string
}

// NewCoinGecko creates a CoinGecko source for the given currency codes quoted
// in quoteCurrency. An empty baseURL selects the public endpoint.
func NewCoinGecko(baseURL string, codes []string, quoteCurrency string, idMap map[string]string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = coinGeckoDefaultURL
	}
	return &CoinGecko{
		client: &http.Client{Timeout: timeout},
		url:    baseURL,
		idMap:  idMap,
		codes:  codes,
		quote:  strings.ToUpper(quoteCurrency),
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// Fetch returns {"BTC_USD": rate, ...} for every configured code present in
// the response. Codes without a known coin id or missing from the response
// are skipped silently.
func (c *CoinGecko) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(c.codes))
	for _, code := range c.codes {
		if id, ok := c.idMap[code]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", strings.ToLower(c.quote))

	body, err := fetchJSON(ctx, c.client, c.url+"?"+query.Encode())
	if err != nil {
		return nil, &domain.SourceUnavailableError{Source: c.Name(), Err: err}
	}

	// {"bitcoin": {"usd": 59337.21}, ...}
	var data map[string]map[string]float64
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &domain.SourceUnavailableError{Source: c.Name(), Err: errors.Wrap(err, "malformed JSON")}
	}

	out := make(map[string]decimal.Decimal)
	for _, code := range c.codes {
		id, ok := c.idMap[code]
		if !ok {
			continue
		}
		rate, ok := data[id][strings.ToLower(c.quote)]
		if !ok || rate <= 0 {
			continue
		}
		out[domain.PairKey(code, c.quote)] = decimal.NewFromFloat(rate)
	}
	return out, nil
}

func fetchJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", "valutahub/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return body, nil
}
