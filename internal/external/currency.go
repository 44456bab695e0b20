package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultExchangeRateAPIURL = "https://api.exchangerate-api.com/v4/latest"
	DefaultCountriesAPIURL    = "https://restcountries.com/v3.1/all?fields=name,currencies"
)

// RateClient provides the exchange rate between two currencies. The
// workflow captures the result once at submission; it is never consulted
// again for an existing expense.
type RateClient interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Country pairs a country name with its primary currency, for the
// registration form.
type Country struct {
	Name         string `json:"name"`
	CurrencyCode string `json:"currency_code"`
	CurrencyName string `json:"currency_name"`
}

// CountryClient resolves countries and their currencies.
type CountryClient interface {
	ListCountries(ctx context.Context) ([]Country, error)
	CurrencyForCountry(ctx context.Context, country string) (string, error)
}

// CurrencyAPI talks to the public exchange-rate and restcountries APIs.
type CurrencyAPI struct {
	rateURL      string
	countriesURL string
	client       *http.Client
}

func NewCurrencyAPI(rateURL, countriesURL string) *CurrencyAPI {
	if rateURL == "" {
		rateURL = DefaultExchangeRateAPIURL
	}
	if countriesURL == "" {
		countriesURL = DefaultCountriesAPIURL
	}
	return &CurrencyAPI{
		rateURL:      rateURL,
		countriesURL: countriesURL,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *CurrencyAPI) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	url := fmt.Sprintf("%s/%s", c.rateURL, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exchange rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("exchange rate API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]json.Number `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode exchange rate response: %w", err)
	}

	raw, ok := payload.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate from %s to %s", from, to)
	}

	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate value %q: %w", raw.String(), err)
	}
	return rate, nil
}

func (c *CurrencyAPI) ListCountries(ctx context.Context) ([]Country, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.countriesURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("countries request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("countries API returned status %d", resp.StatusCode)
	}

	var payload []struct {
		Name struct {
			Common string `json:"common"`
		} `json:"name"`
		Currencies map[string]struct {
			Name string `json:"name"`
		} `json:"currencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode countries response: %w", err)
	}

	countries := make([]Country, 0, len(payload))
	for _, entry := range payload {
		for code, cur := range entry.Currencies {
			countries = append(countries, Country{
				Name:         entry.Name.Common,
				CurrencyCode: code,
				CurrencyName: cur.Name,
			})
			break // first currency only
		}
	}

	sort.Slice(countries, func(i, j int) bool { return countries[i].Name < countries[j].Name })
	return countries, nil
}

func (c *CurrencyAPI) CurrencyForCountry(ctx context.Context, country string) (string, error) {
	countries, err := c.ListCountries(ctx)
	if err != nil {
		return "", err
	}
	for _, entry := range countries {
		if strings.EqualFold(entry.Name, country) {
			return entry.CurrencyCode, nil
		}
	}
	return "", fmt.Errorf("no currency found for country %q", country)
}
