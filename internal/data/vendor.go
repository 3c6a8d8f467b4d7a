package data

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/contactkeval/kiss-signal/internal/apperrors"
	"github.com/contactkeval/kiss-signal/internal/logger"
	"github.com/contactkeval/kiss-signal/internal/ohlcv"
)

// vendorDataProvider fetches daily aggregate bars from an HTTP vendor API
// using the Massive/Polygon-style "aggs" endpoint shape. Grounded on the
// teacher's massiveDataProvider (pagination, per-minute rate-limit retry,
// secondary fallback chaining) with its options-contract machinery
// (GetContracts, GetATMOptionPrices, strike rounding) dropped entirely —
// nothing in this module's domain has a concept of a contract or a strike —
// and its raw net/http client replaced with go-resty/resty/v2, already a
// teacher dependency the original never imported directly.
type vendorDataProvider struct {
	client      *resty.Client
	baseURL     string
	apiKey      string
	indexTicker string
	secondary   Provider
}

// NewVendorDataProvider builds an HTTP-backed Provider. indexTicker is the
// vendor's symbol for the benchmark index (e.g. "I:NIFTY50").
func NewVendorDataProvider(baseURL, apiKey, indexTicker string, secondary Provider) Provider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetRetryCount(5).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(65 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429
		})
	client.SetRetryAfter(func(c *resty.Client, r *resty.Response) (time.Duration, error) {
		if r.StatusCode() != 429 {
			return 0, nil
		}
		wait := time.Until(time.Now().Truncate(time.Minute).Add(time.Minute))
		logger.Infof("data: vendor rate limit hit, sleeping %s", wait)
		return wait, nil
	})

	return &vendorDataProvider{
		client:      client,
		baseURL:     baseURL,
		apiKey:      apiKey,
		indexTicker: indexTicker,
		secondary:   secondary,
	}
}

func (v *vendorDataProvider) Secondary() Provider { return v.secondary }

type aggsResponse struct {
	Ticker  string `json:"ticker"`
	Results []struct {
		Open      float64 `json:"o"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Close     float64 `json:"c"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"`
	} `json:"results"`
	Status  string `json:"status"`
	NextURL string `json:"next_url"`
}

func (v *vendorDataProvider) GetDailyBars(symbol string, from, to time.Time) ([]ohlcv.Bar, error) {
	bars, err := v.fetchAggs(fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s", symbol, from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err != nil {
		if v.secondary != nil {
			logger.Infof("data: %s: vendor fetch failed, falling back to secondary: %v", symbol, err)
			return v.secondary.GetDailyBars(symbol, from, to)
		}
		return nil, err
	}
	return bars, nil
}

func (v *vendorDataProvider) GetIndexBars(from, to time.Time) ([]ohlcv.Bar, error) {
	bars, err := v.fetchAggs(fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s", v.indexTicker, from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err != nil {
		if v.secondary != nil {
			logger.Infof("data: index: vendor fetch failed, falling back to secondary: %v", err)
			return v.secondary.GetIndexBars(from, to)
		}
		return nil, err
	}
	return bars, nil
}

func (v *vendorDataProvider) fetchAggs(path string) ([]ohlcv.Bar, error) {
	var out []ohlcv.Bar
	nextURL := path

	for nextURL != "" {
		var body aggsResponse
		req := v.client.R().
			SetQueryParam("adjusted", "true").
			SetQueryParam("sort", "asc").
			SetQueryParam("limit", "50000").
			SetQueryParam("apiKey", v.apiKey).
			SetResult(&body)

		resp, err := req.Get(nextURL)
		if err != nil {
			return nil, apperrors.Dataf("data.vendor", path, "request: %w", err)
		}
		if resp.IsError() {
			return nil, apperrors.Dataf("data.vendor", path, "status %d: %s", resp.StatusCode(), resp.String())
		}

		for _, r := range body.Results {
			out = append(out, ohlcv.Bar{
				Date:   time.UnixMilli(r.Timestamp).UTC(),
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
			})
		}
		nextURL = body.NextURL
	}

	logger.Debugf("data.vendor: fetched %d bars from %s", len(out), path)
	return out, nil
}
