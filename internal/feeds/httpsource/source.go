// Package httpsource reads the feeds from the data service REST API.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"allergystats/internal/feeds"
	"allergystats/internal/feeds/models"
)

const (
	populationPath = "/api/v1/population"
	citiesPath     = "/api/v1/cities"
	allergiesPath  = "/api/v1/allergies"

	// maxBodyBytes caps a single feed response.
	maxBodyBytes = 32 << 20
)

// Client is a feeds.Source backed by the data service.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New builds a Client for the data service at baseURL. timeout bounds each
// feed request.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type populationBody struct {
	Population *int `json:"population"`
}

type citiesBody struct {
	Cities []cityBody `json:"cities"`
}

// cityBody uses pointers so a missing field can be told apart from a zero.
type cityBody struct {
	City       *string       `json:"city"`
	State      string        `json:"state"`
	Population *int          `json:"population"`
	Allergies  []allergyBody `json:"allergies"`
}

type allergyBody struct {
	Allergy   *string   `json:"allergy"`
	Type      *string   `json:"type"`
	Developed []float64 `json:"developed"`
	Outgrown  []float64 `json:"outgrown"`
}

type allergiesBody struct {
	Allergies []string `json:"allergies"`
}

func (c *Client) Population(ctx context.Context) (int, error) {
	var body populationBody
	if err := c.getJSON(ctx, feeds.FeedPopulation, populationPath, &body); err != nil {
		return 0, err
	}
	if body.Population == nil {
		return 0, feeds.NewFeedError(feeds.ErrorBadData, feeds.FeedPopulation, "population field missing", nil)
	}
	if *body.Population < 0 {
		return 0, feeds.NewFeedError(feeds.ErrorBadData, feeds.FeedPopulation,
			fmt.Sprintf("population %d is negative", *body.Population), nil)
	}
	return *body.Population, nil
}

func (c *Client) Cities(ctx context.Context) ([]models.CityRecord, error) {
	var body citiesBody
	if err := c.getJSON(ctx, feeds.FeedCities, citiesPath, &body); err != nil {
		return nil, err
	}

	cities := make([]models.CityRecord, 0, len(body.Cities))
	for i, raw := range body.Cities {
		rec, err := raw.record(i)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			return nil, feeds.NewFeedError(feeds.ErrorBadData, feeds.FeedCities, "invalid city record", err)
		}
		cities = append(cities, rec)
	}
	return cities, nil
}

func (c *Client) AllergyNames(ctx context.Context) ([]string, error) {
	var body allergiesBody
	if err := c.getJSON(ctx, feeds.FeedAllergies, allergiesPath, &body); err != nil {
		return nil, err
	}
	if body.Allergies == nil {
		return []string{}, nil
	}
	return body.Allergies, nil
}

func (b cityBody) record(index int) (models.CityRecord, error) {
	if b.City == nil {
		return models.CityRecord{}, &models.RecordError{Reason: fmt.Sprintf("city %d has no name", index)}
	}
	if b.Population == nil {
		return models.CityRecord{}, &models.RecordError{City: *b.City, Reason: "population field missing"}
	}

	rec := models.CityRecord{
		City:       *b.City,
		State:      b.State,
		Population: *b.Population,
		Allergies:  make([]models.AllergyRecord, 0, len(b.Allergies)),
	}
	for i, a := range b.Allergies {
		if a.Allergy == nil {
			return models.CityRecord{}, &models.RecordError{City: rec.City, Reason: fmt.Sprintf("allergy %d has no name", i)}
		}
		if a.Type == nil {
			return models.CityRecord{}, &models.RecordError{City: rec.City, Allergy: *a.Allergy, Reason: "type field missing"}
		}
		rec.Allergies = append(rec.Allergies, models.AllergyRecord{
			Allergy:   *a.Allergy,
			Type:      *a.Type,
			Developed: a.Developed,
			Outgrown:  a.Outgrown,
		})
	}
	return rec, nil
}

func (c *Client) getJSON(ctx context.Context, feed, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", feed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return feeds.Classify(feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return feeds.NewFeedError(feeds.ErrorBadStatus, feed, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		if ctx.Err() != nil {
			return feeds.Classify(feed, ctx.Err())
		}
		return feeds.NewFeedError(feeds.ErrorBadData, feed, "decode response", err)
	}
	return nil
}
