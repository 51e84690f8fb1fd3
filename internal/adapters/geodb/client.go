// Package geodb is a client for the GeoDB Cities places API, used for city
// autocomplete.
package geodb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// DefaultBaseURL is the free GeoDB endpoint.
const DefaultBaseURL = "http://geodb-free-service.wirefreethought.com"

// Client implements ports.CityDirectory.
type Client struct {
	baseURL string
	timeout time.Duration
	limit   int
	http    *fasthttp.Client
}

// New creates a client. limit caps the number of suggestions per query.
func New(baseURL string, timeout time.Duration, limit int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		limit:   limit,
		http: &fasthttp.Client{
			Name:                "tripplanner",
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type placesResponse struct {
	Data []struct {
		Name        string  `json:"name"`
		Country     string  `json:"country"`
		CountryCode string  `json:"countryCode"`
		Region      string  `json:"region"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
	} `json:"data"`
}

// Search returns cities whose name starts with prefix, most populous first.
func (c *Client) Search(ctx context.Context, prefix string) ([]domain.CitySuggestion, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/geo/places")
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	args := req.URI().QueryArgs()
	args.Set("namePrefix", prefix)
	args.Set("types", "CITY")
	args.Set("sort", "-population,countryCode")
	if c.limit > 0 {
		args.Set("limit", strconv.Itoa(c.limit))
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("geodb request: %w", err)
	}

	if status := resp.StatusCode(); status < 200 || status > 299 {
		return nil, fmt.Errorf("geodb: unexpected status %d", status)
	}

	var body placesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("geodb decode: %w", err)
	}

	cities := make([]domain.CitySuggestion, 0, len(body.Data))
	for _, p := range body.Data {
		cities = append(cities, domain.CitySuggestion{
			City: domain.City{
				Name:        p.Name,
				CountryCode: p.CountryCode,
				Latitude:    p.Latitude,
				Longitude:   p.Longitude,
			},
			Country: p.Country,
			Region:  p.Region,
		})
	}
	return cities, nil
}
