// Package geo resolves US postal codes to IANA timezones using the GeoNames
// web services, so appointment times can be interpreted in the technician's
// local time.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// DefaultBaseURL is the public GeoNames endpoint.
const DefaultBaseURL = "http://api.geonames.org"

// Client looks up timezones for postal codes. Results are cached for the
// lifetime of the client since appointments cluster in the same areas.
type Client struct {
	baseURL  string
	username string
	hc       *http.Client

	mu    sync.Mutex
	cache map[string]*time.Location
}

// NewClient creates a GeoNames client for the given account username.
func NewClient(username string) *Client {
	return &Client{
		baseURL:  DefaultBaseURL,
		username: username,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: make(map[string]*time.Location),
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type postalCodeResult struct {
	PostalCodes []struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"postalCodes"`
}

type timezoneResult struct {
	TimezoneID string `json:"timezoneId"`
	Status     *struct {
		Message string `json:"message"`
		Value   int    `json:"value"`
	} `json:"status"`
}

// LocationForPostalCode resolves a 5-digit US postal code to its timezone.
func (c *Client) LocationForPostalCode(ctx context.Context, postalCode string) (*time.Location, error) {
	c.mu.Lock()
	if loc, ok := c.cache[postalCode]; ok {
		c.mu.Unlock()
		return loc, nil
	}
	c.mu.Unlock()

	lat, lng, err := c.geocode(ctx, postalCode)
	if err != nil {
		return nil, err
	}

	tzID, err := c.timezone(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(tzID)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q for postal code %s: %w", tzID, postalCode, err)
	}

	c.mu.Lock()
	c.cache[postalCode] = loc
	c.mu.Unlock()
	return loc, nil
}

// geocode resolves a postal code to coordinates.
func (c *Client) geocode(ctx context.Context, postalCode string) (lat, lng float64, err error) {
	q := url.Values{
		"postalcode": {postalCode},
		"country":    {"US"},
		"maxRows":    {"1"},
		"username":   {c.username},
	}

	var result postalCodeResult
	if err := c.get(ctx, c.baseURL+"/postalCodeSearchJSON?"+q.Encode(), &result); err != nil {
		return 0, 0, fmt.Errorf("geocoding postal code %s: %w", postalCode, err)
	}
	if len(result.PostalCodes) == 0 {
		return 0, 0, fmt.Errorf("no results for postal code %s", postalCode)
	}
	return result.PostalCodes[0].Lat, result.PostalCodes[0].Lng, nil
}

// timezone resolves coordinates to an IANA timezone ID.
func (c *Client) timezone(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{
		"lat":      {fmt.Sprintf("%f", lat)},
		"lng":      {fmt.Sprintf("%f", lng)},
		"username": {c.username},
	}

	var result timezoneResult
	if err := c.get(ctx, c.baseURL+"/timezoneJSON?"+q.Encode(), &result); err != nil {
		return "", fmt.Errorf("resolving timezone: %w", err)
	}
	if result.Status != nil && result.Status.Message != "" {
		return "", fmt.Errorf("geonames error %d: %s", result.Status.Value, result.Status.Message)
	}
	if result.TimezoneID == "" {
		return "", fmt.Errorf("no timezone for coordinates %f,%f", lat, lng)
	}
	return result.TimezoneID, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
