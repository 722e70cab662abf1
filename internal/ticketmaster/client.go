package ticketmaster

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"example.com/eventhub/config"
)

// RawEvent is an event object as returned by the Discovery API. Only the
// fields the ingestion pipeline reads are mapped.
type RawEvent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Dates       struct {
		Start struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
	} `json:"dates"`
	Embedded struct {
		Venues []Venue `json:"venues"`
	} `json:"_embedded"`
}

// Venue is a nested venue object
type Venue struct {
	Name string `json:"name"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	Country struct {
		Name string `json:"name"`
	} `json:"country"`
}

// Venue returns the event's first venue, or a zero venue when none is listed
func (e *RawEvent) Venue() Venue {
	if len(e.Embedded.Venues) == 0 {
		return Venue{}
	}
	return e.Embedded.Venues[0]
}

// Client queries the Ticketmaster Discovery API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Discovery API client
func NewClient(cfg config.TicketmasterConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SearchEvents returns up to size events matching the keyword. Only the
// first page is fetched per call.
func (c *Client) SearchEvents(ctx context.Context, keyword string, size int) ([]RawEvent, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("keyword", keyword)
	q.Set("size", strconv.Itoa(size))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/events.json?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discovery request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "discovery request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("discovery API returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Embedded struct {
			Events []RawEvent `json:"events"`
		} `json:"_embedded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode discovery response")
	}

	return payload.Embedded.Events, nil
}
