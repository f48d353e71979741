package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dto "operator-dispatch.com/operator-dispatch/internal/data_models"
)

// UnknownName is reported for ids the directory does not list.
const UnknownName = "Unknown"

type Entry struct {
	ID   dto.Scalar `json:"ID"`
	Name string     `json:"NAME"`
}

// Directory is the city and partner listing served by the external API.
type Directory struct {
	Departments []Entry `json:"DEPARTMENTS"`
	Partners    []Entry `json:"PARTNERS"`
}

func (d *Directory) CityName(id string) string {
	if d == nil {
		return UnknownName
	}
	return find(d.Departments, id)
}

func (d *Directory) PartnerName(id string) string {
	if d == nil {
		return UnknownName
	}
	return find(d.Partners, id)
}

func find(entries []Entry, id string) string {
	for _, e := range entries {
		if e.ID.String() == id {
			return e.Name
		}
	}
	return UnknownName
}

type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Fetch(ctx context.Context) (*Directory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch directory: unexpected status %d", resp.StatusCode)
	}

	var dir Directory
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("decode directory: %w", err)
	}
	return &dir, nil
}
