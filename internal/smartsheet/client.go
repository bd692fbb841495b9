// Package smartsheet provides a minimal Smartsheet REST API v2 client
// covering the endpoints the check-in service needs: fetching the tracker
// report, fetching its underlying sheet, and pushing batched row updates.
package smartsheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultBaseURL is the public Smartsheet API endpoint.
const DefaultBaseURL = "https://api.smartsheet.com/2.0"

// reportPageSize is large enough to fetch the whole tracker in one page.
const reportPageSize = 5000

// Client is a minimal Smartsheet API client.
type Client struct {
	baseURL     string
	accessToken string
	hc          *http.Client
}

// NewClient creates a new Smartsheet API client.
func NewClient(accessToken string) *Client {
	return &Client{
		baseURL:     DefaultBaseURL,
		accessToken: accessToken,
		hc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Column describes a sheet or report column. Report columns carry their
// identifier in virtualId, sheet columns in id.
type Column struct {
	ID        int64  `json:"id,omitempty"`
	VirtualID int64  `json:"virtualId,omitempty"`
	Title     string `json:"title"`
	Type      string `json:"type,omitempty"`
}

// ColumnID returns the effective column identifier.
func (c Column) ColumnID() int64 {
	if c.VirtualID != 0 {
		return c.VirtualID
	}
	return c.ID
}

// Cell is a single cell value. Value is whatever JSON type the API returned
// (string, float64 or bool).
type Cell struct {
	ColumnID        int64 `json:"columnId,omitempty"`
	VirtualColumnID int64 `json:"virtualColumnId,omitempty"`
	Value           any   `json:"value,omitempty"`
	DisplayValue    string `json:"displayValue,omitempty"`
}

// EffectiveColumnID returns the column identifier regardless of whether the
// cell came from a sheet or a report.
func (c Cell) EffectiveColumnID() int64 {
	if c.VirtualColumnID != 0 {
		return c.VirtualColumnID
	}
	return c.ColumnID
}

// Row is a sheet or report row.
type Row struct {
	ID        int64  `json:"id,omitempty"`
	SheetID   int64  `json:"sheetId,omitempty"`
	RowNumber int    `json:"rowNumber,omitempty"`
	Cells     []Cell `json:"cells,omitempty"`
}

// Sheet is the subset of a sheet response the service uses. Reports decode
// into the same shape.
type Sheet struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// apiError is the error envelope Smartsheet returns on failures.
type apiError struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

// GetSheet fetches a sheet with all rows and columns.
func (c *Client) GetSheet(ctx context.Context, sheetID int64) (*Sheet, error) {
	var sheet Sheet
	if err := c.get(ctx, fmt.Sprintf("%s/sheets/%d", c.baseURL, sheetID), &sheet); err != nil {
		return nil, fmt.Errorf("fetching sheet %d: %w", sheetID, err)
	}
	return &sheet, nil
}

// GetReport fetches a report with all rows and columns. The deployment
// points the service at a report so the tracker owners control filtering.
func (c *Client) GetReport(ctx context.Context, reportID int64) (*Sheet, error) {
	var report Sheet
	url := fmt.Sprintf("%s/reports/%d?pageSize=%d", c.baseURL, reportID, reportPageSize)
	if err := c.get(ctx, url, &report); err != nil {
		return nil, fmt.Errorf("fetching report %d: %w", reportID, err)
	}
	return &report, nil
}

// UpdateRows applies a batch of row updates to a sheet.
func (c *Client) UpdateRows(ctx context.Context, sheetID int64, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding row updates: %w", err)
	}

	url := fmt.Sprintf("%s/sheets/%d/rows", c.baseURL, sheetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("updating rows on sheet %d: %w", sheetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("updating rows on sheet %d: %w", sheetID, decodeError(resp))
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
}

func decodeError(resp *http.Response) error {
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("smartsheet API error %d (status %d): %s", apiErr.ErrorCode, resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
}
