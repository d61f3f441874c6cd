// Package hydro talks to the hydrology service that turns a bounding
// box into a watershed grid.
package hydro

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shedmap/internal/geom"
)

const gridPath = "/hydrology/watershed/grid"

// maxBody caps how much of a grid response is read.
const maxBody = 64 << 20

// StatusError is a non-2xx answer. Its message is the response body so
// the service's own explanation reaches the status line.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("watershed service returned status %d", e.Code)
	}
	return e.Body
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// WatershedGrid requests the grid covering b at the given point spacing.
func (c *Client) WatershedGrid(ctx context.Context, b geom.BBox, spacingM int) (*geom.Grid, error) {
	q := url.Values{}
	q.Set("minx", num(b.MinX))
	q.Set("miny", num(b.MinY))
	q.Set("maxx", num(b.MaxX))
	q.Set("maxy", num(b.MaxY))
	q.Set("grid_spacing_m", strconv.Itoa(spacingM))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+gridPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create grid request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watershed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read grid response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	grid, err := geom.ParseGrid(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode grid response: %w", err)
	}
	return grid, nil
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
