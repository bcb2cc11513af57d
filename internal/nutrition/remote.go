package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
	"github.com/noot-app/nutrition-log-mcp-server/internal/version"
)

// RemoteClient queries the public Open Food Facts search API
type RemoteClient struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

type searchResponse struct {
	Count    int             `json:"count"`
	Products []types.Product `json:"products"`
}

// NewRemoteClient creates a client for baseURL (e.g. https://world.openfoodfacts.org)
func NewRemoteClient(baseURL string, client *http.Client, logger *slog.Logger) *RemoteClient {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     logger,
	}
}

// SearchProductsByName calls /cgi/search.pl. The caller's context bounds the request.
func (c *RemoteClient) SearchProductsByName(ctx context.Context, name string, limit int) ([]types.Product, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("search_terms", name)
	params.Set("search_simple", "1")
	params.Set("json", "1")
	if limit > 0 {
		params.Set("page_size", strconv.Itoa(limit))
	}
	endpoint := c.baseURL + "/cgi/search.pl?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	if limit > 0 && len(body.Products) > limit {
		body.Products = body.Products[:limit]
	}

	c.log.Debug("Remote search completed", "food", name, "count", body.Count, "returned", len(body.Products), "duration", time.Since(start))
	return body.Products, nil
}
