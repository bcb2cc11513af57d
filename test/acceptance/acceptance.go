// This is a standalone acceptance test module
// It does not depend on the main application code
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	serverURL = getEnv("ACCEPTANCE_URL", "http://localhost:8080")
	authToken = getEnv("AUTH_TOKEN", "your-secret-token")
)

type MCPRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      map[string]string      `json:"clientInfo"`
}

type CallToolParams struct {
	Name      string      `json:"name"`
	Arguments interface{} `json:"arguments,omitempty"`
}

// LoadResult is the outcome of one request during the concurrency test
type LoadResult struct {
	Duration time.Duration
	Success  bool
	Error    string
}

func main() {
	fmt.Printf("🧪 Nutrition Log MCP Server acceptance test\n")
	fmt.Printf("Target: %s\n\n", serverURL)

	steps := []struct {
		label string
		run   func() error
	}{
		{"Health endpoint (no auth)", testHealth},
		{"MCP endpoint rejects missing and wrong tokens", testAuthRejected},
		{"MCP initialize with correct token", testInitialize},
		{"resolve_unit_weight tool", testResolveUnitWeight},
		{"log_food tool and daily_summary", testLogFoodAndSummary},
		{"REST API under /api", testRESTAPI},
		{"Concurrent unit weight lookups", testConcurrentLoad},
	}

	for i, step := range steps {
		fmt.Printf("%d. %s...\n", i+1, step.label)
		start := time.Now()
		if err := step.run(); err != nil {
			fmt.Printf("❌ %s failed: %v\n", step.label, err)
			os.Exit(1)
		}
		fmt.Printf("✅ passed (%.3fs)\n\n", time.Since(start).Seconds())
	}

	fmt.Printf("🎉 All acceptance tests passed!\n")
}

func testHealth() error {
	resp, err := http.Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	return nil
}

func testAuthRejected() error {
	for _, token := range []string{"", "wrong-api-key"} {
		status, _, err := postMCP(initializeRequest(), token)
		if err != nil {
			return err
		}
		if status != http.StatusUnauthorized {
			return fmt.Errorf("token %q: expected 401, got %d", token, status)
		}
	}
	return nil
}

func testInitialize() error {
	status, body, err := postMCP(initializeRequest(), authToken)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), "serverInfo") {
		return fmt.Errorf("response doesn't contain expected MCP initialize result")
	}
	return nil
}

func testResolveUnitWeight() error {
	var weight struct {
		Grams   float64 `json:"grams"`
		Matched bool    `json:"matched"`
		Key     string  `json:"key"`
	}
	if err := callTool(10, "resolve_unit_weight", map[string]interface{}{"food_name": "Pink Lady apple"}, &weight); err != nil {
		return err
	}
	if !weight.Matched || weight.Key != "apple" || weight.Grams != 180 {
		return fmt.Errorf("unexpected unit weight: %+v", weight)
	}

	if err := callTool(11, "resolve_unit_weight", map[string]interface{}{"food_name": "xyzzy"}, &weight); err != nil {
		return err
	}
	if weight.Matched || weight.Grams != 100 {
		return fmt.Errorf("unknown food should fall back to 100 g, got %+v", weight)
	}
	return nil
}

func testLogFoodAndSummary() error {
	var before struct {
		Entries  int     `json:"entries"`
		Calories float64 `json:"calories"`
	}
	if err := callTool(20, "daily_summary", map[string]interface{}{}, &before); err != nil {
		return err
	}

	var logged struct {
		Entry struct {
			Grams    float64 `json:"grams"`
			Calories float64 `json:"calories"`
			Protein  float64 `json:"protein"`
		} `json:"entry"`
		Source string `json:"source"`
	}
	args := map[string]interface{}{"food_name": "banana", "amount": 2, "unit": "units"}
	if err := callTool(21, "log_food", args, &logged); err != nil {
		return err
	}
	if logged.Entry.Grams != 240 {
		return fmt.Errorf("2 bananas should be 240 g, got %v", logged.Entry.Grams)
	}
	if logged.Entry.Calories != math.Round(logged.Entry.Calories) {
		return fmt.Errorf("calories should be a whole number, got %v", logged.Entry.Calories)
	}
	fmt.Printf("    ✓ logged %.0f kcal from %s\n", logged.Entry.Calories, logged.Source)

	var after struct {
		Entries  int     `json:"entries"`
		Calories float64 `json:"calories"`
	}
	if err := callTool(22, "daily_summary", map[string]interface{}{}, &after); err != nil {
		return err
	}
	if after.Entries != before.Entries+1 {
		return fmt.Errorf("summary entries went from %d to %d", before.Entries, after.Entries)
	}
	return nil
}

func testRESTAPI() error {
	req, _ := http.NewRequest(http.MethodGet, serverURL+"/api/unit-weight?food=egg", nil)
	req.Header.Set("Authorization", "Bearer "+authToken)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected status 200, got %d: %s", resp.StatusCode, body)
	}

	var weight struct {
		Grams float64 `json:"grams"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&weight); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if weight.Grams != 50 {
		return fmt.Errorf("egg should weigh 50 g, got %v", weight.Grams)
	}
	return nil
}

// testConcurrentLoad fires unit weight lookups from several clients at once
func testConcurrentLoad() error {
	const clients, requestsPerClient = 10, 5
	foods := []string{"apple", "banana", "egg", "walnut", "pita", "tomato"}

	var wg sync.WaitGroup
	results := make(chan LoadResult, clients*requestsPerClient)
	testStart := time.Now()

	for clientID := 0; clientID < clients; clientID++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			for i := 0; i < requestsPerClient; i++ {
				start := time.Now()
				var out map[string]interface{}
				err := callTool(1000+clientID*100+i, "resolve_unit_weight",
					map[string]interface{}{"food_name": foods[(clientID+i)%len(foods)]}, &out)

				r := LoadResult{Duration: time.Since(start), Success: err == nil}
				if err != nil {
					r.Error = fmt.Sprintf("client %d: %v", clientID, err)
				}
				results <- r
			}
		}(clientID)
	}

	wg.Wait()
	close(results)

	var (
		ok       int
		total    time.Duration
		slowest  time.Duration
		failures []string
	)
	for r := range results {
		if !r.Success {
			failures = append(failures, r.Error)
			continue
		}
		ok++
		total += r.Duration
		slowest = max(slowest, r.Duration)
	}

	elapsed := time.Since(testStart)
	fmt.Printf("    • %d/%d successful in %.2fs (%.1f req/s)\n", ok, clients*requestsPerClient, elapsed.Seconds(), float64(ok)/elapsed.Seconds())
	if ok > 0 {
		fmt.Printf("    • average %.3fs, slowest %.3fs\n", (total / time.Duration(ok)).Seconds(), slowest.Seconds())
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d requests failed, first: %s", len(failures), failures[0])
	}
	return nil
}

func initializeRequest() MCPRequest {
	return MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    map[string]interface{}{},
			ClientInfo: map[string]string{
				"name":    "acceptance-client",
				"version": "1.0.0",
			},
		},
	}
}

func postMCP(req MCPRequest, token string) (int, []byte, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, serverURL+"/mcp", bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// callTool invokes an MCP tool and decodes result.content[0].text into out
func callTool(id int, name string, args interface{}, out interface{}) error {
	status, body, err := postMCP(MCPRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "tools/call",
		Params:  CallToolParams{Name: name, Arguments: args},
	}, authToken)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d: %s", status, body)
	}

	var mcpResponse struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &mcpResponse); err != nil {
		return fmt.Errorf("failed to parse MCP response JSON: %w", err)
	}
	if mcpResponse.Error != nil {
		return fmt.Errorf("%s: %s", name, mcpResponse.Error.Message)
	}
	if len(mcpResponse.Result.Content) == 0 {
		return fmt.Errorf("%s: MCP response missing content field", name)
	}

	text := mcpResponse.Result.Content[0].Text
	if mcpResponse.Result.IsError {
		return fmt.Errorf("%s returned an error: %s", name, text)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%s: failed to parse tool result: %w", name, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
