package mcpgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/noot-app/nutrition-log-mcp-server/internal/logbook"
	"github.com/noot-app/nutrition-log-mcp-server/internal/nutrition"
	"github.com/noot-app/nutrition-log-mcp-server/internal/storage"
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
)

// LookupNutrientsResponse represents the response from lookup_nutrients
type LookupNutrientsResponse struct {
	Food    string                `json:"food"`
	Found   bool                  `json:"found"`
	Source  nutrition.Source      `json:"source,omitempty"`
	Per100g *types.NutrientRecord `json:"per_100g,omitempty"`
}

// ListEntriesResponse represents the response from list_entries
type ListEntriesResponse struct {
	Count   int               `json:"count"`
	Entries []*types.LogEntry `json:"entries"`
}

// SearchProductsResponse represents the response from search_products_by_name
type SearchProductsResponse struct {
	Found    bool                      `json:"found"`
	Count    int                       `json:"count"`
	Products []types.SimplifiedProduct `json:"products"`
}

// SearchBarcodeResponse represents the response from search_by_barcode
type SearchBarcodeResponse struct {
	Found   bool                  `json:"found"`
	Product *types.Product        `json:"product,omitempty"`
	Per100g *types.NutrientRecord `json:"per_100g,omitempty"`
}

func (s *Server) addTools() {
	logTool := mcp.NewTool("log_food",
		mcp.WithDescription("Log a food that was eaten. The amount is either grams or a count of units (pieces); unit counts are converted to grams with an estimated weight per piece. Returns the stored entry and any warnings."),
		mcp.WithString("food_name",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Name of the food, e.g. \"almonds\" or \"banana\""),
		),
		mcp.WithNumber("amount",
			mcp.Required(),
			mcp.Description("Quantity eaten, greater than 0"),
		),
		mcp.WithString("unit",
			mcp.Required(),
			mcp.Enum(string(types.UnitGrams), string(types.UnitUnits)),
			mcp.Description("\"grams\" or \"units\""),
		),
		mcp.WithOutputSchema[logbook.Result](),
	)
	s.mcpServer.AddTool(logTool, s.handleLogFood)

	weightTool := mcp.NewTool("resolve_unit_weight",
		mcp.WithDescription("Estimate the weight in grams of one unit (piece) of a food. Unknown foods fall back to 100 g."),
		mcp.WithString("food_name",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Name of the food"),
		),
		mcp.WithOutputSchema[logbook.UnitWeight](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(weightTool, s.handleResolveUnitWeight)

	nutrientsTool := mcp.NewTool("lookup_nutrients",
		mcp.WithDescription("Look up calories, protein and sugar (or carbs) per 100 g for a food without logging it."),
		mcp.WithString("food_name",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Name of the food"),
		),
		mcp.WithOutputSchema[LookupNutrientsResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(nutrientsTool, s.handleLookupNutrients)

	summaryTool := mcp.NewTool("daily_summary",
		mcp.WithDescription("Totals for one day compared with the daily calorie target."),
		mcp.WithString("date",
			mcp.Description("Day as YYYY-MM-DD (default: today)"),
		),
		mcp.WithOutputSchema[types.DailySummary](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(summaryTool, s.handleDailySummary)

	entriesTool := mcp.NewTool("list_entries",
		mcp.WithDescription("List logged foods, newest first."),
		mcp.WithString("start_date",
			mcp.Description("First day to include, YYYY-MM-DD"),
		),
		mcp.WithString("end_date",
			mcp.Description("Last day to include, YYYY-MM-DD"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of entries (default: %d, max: %d)", DefaultEntriesLimit, MaxEntriesLimit)),
			mcp.DefaultNumber(DefaultEntriesLimit),
			mcp.Min(1),
			mcp.Max(MaxEntriesLimit),
		),
		mcp.WithOutputSchema[ListEntriesResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(entriesTool, s.handleListEntries)

	searchTool := mcp.NewTool("search_products_by_name",
		mcp.WithDescription("Search the Open Food Facts dataset for products by name, returning per-100 g nutrients."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.MinLength(1), // must be at least 1 char
			mcp.Description("Product name to search for. Required and must be a non-empty string."),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of results (default: %d, max: %d)", DefaultSearchLimit, MaxSearchLimit)),
			mcp.DefaultNumber(DefaultSearchLimit),
			mcp.Min(1),
			mcp.Max(MaxSearchLimit),
		),
		mcp.WithOutputSchema[SearchProductsResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchProducts)

	barcodeTool := mcp.NewTool("search_by_barcode",
		mcp.WithDescription("Search for a product by its barcode (UPC/EAN)"),
		mcp.WithString("barcode",
			mcp.Required(),
			mcp.Description("The barcode (UPC/EAN) to search for"),
		),
		mcp.WithOutputSchema[SearchBarcodeResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(barcodeTool, s.handleSearchByBarcode)
}

func (s *Server) handleLogFood(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("handleLogFood: Starting tool call", "arguments", request.GetArguments())

	name, err := request.RequireString("food_name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'food_name': %v", err)), nil
	}
	amount, err := request.RequireFloat("amount")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'amount': %v", err)), nil
	}
	unit, err := request.RequireString("unit")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'unit': %v", err)), nil
	}

	result, err := s.deps.Logbook.LogFood(ctx, logbook.Submission{FoodName: name, Amount: amount, Unit: unit})
	if err != nil {
		return s.serviceError("log_food", err), nil
	}

	return s.structured("log_food", result)
}

func (s *Server) handleResolveUnitWeight(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("food_name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'food_name': %v", err)), nil
	}
	return s.structured("resolve_unit_weight", s.deps.Logbook.UnitWeight(name))
}

func (s *Server) handleLookupNutrients(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("food_name")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'food_name': %v", err)), nil
	}

	response := LookupNutrientsResponse{Food: name}
	record, source, err := s.deps.Logbook.Nutrients(ctx, name)
	switch {
	case errors.Is(err, nutrition.ErrNotFound):
		// Not found is an answer, not a failure
	case err != nil:
		return s.serviceError("lookup_nutrients", err), nil
	default:
		response.Found = true
		response.Source = source
		response.Per100g = &record
	}

	return s.structured("lookup_nutrients", response)
}

func (s *Server) handleDailySummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.deps.Logbook.Summary(ctx, request.GetString("date", ""))
	if err != nil {
		return s.serviceError("daily_summary", err), nil
	}
	return s.structured("daily_summary", summary)
}

func (s *Server) handleListEntries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := storage.Filter{
		StartDate: request.GetString("start_date", ""),
		EndDate:   request.GetString("end_date", ""),
		Limit:     clampLimit(request.GetFloat("limit", DefaultEntriesLimit), DefaultEntriesLimit, MaxEntriesLimit),
	}

	entries, err := s.deps.Logbook.Entries(ctx, filter)
	if err != nil {
		return s.serviceError("list_entries", err), nil
	}
	if entries == nil {
		entries = []*types.LogEntry{}
	}
	return s.structured("list_entries", ListEntriesResponse{Count: len(entries), Entries: entries})
}

func (s *Server) handleSearchProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("handleSearchProducts: Starting tool call", "arguments", request.GetArguments())

	name, err := request.RequireString("name")
	if err != nil {
		s.log.Warn("handleSearchProducts: Missing 'name' parameter", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'name': %v", err)), nil
	}
	if len(name) < 1 {
		return mcp.NewToolResultError("Parameter 'name' must be at least 1 character long"), nil
	}
	if s.deps.Engine == nil {
		return mcp.NewToolResultError("Product dataset is not available"), nil
	}

	limit := clampLimit(request.GetFloat("limit", DefaultSearchLimit), DefaultSearchLimit, MaxSearchLimit)
	s.log.Debug("MCP SearchProductsByName called", "name", name, "limit", limit)

	products, err := s.deps.Engine.SearchProductsByName(ctx, name, limit)
	if err != nil {
		s.log.Error("Product search failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	column := s.deps.Logbook.MacroColumn()
	simplified := make([]types.SimplifiedProduct, 0, len(products))
	for i := range products {
		simplified = append(simplified, products[i].ToSimplified(column))
	}

	return s.structured("search_products_by_name", SearchProductsResponse{
		Found:    len(simplified) > 0,
		Count:    len(simplified),
		Products: simplified,
	})
}

func (s *Server) handleSearchByBarcode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	barcode, err := request.RequireString("barcode")
	if err != nil {
		s.log.Warn("handleSearchByBarcode: Missing 'barcode' parameter", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'barcode': %v", err)), nil
	}
	if s.deps.Engine == nil {
		return mcp.NewToolResultError("Product dataset is not available"), nil
	}

	s.log.Debug("MCP SearchByBarcode called", "barcode", barcode)

	product, err := s.deps.Engine.SearchByBarcode(ctx, barcode)
	if err != nil {
		s.log.Error("Barcode search failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Barcode search failed: %v", err)), nil
	}

	response := SearchBarcodeResponse{Found: product != nil, Product: product}
	if product != nil {
		if rec, ok := product.NutrientRecord(s.deps.Logbook.MacroColumn()); ok {
			response.Per100g = &rec
		}
	}
	return s.structured("search_by_barcode", response)
}

// structured returns v as structured content with a JSON text fallback for older clients
func (s *Server) structured(tool string, v any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Error("Failed to marshal tool response", "tool", tool, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
	}

	s.log.Debug("Returning structured result", "tool", tool, "response_size", len(responseJSON))
	return mcp.NewToolResultStructured(v, string(responseJSON)), nil
}

func (s *Server) serviceError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, nutrition.ErrNotFound):
		return mcp.NewToolResultError("Food not found")
	case errors.Is(err, logbook.ErrInvalidSubmission), errors.Is(err, types.ErrInvalidUnit):
		return mcp.NewToolResultError(err.Error())
	default:
		s.log.Error("Tool call failed", "tool", tool, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
	}
}

func clampLimit(raw float64, def, maxLimit int) int {
	limit := int(raw)
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
