package mcptools

import (
	"context"
	"log/slog"

	"github.com/dusk-indust/unhcr-mcp/internal/unhcr"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatsService holds the UNHCR client used by the MCP tool handlers.
type StatsService struct {
	client *unhcr.Client
	logger *slog.Logger
}

// NewStatsService creates a StatsService backed by client.
func NewStatsService(client *unhcr.Client, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{client: client, logger: logger}
}

// argDocs holds the per-tool descriptions of the shared arguments.
type argDocs struct {
	Coo, Coa, Year, CooAll, CoaAll string
}

// toolSpec is one entry of the tool registry.
type toolSpec struct {
	Name        string
	Description string
	PopType     bool
	Args        argDocs
	Fetch       func(*unhcr.Client, context.Context, unhcr.Query) unhcr.Result
}

var filterArgs = argDocs{
	Coo:    "Country of origin filter (ISO3 code, comma-separated for multiple)",
	Coa:    "Country of asylum filter (ISO3 code, comma-separated for multiple)",
	Year:   "Year filter (comma-separated for multiple years); defaults to the configured year",
	CooAll: "Set to true when analyzing decisions breakdown BY NATIONALITY",
	CoaAll: "Set to true when analyzing decisions breakdown BY COUNTRY",
}

var populationArgs = argDocs{
	Coo:    "Country of origin (ISO3 code). Use for questions about forcibly displaced populations FROM a specific country",
	Coa:    "Country of asylum (ISO3 code). Use for questions about forcibly displaced populations IN a specific country",
	Year:   "Year to filter by (comma-separated for multiple years); defaults to the configured year",
	CooAll: "Set to true when breaking down results by ORIGIN country",
	CoaAll: "Set to true when breaking down results by ASYLUM country",
}

// toolSpecs is the registry of exposed tools, in listing order.
var toolSpecs = []toolSpec{
	{
		Name:        "get_population_data",
		Description: "Get forcibly displaced populations like refugees, asylum seekers, stateless persons data from UNHCR.",
		Args:        populationArgs,
		Fetch:       (*unhcr.Client).Population,
	},
	{
		Name:        "get_demographics_data",
		Description: "Get forcibly displaced populations demographics data from UNHCR. It shows breakdown by age and sex when available.",
		PopType:     true,
		Args:        populationArgs,
		Fetch:       (*unhcr.Client).Demographics,
	},
	{
		Name:        "get_rsd_applications",
		Description: "Get Refugee Status Determination (RSD) application data from UNHCR.",
		Args: argDocs{
			Coo:    filterArgs.Coo,
			Coa:    filterArgs.Coa,
			Year:   filterArgs.Year,
			CooAll: "Set to true when analyzing the ORIGIN COUNTRIES of asylum seekers",
			CoaAll: "Set to true when analyzing the ASYLUM COUNTRIES where applications were filed",
		},
		Fetch: (*unhcr.Client).AsylumApplications,
	},
	{
		Name:        "get_rsd_decisions",
		Description: "Get Refugee Status Determination (RSD) decision data from UNHCR.",
		Args:        filterArgs,
		Fetch:       (*unhcr.Client).AsylumDecisions,
	},
	{
		Name:        "get_solutions",
		Description: "Get figures on durable solutions from UNHCR, including refugee returnees (returned_refugees), resettlement, naturalisation and returned IDPs (returned_idps).",
		Args:        filterArgs,
		Fetch:       (*unhcr.Client).Solutions,
	},
}

// statsHandler returns the handler for a tool taking StatsInput.
func (s *StatsService) statsHandler(spec toolSpec) mcp.ToolHandlerFor[StatsInput, unhcr.Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, unhcr.Result, error) {
		return nil, s.call(ctx, spec, input.Query()), nil
	}
}

// demographicsHandler returns the handler for a tool taking DemographicsInput.
func (s *StatsService) demographicsHandler(spec toolSpec) mcp.ToolHandlerFor[DemographicsInput, unhcr.Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DemographicsInput) (*mcp.CallToolResult, unhcr.Result, error) {
		return nil, s.call(ctx, spec, input.Query()), nil
	}
}

// call runs the fetch for spec. Upstream failures come back as a result
// object carrying "error" and "status" keys, never as a tool error.
func (s *StatsService) call(ctx context.Context, spec toolSpec, q unhcr.Query) unhcr.Result {
	s.logger.Debug("tool call", "tool", spec.Name, "coo", q.Origin, "coa", q.Asylum, "year", q.Years)

	res := spec.Fetch(s.client, ctx, q)
	if res.IsError() {
		s.logger.Warn("tool returned upstream failure", "tool", spec.Name, "error", res[unhcr.KeyError])
	}
	return res
}
