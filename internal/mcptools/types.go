package mcptools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dusk-indust/unhcr-mcp/internal/unhcr"
)

// --- MCP Tool Input Types ---
// The matching JSON schemas are declared in schema.go.

// StatsInput is the input shared by every statistics tool.
type StatsInput struct {
	Coo    string `json:"coo,omitempty"`
	Coa    string `json:"coa,omitempty"`
	Year   Year   `json:"year,omitempty"`
	CooAll bool   `json:"coo_all,omitempty"`
	CoaAll bool   `json:"coa_all,omitempty"`
}

// Query converts the tool input into an upstream query.
func (in StatsInput) Query() unhcr.Query {
	return unhcr.Query{
		Origin:          in.Coo,
		Asylum:          in.Coa,
		Years:           string(in.Year),
		OriginBreakdown: in.CooAll,
		AsylumBreakdown: in.CoaAll,
	}
}

// DemographicsInput is the input for get_demographics_data.
type DemographicsInput struct {
	StatsInput
	PopType bool `json:"pop_type,omitempty"`
}

// Query converts the tool input into an upstream query.
func (in DemographicsInput) Query() unhcr.Query {
	q := in.StatsInput.Query()
	q.PopulationType = in.PopType
	return q
}

// Year is a single year or comma-separated list of years. It decodes from a
// JSON string, a JSON number, or null.
type Year string

// UnmarshalJSON implements json.Unmarshaler.
func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("year must be a string or integer: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("year must be an integer, got %s", n)
	}
	*y = Year(n.String())
	return nil
}
