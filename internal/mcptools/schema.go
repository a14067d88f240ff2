package mcptools

import "github.com/google/jsonschema-go/jsonschema"

// inputSchema declares the arguments a statistics tool accepts. All are
// optional and unknown arguments are rejected. The SDK validates calls
// against it before the handler runs.
func inputSchema(spec toolSpec) *jsonschema.Schema {
	props := map[string]*jsonschema.Schema{
		"coo": {
			Types:       []string{"null", "string"},
			Description: spec.Args.Coo,
		},
		"coa": {
			Types:       []string{"null", "string"},
			Description: spec.Args.Coa,
		},
		"year": {
			Types:       []string{"null", "string", "integer"},
			Description: spec.Args.Year,
		},
		"coo_all": {
			Type:        "boolean",
			Description: spec.Args.CooAll,
		},
		"coa_all": {
			Type:        "boolean",
			Description: spec.Args.CoaAll,
		},
	}
	if spec.PopType {
		props["pop_type"] = &jsonschema.Schema{
			Type:        "boolean",
			Description: "Set to true when asked about specific population types (refugees, asylum seekers, stateless persons)",
		}
	}

	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}
