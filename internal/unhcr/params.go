package unhcr

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Endpoint names a statistics resource under the population API.
type Endpoint string

// Supported endpoints.
const (
	EndpointPopulation         Endpoint = "population"
	EndpointDemographics       Endpoint = "demographics"
	EndpointAsylumApplications Endpoint = "asylum-applications"
	EndpointAsylumDecisions    Endpoint = "asylum-decisions"
	EndpointSolutions          Endpoint = "solutions"
)

// Endpoints returns every supported endpoint in a stable order.
func Endpoints() []Endpoint {
	return []Endpoint{
		EndpointPopulation,
		EndpointDemographics,
		EndpointAsylumApplications,
		EndpointAsylumDecisions,
		EndpointSolutions,
	}
}

// Valid reports whether e is a supported endpoint.
func (e Endpoint) Valid() bool {
	for _, known := range Endpoints() {
		if e == known {
			return true
		}
	}
	return false
}

// ParseEndpoint converts a name into an Endpoint, rejecting unknown names.
func ParseEndpoint(name string) (Endpoint, error) {
	e := Endpoint(strings.ToLower(strings.TrimSpace(name)))
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	return e, nil
}

// Upstream query parameter names.
const (
	ParamCountryFilterType = "cf_type"
	ParamOrigin            = "coo"
	ParamAsylum            = "coa"
	ParamOriginAll         = "coo_all"
	ParamAsylumAll         = "coa_all"
	ParamPopulationType    = "pop_type"
	ParamYear              = "year[]"
)

// DefaultYear is the year requested when a query names none.
const DefaultYear = 2024

// Query is the logical form of a statistics request.
type Query struct {
	// Origin is a comma-separated list of ISO3 country-of-origin codes.
	Origin string

	// Asylum is a comma-separated list of ISO3 country-of-asylum codes.
	Asylum string

	// Years is a single year or a comma-separated list of years.
	Years string

	// OriginBreakdown requests one row per country of origin.
	OriginBreakdown bool

	// AsylumBreakdown requests one row per country of asylum.
	AsylumBreakdown bool

	// PopulationType requests a breakdown by population type.
	// Only the demographics endpoint honours it.
	PopulationType bool
}

// Params is the wire-ready form of a Query. Values are either a string or,
// for multi-year requests, a []string.
type Params map[string]any

// BuildParams maps q onto the upstream query parameters. defaultYear is used
// when q names no year.
func BuildParams(q Query, defaultYear int) Params {
	p := Params{ParamCountryFilterType: "ISO"}

	if q.Origin != "" {
		p[ParamOrigin] = q.Origin
	}
	if q.Asylum != "" {
		p[ParamAsylum] = q.Asylum
	}
	if q.OriginBreakdown {
		p[ParamOriginAll] = "true"
	}
	if q.AsylumBreakdown {
		p[ParamAsylumAll] = "true"
	}
	if q.PopulationType {
		p[ParamPopulationType] = "true"
	}

	p[ParamYear] = yearValue(q.Years, defaultYear)
	return p
}

// yearValue returns a string for a single year and a []string when the input
// lists several. Blank list segments are dropped.
func yearValue(years string, defaultYear int) any {
	years = strings.TrimSpace(years)
	if !strings.Contains(years, ",") {
		if years == "" {
			return strconv.Itoa(defaultYear)
		}
		return years
	}

	var out []string
	for _, y := range strings.Split(years, ",") {
		if y = strings.TrimSpace(y); y != "" {
			out = append(out, y)
		}
	}
	if len(out) == 0 {
		return strconv.Itoa(defaultYear)
	}
	return out
}

// Get returns the value of key as a string. List values are comma-joined.
func (p Params) Get(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	default:
		return ""
	}
}

// Values converts p into url.Values, repeating list parameters once per item.
func (p Params) Values() url.Values {
	vals := make(url.Values, len(p))
	for k, v := range p {
		switch v := v.(type) {
		case string:
			vals.Set(k, v)
		case []string:
			vals[k] = append([]string(nil), v...)
		}
	}
	return vals
}

// Encode returns the URL-encoded query string, sorted by key.
func (p Params) Encode() string {
	return p.Values().Encode()
}

// String renders p for log output, e.g. "cf_type=ISO coo=SYR year[]=[2022 2023]".
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, p[k])
	}
	return b.String()
}
