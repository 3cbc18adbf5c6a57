package domain

// RouteService identifies the answering path a query is dispatched to
type RouteService string

const (
	// RouteQuestions answers from a stored question that matched the query
	RouteQuestions RouteService = "questions"
	// RouteRetrieval answers through vector retrieval over document chunks
	RouteRetrieval RouteService = "retrieval"
	// RouteTable answers through the table query engine
	RouteTable RouteService = "table"
)

// RoutingDecision records how a query was routed. It is derived per query
// and attached to the resulting answer for auditability; it is never
// authoritative state.
type RoutingDecision struct {
	Query      string       `json:"query"`
	Service    RouteService `json:"service"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
	Fallback   bool         `json:"fallback"`
}

// isValidRouteService checks if a RouteService is valid
func isValidRouteService(s RouteService) bool {
	switch s {
	case RouteQuestions, RouteRetrieval, RouteTable:
		return true
	}
	return false
}

// NormalizeRouteService maps arbitrary input to a valid RouteService,
// defaulting to retrieval. The second return reports whether the input
// was already valid.
func NormalizeRouteService(s RouteService) (RouteService, bool) {
	if isValidRouteService(s) {
		return s, true
	}
	return RouteRetrieval, false
}
