package handler

import (
	"dspgend/config"
	"sort"
	"strings"
)

// Route is a URL path that maps onto a single dspgen flag.
type Route struct {
	Key         string
	Description string
	Numeric     bool
}

// Match is the result of resolving a request path.
type Match struct {
	Route Route
	// Suffix is everything after the route prefix, flag letter included ("f1000").
	Suffix string
	// Value is the part after the flag letter ("1000").
	Value string
}

// Router resolves request paths of the form <prefix><key><value>.
type Router struct {
	prefix string
	routes []Route
}

// NewRouter builds a router from the enabled routes. Longer keys are tried first,
// so "f1" wins over "f" for /dspgen/f1440.
func NewRouter(prefix string, routes map[string]config.RouteConfig) *Router {
	r := &Router{prefix: prefix}
	for key, rc := range routes {
		if rc.Disabled {
			continue
		}
		r.routes = append(r.routes, Route{Key: key, Description: rc.Description, Numeric: rc.Numeric})
	}
	sort.Slice(r.routes, func(i, j int) bool {
		if len(r.routes[i].Key) != len(r.routes[j].Key) {
			return len(r.routes[i].Key) > len(r.routes[j].Key)
		}
		return r.routes[i].Key < r.routes[j].Key
	})
	return r
}

// Routes returns the routes in match order.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Match finds the route for path. The value is returned as-is, without any validation.
func (r *Router) Match(path string) (Match, bool) {
	suffix, ok := strings.CutPrefix(path, r.prefix)
	if !ok {
		return Match{}, false
	}
	for _, route := range r.routes {
		if value, ok := strings.CutPrefix(suffix, route.Key); ok {
			return Match{Route: route, Suffix: suffix, Value: value}, true
		}
	}
	return Match{}, false
}

// Args builds the argument vector for dspgen: "-f1000", or "-f" "1000" when split is set.
func (m Match) Args(split bool) []string {
	if !split || m.Value == "" {
		return []string{"-" + m.Suffix}
	}
	return []string{"-" + m.Route.Key, m.Value}
}
