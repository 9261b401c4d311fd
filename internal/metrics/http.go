package metrics

import (
	"strconv"
	"time"
)

// unmatchedRoute labels requests that hit no registered route, so scanners
// cannot grow the route label without bound.
const unmatchedRoute = "unmatched"

// rootPaths are served outside the API for the kubelet, Prometheus and the
// socket upgrade. Sockets are covered by the connection gauges instead.
var rootPaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
	"/ws":      {},
}

// IsRootPath reports whether path is one of the endpoints left out of
// request metrics.
func IsRootPath(path string) bool {
	_, ok := rootPaths[path]
	return ok
}

// BeginRequest counts one request as in flight. The returned func ends it
// and records its route template and status.
func (m *Metrics) BeginRequest(method string) func(route string, status int) {
	if m == nil {
		return func(string, int) {}
	}
	start := time.Now()
	m.safeExecute("BeginRequest", func() {
		m.HTTPRequestsInFlight.Inc()
	})
	return func(route string, status int) {
		m.safeExecute("EndRequest", func() {
			m.HTTPRequestsInFlight.Dec()
			if route == "" {
				route = unmatchedRoute
			}
			m.HTTPRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// statusClass folds a status code into its hundred, e.g. 404 into "4xx".
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
