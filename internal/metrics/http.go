// ABOUTME: HTTP instrumentation middleware for the operator API
// ABOUTME: Records request counts, durations and in-flight requests per normalized path

package metrics

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
)

// Instrument wraps next with request counters and a latency histogram.
// On a nil *Metrics it returns next unchanged.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		labels := []string{r.Method, normalizePath(r.URL.Path), strconv.Itoa(rec.status)}
		m.requests.WithLabelValues(labels...).Inc()
		m.duration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded: dialog ids collapse to
// {id} and anything deeper than three segments is truncated.
func normalizePath(p string) string {
	clean := path.Clean("/" + p)
	segments := strings.Split(strings.TrimPrefix(clean, "/"), "/")

	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "dialogs" {
		segments[2] = "{id}"
	}
	if len(segments) > 3 {
		segments = append(segments[:3], "...")
	}
	return "/" + strings.Join(segments, "/")
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}
