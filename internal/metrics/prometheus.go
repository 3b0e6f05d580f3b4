package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	eventsMetric = "aero_peer_signaling_events_total"
	peersMetric  = "aero_peer_signaling_peers"
)

var labelEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

// PrometheusHandler exposes Metrics in Prometheus' text exposition format.
//
// All counters are exported as a single metric with an `event` label. When
// livePeers is non-nil its value is exported as a gauge.
func PrometheusHandler(m *Metrics, livePeers func() int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintf(w, "# HELP %s Internal event counters.\n", eventsMetric)
		_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", eventsMetric)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "%s{event=\"%s\"} %d\n", eventsMetric, labelEscaper.Replace(k), snap[k])
		}
		if livePeers != nil {
			_, _ = fmt.Fprintf(w, "# HELP %s Registered signaling sessions.\n", peersMetric)
			_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", peersMetric)
			_, _ = fmt.Fprintf(w, "%s %d\n", peersMetric, livePeers())
		}
	})
}
