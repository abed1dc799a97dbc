package api

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AaronLay10/SentientScenes/internal/tracking"
	"github.com/AaronLay10/SentientScenes/internal/version"
)

// metricsHandler returns Prometheus-compatible metrics in text format.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.started).Seconds()
	status := s.engine.Status()

	running := 0
	for _, op := range status.Operations {
		if op.Running {
			running++
		}
	}
	queued := len(status.Operations) - running

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	labels := fmt.Sprintf(`engine="%s",instance="%s",version="%s"`, s.engineID, hostname, version.Version)

	writeMetric("scened_uptime_seconds", "gauge",
		"Number of seconds since the engine started", uptime, labels)

	writeMetric("scened_busy", "gauge",
		"Whether an operation is queued or running (1) or not (0)", boolGauge(status.Busy), labels)

	writeMetric("scened_operations_queued", "gauge",
		"Number of operations waiting in the queue", queued, labels)

	writeMetric("scened_operations_running", "gauge",
		"Number of operations currently running", running, labels)

	fmt.Fprintf(w, "# HELP scened_scenes_open Number of open scenes per manager\n")
	fmt.Fprintf(w, "# TYPE scened_scenes_open gauge\n")
	for _, kind := range []tracking.Kind{tracking.KindCollection, tracking.KindStandalone} {
		fmt.Fprintf(w, "scened_scenes_open{%s,manager=\"%s\"} %d\n", labels, kind, len(s.engine.OpenScenesOf(kind)))
	}

	preloaded := status.Preloaded != ""
	writeMetric("scened_preload_pending", "gauge",
		"Whether a preloaded scene awaits finish or discard (1) or not (0)", boolGauge(preloaded), labels)

	writeMetric("scened_events_total", "counter",
		"Total number of events emitted since startup", s.journal.TotalCount(), labels)

	writeMetric("scened_ws_clients", "gauge",
		"Number of active event stream subscribers", s.journal.SubscriberCount(), labels)

	for _, name := range s.readiness.Names() {
		metric := "scened_" + strings.ReplaceAll(name, "-", "_") + "_connected"
		writeMetric(metric, "gauge",
			fmt.Sprintf("Whether %s is reachable (1) or not (0)", name), boolGauge(s.readiness.Probe(name)), labels)
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
