// Package metrics exposes the Prometheus registry over HTTP.
package metrics

import (
	"net/http"

	"newsportal/resources"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where the scrape endpoint is mounted
const Path = "/metrics"

// Module serves the default Prometheus gatherer
type Module struct {
	handler http.Handler
}

// New returns the metrics routing module
func New() *Module {
	return &Module{handler: promhttp.Handler()}
}

func (m *Module) Name() string { return "metrics" }

// Register mounts the scrape endpoint; the module needs no shared handles
func (m *Module) Register(r *mux.Router, _ resources.Resources) error {
	r.Handle(Path, m.handler).Methods(http.MethodGet).Name("metrics")
	return nil
}
