// Package health reports whether the database and key-value store are reachable.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"newsportal/api"
	"newsportal/kvstore"
	"newsportal/resources"
	"newsportal/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CheckTimeout bounds each dependency probe
const CheckTimeout = 2 * time.Second

var errNotBound = errors.New("handle not bound")

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

// Module is the health routing module
type Module struct {
	db     *storage.SQLite
	kv     *kvstore.Store
	logger *zap.SugaredLogger
}

// New returns an unregistered health module
func New() *Module {
	return &Module{}
}

func (m *Module) Name() string { return "health" }

// Register captures the database and key-value handles
func (m *Module) Register(r *mux.Router, res resources.Resources) error {
	m.db = res.Database()
	m.kv = res.KV()
	m.logger = res.Logger()

	r.HandleFunc("/health", m.handleHealth).Methods(http.MethodGet, http.MethodHead).Name("health")
	return nil
}

// Response is the body of GET /health
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (m *Module) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := Response{Status: statusOK, Checks: make(map[string]string, 2)}

	resp.Checks["database"] = m.probe(r.Context(), "database", func(ctx context.Context) error {
		return m.db.Ping(ctx)
	})
	resp.Checks["kv"] = m.probe(r.Context(), "kv", func(ctx context.Context) error {
		if m.kv == nil {
			return errNotBound
		}
		return m.kv.Ping(ctx)
	})

	code := http.StatusOK
	for _, status := range resp.Checks {
		if status != statusOK {
			resp.Status = statusDegraded
			code = http.StatusServiceUnavailable
		}
	}
	api.WriteJSON(w, code, resp)
}

func (m *Module) probe(ctx context.Context, name string, check func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	if err := check(ctx); err != nil {
		if m.logger != nil {
			m.logger.Warnw("Health check failed", "dependency", name, "error", err)
		}
		return "unavailable"
	}
	return statusOK
}
