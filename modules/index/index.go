// Package index serves the front page and a small key/value API backed by the
// shared key-value store.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"newsportal/api"
	"newsportal/config"
	"newsportal/kvstore"
	"newsportal/resources"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// ViewsKey counts front page views across all visitors
var ViewsKey = kvstore.Key("index", "views")

const (
	kvNamespace  = "kv"
	maxBodyBytes = 1 << 20
	visitsField  = "visits"

	// MaxTTLSeconds caps a key's lifetime at one year so ttl*time.Second
	// always fits in a time.Duration.
	MaxTTLSeconds = 365 * 24 * 60 * 60
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// putSchema constrains the body of a key write.
var putSchema = mustSchema(fmt.Sprintf(`{
	"type": "object",
	"properties": {
		"value": {"type": "string"},
		"ttl": {"type": "integer", "minimum": 0, "maximum": %d}
	},
	"required": ["value"],
	"additionalProperties": false
}`, MaxTTLSeconds))

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

// Module is the index routing module
type Module struct {
	kv       *kvstore.Store
	sessions sessions.Store
	cfg      *config.Config
	logger   *zap.SugaredLogger
}

// New returns an unregistered index module
func New() *Module {
	return &Module{}
}

func (m *Module) Name() string { return "index" }

// Register captures the store handles once; handlers use the captured values
// for the lifetime of the process.
func (m *Module) Register(r *mux.Router, res resources.Resources) error {
	m.kv = res.KV()
	m.sessions = res.Sessions()
	m.cfg = res.Config()
	m.logger = res.Logger()

	r.HandleFunc("/", m.handleIndex).Methods(http.MethodGet).Name("index")
	r.HandleFunc("/api/kv/{key}", m.handleGet).Methods(http.MethodGet).Name("kv-get")
	r.HandleFunc("/api/kv/{key}", m.handlePut).Methods(http.MethodPost, http.MethodPut).Name("kv-put")
	r.HandleFunc("/api/kv/{key}", m.handleDelete).Methods(http.MethodDelete).Name("kv-delete")
	return nil
}

// Store returns the key-value handle captured at registration
func (m *Module) Store() *kvstore.Store {
	return m.kv
}

type indexResponse struct {
	Views       int64  `json:"views"`
	Visits      int64  `json:"visits"`
	CSRFToken   string `json:"csrf_token,omitempty"`
	Environment string `json:"environment"`
}

func (m *Module) handleIndex(w http.ResponseWriter, r *http.Request) {
	if m.kv == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "Store unavailable", errors.New("index module holds no key-value store"), m.logger)
		return
	}

	views, err := m.kv.Incr(r.Context(), ViewsKey)
	if err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, "Store unavailable", err, m.logger)
		return
	}

	resp := indexResponse{
		Views:     views,
		CSRFToken: api.CSRFToken(r),
	}
	if m.cfg != nil {
		resp.Environment = m.cfg.Name
	}

	if m.sessions != nil && m.cfg != nil {
		sess, err := m.sessions.Get(r, m.cfg.Session.CookieName)
		if err != nil {
			m.logger.Debugw("Discarding unreadable session", "error", err)
		}
		visits, _ := sess.Values[visitsField].(int64)
		visits++
		sess.Values[visitsField] = visits
		if err := sess.Save(r, w); err != nil {
			api.WriteError(w, http.StatusServiceUnavailable, "Session unavailable", err, m.logger)
			return
		}
		resp.Visits = visits
	}

	api.WriteJSON(w, http.StatusOK, resp)
}

type kvEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	// TTL is the remaining lifetime in seconds; 0 means no expiry
	TTL int64 `json:"ttl"`
}

type kvPutRequest struct {
	Value string `json:"value"`
	TTL   int64  `json:"ttl"`
}

func (m *Module) keyFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if m.kv == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "Store unavailable", errors.New("index module holds no key-value store"), m.logger)
		return "", false
	}
	key := mux.Vars(r)["key"]
	if !validKey.MatchString(key) {
		api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid key"})
		return "", false
	}
	return key, true
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := m.keyFromRequest(w, r)
	if !ok {
		return
	}

	storeKey := kvstore.Key(kvNamespace, key)
	value, found, err := m.kv.Get(r.Context(), storeKey)
	if err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, "Store unavailable", err, m.logger)
		return
	}
	if !found {
		api.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Key not found"})
		return
	}

	entry := kvEntry{Key: key, Value: value}
	if ttl, err := m.kv.TTL(r.Context(), storeKey); err == nil && ttl > 0 {
		entry.TTL = int64(ttl / time.Second)
	}
	api.WriteJSON(w, http.StatusOK, entry)
}

func (m *Module) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := m.keyFromRequest(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	result, err := putSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		api.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Invalid request body",
			"details": details,
		})
		return
	}

	var req kvPutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	ttl := time.Duration(req.TTL) * time.Second
	if err := m.kv.Set(r.Context(), kvstore.Key(kvNamespace, key), req.Value, ttl); err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, "Store unavailable", err, m.logger)
		return
	}

	api.WriteJSON(w, http.StatusCreated, kvEntry{Key: key, Value: req.Value, TTL: req.TTL})
}

func (m *Module) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := m.keyFromRequest(w, r)
	if !ok {
		return
	}

	n, err := m.kv.Delete(r.Context(), kvstore.Key(kvNamespace, key))
	if err != nil {
		api.WriteError(w, http.StatusServiceUnavailable, "Store unavailable", err, m.logger)
		return
	}
	if n == 0 {
		api.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Key not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
