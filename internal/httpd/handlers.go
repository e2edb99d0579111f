package httpd

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/matheus3301/msgvault/internal/bus"
	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/status"
)

// Handlers exposes an Engine over HTTP. Any backend works; scans always
// run server-side so remote clients never pay for a full key download.
type Handlers struct {
	engine  engine.Engine
	account string
	kind    string
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
}

// New creates handlers for the given engine. machine and b may be nil;
// status then reports state UNKNOWN and the event stream is unavailable.
func New(e engine.Engine, account, kind string, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		engine:  e,
		account: account,
		kind:    kind,
		machine: machine,
		bus:     b,
		logger:  logger,
	}
}

// RegisterRoutes registers the store API on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/kv", h.getKV).Methods(http.MethodGet)
	r.HandleFunc("/v1/kv", h.headKV).Methods(http.MethodHead)
	r.HandleFunc("/v1/kv", h.putKV).Methods(http.MethodPut)
	r.HandleFunc("/v1/kv", h.deleteKV).Methods(http.MethodDelete)
	r.HandleFunc("/v1/keys", h.streamKeys).Methods(http.MethodGet)
	r.HandleFunc("/v1/entries", h.streamEntries).Methods(http.MethodGet)
	r.HandleFunc("/v1/scan", h.scan).Methods(http.MethodGet)
	r.HandleFunc("/v1/stat", h.stat).Methods(http.MethodGet)
	r.HandleFunc("/v1/clear", h.clear).Methods(http.MethodPost)
	r.HandleFunc("/v1/status", h.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/events", h.streamEvents).Methods(http.MethodGet)
}

func (h *Handlers) getKV(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key parameter", http.StatusBadRequest)
		return
	}
	value, found, err := h.engine.Get(r.Context(), key)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	if !found {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, value)
}

func (h *Handlers) headKV(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	found, err := h.engine.Has(r.Context(), key)
	if err != nil {
		h.logger.Error("engine operation failed", zap.String("op", "has"), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) putKV(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key parameter", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.engine.Set(r.Context(), key, string(body)); err != nil {
		h.fail(w, "set", err)
		return
	}
	h.publish("store.key_set", map[string]string{"key": key})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteKV(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key parameter", http.StatusBadRequest)
		return
	}
	removed, err := h.engine.Delete(r.Context(), key)
	if err != nil {
		h.fail(w, "delete", err)
		return
	}
	if removed {
		h.publish("store.key_deleted", map[string]string{"key": key})
	}
	h.reply(w, map[string]bool{"removed": removed})
}

func (h *Handlers) scan(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		http.Error(w, "missing pattern parameter", http.StatusBadRequest)
		return
	}
	matched, err := engine.ScanKeys(r.Context(), h.engine, pattern)
	if err != nil {
		h.fail(w, "scan", err)
		return
	}
	if matched == nil {
		matched = []string{}
	}
	h.reply(w, map[string][]string{"keys": matched})
}

func (h *Handlers) stat(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key parameter", http.StatusBadRequest)
		return
	}
	stamper, ok := h.engine.(engine.Stamper)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	at, found, err := stamper.ModTime(r.Context(), key)
	if err != nil {
		h.fail(w, "stat", err)
		return
	}
	if !found {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	h.reply(w, map[string]int64{"mod_time_unix_ns": at.UnixNano()})
}

func (h *Handlers) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Clear(r.Context()); err != nil {
		h.fail(w, "clear", err)
		return
	}
	h.publish("store.cleared", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	state := "UNKNOWN"
	if h.machine != nil {
		state = string(h.machine.Current())
	}
	_, scanner := h.engine.(engine.Scanner)
	_, stamper := h.engine.(engine.Stamper)
	h.reply(w, statusResponse{
		Account: h.account,
		Engine:  h.kind,
		State:   state,
		Scanner: scanner,
		Stamper: stamper,
	})
}

type statusResponse struct {
	Account string `json:"account"`
	Engine  string `json:"engine"`
	State   string `json:"state"`
	Scanner bool   `json:"scanner"`
	Stamper bool   `json:"stamper"`
}

func (h *Handlers) reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("engine operation failed", zap.String("op", op), zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handlers) publish(kind string, payload any) {
	if h.bus != nil {
		h.bus.Publish(bus.NewEvent(kind, payload))
	}
}
