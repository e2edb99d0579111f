package httpd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type keyLine struct {
	Key string `json:"key"`
}

type entryLine struct {
	Key      string `json:"key"`
	ValueB64 string `json:"value_b64"`
}

// streamKeys writes one JSON object per key. A mid-stream engine failure
// aborts the connection so clients see a truncated stream, not a clean end.
func (h *Handlers) streamKeys(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	var encErr error
	err := h.engine.Keys(r.Context(), func(key string) bool {
		if encErr = enc.Encode(keyLine{Key: key}); encErr != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	})
	if err != nil || encErr != nil {
		h.abortStream("keys", err, encErr)
	}
}

// streamEntries writes one JSON object per entry, value base64-encoded so
// binary-bearing values survive the trip.
func (h *Handlers) streamEntries(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	var encErr error
	err := h.engine.Entries(r.Context(), func(key, value string) bool {
		line := entryLine{
			Key:      key,
			ValueB64: base64.StdEncoding.EncodeToString([]byte(value)),
		}
		if encErr = enc.Encode(line); encErr != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	})
	if err != nil || encErr != nil {
		h.abortStream("entries", err, encErr)
	}
}

func (h *Handlers) abortStream(op string, engineErr, writeErr error) {
	if engineErr != nil {
		h.logger.Error("stream aborted", zap.String("op", op), zap.Error(engineErr))
		panic(http.ErrAbortHandler)
	}
	// The client went away; nothing to serve anymore.
	h.logger.Debug("stream client gone", zap.String("op", op), zap.Error(writeErr))
}

type eventEnvelope struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	OccurredAtUnixMs int64  `json:"occurred_at_unix_ms"`
	Payload          any    `json:"payload,omitempty"`
}

// streamEvents serves bus events as server-sent events until the client
// disconnects. The namespace query parameter narrows the subscription;
// it defaults to "store.".
func (h *Handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = "store."
	}

	ch, unsub := h.bus.Subscribe(namespace, 256)
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case evt := <-ch:
			data, err := json.Marshal(eventEnvelope{
				ID:               evt.ID,
				Kind:             evt.Kind,
				OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
				Payload:          evt.Payload,
			})
			if err != nil {
				h.logger.Error("encode event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
