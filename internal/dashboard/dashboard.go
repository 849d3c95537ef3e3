// Package dashboard streams a test-engine run's iteration-by-iteration
// progress to any connected browser over server-sent events — the
// multi-client, library-backed descendant of HildaM-scaled-mcp's
// hand-rolled internal/channels.SSEChannel: the broadcast fan-out here is
// delegated to go-sse's Provider instead of one channel per request.
package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tmaxmax/go-sse"

	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

// Dashboard fans iteration reports out to every connected SSE client.
type Dashboard struct {
	sse *sse.Server
}

// New builds a Dashboard with an in-memory, process-local broadcaster.
func New() *Dashboard {
	return &Dashboard{sse: &sse.Server{Provider: &sse.Joe{}}}
}

// iterationView is the wire shape published for each iteration; it never
// leaks runtime/testengine's internal types directly onto the wire.
type iterationView struct {
	Index   int    `json:"index"`
	Outcome string `json:"outcome"`
	Steps   int    `json:"steps"`
	Bug     string `json:"bug,omitempty"`
}

func bugView(b *bugs.Bug) string {
	if b == nil {
		return ""
	}
	return b.Error()
}

// Observer returns a testengine.Engine observer (see Engine.WithObserver)
// that publishes every iteration's outcome as an "iteration" SSE event.
func (d *Dashboard) Observer() func(testengine.IterationReport) {
	return func(rep testengine.IterationReport) {
		payload, err := json.Marshal(iterationView{
			Index:   rep.Index,
			Outcome: rep.Outcome.String(),
			Steps:   rep.Steps,
			Bug:     bugView(rep.Bug),
		})
		if err != nil {
			return
		}
		msg := &sse.Message{Type: sse.Type("iteration")}
		msg.AppendData(string(payload))
		_ = d.sse.Publish(msg)
	}
}

// Router builds the chi router serving the dashboard's SSE stream and a
// health check, CORS-enabled for a browser-hosted frontend served from a
// different origin.
func (d *Dashboard) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/events", d.sse.ServeHTTP)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}
