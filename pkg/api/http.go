// Package api assembles the HTTP surface: versioned chat routes, health,
// metrics and docs.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"teamfeed/pkg/api/handlers"
	"teamfeed/pkg/directory"
	"teamfeed/pkg/feed"
	"teamfeed/pkg/notify"
	"teamfeed/pkg/telemetry"
)

// Deps carries the composed components the handlers close over.
type Deps struct {
	Feed       *feed.Feed
	Dir        *directory.Index
	Dispatcher *notify.Dispatcher
}

// NewRouter builds the full route tree. Middleware (auth gateway, signed
// identity, telemetry) is layered by the caller.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.PathPrefix("/openapi.yaml").Handler(http.FileServer(http.Dir("./docs")))

	v1 := r.PathPrefix("/v1").Subrouter()
	(&handlers.Chat{Feed: d.Feed}).Register(v1)
	(&handlers.Mentions{Dir: d.Dir}).Register(v1)
	(&handlers.Notifications{Dispatcher: d.Dispatcher}).Register(v1)

	return r
}
