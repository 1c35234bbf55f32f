// Package http carries the api.Service over HTTP: a mux router shared
// by server and client, JSON bodies, errors as {"error": ...}.
package http

import (
	"github.com/gorilla/mux"
)

func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name("Run").Methods("POST").Path("/v1/run")
	r.NewRoute().Name("Approve").Methods("POST").Path("/v1/approve").Queries("job", "{job}")
	r.NewRoute().Name("Status").Methods("GET").Path("/v1/status")
	r.NewRoute().Name("History").Methods("GET").Path("/v1/history")
	r.NewRoute().Name("Ping").Methods("HEAD", "GET").Path("/v1/ping")
	return r
}
