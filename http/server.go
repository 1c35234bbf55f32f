package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/api"
)

// NewHandler attaches handlers for every route to the router.
func NewHandler(s api.Service, r *mux.Router, logger log.Logger) http.Handler {
	for name, handlerFunc := range map[string]func(api.Service) http.HandlerFunc{
		"Run":     handleRun,
		"Approve": handleApprove,
		"Status":  handleStatus,
		"History": handleHistory,
		"Ping":    handlePing,
	} {
		handler := handlerFunc(s)
		r.Get(name).Handler(logging(handler, log.With(logger, "method", name)))
	}
	return r
}

func handleRun(s api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var spec api.RunSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		res, err := s.Run(r.Context(), spec)
		if err != nil {
			writeError(w, errorCode(err), err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleApprove(s api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := mux.Vars(r)["job"]
		if err := s.Approve(r.Context(), job); err != nil {
			writeError(w, errorCode(err), err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func handleStatus(s api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.Status(r.Context())
		if err != nil {
			writeError(w, errorCode(err), err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleHistory(s api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := s.History(r.Context())
		if err != nil {
			writeError(w, errorCode(err), err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func handlePing(s api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(r.Context()); err != nil {
			writeError(w, errorCode(err), err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func errorCode(err error) int {
	switch err {
	case api.ErrRunInProgress:
		return http.StatusConflict
	case api.ErrNoActiveRun:
		return http.StatusPreconditionFailed
	}
	switch err.(type) {
	case *convoy.ConfigError, *convoy.UnknownJobError:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func logging(next http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		logger.Log("url", r.URL.String())
	})
}
