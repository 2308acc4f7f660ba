package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func newRouter(svc *fleetService) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/status", statusHandler(svc)).Methods(http.MethodGet)
	r.HandleFunc("/add", addHandler(svc)).Methods(http.MethodGet)
	r.HandleFunc("/remove", removeHandler(svc)).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	return r
}

// newHandler wraps the router with request logging and panic recovery.
func newHandler(svc *fleetService, accessLog io.Writer) http.Handler {
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.LoggingHandler(accessLog, newRouter(svc)),
	)
}

func statusHandler(svc *fleetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.Status(r.Context())
		if err != nil {
			logrus.Errorf("Could not list hosts: %s", err)
			http.Error(w, "could not list hosts", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			logrus.Warnf("Could not write status response: %s", err)
		}
	}
}

func addHandler(svc *fleetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := r.URL.Query().Get("host")

		if err := svc.Add(r.Context(), host); err != nil {
			writeError(w, host, err)

			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func removeHandler(svc *fleetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := r.URL.Query().Get("host")

		if err := svc.Remove(r.Context(), host); err != nil {
			writeError(w, host, err)

			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func writeError(w http.ResponseWriter, host string, err error) {
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrEmptyHost):
		code = http.StatusBadRequest
	case errors.Is(err, ErrDuplicateHost):
		code = http.StatusConflict
	case errors.Is(err, ErrUnknownHost):
		code = http.StatusNotFound
	default:
		logrus.Warnf("Could not process request for %q: %s", host, err)
	}

	http.Error(w, err.Error(), code)
}
