package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sardine-ai/configconsole/model"
	"github.com/sardine-ai/configconsole/source"
)

// CreateHandlers returns the routes of the server: the probes, the metrics
// endpoint, the raw document of every repository and its REST API.
func (s *Server) CreateHandlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	for _, repo := range s.Repositories {
		repo := repo
		prefix := "/" + repo.GetName()
		mux.HandleFunc("GET "+prefix, func(w http.ResponseWriter, r *http.Request) {
			if _, err := w.Write(repo.GetRawData()); err != nil {
				logrus.WithError(err).Error("error writing response")
			}
		})
		mux.HandleFunc("GET "+prefix+"/templates", templatesHandler(repo))
		mux.HandleFunc("GET "+prefix+"/values", valuesHandler(repo))
		mux.HandleFunc("DELETE "+prefix+"/values", deleteValuesHandler(repo))
		mux.HandleFunc("GET "+prefix+"/value", valueHandler(repo))
		mux.HandleFunc("PUT "+prefix+"/value", saveValueHandler(repo))
		mux.HandleFunc("DELETE "+prefix+"/value", deleteValueHandler(repo))
	}
	return s.metrics.instrument(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.IsHealthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Healthy      bool                  `json:"healthy"`
		Ready        bool                  `json:"ready"`
		Repositories map[string]RepoStatus `json:"repositories"`
	}{
		Healthy:      s.IsHealthy(),
		Ready:        s.IsReady(),
		Repositories: s.GetRepositoryStatus(),
	})
}

func templatesHandler(store source.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := store.Templates(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templates)
	}
}

func valuesHandler(store source.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		template := r.URL.Query().Get("template")
		if template == "" {
			http.Error(w, "template is required", http.StatusBadRequest)
			return
		}
		values, err := store.GetValues(r.Context(), template)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, values)
	}
}

// deleteValuesHandler deletes a whole template, or one service of it when
// the service parameter is present, even if empty.
func deleteValuesHandler(store source.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		template := q.Get("template")
		if template == "" {
			http.Error(w, "template is required", http.StatusBadRequest)
			return
		}
		var err error
		if q.Has("service") {
			err = store.DeleteForService(r.Context(), template, q.Get("service"))
		} else {
			err = store.DeleteForTemplate(r.Context(), template)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// valueHandler serves a single value. HEAD requests only check its
// existence.
func valueHandler(store source.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cv, ok := valueFromQuery(w, r)
		if !ok {
			return
		}
		values, err := store.GetValues(r.Context(), cv.Template)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, value := range values {
			if value.ID() == cv.ID() {
				writeJSON(w, http.StatusOK, value)
				return
			}
		}
		writeError(w, source.ErrNotFound)
	}
}

func saveValueHandler(store source.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cv model.ConfigValue
		if err := json.NewDecoder(r.Body).Decode(&cv); err != nil {
			http.Error(w, "invalid config value", http.StatusBadRequest)
			return
		}
		if cv.Template == "" || strings.TrimSpace(cv.Key) == "" {
			http.Error(w, "template and key are required", http.StatusBadRequest)
			return
		}
		if err := store.Save(r.Context(), cv); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteValueHandler(store source.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cv, ok := valueFromQuery(w, r)
		if !ok {
			return
		}
		if err := store.DeleteValue(r.Context(), cv); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func valueFromQuery(w http.ResponseWriter, r *http.Request) (model.ConfigValue, bool) {
	q := r.URL.Query()
	cv := model.ConfigValue{Template: q.Get("template"), Service: q.Get("service"), Key: q.Get("key")}
	if cv.Template == "" || cv.Key == "" {
		http.Error(w, "template and key are required", http.StatusBadRequest)
		return cv, false
	}
	return cv, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, source.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, source.ErrReadOnly):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		logrus.WithError(err).Error("error handling request")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}
