package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-http-utils/etag"
	"github.com/sirupsen/logrus"

	"github.com/sardine-ai/configconsole/source"
)

// MinRefreshInterval is the lowest refresh interval the server accepts.
const MinRefreshInterval = 5 * time.Second

// RepoStatus is the refresh state of one repository.
type RepoStatus struct {
	Name         string    `json:"name"`
	LastRefresh  time.Time `json:"last_refresh"`
	LastError    string    `json:"last_error,omitempty"`
	RefreshCount int       `json:"refresh_count"`
	IsHealthy    bool      `json:"healthy"`
}

type Server struct {
	Repositories    []source.Repository
	RefreshInterval time.Duration
	AuthKey         string

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	metrics *metrics

	mu     sync.RWMutex
	status map[string]*RepoStatus

	httpMu     sync.Mutex
	httpServer *http.Server
}

// NewServer refreshes every repository once and keeps refreshing them in
// the background until Stop is called.
func NewServer(ctx context.Context, repositories []source.Repository, refreshInterval time.Duration) *Server {
	if refreshInterval < MinRefreshInterval {
		logrus.Warn("refresh interval too low, setting it to 5 seconds")
		refreshInterval = MinRefreshInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	server := &Server{
		Repositories:    repositories,
		RefreshInterval: refreshInterval,
		cancel:          cancel,
		metrics:         newMetrics(),
		status:          make(map[string]*RepoStatus, len(repositories)),
	}
	for _, repo := range server.Repositories {
		server.status[repo.GetName()] = &RepoStatus{Name: repo.GetName()}
		server.refreshOnce(repo)
	}
	for _, repo := range server.Repositories {
		server.wg.Add(1)
		go server.refresh(ctx, repo)
	}
	return server
}

func (s *Server) refresh(ctx context.Context, repository source.Repository) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refreshOnce(repository)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) refreshOnce(repository source.Repository) {
	err := repository.Refresh()
	s.metrics.observeRefresh(repository.GetName(), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status[repository.GetName()]
	status.RefreshCount++
	status.LastRefresh = time.Now()
	if err != nil {
		logrus.WithError(err).WithField("repository", repository.GetName()).Error("error refreshing repository")
		status.LastError = err.Error()
		status.IsHealthy = false
		return
	}
	status.LastError = ""
	status.IsHealthy = true
}

// IsHealthy reports whether the last refresh of every repository succeeded.
func (s *Server) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, status := range s.status {
		if !status.IsHealthy {
			return false
		}
	}
	return true
}

// IsReady reports whether at least one repository can be served.
func (s *Server) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, status := range s.status {
		if status.IsHealthy {
			return true
		}
	}
	return false
}

// GetRepositoryStatus returns a copy of the status of every repository.
func (s *Server) GetRepositoryStatus() map[string]RepoStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]RepoStatus, len(s.status))
	for name, status := range s.status {
		result[name] = *status
	}
	return result
}

// Stop ends the background refreshes and waits for them to return.
func (s *Server) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Start serves the repositories on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	logrus.WithField("addr", addr).Info("Starting server")

	var handler http.Handler = etag.Handler(s.CreateHandlers(), false)
	if s.AuthKey != "" {
		handler = Auth(handler, s.AuthKey)
	}
	handler = RequestLogger(handler)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpMu.Lock()
	s.httpServer = httpServer
	s.httpMu.Unlock()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		logrus.WithError(err).Error("error starting server")
	}
	return err
}

// Shutdown stops accepting requests, waits for running ones and stops the
// background refreshes.
func (s *Server) Shutdown() error {
	defer s.Stop()

	s.httpMu.Lock()
	httpServer := s.httpServer
	s.httpMu.Unlock()
	if httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
