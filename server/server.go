// Package server exposes the analyzer as a Connect service speaking CBOR.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/jflow/analysis"
)

var log = commonlog.GetLogger("jflow.server")

// Server hosts the analysis service.
type Server struct {
	reports *ReportStore
	mux     *http.ServeMux
	http    *http.Server

	stopSweeper func()
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	sweepInterval time.Duration
	reportTTL     time.Duration
}

// WithReportTTL sets how long an unread report is kept and how often the
// store is swept.
func WithReportTTL(interval, ttl time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.sweepInterval = interval
		c.reportTTL = ttl
	}
}

// New creates a Server backed by the given analyzer.
func New(analyzer *analysis.Analyzer, opts ...ServerOption) *Server {
	cfg := &serverConfig{
		sweepInterval: 5 * time.Minute,
		reportTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		reports: NewReportStore(),
		mux:     http.NewServeMux(),
	}

	svc := NewAnalysisService(analyzer, s.reports)
	path, handler := NewAnalysisServiceHandler(svc, connect.WithRecover(recoverPanic))
	s.mux.Handle(path, handler)

	s.http = &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	s.stopSweeper = s.reports.StartSweeper(cfg.sweepInterval, cfg.reportTTL)
	return s
}

func recoverPanic(_ context.Context, spec connect.Spec, _ http.Header, r any) error {
	log.Errorf("panic in %s: %v", spec.Procedure, r)
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.mux }

// Reports returns the store of recent reports.
func (s *Server) Reports() *ReportStore { return s.reports }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	log.Infof("jflow analysis server listening on %s", addr)
	log.Infof("  Connect (CBOR): http://%s%s", addr, AnalyzeClassProcedure)
	s.http.Addr = addr
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}
	return s.http.Shutdown(ctx)
}
