// Package server exposes graph builds over HTTP: POST /process clones a
// repository, builds its graph and reports the totals.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imyousuf/codegraph/internal/gitutil"
	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/graph/embedded"
	"github.com/imyousuf/codegraph/internal/indexer"
)

// ProcessBody is the request of POST /process.
type ProcessBody struct {
	RepoURL  string `json:"repo_url"`
	Username string `json:"username,omitempty"`
	PAT      string `json:"pat,omitempty"`
	// Revs optionally lists revisions to build and merge.
	Revs []string `json:"revs,omitempty"`
}

// ProcessResponse is the reply of POST /process. Failures carry only
// Status and Message.
type ProcessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
}

// Options configures a Server.
type Options struct {
	Indexer *indexer.Indexer
	// Store, when set, receives a snapshot of every successful build named
	// after the repository.
	Store *embedded.Store
	// WorkDir holds temporary clones; empty means the OS temp dir.
	WorkDir string
	Logger  *slog.Logger
	// Registerer receives the service metrics; nil means a private registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Server is the HTTP service.
type Server struct {
	opts    Options
	log     *slog.Logger
	engine  *gin.Engine
	metrics *metrics
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	if opts.Indexer == nil {
		opts.Indexer = indexer.New(nil, indexer.Options{Logger: opts.Logger})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registerer == nil {
		reg := prometheus.NewRegistry()
		opts.Registerer, opts.Gatherer = reg, reg
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		metrics: newMetrics(opts.Registerer),
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.logRequests())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.POST("/process", s.handleProcess)
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
}

// Handler returns the HTTP handler of the service.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleProcess(c *gin.Context) {
	var body ProcessBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	body.RepoURL = strings.TrimSpace(body.RepoURL)
	if body.RepoURL == "" {
		s.fail(c, errors.New("repo_url is required"))
		return
	}

	start := time.Now()
	g, err := s.process(c.Request.Context(), body)
	s.metrics.observe(err, time.Since(start))
	if err != nil {
		s.fail(c, err)
		return
	}

	nodes, edges := g.Size()
	s.metrics.nodes.Set(float64(nodes))
	c.JSON(http.StatusOK, ProcessResponse{
		Status:  "success",
		Message: fmt.Sprintf("built %s", body.RepoURL),
		Nodes:   nodes,
		Edges:   edges,
	})
}

// process clones, builds and optionally snapshots one request.
func (s *Server) process(ctx context.Context, body ProcessBody) (graph.Graph, error) {
	work, err := os.MkdirTemp(s.opts.WorkDir, "codegraph-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	auth := gitutil.Auth{Username: body.Username, Token: body.PAT}
	checkouts, err := gitutil.Acquire(ctx, body.RepoURL, body.Revs, auth, work)
	if err != nil {
		return nil, err
	}

	revs := make([]indexer.Revision, 0, len(checkouts))
	for _, co := range checkouts {
		revs = append(revs, indexer.Revision{Name: co.Rev, Dir: co.Dir})
	}
	g, err := s.opts.Indexer.BuildRevisions(ctx, revs)
	if err != nil {
		return nil, err
	}

	if s.opts.Store != nil {
		name := gitutil.RepoName(body.RepoURL)
		if _, err := s.opts.Store.SaveGraph(ctx, name, g); err != nil {
			return nil, fmt.Errorf("save snapshot %s: %w", name, err)
		}
	}
	return g, nil
}

func (s *Server) fail(c *gin.Context, err error) {
	s.log.Warn("process failed", "error", err)
	c.JSON(http.StatusBadRequest, ProcessResponse{Status: "error", Message: err.Error()})
}
