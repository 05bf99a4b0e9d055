// Package api serves override curation and verdict lookups over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/metrics"
	"github.com/genomic-case-qc/internal/middleware"
	"github.com/genomic-case-qc/internal/overrides"
	"github.com/genomic-case-qc/internal/repository"
	"github.com/genomic-case-qc/pkg/hgvs"
)

// OverrideStore is what the curation routes need. *overrides.Writer
// implements it.
type OverrideStore interface {
	Keys() []string
	GetEntry(key string) (*overrides.Entry, bool)
	SetCleaned(ctx context.Context, key string, cleaned []string) error
	SetCorrectGene(ctx context.Context, key string, gene domain.Gene) error
	BumpVersion(ctx context.Context) (int, error)
	Version() int
}

// VerdictReader looks up stored verdicts.
type VerdictReader interface {
	GetVerdicts(ctx context.Context, caseID string, limit int) ([]repository.StoredVerdict, error)
}

// Version is reported by the health endpoint.
var Version = "dev"

// Server represents the HTTP server
type Server struct {
	config   domain.ServerConfig
	router   *gin.Engine
	server   *http.Server
	store    OverrideStore
	verdicts VerdictReader
	metrics  *metrics.Metrics
	parser   *hgvs.Parser
	log      *logrus.Logger
}

// NewServer creates the server. verdicts and m may be nil; the matching
// routes are then not registered.
func NewServer(config domain.ServerConfig, store OverrideStore, verdicts VerdictReader, m *metrics.Metrics, logger *logrus.Logger) *Server {
	if logger.GetLevel() >= logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))

	s := &Server{
		config:   config,
		router:   router,
		store:    store,
		verdicts: verdicts,
		metrics:  m,
		parser:   hgvs.NewParser(),
		log:      logger,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	o := s.router.Group("/overrides")
	{
		o.GET("", s.handleListOverrides)
		o.GET("/:id", s.handleGetOverride)
		o.PUT("/:id/cleaned", s.handleSetCleaned)
		o.PUT("/:id/gene", s.handleSetGene)
	}

	if s.verdicts != nil {
		s.router.GET("/verdicts/:case_id", s.handleGetVerdicts)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        time.Now().UTC(),
		"version":          Version,
		"override_version": s.store.Version(),
	})
}

type overrideSummary struct {
	ID         string `json:"id"`
	Failed     int    `json:"failed"`
	Cleaned    bool   `json:"cleaned"`
	HasGene    bool   `json:"correct_gene"`
	Succeeded  int    `json:"succeeded"`
	Unresolved bool   `json:"unresolved"`
}

// handleListOverrides lists every entry; ?pending=true keeps only those
// still waiting for curation.
func (s *Server) handleListOverrides(c *gin.Context) {
	pending := c.Query("pending") == "true"
	keys := s.store.Keys()
	sort.Strings(keys)

	out := make([]overrideSummary, 0, len(keys))
	for _, k := range keys {
		e, ok := s.store.GetEntry(k)
		if !ok {
			continue
		}
		sum := overrideSummary{
			ID:         k,
			Failed:     len(e.Wrong),
			Succeeded:  len(e.Correct),
			Cleaned:    e.HasCleaned(),
			HasGene:    e.CorrectGene != nil,
			Unresolved: len(e.Wrong) > 0 && !e.HasCleaned(),
		}
		if pending && !sum.Unresolved {
			continue
		}
		out = append(out, sum)
	}
	c.JSON(http.StatusOK, gin.H{
		"version": s.store.Version(),
		"count":   len(out),
		"entries": out,
	})
}

func (s *Server) handleGetOverride(c *gin.Context) {
	id := c.Param("id")
	e, ok := s.store.GetEntry(id)
	if !ok {
		s.abort(c, http.StatusNotFound, domain.NewAPIError("NOT_FOUND", "override entry not found", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "entry": e})
}

type cleanedRequest struct {
	Cleaned []string `json:"cleaned" binding:"required"`
}

// handleSetCleaned stores curated descriptions after checking every one of
// them against the grammar.
func (s *Server) handleSetCleaned(c *gin.Context) {
	id := c.Param("id")
	var req cleanedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, domain.NewAPIError(domain.ErrCodeValidation, "invalid request body", err.Error()))
		return
	}

	var failures []*hgvs.Failure
	for _, candidate := range req.Cleaned {
		if res := s.parser.Parse(candidate); !res.OK() {
			failures = append(failures, res.Failure)
		}
	}
	if len(failures) > 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"code":     domain.ErrCodeValidation,
			"message":  "cleaned descriptions do not parse",
			"failures": failures,
		})
		return
	}

	if err := s.store.SetCleaned(c.Request.Context(), id, req.Cleaned); err != nil {
		s.abort(c, http.StatusInternalServerError, domain.NewAPIError(domain.ErrCodeInternal, "saving cleaned descriptions failed", err.Error()))
		return
	}
	s.respondEdited(c, id)
}

type geneRequest struct {
	GeneID     string `json:"gene_id"`
	GeneSymbol string `json:"gene_symbol"`
	GeneOMIMID string `json:"gene_omim_id"`
}

func (s *Server) handleSetGene(c *gin.Context) {
	id := c.Param("id")
	var req geneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, domain.NewAPIError(domain.ErrCodeValidation, "invalid request body", err.Error()))
		return
	}
	gene := domain.Gene{GeneID: req.GeneID, GeneSymbol: req.GeneSymbol, GeneOMIMID: req.GeneOMIMID}
	if gene.Empty() {
		s.abort(c, http.StatusBadRequest, domain.NewAPIError(domain.ErrCodeValidation, "gene has no identifying field", ""))
		return
	}
	if err := hgvs.NewValidator().ValidateGeneSymbol(gene.GeneSymbol); err != nil {
		s.abort(c, http.StatusBadRequest, domain.NewAPIError(domain.ErrCodeValidation, "invalid gene symbol", err.Error()))
		return
	}

	if err := s.store.SetCorrectGene(c.Request.Context(), id, gene); err != nil {
		s.abort(c, http.StatusInternalServerError, domain.NewAPIError(domain.ErrCodeInternal, "saving gene failed", err.Error()))
		return
	}
	s.respondEdited(c, id)
}

// respondEdited bumps the store version after a manual edit and returns the
// updated entry.
func (s *Server) respondEdited(c *gin.Context, id string) {
	version, err := s.store.BumpVersion(c.Request.Context())
	if err != nil {
		s.abort(c, http.StatusInternalServerError, domain.NewAPIError(domain.ErrCodeInternal, "bumping store version failed", err.Error()))
		return
	}
	e, _ := s.store.GetEntry(id)
	s.log.WithFields(logrus.Fields{
		"entry_id": id,
		"version":  version,
	}).Info("Override entry curated")
	c.JSON(http.StatusOK, gin.H{"id": id, "version": version, "entry": e})
}

func (s *Server) handleGetVerdicts(c *gin.Context) {
	caseID := c.Param("case_id")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		s.abort(c, http.StatusBadRequest, domain.NewAPIError(domain.ErrCodeValidation, "limit must be a positive integer", c.Query("limit")))
		return
	}

	verdicts, err := s.verdicts.GetVerdicts(c.Request.Context(), caseID, limit)
	if errors.Is(err, domain.ErrNotFound) {
		s.abort(c, http.StatusNotFound, domain.NewAPIError("NOT_FOUND", "no verdicts for case", caseID))
		return
	}
	if err != nil {
		s.abort(c, http.StatusInternalServerError, domain.NewAPIError(domain.ErrCodeInternal, "loading verdicts failed", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"case_id": caseID, "verdicts": verdicts})
}

func (s *Server) abort(c *gin.Context, status int, apiErr *domain.APIError) {
	if status >= 500 {
		s.log.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": apiErr.Details,
		}).Error(apiErr.Message)
	}
	c.AbortWithStatusJSON(status, apiErr)
}
