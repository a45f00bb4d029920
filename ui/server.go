// Package ui serves finished runs over HTTP: JSON listings of run
// manifests and artifacts, plus stored report artifacts rendered as HTML
// pages. The surface is read-only; it never touches the write side of
// the ledger.
package ui

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/sirupsen/logrus"

	"epifit/domain/core"
	"epifit/ports"
)

const defaultRunLimit = 50

// Server is the results server.
type Server struct {
	router *gin.Engine
	reader ports.LedgerReaderPort
	log    *logrus.Logger
}

// NewServer wires the routes against a ledger reader.
func NewServer(reader ports.LedgerReaderPort, log *logrus.Logger) *Server {
	s := &Server{
		router: gin.Default(),
		reader: reader,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/api/runs", s.handleRuns)
	s.router.GET("/api/runs/:id/artifacts", s.handleRunArtifacts)
	s.router.GET("/report/:id", s.handleReport)
}

// Start blocks serving on addr.
func (s *Server) Start(addr string) error {
	s.log.WithFields(logrus.Fields{"addr": addr}).Info("Results server listening")
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRuns(c *gin.Context) {
	limit := defaultRunLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := s.reader.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("Listing runs failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleRunArtifacts(c *gin.Context) {
	runID, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	artifacts, err := s.reader.GetArtifactsByRun(c.Request.Context(), runID)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"run_id": runID}).Error("Artifact lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load artifacts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "artifacts": artifacts, "count": len(artifacts)})
}

func (s *Server) handleReport(c *gin.Context) {
	runID, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	artifacts, err := s.reader.GetArtifactsByRun(c.Request.Context(), runID)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"run_id": runID}).Error("Report lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load report"})
		return
	}

	// The last report artifact wins when a run was re-reported.
	doc := ""
	for _, artifact := range artifacts {
		if artifact.Kind != core.ArtifactReport {
			continue
		}
		if text, ok := artifact.Payload.(string); ok {
			doc = text
		}
	}
	if doc == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report stored for run " + runID.String()})
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", renderPage(doc))
}

// renderPage turns a markdown report into a complete HTML page. Parser
// state is not reusable across documents, so each render builds fresh
// parser and renderer instances.
func renderPage(doc string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{
		Title: "Run report",
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(doc), p, r)
}
