// Package server exposes the scoring pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/nupi-ai/plugin-spoof-aasist/internal/config"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/metrics"
	"github.com/nupi-ai/plugin-spoof-aasist/internal/pipeline"
)

// multipartMemory is how much of a multipart body gin keeps in memory before
// spilling parts to disk.
const multipartMemory = 8 << 20

// Scorer runs uploads through the model.
type Scorer interface {
	Run(ctx context.Context, u pipeline.Upload) pipeline.Outcome
	RunBatch(ctx context.Context, uploads []pipeline.Upload) []pipeline.Outcome
	EngineName() string
}

// Server is the HTTP front end. Until SetScorer is called every scoring
// request is answered with 503 so the listener can be bound before the model
// is loaded.
type Server struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	scorer  atomic.Pointer[scorerRef]
	router  *gin.Engine
}

type scorerRef struct{ Scorer }

// New builds the router. m may be nil.
func New(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger.With("component", "server"),
		metrics: m,
	}

	r := gin.New()
	r.MaxMultipartMemory = multipartMemory
	r.Use(requestID(), s.accessLog(), s.recovery())

	r.GET("/", s.handleIndex)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.POST("/predict/", s.handlePredict)
	r.POST("/predict/batch/", s.handlePredictBatch)

	s.router = r
	return s
}

// SetScorer activates the scoring endpoints.
func (s *Server) SetScorer(sc Scorer) {
	s.scorer.Store(&scorerRef{sc})
}

// Ready reports whether a scorer has been set.
func (s *Server) Ready() bool { return s.scorer.Load() != nil }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) current() Scorer {
	ref := s.scorer.Load()
	if ref == nil {
		return nil
	}
	return ref.Scorer
}

func (s *Server) handleIndex(c *gin.Context) {
	info, err := os.Stat(s.cfg.IndexPath)
	if err != nil || info.IsDir() {
		c.String(http.StatusNotFound, "index.html not found")
		return
	}
	c.File(s.cfg.IndexPath)
}

func (s *Server) handleHealth(c *gin.Context) {
	sc := s.current()
	if sc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "initializing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engine": sc.EngineName()})
}

// handlePredict scores a single "file" upload. A "files" field, or more than
// one "file" part, switches to batch mode.
func (s *Server) handlePredict(c *gin.Context) {
	sc, form, ok := s.prepare(c)
	if !ok {
		return
	}
	single := form.File["file"]
	if len(form.File["files"]) == 0 && len(single) == 1 {
		s.single(c, sc, single[0])
		return
	}
	s.batch(c, sc, form)
}

func (s *Server) handlePredictBatch(c *gin.Context) {
	sc, form, ok := s.prepare(c)
	if !ok {
		return
	}
	s.batch(c, sc, form)
}

// prepare checks readiness and parses the size-limited multipart body.
func (s *Server) prepare(c *gin.Context) (Scorer, *multipart.Form, bool) {
	sc := s.current()
	if sc == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Detail: "service is initializing, please retry in a moment"})
		return nil, nil, false
	}

	if s.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, errorResponse{Detail: "upload exceeds size limit"})
			return nil, nil, false
		}
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "expected a multipart/form-data upload"})
		return nil, nil, false
	}
	if len(form.File["file"])+len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "no file uploaded"})
		return nil, nil, false
	}
	return sc, form, true
}

func (s *Server) single(c *gin.Context, sc Scorer, fh *multipart.FileHeader) {
	out := sc.Run(c.Request.Context(), uploadFrom(fh))
	if out.Err != nil {
		status := http.StatusInternalServerError
		if pipeline.IsClientError(out.Err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorResponse{Detail: out.Err.Error()})
		return
	}
	c.JSON(http.StatusOK, newSingleResponse(out))
}

func (s *Server) batch(c *gin.Context, sc Scorer, form *multipart.Form) {
	headers := append(append([]*multipart.FileHeader(nil), form.File["file"]...), form.File["files"]...)
	if s.cfg.MaxBatchFiles > 0 && len(headers) > s.cfg.MaxBatchFiles {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "too many files in batch"})
		return
	}

	uploads := make([]pipeline.Upload, len(headers))
	for i, fh := range headers {
		uploads[i] = uploadFrom(fh)
	}
	outcomes := sc.RunBatch(c.Request.Context(), uploads)

	resp := make([]BatchEntry, len(outcomes))
	for i, out := range outcomes {
		resp[i] = NewBatchEntry(out)
	}
	c.JSON(http.StatusOK, resp)
}

func uploadFrom(fh *multipart.FileHeader) pipeline.Upload {
	return pipeline.Upload{
		Filename: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
