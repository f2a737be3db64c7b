// Package server exposes the HTTP handlers on a local gateway.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stackline/src/errs"
	"stackline/src/logger"
	"stackline/src/producer"
	"stackline/src/response"
	"stackline/src/store"
)

const (
	maxBodyBytes    = 256 << 10
	defaultListSize = 20
)

// Server routes gateway requests to the handlers.
type Server struct {
	producer   *producer.Handler
	executions store.Store
	log        logger.Logger
}

// New creates a Server. executions may be nil, which disables the
// execution routes.
func New(p *producer.Handler, executions store.Store, log logger.Logger) *Server {
	return &Server{producer: p, executions: executions, log: log}
}

// Routes returns the gateway router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response.Write(w, response.OK(map[string]string{"status": "ok"}))
	})

	r.Options("/eventbridge-producer", preflight)
	r.Post("/eventbridge-producer", s.produce)

	if s.executions != nil {
		r.Get("/pipelines/{pipeline}/executions", s.listExecutions)
		r.Get("/pipelines/{pipeline}/executions/{id}", s.getExecution)
	}
	return r
}

// ListenAndServe serves the gateway on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func preflight(w http.ResponseWriter, r *http.Request) {
	res := response.OK(nil)
	res.Headers["Access-Control-Allow-Headers"] = "Content-Type"
	res.Body = ""
	response.Write(w, res)
}

func (s *Server) produce(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		response.Write(w, response.Failure(errs.Wrap(errs.KindParse, err, "request body could not be read")))
		return
	}

	req := events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Body:       string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID: middleware.GetReqID(r.Context()),
		},
	}
	res, err := s.producer.Handle(r.Context(), req)
	if err != nil {
		res = response.Failure(err)
	}
	response.Write(w, res)
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.Write(w, response.JSON(http.StatusBadRequest, map[string]string{"message": "limit must be a positive integer"}))
			return
		}
		limit = n
	}

	recs, err := s.executions.ListExecutions(r.Context(), chi.URLParam(r, "pipeline"), limit)
	if err != nil {
		s.log.Error("Failed to list executions", "error", err)
		response.Write(w, response.Failure(err))
		return
	}
	response.Write(w, response.OK(recs))
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	rec, err := s.executions.GetExecution(r.Context(), chi.URLParam(r, "pipeline"), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		response.Write(w, response.JSON(http.StatusNotFound, map[string]string{"message": err.Error()}))
		return
	}
	if err != nil {
		s.log.Error("Failed to get execution", "error", err)
		response.Write(w, response.Failure(err))
		return
	}
	response.Write(w, response.OK(rec))
}
