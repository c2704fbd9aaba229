// Package server exposes the fusion pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz        liveness and build version
//	GET  /v1/policies    registered fusion policies
//	POST /v1/fuse        fuse the graph JSON in the request body
//
// /v1/fuse accepts the query parameters policy, rounds, formats (comma
// separated: dot, svg) and refresh. Errors are returned as
// {"error": {"code", "message"}, "request_id"} with the status derived
// from the error code.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/autofuse/pkg/buildinfo"
	"github.com/matzehuels/autofuse/pkg/config"
	errs "github.com/matzehuels/autofuse/pkg/errors"
	graphio "github.com/matzehuels/autofuse/pkg/io"
	"github.com/matzehuels/autofuse/pkg/observability"
	"github.com/matzehuels/autofuse/pkg/pipeline"
	"github.com/matzehuels/autofuse/pkg/policy"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const codeNotFound errs.Code = "NOT_FOUND"

// Server serves fusion requests with a shared pipeline runner.
type Server struct {
	runner   *pipeline.Runner
	defaults pipeline.Options
	maxBody  int64
	timeout  time.Duration
	logger   *log.Logger
	router   chi.Router
}

// New creates a server. Policy, limits and the cache TTL default to cfg;
// requests may override the policy and round budget.
func New(runner *pipeline.Runner, cfg config.Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		runner: runner,
		defaults: pipeline.Options{
			Policy: cfg.Policy,
			Config: cfg.Fusion,
			TTL:    cfg.Cache.TTL.Duration,
		},
		maxBody: cfg.Server.MaxBodyBytes,
		timeout: cfg.Server.Timeout.Duration,
		logger:  logger,
	}
	if s.maxBody <= 0 {
		s.maxBody = config.Default().Server.MaxBodyBytes
	}
	if s.timeout <= 0 {
		s.timeout = config.Default().Server.Timeout.Duration
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/policies", s.handlePolicies)
		r.Post("/fuse", s.handleFuse)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorStatus(w, r, http.StatusNotFound, errs.New(codeNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

type policyInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases,omitempty"`
	Default     bool     `json:"default,omitempty"`
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	var out []policyInfo
	for _, b := range policy.Backends() {
		out = append(out, policyInfo{
			Name:        b.Name,
			Description: b.Description,
			Aliases:     b.Aliases,
			Default:     b.Name == policy.DefaultName,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// fuseResponse is the body of a successful /v1/fuse call.
type fuseResponse struct {
	RequestID string            `json:"request_id"`
	GraphHash string            `json:"graph_hash"`
	Report    graphio.Report    `json:"report"`
	Graph     json.RawMessage   `json:"graph"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

func (s *Server) handleFuse(w http.ResponseWriter, r *http.Request) {
	opts, err := s.fuseOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	g, err := graphio.ReadJSON(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorStatus(w, r, http.StatusRequestEntityTooLarge,
				errs.Wrap(errs.ErrCodeInvalidInput, err, "request body exceeds %d bytes", s.maxBody))
			return
		}
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.runner.Execute(ctx, g, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := fuseResponse{
		RequestID: requestIDFrom(r.Context()),
		GraphHash: res.GraphHash,
		Report:    res.Report,
		Graph:     res.Artifacts[pipeline.FormatJSON],
	}
	for format, data := range res.Artifacts {
		if format == pipeline.FormatJSON {
			continue
		}
		if resp.Artifacts == nil {
			resp.Artifacts = map[string]string{}
		}
		resp.Artifacts[format] = string(data)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// fuseOptions applies the query parameters to the server defaults.
func (s *Server) fuseOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.defaults
	opts.Logger = s.logger.With("request_id", requestIDFrom(r.Context()))
	opts.Formats = []string{pipeline.FormatJSON}

	q := r.URL.Query()
	if p := strings.TrimSpace(q.Get("policy")); p != "" {
		opts.Policy = strings.ToLower(p)
	}
	if v := q.Get("rounds"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return opts, errs.Wrap(errs.ErrCodeInvalidInput, err, "rounds must be a non-negative integer")
		}
		opts.Config.MaxFuseRounds = uint(n)
	}
	if v := q.Get("formats"); v != "" {
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f == pipeline.FormatJSON {
				continue
			}
			if err := pipeline.ValidateFormat(f); err != nil {
				return opts, errs.Wrap(errs.ErrCodeInvalidInput, err, "formats")
			}
			opts.Formats = append(opts.Formats, f)
		}
	}
	if v := q.Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errs.Wrap(errs.ErrCodeInvalidInput, err, "refresh must be a boolean")
		}
		opts.Refresh = b
	}
	opts.Detailed = q.Get("detailed") == "true"
	return opts, nil
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Error struct {
		Code    errs.Code `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	s.writeErrorStatus(w, r, status, err)
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	var body errorBody
	body.Error.Code = errs.GetCode(err)
	if body.Error.Code == "" {
		body.Error.Code = errs.ErrCodeInternal
	}
	body.Error.Message = errs.UserMessage(err)
	body.RequestID = requestIDFrom(r.Context())

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", body.RequestID, "err", err)
	} else {
		s.logger.Debug("request rejected", "request_id", body.RequestID, "status", status, "err", err)
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigStd.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}

// =============================================================================
// Middleware
// =============================================================================

type ctxKey int

const requestIDKey ctxKey = 0

// requestID propagates the caller's X-Request-ID or assigns a new UUID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// instrument reports requests to the HTTP hooks and logs them.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := requestIDFrom(r.Context())
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path, id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, id, status, time.Since(start))
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", id)
	})
}
