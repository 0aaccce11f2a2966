package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-ronlp/internal/config"
	"github.com/example/go-ronlp/internal/text"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Restorer adds diacritics to a line of text.
type Restorer interface {
	Restore(ctx context.Context, line string) (string, error)
}

// Scorer rates the semantic similarity of two texts in [0, 5].
type Scorer interface {
	Score(ctx context.Context, a, b string) (float64, error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        2,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed size of each request text.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent pipeline calls. Zero
// disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request pipeline deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	restorer Restorer
	scorer   Scorer
	opts     options
	sem      chan struct{} // semaphore for worker pool
	log      *slog.Logger
}

// NewHandler returns an http.Handler serving /health, POST /v1/diacritics and
// POST /v1/similarity. A nil pipeline answers 503.
func NewHandler(restorer Restorer, scorer Scorer, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	log := opts.logger
	if log == nil {
		log = slog.Default()
	}

	h := &handler{
		restorer: restorer,
		scorer:   scorer,
		opts:     opts,
		log:      log,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/v1/diacritics", h.handleDiacritics)
	mux.HandleFunc("/v1/similarity", h.handleSimilarity)
	return h.recoverPanics(mux)
}

// recoverPanics turns a panic in a pipeline into a logged 500 response.
func (h *handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.ErrorContext(r.Context(), "panic recovered",
					slog.Any("error", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func pipelineState(ready bool) string {
	if ready {
		return "ready"
	}
	return "disabled"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"version":    buildVersion(),
		"diacritics": pipelineState(h.restorer != nil),
		"similarity": pipelineState(h.scorer != nil),
	})
}

type diacriticsRequest struct {
	Text string `json:"text"`
}

type diacriticsResponse struct {
	Text string `json:"text"`
}

func (h *handler) handleDiacritics(w http.ResponseWriter, r *http.Request) {
	if !h.checkRequest(w, r, h.restorer != nil, "diacritics") {
		return
	}

	var req diacriticsRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	in, err := text.Normalize(req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "text field is required")
		return
	}

	if !h.checkSize(w, in) {
		return
	}

	var out string
	ok := h.run(w, r, "diacritics", len(in), func(ctx context.Context) error {
		var err error
		out, err = h.restorer.Restore(ctx, in)
		return err
	})
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, diacriticsResponse{Text: out})
}

type similarityRequest struct {
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`
}

type similarityResponse struct {
	Score float64 `json:"score"`
}

func (h *handler) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	if !h.checkRequest(w, r, h.scorer != nil, "similarity") {
		return
	}

	var req similarityRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	a, errA := text.Normalize(req.TextA)
	b, errB := text.Normalize(req.TextB)
	if errA != nil || errB != nil {
		writeError(w, http.StatusBadRequest, "text_a and text_b fields are required")
		return
	}

	if !h.checkSize(w, a) || !h.checkSize(w, b) {
		return
	}

	var score float64
	ok := h.run(w, r, "similarity", len(a)+len(b), func(ctx context.Context) error {
		var err error
		score, err = h.scorer.Score(ctx, a, b)
		return err
	})
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, similarityResponse{Score: score})
}

func (h *handler) checkRequest(w http.ResponseWriter, r *http.Request, ready bool, pipeline string) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}

	if !ready {
		writeError(w, http.StatusServiceUnavailable, pipeline+" pipeline is not configured")
		return false
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}

	return true
}

// maxBodyBytes bounds a request body holding up to two texts of
// maxTextBytes each, allowing for \u escapes (6 bytes per 2-byte rune) and
// the JSON envelope. Zero means unbounded.
func (h *handler) maxBodyBytes() int64 {
	if h.opts.maxTextBytes <= 0 {
		return 0
	}

	return 2*3*int64(h.opts.maxTextBytes) + 1024
}

func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	body := r.Body
	if limit := h.maxBodyBytes(); limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}

	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}

	return true
}

func (h *handler) checkSize(w http.ResponseWriter, s string) bool {
	if h.opts.maxTextBytes > 0 && len(s) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return false
	}

	return true
}

// run executes fn inside a worker slot under the request timeout, logging
// the outcome and writing the error response on failure.
func (h *handler) run(w http.ResponseWriter, r *http.Request, pipeline string, textLen int, fn func(context.Context) error) bool {
	// Acquire a worker slot, honouring context cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
			// slot acquired
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return false
		}
		defer func() { <-h.sem }()
	}

	// Apply per-request timeout.
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "pipeline timed out",
				slog.String("pipeline", pipeline),
				slog.Int("text_len", textLen),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, pipeline+" timed out")
			return false
		}
		h.log.ErrorContext(r.Context(), "pipeline failed",
			slog.String("pipeline", pipeline),
			slog.Int("text_len", textLen),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}

	h.log.InfoContext(r.Context(), "pipeline complete",
		slog.String("pipeline", pipeline),
		slog.Int("text_len", textLen),
		slog.Int64("duration_ms", durationMS),
	)

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	restorer        Restorer
	scorer          Scorer
	shutdownTimeout time.Duration
}

// New returns a server for the given pipelines; either may be nil.
func New(cfg config.Config, restorer Restorer, scorer Scorer) *Server {
	shutdown := 30 * time.Second
	if cfg.Server.ShutdownTimeout > 0 {
		shutdown = time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	}

	return &Server{
		cfg:             cfg,
		restorer:        restorer,
		scorer:          scorer,
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if s.restorer == nil && s.scorer == nil {
		return errors.New("no pipeline configured: need a diacritics model or a similarity checkpoint")
	}

	handlerOpts := []Option{
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
	}
	if s.cfg.Server.RequestTimeout > 0 {
		handlerOpts = append(handlerOpts, WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second))
	}

	h := NewHandler(s.restorer, s.scorer, handlerOpts...)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	slog.Info("http server listening",
		"addr", s.cfg.Server.ListenAddr,
		"diacritics", pipelineState(s.restorer != nil),
		"similarity", pipelineState(s.scorer != nil),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
