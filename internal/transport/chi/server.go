package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
	"github.com/kailas-cloud/bureaucratese/internal/domain/metric"
	logpkg "github.com/kailas-cloud/bureaucratese/internal/logger"
	analyzeuc "github.com/kailas-cloud/bureaucratese/internal/usecase/analyze"
	healthuc "github.com/kailas-cloud/bureaucratese/internal/usecase/health"
	usageuc "github.com/kailas-cloud/bureaucratese/internal/usecase/usage"
)

// Analyzer is the ad-hoc scoring use case.
type Analyzer interface {
	Analyze(ctx context.Context, text string, kind metric.Kind, mode metric.OutputMode) (analyzeuc.Output, error)
	AnalyzeBatch(ctx context.Context, texts []string, kind metric.Kind) ([]analyzeuc.BatchItem, error)
	AnalyzeAll(ctx context.Context, text string) (map[metric.Kind]analysis.Result, error)
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period usageuc.Period) usageuc.Report
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the analysis API.
type Server struct {
	analyzer      Analyzer
	health        HealthReporter
	usage         UsageReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(analyzer Analyzer, health HealthReporter, logger *zap.Logger) *Server {
	s := &Server{
		analyzer: analyzer,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnknownMetric, http.StatusBadRequest, ErrorResponseCodeUnknownMethod),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorResponseCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, ErrorResponseCodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrModelUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeModelUnavailable),
		sentinelHandler(domain.ErrEmbeddingUnavailable,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrTokenizerUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeTokenizerUnavailable),
	}
	return s
}

// WithUsage enables GET /v1/usage.
func (s *Server) WithUsage(u UsageReporter) *Server {
	s.usage = u
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	if s.usage != nil {
		r.Get("/v1/usage", s.GetUsage)
	}
	r.Post("/v1/analyze", s.Analyze)
	r.Post("/v1/analyze/batch", s.AnalyzeBatch)
	r.Post("/v1/analyze/all", s.AnalyzeAll)
}

// Analyze handles POST /v1/analyze?method=&output=.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.bindMethod(w, r)
	if !ok {
		return
	}
	var rawOutput string
	if err := runtime.BindQueryParameter("form", true, false, "output", r.URL.Query(), &rawOutput); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid parameter output: "+err.Error())
		return
	}
	mode, err := metric.ParseOutput(rawOutput)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	text, ok := decodeText(w, r)
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	out, err := s.analyzer.Analyze(ctx, text, kind, mode)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)

	if out.Full != nil {
		writeJSON(w, http.StatusOK, resultToResponse(*out.Full))
		return
	}
	writeJSON(w, http.StatusOK, DensityResponse{Method: string(out.Kind), Density: out.Density})
}

// AnalyzeBatch handles POST /v1/analyze/batch?method=.
func (s *Server) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.bindMethod(w, r)
	if !ok {
		return
	}

	var req AnalyzeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "texts must not be empty")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	items, err := s.analyzer.AnalyzeBatch(ctx, req.Texts, kind)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)

	resp := AnalyzeBatchResponse{Items: make([]BatchResultItem, len(items))}
	for i, item := range items {
		resp.Items[i] = BatchResultItem{Index: i}
		if item.Err != nil {
			resp.Failed++
			resp.Items[i].Error = &ErrorResponse{
				Code:    errorCode(item.Err),
				Message: safeDomainMessage(item.Err),
			}
			continue
		}
		resp.Succeeded++
		res := resultToResponse(item.Result)
		resp.Items[i].Result = &res
	}

	writeJSON(w, http.StatusOK, resp)
}

// AnalyzeAll handles POST /v1/analyze/all.
func (s *Server) AnalyzeAll(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.analyzer.AnalyzeAll(ctx, text)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)

	resp := AnalyzeAllResponse{Results: make(map[string]ResultResponse, len(results))}
	for kind, res := range results {
		resp.Results[string(kind)] = resultToResponse(res)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUsage handles GET /v1/usage?period=.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var raw string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid parameter period: "+err.Error())
		return
	}
	period, err := usageuc.ParsePeriod(raw)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	rep := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, UsageResponse{
		Period:           string(rep.Period),
		Provider:         rep.Provider,
		PeriodStartMs:    rep.Start.UnixMilli(),
		PeriodEndMs:      rep.End.UnixMilli(),
		TokensLimit:      rep.Limit,
		TokensUsed:       rep.Used,
		TokensRemaining:  rep.Remaining,
		IsExhausted:      rep.Exhausted,
		EstimatedCostUSD: rep.EstimatedCostUSD,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// bindMethod reads the optional method query parameter.
func (s *Server) bindMethod(w http.ResponseWriter, r *http.Request) (metric.Kind, bool) {
	var raw string
	if err := runtime.BindQueryParameter("form", true, false, "method", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid parameter method: "+err.Error())
		return "", false
	}
	kind, err := metric.Parse(raw)
	if err != nil {
		s.handleDomainError(w, r, err)
		return "", false
	}
	return kind, true
}

func decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return "", false
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "text is required")
		return "", false
	}
	return *req.Text, true
}

func resultToResponse(res analysis.Result) ResultResponse {
	out := ResultResponse{
		Method:            string(res.Kind),
		Density:           res.Density,
		OfficialWords:     res.MatchedWords,
		TotalWords:        res.TotalTokens,
		OfficialWordCount: res.MatchedCount,
	}
	if out.OfficialWords == nil {
		out.OfficialWords = []string{}
	}
	if res.Kind == metric.Semantic {
		sim := res.WeightedSimilarity
		out.WeightedSimilarity = &sim
	}
	return out
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// clientSentinels are the errors whose messages are safe to return verbatim.
var clientSentinels = []error{
	domain.ErrUnknownMetric,
	domain.ErrInvalidInput,
	domain.ErrRateLimited,
	domain.ErrEmbeddingQuotaExceeded,
	domain.ErrModelUnavailable,
	domain.ErrEmbeddingUnavailable,
	domain.ErrTokenizerUnavailable,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range clientSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// errorCode maps a per-item error to its code.
func errorCode(err error) ErrorResponseCode {
	switch {
	case errors.Is(err, domain.ErrUnknownMetric):
		return ErrorResponseCodeUnknownMethod
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrorResponseCodeValidationFailed
	case errors.Is(err, domain.ErrRateLimited):
		return ErrorResponseCodeRateLimited
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return ErrorResponseCodeEmbeddingQuotaExceeded
	case errors.Is(err, domain.ErrModelUnavailable):
		return ErrorResponseCodeModelUnavailable
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return ErrorResponseCodeEmbeddingProviderError
	case errors.Is(err, domain.ErrTokenizerUnavailable):
		return ErrorResponseCodeTokenizerUnavailable
	default:
		return ErrorResponseCodeInternalError
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
