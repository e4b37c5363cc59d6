package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
	"github.com/kailas-cloud/bureaucratese/internal/domain/metric"
	analyzeuc "github.com/kailas-cloud/bureaucratese/internal/usecase/analyze"
	healthuc "github.com/kailas-cloud/bureaucratese/internal/usecase/health"
	usageuc "github.com/kailas-cloud/bureaucratese/internal/usecase/usage"
)

func newTestRouter(a *mockAnalyzer, h *mockHealth) http.Handler {
	r := chi.NewRouter()
	NewServer(a, h, zap.NewNop()).Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, rr.Body.String())
	}
	return v
}

func TestAnalyze_DefaultsToBasicSimple(t *testing.T) {
	a := &mockAnalyzer{}
	rr := do(t, newTestRouter(a, nil), "POST", "/v1/analyze", `{"text":"深入贯彻落实"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if a.lastKind != metric.Basic || a.lastMode != metric.OutputSimple {
		t.Errorf("unexpected selection: kind=%s mode=%s", a.lastKind, a.lastMode)
	}
	if a.lastText != "深入贯彻落实" {
		t.Errorf("text not forwarded: %q", a.lastText)
	}

	resp := decodeBody[DensityResponse](t, rr)
	if resp.Method != "basic" || resp.Density != 0.5 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAnalyze_FullOutput(t *testing.T) {
	a := &mockAnalyzer{}
	rr := do(t, newTestRouter(a, nil), "POST", "/v1/analyze?method=weighted&output=full", `{"text":"x"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[ResultResponse](t, rr)
	if resp.Method != "weighted" {
		t.Errorf("method: got %q", resp.Method)
	}
	if resp.TotalWords != 2 || resp.OfficialWordCount != 1 || len(resp.OfficialWords) != 1 {
		t.Errorf("unexpected counts: %+v", resp)
	}
	if resp.WeightedSimilarity != nil {
		t.Error("weighted_similarity must be omitted for lexical metrics")
	}
}

func TestAnalyze_BertAlias(t *testing.T) {
	a := &mockAnalyzer{}
	rr := do(t, newTestRouter(a, nil), "POST", "/v1/analyze?method=bert", `{"text":"x"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if a.lastKind != metric.Semantic {
		t.Errorf("bert should select semantic, got %s", a.lastKind)
	}
}

func TestAnalyze_EmptyTextAllowed(t *testing.T) {
	a := &mockAnalyzer{}
	rr := do(t, newTestRouter(a, nil), "POST", "/v1/analyze", `{"text":""}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if a.calls != 1 {
		t.Errorf("expected analyzer call, got %d", a.calls)
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		code   ErrorResponseCode
	}{
		{"unknown method", "/v1/analyze?method=tfidf", `{"text":"x"}`, ErrorResponseCodeUnknownMethod},
		{"bad output", "/v1/analyze?output=verbose", `{"text":"x"}`, ErrorResponseCodeValidationFailed},
		{"missing text", "/v1/analyze", `{}`, ErrorResponseCodeValidationFailed},
		{"malformed body", "/v1/analyze", `{"text":`, ErrorResponseCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAnalyzer{}
			rr := do(t, newTestRouter(a, nil), "POST", tt.target, tt.body)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			resp := decodeBody[ErrorResponse](t, rr)
			if resp.Code != tt.code {
				t.Errorf("code: got %s, want %s", resp.Code, tt.code)
			}
			if a.calls != 0 {
				t.Errorf("analyzer must not be called, got %d calls", a.calls)
			}
		})
	}
}

func TestAnalyze_DomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorResponseCode
	}{
		{domain.ErrModelUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeModelUnavailable},
		{domain.ErrTokenizerUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeTokenizerUnavailable},
		{domain.ErrEmbeddingUnavailable, http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError},
		{domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, ErrorResponseCodeEmbeddingQuotaExceeded},
		{
			fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, domain.ErrRateLimited),
			http.StatusTooManyRequests, ErrorResponseCodeRateLimited,
		},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrorResponseCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			a := &mockAnalyzer{err: fmt.Errorf("score semantic: %w", tt.err)}
			rr := do(t, newTestRouter(a, nil), "POST", "/v1/analyze?method=semantic", `{"text":"x"}`)

			if rr.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.status)
			}
			resp := decodeBody[ErrorResponse](t, rr)
			if resp.Code != tt.code {
				t.Errorf("code: got %s, want %s", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "disk") {
				t.Errorf("internal details leaked: %q", resp.Message)
			}
		})
	}
}

func TestAnalyze_EmbeddingTokensHeader(t *testing.T) {
	a := &mockAnalyzer{tokens: 7}
	rr := do(t, newTestRouter(a, nil), "POST", "/v1/analyze?method=semantic", `{"text":"x"}`)

	if got := rr.Header().Get("X-Embedding-Tokens"); got != "7" {
		t.Errorf("X-Embedding-Tokens: got %q, want 7", got)
	}

	rr = do(t, newTestRouter(&mockAnalyzer{}, nil), "POST", "/v1/analyze", `{"text":"x"}`)
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "" {
		t.Errorf("header must be absent for lexical metrics, got %q", got)
	}
}

func TestAnalyzeBatch_PerItemErrors(t *testing.T) {
	a := &mockAnalyzer{failText: "bad"}
	rr := do(t, newTestRouter(a, nil), "POST", "/v1/analyze/batch?method=weighted",
		`{"texts":["a","bad","c"]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[AnalyzeBatchResponse](t, rr)
	if resp.Succeeded != 2 || resp.Failed != 1 {
		t.Errorf("counts: succeeded=%d failed=%d", resp.Succeeded, resp.Failed)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(resp.Items))
	}
	if resp.Items[1].Error == nil || resp.Items[1].Error.Code != ErrorResponseCodeTokenizerUnavailable {
		t.Errorf("item 1: unexpected error %+v", resp.Items[1].Error)
	}
	if resp.Items[2].Index != 2 || resp.Items[2].Result == nil || resp.Items[2].Result.Method != "weighted" {
		t.Errorf("item 2: unexpected %+v", resp.Items[2])
	}
}

func TestAnalyzeBatch_Validation(t *testing.T) {
	rr := do(t, newTestRouter(&mockAnalyzer{}, nil), "POST", "/v1/analyze/batch", `{"texts":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty texts: got %d", rr.Code)
	}

	a := &mockAnalyzer{err: fmt.Errorf("%w: batch size 101 exceeds 100", domain.ErrInvalidInput)}
	rr = do(t, newTestRouter(a, nil), "POST", "/v1/analyze/batch", `{"texts":["a"]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("oversized batch: got %d", rr.Code)
	}
}

func TestAnalyzeAll(t *testing.T) {
	a := &mockAnalyzer{}
	rr := do(t, newTestRouter(a, nil), "POST", "/v1/analyze/all", `{"text":"x"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeBody[AnalyzeAllResponse](t, rr)
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	sem, ok := resp.Results["semantic"]
	if !ok || sem.WeightedSimilarity == nil || *sem.WeightedSimilarity != 0.2 {
		t.Errorf("unexpected semantic result: %+v", sem)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := &mockHealth{report: healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
			}}
			rr := do(t, newTestRouter(&mockAnalyzer{}, h), "GET", "/health", "")

			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			resp := decodeBody[HealthResponse](t, rr)
			if resp.Status != string(tt.status) || resp.Checks["database"] != "ok" {
				t.Errorf("unexpected body: %+v", resp)
			}
		})
	}
}

func TestGetUsage(t *testing.T) {
	u := &mockUsage{report: usageuc.Report{
		Period: usageuc.PeriodMonth, Provider: "nebius",
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Limit: 1000, Used: 400, Remaining: 600,
	}}
	r := chi.NewRouter()
	NewServer(&mockAnalyzer{}, nil, zap.NewNop()).WithUsage(u).Register(r)

	rr := do(t, r, "GET", "/v1/usage?period=month", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if u.lastPeriod != usageuc.PeriodMonth {
		t.Errorf("period not forwarded: %q", u.lastPeriod)
	}
	resp := decodeBody[UsageResponse](t, rr)
	if resp.TokensUsed != 400 || resp.TokensRemaining != 600 || resp.Period != "month" {
		t.Errorf("unexpected body: %+v", resp)
	}

	rr = do(t, r, "GET", "/v1/usage?period=year", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid period: got %d", rr.Code)
	}
}

func TestGetUsage_NotMountedWithoutBudget(t *testing.T) {
	rr := do(t, newTestRouter(&mockAnalyzer{}, nil), "GET", "/v1/usage", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

// --- Mocks ---

type mockAnalyzer struct {
	err      error
	failText string
	tokens   int

	calls    int
	lastText string
	lastKind metric.Kind
	lastMode metric.OutputMode
}

func (m *mockAnalyzer) result(kind metric.Kind) analysis.Result {
	if kind == metric.Semantic {
		return analysis.SemanticResult(0.2)
	}
	return analysis.Lexical(kind, 0.5, []string{"贯彻"}, 2)
}

func (m *mockAnalyzer) Analyze(
	ctx context.Context, text string, kind metric.Kind, mode metric.OutputMode,
) (analyzeuc.Output, error) {
	m.calls++
	m.lastText, m.lastKind, m.lastMode = text, kind, mode
	if m.err != nil {
		return analyzeuc.Output{}, m.err
	}
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	res := m.result(kind)
	out := analyzeuc.Output{Kind: kind, Density: res.Density}
	if mode == metric.OutputFull {
		out.Full = &res
	}
	return out, nil
}

func (m *mockAnalyzer) AnalyzeBatch(_ context.Context, texts []string, kind metric.Kind) ([]analyzeuc.BatchItem, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	items := make([]analyzeuc.BatchItem, len(texts))
	for i, text := range texts {
		if text == m.failText {
			items[i] = analyzeuc.BatchItem{Err: fmt.Errorf("segment: %w", domain.ErrTokenizerUnavailable)}
			continue
		}
		items[i] = analyzeuc.BatchItem{Result: m.result(kind)}
	}
	return items, nil
}

func (m *mockAnalyzer) AnalyzeAll(_ context.Context, text string) (map[metric.Kind]analysis.Result, error) {
	m.calls++
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[metric.Kind]analysis.Result)
	for _, k := range metric.All() {
		out[k] = m.result(k)
	}
	return out, nil
}

type mockUsage struct {
	report     usageuc.Report
	lastPeriod usageuc.Period
}

func (m *mockUsage) GetReport(_ context.Context, p usageuc.Period) usageuc.Report {
	m.lastPeriod = p
	return m.report
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report {
	return m.report
}
