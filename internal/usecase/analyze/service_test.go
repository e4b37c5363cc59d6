package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
	"github.com/kailas-cloud/bureaucratese/internal/domain/metric"
)

func TestAnalyze_SimpleAndFull(t *testing.T) {
	svc := New(&mockScorer{semantic: true}, zap.NewNop())

	simple, err := svc.Analyze(context.Background(), "坚持 改革", metric.Basic, metric.OutputSimple)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if simple.Density != 0.5 || simple.Full != nil {
		t.Errorf("unexpected simple output: %+v", simple)
	}

	full, err := svc.Analyze(context.Background(), "坚持 改革", metric.Basic, metric.OutputFull)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full.Full == nil || full.Full.TotalTokens != 2 || full.Full.MatchedCount != 1 {
		t.Errorf("unexpected full output: %+v", full.Full)
	}
}

func TestAnalyze_UnknownMetric(t *testing.T) {
	svc := New(&mockScorer{}, zap.NewNop())
	_, err := svc.Analyze(context.Background(), "x", metric.Kind("tfidf"), metric.OutputSimple)
	if !errors.Is(err, domain.ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestAnalyze_Preprocessor(t *testing.T) {
	scorer := &mockScorer{}
	svc := New(scorer, zap.NewNop()).WithPreprocessor(upperPre{})

	if _, err := svc.Analyze(context.Background(), "abc", metric.Basic, metric.OutputSimple); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scorer.lastText != "ABC" {
		t.Errorf("preprocessor not applied: %q", scorer.lastText)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	scorer := &mockScorer{failOn: "bad"}
	svc := New(scorer, zap.NewNop())

	items, err := svc.AnalyzeBatch(context.Background(), []string{"坚持", "bad", "今天"}, metric.Weighted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Err != nil || items[0].Result.Density != 1 {
		t.Errorf("item 0 = %+v", items[0])
	}
	if !errors.Is(items[1].Err, domain.ErrTokenizerUnavailable) {
		t.Errorf("item 1 err = %v", items[1].Err)
	}
	if items[2].Err != nil || items[2].Result.Density != 0 {
		t.Errorf("item 2 = %+v", items[2])
	}
}

func TestAnalyzeBatch_TooLarge(t *testing.T) {
	svc := New(&mockScorer{}, zap.NewNop()).WithMaxBatchSize(2)
	_, err := svc.AnalyzeBatch(context.Background(), []string{"a", "b", "c"}, metric.Basic)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnalyzeBatch_UnknownMetric(t *testing.T) {
	svc := New(&mockScorer{}, zap.NewNop())
	_, err := svc.AnalyzeBatch(context.Background(), []string{"a"}, metric.Kind("x"))
	if !errors.Is(err, domain.ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestAnalyzeAll(t *testing.T) {
	svc := New(&mockScorer{semantic: true}, zap.NewNop())
	all, err := svc.AnalyzeAll(context.Background(), "坚持 改革")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 metrics, got %d", len(all))
	}
	if all[metric.Semantic].Kind != metric.Semantic {
		t.Errorf("unexpected semantic result: %+v", all[metric.Semantic])
	}
}

func TestAnalyzeAll_WithoutSemantic(t *testing.T) {
	svc := New(&mockScorer{}, zap.NewNop())
	all, err := svc.AnalyzeAll(context.Background(), "坚持")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := all[metric.Semantic]; ok || len(all) != 2 {
		t.Errorf("semantic must be omitted: %v", all)
	}
}

func TestAnalyzeAll_Error(t *testing.T) {
	svc := New(&mockScorer{failOn: "bad"}, zap.NewNop())
	if _, err := svc.AnalyzeAll(context.Background(), "bad"); err == nil {
		t.Fatal("expected error")
	}
}

// --- Mocks ---

type mockScorer struct {
	semantic bool
	failOn   string
	lastText string
}

func (m *mockScorer) SemanticEnabled() bool { return m.semantic }

func (m *mockScorer) Score(_ context.Context, kind metric.Kind, text string) (analysis.Result, error) {
	m.lastText = text
	if !kind.IsValid() {
		return analysis.Result{}, domain.ErrUnknownMetric
	}
	if text == m.failOn {
		return analysis.Result{}, domain.ErrTokenizerUnavailable
	}
	if kind == metric.Semantic {
		return analysis.SemanticResult(0), nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return analysis.Zero(kind), nil
	}
	var matched []string
	for _, tok := range tokens {
		if tok == "坚持" {
			matched = append(matched, tok)
		}
	}
	return analysis.Lexical(kind, float64(len(matched))/float64(len(tokens)), matched, len(tokens)), nil
}

type upperPre struct{}

func (upperPre) Apply(text string) string { return strings.ToUpper(text) }
