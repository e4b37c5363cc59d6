package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/lexicon"
)

func testLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Build([]lexicon.Row{
		{Word: "改革开放", TypeOfWord: "官方话语", Frequency: "5"},
		{Word: "改革", TypeOfWord: "官方话语", Frequency: "3"},
		{Word: "天气", TypeOfWord: "日常", Frequency: "2"},
		{Word: "以人民为中心", TypeOfWord: "官方话语", Frequency: "4"},
	})
	if err != nil {
		t.Fatalf("build lexicon: %v", err)
	}
	return lex
}

func TestMaxMatch_LongestWins(t *testing.T) {
	seg, err := NewMaxMatch(testLexicon(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"改革开放 天气 改革开放", "改革开放|天气|改革开放"},
		{"坚持以人民为中心的发展思想", "坚|持|以人民为中心|的|发|展|思|想"},
		{"改革是动力", "改革|是|动|力"},
		{"GDP增长6.5%", "GDP|增|长|6|.|5|%"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := seg.Segment(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != tt.want {
				t.Errorf("Segment(%q) = %q, want %q", tt.in, strings.Join(got, "|"), tt.want)
			}
		})
	}
}

func TestMaxMatch_NoLexicon(t *testing.T) {
	seg, err := NewMaxMatch(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := seg.Segment("改革 abc")
	if strings.Join(got, "|") != "改|革|abc" {
		t.Errorf("Segment = %v", got)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(testLexicon(t), Options{Driver: "jieba"})
	if !errors.Is(err, domain.ErrTokenizerUnavailable) {
		t.Fatalf("expected ErrTokenizerUnavailable, got %v", err)
	}
}

func TestNew_MaxMatch(t *testing.T) {
	tok, err := New(testLexicon(t), Options{Driver: DriverMaxMatch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tok.(*MaxMatch); !ok {
		t.Errorf("expected *MaxMatch, got %T", tok)
	}
}

func TestGSE_KeepsLexiconPhrases(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the embedded dictionary")
	}
	lex, err := lexicon.Build([]lexicon.Row{
		{Word: "稳中求进工作总基调", TypeOfWord: "官方话语", Frequency: "50"},
	})
	if err != nil {
		t.Fatalf("build lexicon: %v", err)
	}
	seg, err := NewGSE(lex, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tokens, err := seg.Segment("坚持稳中求进工作总基调")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, tok := range tokens {
		if tok == "稳中求进工作总基调" {
			found = true
		}
	}
	if !found {
		t.Errorf("registered phrase split: %v", tokens)
	}
}
