// Package usage reports embedding token consumption against the configured budget.
package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
)

// Period is the reporting window.
type Period string

// Reporting periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod converts a raw period name. Empty selects PeriodDay.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth:
		return p, nil
	default:
		return "", fmt.Errorf("%w: period must be day or month, got %q", domain.ErrInvalidInput, raw)
	}
}

// Report is the token usage of one period. Limit 0 means unlimited.
type Report struct {
	Period           Period
	Provider         string
	Start            time.Time
	End              time.Time
	Limit            int64
	Used             int64
	Remaining        int64
	Exhausted        bool
	EstimatedCostUSD float64
}

// Service handles usage reporting.
type Service struct {
	br             BudgetReader
	provider       string
	costPerMillion float64
	now            func() time.Time
}

// New creates a Service. br can be nil (no budget configured).
func New(br BudgetReader, provider string, costPerMillionTokens float64) *Service {
	return &Service{
		br:             br,
		provider:       provider,
		costPerMillion: costPerMillionTokens,
		now:            time.Now,
	}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := s.now().UTC()
	r := Report{Period: period, Provider: s.provider}

	switch period {
	case PeriodMonth:
		r.Start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.End = r.Start.AddDate(0, 1, 0)
		if s.br != nil {
			r.Limit, r.Used, r.Remaining = s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly()
		}
	default:
		r.Period = PeriodDay
		r.Start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.End = r.Start.Add(24 * time.Hour)
		if s.br != nil {
			r.Limit, r.Used, r.Remaining = s.br.DailyLimit(), s.br.DailyUsed(), s.br.RemainingDaily()
		}
	}

	r.Exhausted = r.Limit > 0 && r.Remaining <= 0
	r.EstimatedCostUSD = float64(r.Used) / 1e6 * s.costPerMillion
	return r
}
