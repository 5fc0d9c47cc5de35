package justify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/resilience"
	"github.com/sells-group/disposight/pkg/anthropic"
)

// Cache validity bounds. A cached justification is reused while it is
// younger than cacheTTL and the deal score has not drifted past
// maxScoreDrift since generation.
const (
	cacheTTL      = 24 * time.Hour
	maxScoreDrift = 5
)

const fullPrompt = `You are an intelligence analyst for an IT asset recovery company. Write a deal justification a sales rep can forward to leadership.

Company: %s
Signal types: %s
Sources: %s
Estimated surplus devices: %s
Estimated recovery value: %s
Disposition window: %s
Deal score: %d/100 (%s)
Risk trend: %s
Average severity: %.0f
Average confidence: %.0f
Signal count: %d

Write 4-6 sentences of plain prose covering: what happened to the company, why the evidence is credible, the expected volume and value of recoverable hardware, and when to act. No bullet points, no headers, no hedging filler.`

// CacheStore is the persistence surface for cached justifications.
type CacheStore interface {
	GetJustification(ctx context.Context, companyID uuid.UUID) (*model.Justification, error)
	SetJustification(ctx context.Context, j model.Justification) error
}

// FullInput holds the aggregate facts the full justification prompt consumes.
type FullInput struct {
	CompanyID       uuid.UUID
	CompanyName     string
	SignalTypes     []string
	SourceNames     []string
	TotalDevices    int
	RevenueEstimate float64
	Disposition     string
	DealScore       int
	ScoreBandLabel  string
	RiskTrend       model.RiskTrend
	AvgSeverity     float64
	AvgConfidence   float64
	SignalCount     int
}

// Engine generates full justifications with caching.
type Engine struct {
	store   CacheStore
	ai      anthropic.Client
	model   string
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewEngine creates a justification engine using the given model.
func NewEngine(store CacheStore, ai anthropic.Client, llmModel string) *Engine {
	return &Engine{
		store:   store,
		ai:      ai,
		model:   llmModel,
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "anthropic-justify"}),
	}
}

// Full returns the company's deal justification, generating through the
// model only when no valid cached copy exists. The second return reports
// whether the text was newly generated.
func (e *Engine) Full(ctx context.Context, in FullInput, now time.Time) (string, bool, error) {
	cached, err := e.store.GetJustification(ctx, in.CompanyID)
	if err != nil {
		return "", false, eris.Wrap(err, "justify: load cache")
	}
	if cached != nil && cacheValid(*cached, in.DealScore, now) {
		return cached.Text, false, nil
	}

	text, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, e.retry, func(ctx context.Context) (string, error) {
			return e.complete(ctx, in)
		})
	})
	if err != nil {
		return "", false, eris.Wrap(err, "justify: llm")
	}

	entry := model.Justification{
		CompanyID:         in.CompanyID,
		Text:              text,
		ScoreAtGeneration: in.DealScore,
		GeneratedAt:       now,
	}
	if err := e.store.SetJustification(ctx, entry); err != nil {
		// Losing the cache only costs a regeneration later.
		zap.L().Warn("justify: cache write failed",
			zap.String("company_id", in.CompanyID.String()),
			zap.Error(err),
		)
	}
	return text, true, nil
}

func cacheValid(cached model.Justification, currentScore int, now time.Time) bool {
	if cached.Text == "" {
		return false
	}
	if now.Sub(cached.GeneratedAt) >= cacheTTL {
		return false
	}
	drift := currentScore - cached.ScoreAtGeneration
	if drift < 0 {
		drift = -drift
	}
	return drift <= maxScoreDrift
}

func (e *Engine) complete(ctx context.Context, in FullInput) (string, error) {
	prompt := fmt.Sprintf(fullPrompt,
		in.CompanyName,
		strings.Join(in.SignalTypes, ", "),
		strings.Join(in.SourceNames, ", "),
		englishPrinter.Sprintf("%d", in.TotalDevices),
		englishPrinter.Sprintf("$%.0f", in.RevenueEstimate),
		in.Disposition,
		in.DealScore,
		in.ScoreBandLabel,
		string(in.RiskTrend),
		in.AvgSeverity,
		in.AvgConfidence,
		in.SignalCount,
	)

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 512,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "justify: create message")
	}
	resp.Usage.LogCost(e.model, "justify")

	text := strings.TrimSpace(anthropic.ExtractText(resp))
	if text == "" {
		return "", eris.New("justify: empty response")
	}
	return text, nil
}
