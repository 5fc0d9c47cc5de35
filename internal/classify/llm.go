package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/resilience"
	"github.com/sells-group/disposight/pkg/anthropic"
)

// maxTextChars truncates raw event text sent to the model.
const maxTextChars = 2000

const classifyPrompt = `Classify this corporate distress signal for an asset-recovery company.

Signal: %s
Company: %s
Source: %s

Classify:
1. signal_type: The specific event type (layoff, shutdown, bankruptcy_ch7, bankruptcy_ch11, merger, acquisition, office_closure, plant_closing, relocation, liquidation)
2. signal_category: The broad category (warn, news, filing, bankruptcy)
3. confidence_score: 0-100, how confident are you in the classification?
4. severity_score: 0-100, how likely is this to produce recoverable surplus hardware?

Consider:
- WARN notices with 200+ employees = high severity (70+)
- Bankruptcy Chapter 7 (liquidation) = very high severity (85+)
- Office closures = high severity (65+)
- Mergers = medium severity (40-60), depends on overlap
- Generic news mentions = lower confidence

Return as JSON:
{
  "signal_type": "...",
  "signal_category": "...",
  "confidence_score": number,
  "severity_score": number
}

Return ONLY valid JSON.`

// LLMClassifier classifies through the Anthropic API. Calls are retried
// with backoff and guarded by a circuit breaker so a dead upstream fails
// fast instead of timing out every event in a batch.
type LLMClassifier struct {
	ai      anthropic.Client
	model   string
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewLLMClassifier creates an LLM classifier using the given model.
func NewLLMClassifier(ai anthropic.Client, model string) *LLMClassifier {
	return &LLMClassifier{
		ai:      ai,
		model:   model,
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "anthropic-classify"}),
	}
}

// Classify sends the event text to the model and scales the returned
// confidence by the source reliability weight:
// min(100, llm_confidence * source_weight / 100).
func (c *LLMClassifier) Classify(ctx context.Context, text, companyName, sourceType string) (Result, error) {
	if len(text) > maxTextChars {
		text = text[:maxTextChars]
	}
	prompt := fmt.Sprintf(classifyPrompt, text, companyName, sourceType)

	parsed, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (Result, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (Result, error) {
			return c.complete(ctx, prompt)
		})
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "classify: llm")
	}

	weight := SourceWeight(sourceType)
	weighted := parsed.ConfidenceScore * weight / 100
	if weighted > 100 {
		weighted = 100
	}
	parsed.ConfidenceScore = weighted
	parsed.SignalType = NormalizeType(parsed.SignalType)
	return parsed, nil
}

func (c *LLMClassifier) complete(ctx context.Context, prompt string) (Result, error) {
	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "classify: create message")
	}
	resp.Usage.LogCost(c.model, "classify")

	raw := anthropic.CleanJSON(anthropic.ExtractText(resp))
	var parsed Result
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Result{}, eris.Wrapf(err, "classify: parse response %q", truncate(raw, 200))
	}
	if parsed.SignalType == "" {
		return Result{}, eris.New("classify: response missing signal_type")
	}
	if parsed.ConfidenceScore == 0 {
		parsed.ConfidenceScore = 50
	}
	if parsed.SeverityScore == 0 {
		parsed.SeverityScore = 50
	}
	return parsed, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Fallback chains a primary classifier with a deterministic backup. The
// backup runs on any primary failure so classification never blocks the
// batch on an unavailable external service.
type Fallback struct {
	primary Classifier
	backup  Classifier
}

// NewFallback composes primary and backup classifiers.
func NewFallback(primary, backup Classifier) *Fallback {
	return &Fallback{primary: primary, backup: backup}
}

// Classify tries the primary path, falling back on error.
func (f *Fallback) Classify(ctx context.Context, text, companyName, sourceType string) (Result, error) {
	result, err := f.primary.Classify(ctx, text, companyName, sourceType)
	if err == nil {
		return result, nil
	}

	zap.L().Warn("classify: primary failed, using rule fallback",
		zap.String("source_type", sourceType),
		zap.Error(err),
	)
	return f.backup.Classify(ctx, text, companyName, sourceType)
}
