// Package enrich fills in company firmographics after entity resolution.
// Stage 1 matches against SEC EDGAR for public companies; stage 2 falls
// back to LLM estimation for private ones.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/entity"
	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/store"
	"github.com/sells-group/disposight/pkg/anthropic"
	"github.com/sells-group/disposight/pkg/edgar"
)

// DefaultBatchSize bounds one enrichment pass.
const DefaultBatchSize = 20

// minMatchLen is the shortest normalized name eligible for containment
// matching; shorter names produce too many false positives.
const minMatchLen = 5

// llmMinConfidence rejects LLM firmographic guesses below this confidence.
const llmMinConfidence = 40

// sicRange maps one SIC code range to an industry and sector, following
// the standard SIC division structure.
type sicRange struct {
	low, high int
	industry  string
	sector    string
}

var sicRanges = []sicRange{
	{100, 999, "Agriculture", "Agriculture, Forestry & Fishing"},
	{1000, 1499, "Mining", "Mining"},
	{1500, 1799, "Construction", "Construction"},
	{2000, 3999, "Manufacturing", "Manufacturing"},
	{4000, 4999, "Transportation & Utilities", "Transportation & Utilities"},
	{5000, 5199, "Wholesale Trade", "Wholesale Trade"},
	{5200, 5999, "Retail Trade", "Retail Trade"},
	{6000, 6799, "Financial Services", "Finance, Insurance & Real Estate"},
	{7000, 8999, "Professional Services", "Services"},
	{9100, 9999, "Public Administration", "Public Administration"},
}

// SICToIndustry maps an SIC code string to (industry, sector). Unknown or
// unparseable codes return empty strings.
func SICToIndustry(sicCode string) (string, string) {
	sic, err := strconv.Atoi(strings.TrimSpace(sicCode))
	if err != nil {
		return "", ""
	}
	for _, r := range sicRanges {
		if sic >= r.low && sic <= r.high {
			return r.industry, r.sector
		}
	}
	return "", ""
}

// CompanyStore is the persistence surface the enricher needs.
type CompanyStore interface {
	ListCompaniesPendingEnrichment(ctx context.Context, limit int) ([]model.Company, error)
	ListCompanySignals(ctx context.Context, companyID uuid.UUID) ([]model.Signal, error)
	UpdateCompanyEnrichment(ctx context.Context, id uuid.UUID, patch store.EnrichmentPatch) error
}

// Stats counts outcomes of one enrichment pass.
type Stats struct {
	Enriched int `json:"enriched"`
	Partial  int `json:"partial"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
	Total    int `json:"total"`
}

func (s Stats) String() string {
	return fmt.Sprintf("enriched=%d partial=%d not_found=%d errors=%d total=%d",
		s.Enriched, s.Partial, s.NotFound, s.Errors, s.Total)
}

// Enricher runs the two-stage firmographic enrichment.
type Enricher struct {
	store CompanyStore
	edgar edgar.Client
	ai    anthropic.Client
	model string
}

// New creates an enricher. The ai client may be nil to disable the LLM
// fallback stage.
func New(st CompanyStore, edgarClient edgar.Client, ai anthropic.Client, llmModel string) *Enricher {
	return &Enricher{store: st, edgar: edgarClient, ai: ai, model: llmModel}
}

// EnrichPending processes one batch of companies awaiting enrichment.
func (e *Enricher) EnrichPending(ctx context.Context, batchSize int) (Stats, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	companies, err := e.store.ListCompaniesPendingEnrichment(ctx, batchSize)
	if err != nil {
		return Stats{}, eris.Wrap(err, "enrich: list pending companies")
	}

	stats := Stats{Total: len(companies)}
	for i := range companies {
		status, err := e.EnrichCompany(ctx, &companies[i])
		if err != nil {
			stats.Errors++
			zap.L().Error("enrich: company failed",
				zap.String("company", companies[i].Name),
				zap.Error(err),
			)
			continue
		}
		switch status {
		case model.EnrichmentEnriched:
			stats.Enriched++
		case model.EnrichmentPartial:
			stats.Partial++
		default:
			stats.NotFound++
		}
	}

	zap.L().Info("enrich: batch complete",
		zap.Int("enriched", stats.Enriched),
		zap.Int("partial", stats.Partial),
		zap.Int("not_found", stats.NotFound),
		zap.Int("errors", stats.Errors),
		zap.Int("total", stats.Total),
	)
	return stats, nil
}

// Backfill loops EnrichPending until no pending companies remain.
func (e *Enricher) Backfill(ctx context.Context, batchSize int) (Stats, error) {
	var totals Stats
	for {
		batch, err := e.EnrichPending(ctx, batchSize)
		if err != nil {
			return totals, err
		}
		if batch.Total == 0 {
			return totals, nil
		}
		totals.Enriched += batch.Enriched
		totals.Partial += batch.Partial
		totals.NotFound += batch.NotFound
		totals.Errors += batch.Errors
		totals.Total += batch.Total
	}
}

// EnrichCompany runs both stages for one company, mutating it in place and
// persisting the result. Returns the final enrichment status.
func (e *Enricher) EnrichCompany(ctx context.Context, company *model.Company) (model.EnrichmentStatus, error) {
	secOK := e.enrichFromSEC(ctx, company)

	var status model.EnrichmentStatus
	switch {
	case secOK && company.Ticker != "" && company.Industry != "":
		status = model.EnrichmentEnriched
	default:
		llmOK := e.enrichFromLLM(ctx, company)
		switch {
		case !secOK && !llmOK:
			status = model.EnrichmentNotFound
		case company.Industry != "" && (company.EmployeeCount != nil || company.Ticker != ""):
			status = model.EnrichmentEnriched
		default:
			status = model.EnrichmentPartial
		}
	}

	company.EnrichmentStatus = status
	patch := store.EnrichmentPatch{Status: status}
	if company.Ticker != "" {
		patch.Ticker = &company.Ticker
	}
	if company.CIK != "" {
		patch.CIK = &company.CIK
	}
	if company.SICCode != "" {
		patch.SICCode = &company.SICCode
	}
	if company.Industry != "" {
		patch.Industry = &company.Industry
	}
	if company.Sector != "" {
		patch.Sector = &company.Sector
	}
	if company.EmployeeCount != nil {
		patch.EmployeeCount = company.EmployeeCount
	}
	if err := e.store.UpdateCompanyEnrichment(ctx, company.ID, patch); err != nil {
		return status, eris.Wrap(err, "enrich: persist")
	}
	return status, nil
}

// enrichFromSEC fills public-company fields from EDGAR. Only missing
// fields are set; collected data is never overwritten.
func (e *Enricher) enrichFromSEC(ctx context.Context, company *model.Company) bool {
	if e.edgar == nil {
		return false
	}
	tickers, err := e.edgar.CompanyTickers(ctx)
	if err != nil {
		zap.L().Warn("enrich: ticker file unavailable", zap.Error(err))
		return false
	}

	match := findSECMatch(company.Name, tickers)
	if match == nil {
		return false
	}

	if company.Ticker == "" {
		company.Ticker = match.Ticker
	}
	if company.CIK == "" {
		company.CIK = strconv.Itoa(match.CIK)
	}

	subs, err := e.edgar.Submissions(ctx, match.CIK)
	if err != nil {
		zap.L().Warn("enrich: submissions unavailable",
			zap.String("company", company.Name),
			zap.Int("cik", match.CIK),
			zap.Error(err),
		)
	} else if subs != nil {
		if subs.SIC != "" && company.SICCode == "" {
			company.SICCode = subs.SIC
			industry, sector := SICToIndustry(subs.SIC)
			if industry != "" && company.Industry == "" {
				company.Industry = industry
			}
			if sector != "" && company.Sector == "" {
				company.Sector = sector
			}
		}
		if state := subs.State(); state != "" && company.HeadquartersState == "" {
			company.HeadquartersState = entity.ValidateStateCode(state)
		}
	}

	zap.L().Info("enrich: sec match",
		zap.String("company", company.Name),
		zap.String("ticker", company.Ticker),
		zap.String("sic", company.SICCode),
		zap.String("industry", company.Industry),
	)
	return true
}

// findSECMatch locates a ticker entry by normalized name: exact match
// first, then the shortest containment match for names of useful length.
func findSECMatch(companyName string, tickers []edgar.TickerEntry) *edgar.TickerEntry {
	target := entity.NormalizeName(companyName)
	if len(target) < 3 {
		return nil
	}

	var best *edgar.TickerEntry
	var bestLen int
	for i := range tickers {
		entry := &tickers[i]
		secNorm := entity.NormalizeName(entry.Title)
		if secNorm == "" {
			continue
		}
		if secNorm == target {
			return entry
		}
		if len(target) >= minMatchLen && (strings.Contains(secNorm, target) || strings.Contains(target, secNorm)) {
			if best == nil || len(secNorm) < bestLen {
				best = entry
				bestLen = len(secNorm)
			}
		}
	}
	return best
}

// llmEstimate is the JSON shape the fallback prompt asks for.
type llmEstimate struct {
	EmployeeCount *int   `json:"employee_count"`
	Industry      string `json:"industry"`
	Confidence    int    `json:"confidence"`
}

// enrichFromLLM estimates employee count and industry for companies EDGAR
// cannot see, grounding the prompt in the company's recent signals.
func (e *Enricher) enrichFromLLM(ctx context.Context, company *model.Company) bool {
	if e.ai == nil {
		return false
	}

	var sb strings.Builder
	sb.WriteString("Estimate firmographic data for this company. Return JSON only.\n\n")
	fmt.Fprintf(&sb, "Company name: %s\n", company.Name)
	if company.HeadquartersCity != "" || company.HeadquartersState != "" {
		parts := []string{}
		if company.HeadquartersCity != "" {
			parts = append(parts, company.HeadquartersCity)
		}
		if company.HeadquartersState != "" {
			parts = append(parts, company.HeadquartersState)
		}
		fmt.Fprintf(&sb, "Location: %s\n", strings.Join(parts, ", "))
	}
	if signals, err := e.store.ListCompanySignals(ctx, company.ID); err == nil && len(signals) > 0 {
		sb.WriteString("Recent signals:\n")
		for i, s := range signals {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&sb, "- %s: %s (%s)\n", s.SignalType, s.Title, s.SourceName)
		}
	}
	sb.WriteString(`
Return ONLY valid JSON with these fields:
- "employee_count": estimated number of employees (integer, or null if unknown)
- "industry": industry category (string, e.g. "Technology", "Manufacturing", "Retail Trade", "Financial Services", "Healthcare")
- "confidence": your confidence in these estimates (integer 0-100)

JSON:`)

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 256,
		Messages: []anthropic.Message{
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		zap.L().Warn("enrich: llm failed", zap.String("company", company.Name), zap.Error(err))
		return false
	}
	resp.Usage.LogCost(e.model, "enrich")

	var est llmEstimate
	raw := anthropic.CleanJSON(anthropic.ExtractText(resp))
	if err := json.Unmarshal([]byte(raw), &est); err != nil {
		zap.L().Warn("enrich: llm parse failed", zap.String("company", company.Name), zap.Error(err))
		return false
	}
	if est.Confidence < llmMinConfidence {
		zap.L().Info("enrich: llm low confidence",
			zap.String("company", company.Name),
			zap.Int("confidence", est.Confidence),
		)
		return false
	}

	if est.EmployeeCount != nil && *est.EmployeeCount > 0 && company.EmployeeCount == nil {
		company.EmployeeCount = est.EmployeeCount
	}
	if est.Industry != "" && company.Industry == "" {
		company.Industry = est.Industry
	}

	zap.L().Info("enrich: llm estimated",
		zap.String("company", company.Name),
		zap.Int("confidence", est.Confidence),
		zap.String("industry", company.Industry),
	)
	return true
}
