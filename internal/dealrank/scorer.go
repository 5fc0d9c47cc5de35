// Package dealrank computes the 0-100 revenue-prioritization score for an
// opportunity. It answers "who should I call next?" by weighting eight
// factors tuned to the four source pipelines and the 100+ device gate.
//
// Weight budget (sums to ~100):
//
//	Device volume         ~24 pts  (log scale)
//	Urgency               ~18 pts  (event-type tier)
//	Recency               ~14 pts  (exponential decay)
//	Source corroboration  ~12 pts  (multi-source confirmation)
//	Source trust          ~10 pts  (gov/court > news)
//	Extraction confidence ~10 pts
//	Composite risk         ~7 pts
//	Risk trend             ~5 pts  (rising > stable > declining)
//	+ guardrails / boosts  ±3-15
package dealrank

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/disposight/internal/model"
)

// Input holds the aggregate signal statistics for one opportunity. All
// fields describe already-persisted state; scoring is pure and deterministic.
type Input struct {
	AvgSeverity        float64
	AvgConfidence      float64
	CompositeRiskScore int
	TotalDevices       int
	SourceDiversity    int
	SignalTypes        []string
	DaysSinceLatest    int
	SourceNames        []string
	RiskTrend          model.RiskTrend
	SignalCount        int
}

// Factor is one scored dimension with a human-readable summary.
type Factor struct {
	Name      string  `json:"name"`
	Points    float64 `json:"points"`
	MaxPoints float64 `json:"max_points"`
	Summary   string  `json:"summary"`
}

// Result is the full scoring output: score, band, factor breakdown, and the
// top factor summaries so reps understand why a deal is ranked.
type Result struct {
	Score          int      `json:"score"`
	Band           string   `json:"band"`
	BandLabel      string   `json:"band_label"`
	Factors        []Factor `json:"factors"`
	TopFactors     []string `json:"top_factors"`
	PenaltyApplied bool     `json:"penalty_applied"`
	BoostApplied   bool     `json:"boost_applied"`
}

// urgencyMap ranks how fast assets hit the secondary market (higher = more urgent).
var urgencyMap = map[string]float64{
	model.TypeBankruptcyCh7:     18.0,
	model.TypeLiquidation:       18.0,
	model.TypeCeasingOperations: 18.0,
	model.TypeOfficeClosure:     14.0,
	model.TypeFacilityShutdown:  14.0,
	"shutdown":                  14.0,
	model.TypePlantClosing:      9.0,
	model.TypeLayoff:            9.0,
	model.TypeBankruptcyCh11:    9.0,
	model.TypeRestructuring:     9.0,
	model.TypeMerger:            4.0,
	model.TypeAcquisition:       4.0,
	model.TypeRelocation:        4.0,
}

const defaultUrgency = 4.0

var urgencyLabels = map[string]string{
	model.TypeBankruptcyCh7:     "Ch. 7 liquidation — assets selling immediately",
	model.TypeLiquidation:       "Liquidation — assets selling immediately",
	model.TypeCeasingOperations: "Ceasing operations — full shutdown underway",
	model.TypeOfficeClosure:     "Office closure — facilities being vacated",
	model.TypeFacilityShutdown:  "Facility shutdown — site being decommissioned",
	"shutdown":                  "Shutdown — operations ceasing",
	model.TypePlantClosing:      "Plant closing — moderate timeline",
	model.TypeLayoff:            "Layoff — moderate timeline",
	model.TypeBankruptcyCh11:    "Ch. 11 restructuring — assets may be released",
	model.TypeRestructuring:     "Restructuring — assets may be released",
	model.TypeMerger:            "M&A activity — asset disposition possible",
	model.TypeAcquisition:       "Acquisition — asset disposition possible",
	model.TypeRelocation:        "Relocation — surplus from old site",
}

// sourceTrust ranks per-source reliability (government/court filings >> news).
var sourceTrust = map[string]float64{
	model.SourceWARNAct:       10.0,
	model.SourceCourtListener: 9.5,
	model.SourceSECEdgar:      9.0,
	model.SourceGDELT:         4.0,
}

const defaultTrust = 3.0

var sourceLabels = map[string]string{
	model.SourceWARNAct:       "WARN Act filing — government-verified",
	model.SourceCourtListener: "Court filing — legally verified",
	model.SourceSECEdgar:      "SEC filing — regulatory disclosure",
	model.SourceGDELT:         "News source — lower confidence",
}

// highTrustSources gate the single-source penalty and the trust boost.
var highTrustSources = map[string]bool{
	model.SourceWARNAct:       true,
	model.SourceSECEdgar:      true,
	model.SourceCourtListener: true,
}

var trendScores = map[model.RiskTrend]float64{
	model.TrendRising:    5.0,
	model.TrendStable:    2.5,
	model.TrendDeclining: 0.0,
}

// Compute scores an opportunity. Pure: identical inputs always yield the
// identical score, band, and explanation.
func Compute(in Input) Result {
	// 1. Device volume (~24 pts, log scale, saturates near a few thousand units).
	clampedDevices := in.TotalDevices
	if clampedDevices < 1 {
		clampedDevices = 1
	}
	deviceScore := math.Min(24.0, 24.0*math.Log1p(float64(clampedDevices)/100)/math.Log1p(300))

	// 2. Urgency (~18 pts): most urgent type present wins.
	bestUrgencyType := mostUrgentType(in.SignalTypes)
	urgencyScore := urgencyLookup(bestUrgencyType)

	// 3. Recency (~14 pts, exponential decay with a 10-day half-life-ish curve).
	recencyScore := 14.0 * math.Exp(-float64(in.DaysSinceLatest)/10.0)

	// 4. Source corroboration (~12 pts, log-scaled beyond the first source).
	var corroborationScore float64
	if in.SourceDiversity > 1 {
		corroborationScore = math.Min(12.0, 12.0*math.Log1p(float64(in.SourceDiversity-1))/math.Log1p(3))
	}

	// 5. Source trust (~10 pts): most trusted source present wins.
	bestSource := mostTrustedSource(in.SourceNames)
	trustScore := trustLookup(bestSource)

	// 6. Extraction confidence (~10 pts, linear).
	confidenceScore := math.Min(in.AvgConfidence, 100.0) / 100.0 * 10.0

	// 7. Composite company risk (~7 pts, linear).
	riskScore := math.Min(float64(in.CompositeRiskScore), 100.0) / 100.0 * 7.0

	// 8. Risk trend (~5 pts).
	trendScore, ok := trendScores[in.RiskTrend]
	if !ok {
		trendScore = 2.5
	}

	// Guardrails.
	var penalty, boost float64
	hasHighTrust := false
	for _, s := range in.SourceNames {
		if highTrustSources[s] {
			hasHighTrust = true
			break
		}
	}
	if in.SignalCount == 1 && !hasHighTrust && in.AvgConfidence < 60 {
		penalty = 15.0
	}
	if hasHighTrust {
		boost = 3.0
	}

	raw := deviceScore + urgencyScore + recencyScore + corroborationScore +
		trustScore + confidenceScore + riskScore + trendScore - penalty + boost

	finalScore := int(math.Round(raw))
	if finalScore < 0 {
		finalScore = 0
	}
	if finalScore > 100 {
		finalScore = 100
	}
	band, bandLabel := GetBand(finalScore)

	factors := []Factor{
		{"Device Volume", round1(deviceScore), 24.0, summarizeDevice(in.TotalDevices)},
		{"Urgency", round1(urgencyScore), 18.0, summarizeUrgency(bestUrgencyType)},
		{"Recency", round1(recencyScore), 14.0, summarizeRecency(in.DaysSinceLatest)},
		{"Corroboration", round1(corroborationScore), 12.0, summarizeCorroboration(in.SourceDiversity)},
		{"Source Trust", round1(trustScore), 10.0, summarizeTrust(bestSource)},
		{"Confidence", round1(confidenceScore), 10.0, summarizeConfidence(in.AvgConfidence)},
		{"Company Risk", round1(riskScore), 7.0, summarizeRisk(in.CompositeRiskScore)},
		{"Risk Trend", round1(trendScore), 5.0, summarizeTrend(in.RiskTrend)},
	}

	return Result{
		Score:          finalScore,
		Band:           band,
		BandLabel:      bandLabel,
		Factors:        factors,
		TopFactors:     topFactorSummaries(factors, 3),
		PenaltyApplied: penalty > 0,
		BoostApplied:   boost > 0,
	}
}

// MostUrgentType exposes urgency resolution for callers that need the
// dominant event type of a signal set (justifications, timing).
func MostUrgentType(signalTypes []string) string {
	return mostUrgentType(signalTypes)
}

func mostUrgentType(signalTypes []string) string {
	if len(signalTypes) == 0 {
		return "unknown"
	}
	best := signalTypes[0]
	for _, t := range signalTypes[1:] {
		if urgencyLookup(t) > urgencyLookup(best) {
			best = t
		}
	}
	return best
}

func urgencyLookup(t string) float64 {
	if v, ok := urgencyMap[t]; ok {
		return v
	}
	return defaultUrgency
}

func mostTrustedSource(sources []string) string {
	if len(sources) == 0 {
		return "unknown"
	}
	best := sources[0]
	for _, s := range sources[1:] {
		if trustLookup(s) > trustLookup(best) {
			best = s
		}
	}
	return best
}

func trustLookup(s string) float64 {
	if v, ok := sourceTrust[s]; ok {
		return v
	}
	return defaultTrust
}

// topFactorSummaries ranks factors by contribution ratio and returns the top
// n summaries. Sort is stable so equal ratios keep the budget order.
func topFactorSummaries(factors []Factor, n int) []string {
	ranked := make([]Factor, len(factors))
	copy(ranked, factors)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ratio(ranked[i]) > ratio(ranked[j])
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, f := range ranked[:n] {
		out = append(out, f.Summary)
	}
	return out
}

func ratio(f Factor) float64 {
	if f.MaxPoints <= 0 {
		return 0
	}
	return f.Points / f.MaxPoints
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func summarizeDevice(totalDevices int) string {
	switch {
	case totalDevices >= 5000:
		return fmt.Sprintf("%s devices — enterprise-scale volume", formatCount(totalDevices))
	case totalDevices >= 1000:
		return fmt.Sprintf("%s devices — large volume", formatCount(totalDevices))
	case totalDevices >= 100:
		return fmt.Sprintf("~%s devices estimated", formatCount(totalDevices))
	default:
		return fmt.Sprintf("~%s devices — small volume", formatCount(totalDevices))
	}
}

func summarizeUrgency(bestType string) string {
	if label, ok := urgencyLabels[bestType]; ok {
		return label
	}
	return fmt.Sprintf("%s — standard timeline", bestType)
}

func summarizeRecency(daysSince int) string {
	switch {
	case daysSince == 0:
		return "Detected today"
	case daysSince <= 3:
		return fmt.Sprintf("Detected %d days ago — very fresh", daysSince)
	case daysSince <= 7:
		return fmt.Sprintf("Detected %d days ago", daysSince)
	default:
		return fmt.Sprintf("Detected %d days ago — aging", daysSince)
	}
}

func summarizeCorroboration(diversity int) string {
	switch {
	case diversity >= 3:
		return fmt.Sprintf("Confirmed by %d independent sources", diversity)
	case diversity == 2:
		return "Confirmed by 2 independent sources"
	default:
		return "Single source only"
	}
}

func summarizeTrust(bestSource string) string {
	if label, ok := sourceLabels[bestSource]; ok {
		return label
	}
	return fmt.Sprintf("%s — unverified source", bestSource)
}

func summarizeConfidence(avg float64) string {
	pct := int(math.Round(avg))
	switch {
	case avg >= 80:
		return fmt.Sprintf("High extraction confidence (%d%%)", pct)
	case avg >= 60:
		return fmt.Sprintf("Moderate confidence (%d%%)", pct)
	default:
		return fmt.Sprintf("Low confidence (%d%%)", pct)
	}
}

func summarizeRisk(score int) string {
	return fmt.Sprintf("Company risk score %d/100", score)
}

func summarizeTrend(trend model.RiskTrend) string {
	switch trend {
	case model.TrendRising:
		return "Risk trend rising — deteriorating"
	case model.TrendDeclining:
		return "Risk trend declining — improving"
	default:
		return "Stable risk profile"
	}
}

// formatCount renders an integer with thousands separators.
func formatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
