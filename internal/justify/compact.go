// Package justify renders plain-English deal justifications. Two modes:
// a template-based compact form cheap enough for every opportunity card,
// and an LLM-generated full form for the detail view, cached per company.
package justify

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/disposight/internal/dealrank"
	"github.com/sells-group/disposight/internal/model"
)

// eventVerbs maps a signal type to its past-tense verb phrase.
var eventVerbs = map[string]string{
	model.TypeBankruptcyCh7:     "filed for Chapter 7 liquidation",
	model.TypeLiquidation:       "entered liquidation",
	model.TypeCeasingOperations: "is ceasing operations",
	model.TypeOfficeClosure:     "is closing office facilities",
	model.TypeFacilityShutdown:  "is shutting down facilities",
	"shutdown":                  "is shutting down operations",
	model.TypePlantClosing:      "is closing a plant",
	model.TypeLayoff:            "announced mass layoffs",
	model.TypeBankruptcyCh11:    "filed for Chapter 11 restructuring",
	model.TypeRestructuring:     "is undergoing restructuring",
	model.TypeMerger:            "is involved in a merger",
	model.TypeAcquisition:       "is being acquired",
	model.TypeRelocation:        "is relocating operations",
	"facility_closure":          "is closing facilities",
	"facility_closing":          "is closing facilities",
}

// sourceProse maps a source type to a readable evidence phrase.
var sourceProse = map[string]string{
	model.SourceWARNAct:       "WARN Act filing",
	model.SourceCourtListener: "court filing",
	model.SourceSECEdgar:      "SEC filing",
	model.SourceGDELT:         "news coverage",
}

// layoffDeviceMultiplier reverses the layoff device estimate back to an
// approximate headcount for prose.
const layoffDeviceMultiplier = 1.5

var englishPrinter = message.NewPrinter(language.English)

// CompactInput holds the aggregate facts the compact template consumes.
type CompactInput struct {
	CompanyName       string
	SignalTypes       []string
	SourceNames       []string
	TotalDevices      int
	RevenueEstimate   float64
	DispositionWindow string
	DealScore         int
	ScoreBand         string
	RiskTrend         model.RiskTrend
	SourceDiversity   int
	DaysSinceLatest   int
	PenaltyApplied    bool
}

// Compact renders a 2-3 sentence justification for opportunity cards.
// Deterministic and allocation-cheap; never calls out.
func Compact(in CompactInput) string {
	bestType := dealrank.MostUrgentType(in.SignalTypes)

	verb, ok := eventVerbs[bestType]
	if !ok {
		verb = fmt.Sprintf("has a %s event", strings.ReplaceAll(bestType, "_", " "))
	}

	affected := ""
	if bestType == model.TypeLayoff && in.TotalDevices > 0 {
		approxEmployees := int(float64(in.TotalDevices) / layoffDeviceMultiplier)
		if approxEmployees > 0 {
			affected = englishPrinter.Sprintf(" affecting ~%d employees", approxEmployees)
		}
	}

	evidenceClause := ""
	if evidence := sourceEvidence(in.SourceNames); evidence != "" {
		evidenceClause = ", confirmed by " + evidence
	}

	sentences := []string{
		fmt.Sprintf("%s %s%s%s.", in.CompanyName, verb, affected, evidenceClause),
		englishPrinter.Sprintf("An estimated %d surplus devices (~$%.0f recovery value) expected within %s.",
			in.TotalDevices, in.RevenueEstimate, strings.ToLower(in.DispositionWindow)),
	}
	if kicker := confidenceKicker(in); kicker != "" {
		sentences = append(sentences, kicker)
	}
	return strings.Join(sentences, " ")
}

// confidenceKicker picks the highest-priority closing sentence, or none.
func confidenceKicker(in CompactInput) string {
	switch {
	case in.RiskTrend == model.TrendRising && in.SourceDiversity >= 2:
		return fmt.Sprintf("Risk trend rising - %d corroborating sources.", in.SourceDiversity)
	case in.SourceDiversity >= 3:
		return fmt.Sprintf("High confidence - verified across %d independent sources.", in.SourceDiversity)
	case in.SourceDiversity == 2:
		return "Corroborated by 2 independent sources."
	case in.DaysSinceLatest <= 3:
		dayWord := "days"
		if in.DaysSinceLatest == 1 {
			dayWord = "day"
		}
		return fmt.Sprintf("Detected %d %s ago - time-sensitive.", in.DaysSinceLatest, dayWord)
	case in.ScoreBand == dealrank.BandImmediatePursuit:
		return fmt.Sprintf("Immediate pursuit recommended - scored %d/100.", in.DealScore)
	case in.PenaltyApplied:
		return "Single unverified source - proceed with caution."
	}
	return ""
}

// sourceEvidence joins deduplicated source labels into a readable fragment
// like "WARN Act filing and news coverage".
func sourceEvidence(sourceNames []string) string {
	var labels []string
	seen := make(map[string]bool)
	for _, s := range sourceNames {
		label, ok := sourceProse[s]
		if !ok {
			label = strings.ReplaceAll(s, "_", " ")
		}
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
	}
}
