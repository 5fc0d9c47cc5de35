// Package classify assigns a canonical event type, category, confidence,
// and severity to raw distress-event text.
package classify

import (
	"context"

	"github.com/sells-group/disposight/internal/model"
)

// Result is a classification outcome. ConfidenceScore already includes
// the per-source reliability weighting.
type Result struct {
	SignalType      string `json:"signal_type"`
	SignalCategory  string `json:"signal_category"`
	ConfidenceScore int    `json:"confidence_score"`
	SeverityScore   int    `json:"severity_score"`
}

// Classifier produces a classification for raw event text.
type Classifier interface {
	Classify(ctx context.Context, text, companyName, sourceType string) (Result, error)
}

// sourceWeights scale LLM confidence by source reliability. Government
// and court feeds rank above generic news.
var sourceWeights = map[string]int{
	model.SourceWARNAct:       95,
	model.SourceSECEdgar:      90,
	model.SourceCourtListener: 90,
	model.SourceGDELT:         60,
}

const defaultSourceWeight = 50

// SourceWeight returns the reliability weight for a source type.
func SourceWeight(sourceType string) int {
	if w, ok := sourceWeights[sourceType]; ok {
		return w
	}
	return defaultSourceWeight
}

// typeAliases collapses variant event-type strings the LLM or collectors
// emit into the canonical vocabulary.
var typeAliases = map[string]string{
	"facility_closure":    model.TypeFacilityShutdown,
	"facility_closing":    model.TypeFacilityShutdown,
	"shutdown":            model.TypeFacilityShutdown,
	"closure":             model.TypeFacilityShutdown,
	"plant_closure":       model.TypePlantClosing,
	"office_closing":      model.TypeOfficeClosure,
	"news":                model.TypeRestructuring,
	"unknown":             model.TypeRestructuring,
	"bankruptcy":          model.TypeBankruptcyCh11,
	"chapter_7":           model.TypeBankruptcyCh7,
	"chapter_11":          model.TypeBankruptcyCh11,
	"ch7":                 model.TypeBankruptcyCh7,
	"ch11":                model.TypeBankruptcyCh11,
	"asset_sale":          model.TypeLiquidation,
	"layoffs":             model.TypeLayoff,
	"downsizing":          model.TypeLayoff,
	"workforce_reduction": model.TypeLayoff,
}

// NormalizeType maps a variant signal type to its canonical value.
// Unrecognized types pass through unchanged.
func NormalizeType(rawType string) string {
	if canonical, ok := typeAliases[rawType]; ok {
		return canonical
	}
	return rawType
}
