package classify

import (
	"context"
	"strings"

	"github.com/sells-group/disposight/internal/model"
)

// categoryBySource maps a source type to its broad signal category when
// the LLM path is unavailable.
var categoryBySource = map[string]string{
	model.SourceWARNAct:       model.CategoryWARN,
	model.SourceGDELT:         model.CategoryNews,
	model.SourceSECEdgar:      model.CategoryFiling,
	model.SourceCourtListener: model.CategoryBankruptcy,
}

// keywordRule is one entry in the ordered fallback table. First match wins.
type keywordRule struct {
	keywords   []string
	signalType string
	severity   int
}

var keywordRules = []keywordRule{
	{[]string{"chapter 7", "liquidation"}, model.TypeBankruptcyCh7, 85},
	{[]string{"chapter 11", "bankruptcy"}, model.TypeBankruptcyCh11, 75},
	{[]string{"layoff", "warn"}, model.TypeLayoff, 65},
	{[]string{"closure", "closing", "shutdown"}, model.TypeOfficeClosure, 70},
	{[]string{"merger", "acquisition"}, model.TypeMerger, 50},
}

const unmatchedSeverity = 30

// RuleClassifier is the deterministic keyword fallback. It never fails,
// so the pipeline keeps moving when the LLM is unavailable.
type RuleClassifier struct{}

// NewRuleClassifier creates the keyword fallback classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify matches keywords against the ordered rule table. The unmatched
// case yields the restructuring catch-all at low severity. Confidence is
// the raw source weight.
func (c *RuleClassifier) Classify(_ context.Context, text, _, sourceType string) (Result, error) {
	lower := strings.ToLower(text)

	signalType := ""
	severity := unmatchedSeverity
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				signalType = rule.signalType
				severity = rule.severity
				break
			}
		}
		if signalType != "" {
			break
		}
	}
	if signalType == "" {
		signalType = model.TypeRestructuring
	}

	category, ok := categoryBySource[sourceType]
	if !ok {
		category = model.CategoryNews
	}

	return Result{
		SignalType:      signalType,
		SignalCategory:  category,
		ConfidenceScore: SourceWeight(sourceType),
		SeverityScore:   severity,
	}, nil
}
