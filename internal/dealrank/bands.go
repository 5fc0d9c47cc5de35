package dealrank

// Score bands. Boundaries are fixed constants, not tenant-configurable.
const (
	BandImmediatePursuit  = "immediate_pursuit"
	BandHighPriority      = "high_priority"
	BandQualifiedPipeline = "qualified_pipeline"
	BandBackground        = "background"
)

// GetBand returns (band key, band label) for a score.
func GetBand(score int) (string, string) {
	switch {
	case score >= 85:
		return BandImmediatePursuit, "Immediate Pursuit"
	case score >= 70:
		return BandHighPriority, "High Priority"
	case score >= 55:
		return BandQualifiedPipeline, "Qualified Pipeline"
	default:
		return BandBackground, "Background"
	}
}
