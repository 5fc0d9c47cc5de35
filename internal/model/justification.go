package model

import (
	"time"

	"github.com/google/uuid"
)

// Justification is a cached buyer-facing narrative for one opportunity.
// Regenerated when it ages out or the deal score drifts materially.
type Justification struct {
	CompanyID         uuid.UUID `json:"company_id"`
	Text              string    `json:"text"`
	ScoreAtGeneration int       `json:"score_at_generation"`
	GeneratedAt       time.Time `json:"generated_at"`
}
