// Package model defines the persisted domain types shared across the pipeline.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus tracks a raw event through the pipeline.
type ProcessingStatus string

const (
	StatusRaw       ProcessingStatus = "raw"
	StatusProcessed ProcessingStatus = "processed"
	StatusDiscarded ProcessingStatus = "discarded"
)

// Discard reasons recorded on raw events that never become signals.
const (
	DiscardBelowDeviceThreshold = "below_device_threshold"
	DiscardDuplicateSignal      = "duplicate_signal"
	DiscardRejectedCompanyName  = "rejected_company_name"
)

// RawEvent is an unprocessed, source-reported distress event prior to entity
// resolution and classification. Created by a collector, mutated only by the
// ingestion gate and pipeline (status transitions), never deleted.
type RawEvent struct {
	ID                uuid.UUID        `json:"id"`
	SourceType        string           `json:"source_type"`
	CompanyName       string           `json:"company_name"`
	EventType         string           `json:"event_type"`
	EventDate         *time.Time       `json:"event_date,omitempty"`
	Locations         []string         `json:"locations,omitempty"`
	EmployeesAffected *int             `json:"employees_affected,omitempty"`
	SourceURL         string           `json:"source_url,omitempty"`
	RawText           string           `json:"raw_text,omitempty"`
	ContentHash       string           `json:"content_hash"`
	ProcessingStatus  ProcessingStatus `json:"processing_status"`
	DiscardReason     string           `json:"discard_reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
