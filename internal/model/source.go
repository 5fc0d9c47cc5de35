package model

import (
	"time"

	"github.com/google/uuid"
)

// Source types recognized by the pipeline, in descending trust order.
const (
	SourceWARNAct       = "warn_act"
	SourceCourtListener = "courtlistener"
	SourceSECEdgar      = "sec_edgar"
	SourceGDELT         = "gdelt"
)

// Run statuses recorded on a source after each collection cycle.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// SourceHealth is the operator-facing health record for one collector.
// Updated after every run, including failed ones.
type SourceHealth struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	SourceType      string     `json:"source_type"`
	ScheduleCron    string     `json:"schedule_cron,omitempty"`
	Enabled         bool       `json:"enabled"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus   string     `json:"last_run_status,omitempty"`
	LastRunSignals  int        `json:"last_run_signals"`
	LastRunDuration int        `json:"last_run_duration_ms"`
	ErrorCount      int        `json:"error_count"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SourceRun summarizes one completed collection cycle for health tracking.
// A failed run increments the consecutive error count; a success resets it.
type SourceRun struct {
	RanAt       time.Time
	Status      string
	SignalCount int
	DurationMS  int
	Err         string
}
