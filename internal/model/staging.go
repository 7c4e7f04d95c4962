package model

import "time"

// StagingStatus is the processing state of one research invocation.
type StagingStatus string

const (
	StagingStarting           StagingStatus = "starting"
	StagingResearchComplete   StagingStatus = "research_complete"
	StagingVendorsExtracted   StagingStatus = "vendors_extracted"
	StagingNoVendorsExtracted StagingStatus = "no_vendors_extracted"
	StagingCompleted          StagingStatus = "completed"
	StagingInsertFailed       StagingStatus = "insert_failed"
	StagingFailed             StagingStatus = "failed"
)

// Terminal reports whether no further transition is expected from s. An
// invocation that extracted nothing stops at no_vendors_extracted.
func (s StagingStatus) Terminal() bool {
	switch s {
	case StagingNoVendorsExtracted, StagingCompleted, StagingInsertFailed, StagingFailed:
		return true
	}
	return false
}

// StagingRecord is the audit trail of one research invocation. The pipeline
// creates and updates it but never deletes it.
type StagingRecord struct {
	ID               string            `json:"id"`
	ProjectID        string            `json:"project_id"`
	CategoryName     string            `json:"category_name"`
	SearchQuery      string            `json:"search_query"`
	RawResearch      map[string]any    `json:"raw_research,omitempty"`
	ExtractedVendors []VendorCandidate `json:"extracted_vendors,omitempty"`
	Status           StagingStatus     `json:"processing_status"`
	Notes            string            `json:"processing_notes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
}
