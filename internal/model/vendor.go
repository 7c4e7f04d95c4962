package model

import "time"

// VendorStatus is the lifecycle tag of a persisted vendor.
type VendorStatus string

const (
	VendorStatusResearched VendorStatus = "researched"
	VendorStatusContacted  VendorStatus = "contacted"
	VendorStatusQuoted     VendorStatus = "quoted"
	VendorStatusSelected   VendorStatus = "selected"
	VendorStatusRejected   VendorStatus = "rejected"
)

// Valid reports whether s is a known lifecycle tag.
func (s VendorStatus) Valid() bool {
	switch s {
	case VendorStatusResearched, VendorStatusContacted, VendorStatusQuoted,
		VendorStatusSelected, VendorStatusRejected:
		return true
	}
	return false
}

// Source records who produced a vendor record.
type Source string

const (
	SourceAI     Source = "ai"
	SourceManual Source = "manual"
)

// VendorCandidate is an unpersisted vendor extracted from research text.
// Optional numerics are pointers so that "not found" differs from zero.
type VendorCandidate struct {
	BusinessName     string   `json:"business_name"`
	ContactName      string   `json:"contact_name,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Email            string   `json:"email,omitempty"`
	Website          string   `json:"website,omitempty"`
	Address          string   `json:"address,omitempty"`
	City             string   `json:"city,omitempty"`
	State            string   `json:"state,omitempty"`
	ZipCode          string   `json:"zip_code,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	ReviewCount      *int     `json:"review_count,omitempty"`
	CostEstimateLow  *float64 `json:"cost_estimate_low,omitempty"`
	CostEstimateAvg  *float64 `json:"cost_estimate_avg,omitempty"`
	CostEstimateHigh *float64 `json:"cost_estimate_high,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	Source           Source   `json:"source,omitempty"`
}

// Vendor is a persisted vendor scoped to a project and category.
type Vendor struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	CategoryID string `json:"category_id"`
	VendorCandidate
	Status      VendorStatus `json:"status"`
	AIGenerated bool         `json:"ai_generated"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// VendorCategory groups vendors by trade within a construction phase.
type VendorCategory struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Phase       string    `json:"phase"`
	Subcategory string    `json:"subcategory,omitempty"`
	Description string    `json:"description,omitempty"`
	TypicalCost string    `json:"typical_cost,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Project is the subset of a construction project the research flow reads.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	ZipCode  string `json:"zip_code,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
