package report

import (
	"time"

	"github.com/panbanda/depaudit/pkg/models"
)

// Metadata contains report generation metadata.
type Metadata struct {
	Root            string    `json:"root"`
	GeneratedAt     time.Time `json:"generated_at"`
	DepauditVersion string    `json:"depaudit_version"`
	Fingerprint     string    `json:"fingerprint"`
}

// Recommendation represents a single recommendation item.
type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Packages    []string `json:"packages,omitempty"`
}

// Recommendations groups recommendations by priority.
type Recommendations struct {
	HighPriority   []Recommendation `json:"high_priority"`
	MediumPriority []Recommendation `json:"medium_priority"`
	LowPriority    []Recommendation `json:"low_priority"`
}

// Empty reports whether there is nothing to recommend.
func (r Recommendations) Empty() bool {
	return len(r.HighPriority)+len(r.MediumPriority)+len(r.LowPriority) == 0
}

// RenderData contains all data needed to render the report.
type RenderData struct {
	Metadata        Metadata
	Summary         models.AuditSummary
	HealthClass     string
	Files           []models.FileAnalysis // files with issues only
	Unused          []string
	Missing         []string
	Mismatches      []models.Mismatch
	Warnings        []string
	Recommendations Recommendations
}
