package types

import (
	"fmt"
	"time"
)

// EdgeKey is the identity of an edge: one `(subject, object, predicate)`
// triple maps to exactly one edge no matter how many sources assert it.
func EdgeKey(subjectID, objectID string, predicate Predicate) string {
	return fmt.Sprintf("%s|%s|%s", subjectID, predicate, objectID)
}

// Edge is a directed, typed claim between two canonical nodes. Score and
// Unverified are derived by the evidence aggregator and never set directly.
type Edge struct {
	ID string `gorm:"column:id;primaryKey" json:"id"`

	SubjectID string    `gorm:"column:subject_id;not null;index:idx_edge_subject" json:"subject_id"`
	ObjectID  string    `gorm:"column:object_id;not null;index:idx_edge_object" json:"object_id"`
	Predicate Predicate `gorm:"column:predicate;not null" json:"predicate"`

	Provenance Provenance `gorm:"column:provenance;not null" json:"provenance"`

	EvidenceIDs []string `gorm:"column:evidence_ids;serializer:json" json:"evidence_ids"`

	Score              float64 `gorm:"column:score;not null" json:"score"`
	Unverified         bool    `gorm:"column:unverified;not null" json:"unverified"`
	IndependentSupport int     `gorm:"column:independent_support;not null" json:"independent_support"`

	// Most recent publication year across attached evidence; zero when none
	// carries a year. Used as the deterministic ordering tie-break.
	LatestEvidenceYear int `gorm:"column:latest_evidence_year;not null" json:"latest_evidence_year"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Edge) TableName() string { return "kg_edge" }

func (e *Edge) Key() string {
	return EdgeKey(e.SubjectID, e.ObjectID, e.Predicate)
}

func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	cp := *e
	cp.EvidenceIDs = append([]string(nil), e.EvidenceIDs...)
	return &cp
}
