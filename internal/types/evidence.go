package types

import "time"

// Evidence is one unit of support for an edge. Immutable once created;
// re-ingesting the same source_ref is a no-op.
type Evidence struct {
	ID string `gorm:"column:id;primaryKey" json:"id"`

	// PMID/DOI or curated-database record id.
	SourceRef string `gorm:"column:source_ref;not null;uniqueIndex:idx_evidence_source_ref" json:"source_ref"`

	// Extracted text; empty for curated-only records.
	Snippet string `gorm:"column:snippet" json:"snippet,omitempty"`

	PublicationYear *int `gorm:"column:publication_year" json:"publication_year,omitempty"`
	CitationCount   *int `gorm:"column:citation_count" json:"citation_count,omitempty"`

	// Evidence items citing or derived from the same underlying study share a
	// cluster and count once toward independent support.
	ClusterID string `gorm:"column:cluster_id;index:idx_evidence_cluster" json:"cluster_id"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Evidence) TableName() string { return "kg_evidence" }
