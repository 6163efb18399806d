package types

import (
	"time"

	"gorm.io/datatypes"
)

// NodeType is the closed set of entity kinds admitted into the graph.
type NodeType string

const (
	NodeGene    NodeType = "Gene"
	NodeDisease NodeType = "Disease"
	NodeDrug    NodeType = "Drug"
	NodePathway NodeType = "Pathway"
	NodeProtein NodeType = "Protein"
)

func (t NodeType) Valid() bool {
	switch t {
	case NodeGene, NodeDisease, NodeDrug, NodePathway, NodeProtein:
		return true
	}
	return false
}

// Node is a canonical entity. All external identifiers resolve onto exactly
// one node; Aliases maps namespace name to the external id registered there.
type Node struct {
	CanonicalID string   `gorm:"column:canonical_id;primaryKey" json:"canonical_id"`
	Type        NodeType `gorm:"column:type;not null;index:idx_node_type" json:"type"`
	Name        string   `gorm:"column:name;not null" json:"name"`

	Aliases map[string]string `gorm:"column:aliases;serializer:json" json:"aliases"`

	// Open display metadata (symbols, descriptions, xref URLs).
	Attributes datatypes.JSON `gorm:"column:attributes;type:jsonb" json:"attributes,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Node) TableName() string { return "kg_node" }

// Clone returns a deep copy so store snapshots never share alias maps with
// caller-held values.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Aliases != nil {
		cp.Aliases = make(map[string]string, len(n.Aliases))
		for k, v := range n.Aliases {
			cp.Aliases[k] = v
		}
	}
	if n.Attributes != nil {
		cp.Attributes = append(datatypes.JSON(nil), n.Attributes...)
	}
	return &cp
}
