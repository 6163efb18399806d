package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/types"
)

// GraphRepo persists the canonical graph. The in-memory store remains the
// serving surface; this is the durable copy it hydrates from at startup and
// writes through to after each ingest batch.
type GraphRepo interface {
	SaveNodes(ctx context.Context, nodes []*types.Node) error
	SaveEdges(ctx context.Context, edges []*types.Edge) error
	SaveEvidence(ctx context.Context, evidence []types.Evidence) error

	LoadNodes(ctx context.Context) ([]*types.Node, error)
	LoadEdges(ctx context.Context) ([]*types.Edge, error)
	LoadEvidence(ctx context.Context) ([]types.Evidence, error)
}

type graphRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGraphRepo(db *gorm.DB, log *logger.Logger) GraphRepo {
	return &graphRepo{db: db, log: log.With("repo", "GraphRepo")}
}

const saveBatchSize = 500

func (r *graphRepo) SaveNodes(ctx context.Context, nodes []*types.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "canonical_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(nodes, saveBatchSize).Error
}

func (r *graphRepo) SaveEdges(ctx context.Context, edges []*types.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		CreateInBatches(edges, saveBatchSize).Error
}

func (r *graphRepo) SaveEvidence(ctx context.Context, evidence []types.Evidence) error {
	if len(evidence) == 0 {
		return nil
	}
	// Evidence is immutable: conflicts are left untouched, never updated.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		CreateInBatches(evidence, saveBatchSize).Error
}

func (r *graphRepo) LoadNodes(ctx context.Context) ([]*types.Node, error) {
	var nodes []*types.Node
	if err := r.db.WithContext(ctx).Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *graphRepo) LoadEdges(ctx context.Context) ([]*types.Edge, error) {
	var edges []*types.Edge
	if err := r.db.WithContext(ctx).Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *graphRepo) LoadEvidence(ctx context.Context) ([]types.Evidence, error) {
	var evidence []types.Evidence
	if err := r.db.WithContext(ctx).Find(&evidence).Error; err != nil {
		return nil, err
	}
	return evidence, nil
}
