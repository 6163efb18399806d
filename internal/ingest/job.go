package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helixmap/biograph-backend/internal/kg/resolver"
	"github.com/helixmap/biograph-backend/internal/kg/store"
	"github.com/helixmap/biograph-backend/internal/pkg/ctxutil"
	"github.com/helixmap/biograph-backend/internal/platform/kgerr"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/types"
)

// Report aggregates one batch: how many rows arrived, what was loaded, and
// what was skipped and why. Skips never abort a batch; only store corruption
// does.
type Report struct {
	RowsSeen      int
	EdgesLoaded   int
	NodesCreated  int
	EvidenceAdded int
	Skipped       int
	SkipReasons   []string
}

// Job loads tabular feed rows into the graph store, resolving identifiers
// and merging edges as it goes.
type Job struct {
	log      *logger.Logger
	resolver *resolver.Resolver
	store    *store.Store
}

func NewJob(log *logger.Logger, res *resolver.Resolver, st *store.Store) *Job {
	return &Job{
		log:      log.With("service", "IngestJob"),
		resolver: res,
		store:    st,
	}
}

// RunSource reads and loads a feed by URI (local path or gs://).
func (j *Job) RunSource(ctx context.Context, uri string) (Report, error) {
	ctx = ctxutil.Default(ctx)

	src, err := OpenSource(ctx, uri)
	if err != nil {
		return Report{}, err
	}
	defer src.Close()

	rows, rowErrs, err := ReadTSV(src)
	if err != nil {
		return Report{}, err
	}

	report, err := j.RunRecords(ctx, rows)
	for _, re := range rowErrs {
		report.skip(re.Error())
		report.RowsSeen++
	}
	return report, err
}

// RunRecords loads parsed rows. Malformed rows are counted and skipped; the
// batch continues. The one fatal condition is ErrStoreCorrupt, which halts
// the batch for manual review.
func (j *Job) RunRecords(ctx context.Context, rows []Row) (Report, error) {
	ctx = ctxutil.Default(ctx)

	tracer := otel.Tracer("biograph/ingest")
	ctx, span := tracer.Start(ctx, "ingest.batch")
	defer span.End()

	var report Report
	for i, row := range rows {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.RowsSeen++
		if err := j.loadRow(row, &report); err != nil {
			if errors.Is(err, kgerr.ErrStoreCorrupt) {
				j.log.Error("ingest halted: store corruption", "row", i+1, "error", err)
				span.SetAttributes(attribute.Bool("ingest.halted", true))
				return report, err
			}
			report.skip((&kgerr.RowError{Row: i + 1, Reason: err.Error()}).Error())
		}
	}

	span.SetAttributes(
		attribute.Int("ingest.rows", report.RowsSeen),
		attribute.Int("ingest.edges", report.EdgesLoaded),
		attribute.Int("ingest.skipped", report.Skipped),
	)
	j.log.Info("ingest batch complete",
		"rows", report.RowsSeen,
		"edges_loaded", report.EdgesLoaded,
		"nodes_created", report.NodesCreated,
		"evidence_added", report.EvidenceAdded,
		"skipped", report.Skipped,
	)
	return report, nil
}

func (j *Job) loadRow(row Row, report *Report) error {
	if err := row.Validate(); err != nil {
		return err
	}

	subjectID, created, err := j.resolveOrMint(row.SubjectNamespace, row.SubjectExternalID, types.NodeType(row.SubjectType), row.SubjectName)
	if err != nil {
		return err
	}
	if created {
		report.NodesCreated++
	}
	objectID, created, err := j.resolveOrMint(row.ObjectNamespace, row.ObjectExternalID, types.NodeType(row.ObjectType), row.ObjectName)
	if err != nil {
		return err
	}
	if created {
		report.NodesCreated++
	}

	var evidenceIDs []string
	if ref := strings.TrimSpace(row.EvidenceSourceRef); ref != "" {
		id, created, err := j.store.AddEvidence(types.Evidence{
			SourceRef:       ref,
			Snippet:         row.Snippet,
			PublicationYear: row.PublicationYear,
			CitationCount:   row.CitationCount,
			ClusterID:       row.ClusterID,
		})
		if err != nil {
			return err
		}
		evidenceIDs = append(evidenceIDs, id)
		if created {
			report.EvidenceAdded++
		}
	}

	if err := j.store.AddEdge(&types.Edge{
		SubjectID:   subjectID,
		ObjectID:    objectID,
		Predicate:   types.Predicate(row.Predicate),
		Provenance:  types.Provenance(row.Provenance),
		EvidenceIDs: evidenceIDs,
	}); err != nil {
		return err
	}
	report.EdgesLoaded++
	return nil
}

// resolveOrMint returns the canonical id for an alias, minting a new node
// when the alias is unseen. Feed namespaces are admitted on first sight;
// ErrUnknownNamespace stays a query-side failure.
func (j *Job) resolveOrMint(namespace, externalID string, nodeType types.NodeType, name string) (string, bool, error) {
	canonical, err := j.resolver.Resolve(namespace, externalID)
	if err == nil {
		// Known alias; refresh display metadata on the existing node.
		return canonical, false, j.store.AddNode(&types.Node{
			CanonicalID: canonical,
			Type:        nodeType,
			Name:        name,
			Aliases:     map[string]string{namespace: externalID},
		})
	}
	if errors.Is(err, kgerr.ErrUnknownNamespace) {
		j.resolver.RegisterNamespace(namespace)
	} else if !errors.Is(err, kgerr.ErrIdentifierNotFound) {
		return "", false, err
	}

	canonical = MintCanonicalID(nodeType, namespace, externalID)
	if err := j.resolver.Register(namespace, externalID, canonical); err != nil {
		return "", false, err
	}
	if name == "" {
		name = externalID
	}
	if err := j.store.AddNode(&types.Node{
		CanonicalID: canonical,
		Type:        nodeType,
		Name:        name,
		Aliases:     map[string]string{namespace: externalID},
	}); err != nil {
		return "", false, err
	}
	return canonical, true, nil
}

// MintCanonicalID derives a stable, readable canonical id from the first
// alias a node is seen under. Later aliases for the same entity are attached
// through explicit resolver registration, never by guessing at query time.
func MintCanonicalID(nodeType types.NodeType, namespace, externalID string) string {
	return fmt.Sprintf("%s:%s:%s",
		strings.ToUpper(string(nodeType)),
		strings.ToUpper(strings.TrimSpace(namespace)),
		strings.TrimSpace(externalID),
	)
}

func (r *Report) skip(reason string) {
	r.Skipped++
	if len(r.SkipReasons) < 100 {
		r.SkipReasons = append(r.SkipReasons, reason)
	}
}
