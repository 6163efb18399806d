package scoring

import (
	"math"

	"github.com/helixmap/biograph-backend/internal/platform/config"
	"github.com/helixmap/biograph-backend/internal/types"
)

// Anchor years for the recency normalization. Fixed so that a given evidence
// set always yields the same score regardless of when it is computed.
const (
	recencyFloorYear   = 1950
	recencyCeilingYear = 2030
)

// citationSaturation is the citation count at which the log-scaled citation
// component reaches 1, so no single highly-cited item dominates.
const citationSaturation = 500

// Result is everything the aggregator derives for one edge.
type Result struct {
	Score              float64
	Unverified         bool
	IndependentSupport int
	LatestEvidenceYear int
}

// Aggregator computes deterministic edge scores from evidence sets.
type Aggregator struct {
	cfg config.Scoring
}

func New(cfg config.Scoring) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Score combines independent support, recency, and citation volume into a
// value in [0,1]. It is a pure function of its inputs: scoring the same
// evidence set twice yields an identical result.
func (a *Aggregator) Score(provenance types.Provenance, evidence []types.Evidence) Result {
	if len(evidence) == 0 {
		return a.scoreProvenanceOnly(provenance)
	}

	clusters := make(map[string]bool, len(evidence))
	latestYear := 0
	for _, ev := range evidence {
		key := ev.ClusterID
		if key == "" {
			// Unclustered evidence counts as its own study.
			key = "ev:" + ev.ID
		}
		clusters[key] = true
		if ev.PublicationYear != nil && *ev.PublicationYear > latestYear {
			latestYear = *ev.PublicationYear
		}
	}
	support := len(clusters)

	w := a.cfg.SupportWeight + a.cfg.RecencyWeight + a.cfg.CitationWeight
	score := (a.cfg.SupportWeight*a.supportComponent(support) +
		a.cfg.RecencyWeight*a.recencyComponent(evidence) +
		a.cfg.CitationWeight*a.citationComponent(evidence)) / w

	return Result{
		Score:              clamp01(score),
		Unverified:         false,
		IndependentSupport: support,
		LatestEvidenceYear: latestYear,
	}
}

// scoreProvenanceOnly handles edges with no literature evidence. Trusted
// provenance classes are scored on trust alone; anything below the unverified
// threshold is zeroed and flagged.
func (a *Aggregator) scoreProvenanceOnly(provenance types.Provenance) Result {
	trust := a.trust(provenance)
	if trust >= a.cfg.UnverifiedThreshold {
		return Result{Score: clamp01(trust)}
	}
	return Result{Score: 0, Unverified: true}
}

func (a *Aggregator) trust(p types.Provenance) float64 {
	switch p {
	case types.ProvenanceCurated:
		return a.cfg.CuratedTrust
	case types.ProvenanceManual:
		return a.cfg.ManualTrust
	case types.ProvenanceTextMined:
		return a.cfg.TextMinedTrust
	}
	return 0
}

// supportComponent saturates logarithmically at the configured cluster count.
func (a *Aggregator) supportComponent(clusters int) float64 {
	if clusters <= 0 {
		return 0
	}
	v := math.Log1p(float64(clusters)) / math.Log1p(float64(a.cfg.SupportSaturation))
	return math.Min(v, 1)
}

// recencyComponent averages normalized publication years. Items without a
// year are neutral. Direction is configurable: some domains favor older,
// well-replicated findings over the newest report.
func (a *Aggregator) recencyComponent(evidence []types.Evidence) float64 {
	sum, n := 0.0, 0
	for _, ev := range evidence {
		if ev.PublicationYear == nil {
			continue
		}
		y := float64(*ev.PublicationYear)
		v := (y - recencyFloorYear) / (recencyCeilingYear - recencyFloorYear)
		v = clamp01(v)
		if a.cfg.RecencyDirection == config.RecencyOlder {
			v = 1 - v
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// citationComponent is the mean log-saturated citation volume across items
// that carry a count; zero when none does.
func (a *Aggregator) citationComponent(evidence []types.Evidence) float64 {
	sum, n := 0.0, 0
	for _, ev := range evidence {
		if ev.CitationCount == nil {
			continue
		}
		c := float64(*ev.CitationCount)
		if c < 0 {
			c = 0
		}
		v := math.Log1p(c) / math.Log1p(citationSaturation)
		sum += math.Min(v, 1)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
