package resolver

import (
	"strings"
	"sync"

	"github.com/helixmap/biograph-backend/internal/platform/kgerr"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
)

// DefaultNamespaces covers the identifier systems the stock ingestion feeds
// emit. Additional namespaces are registered explicitly.
var DefaultNamespaces = []string{
	"NCBI", "Ensembl", "UniProt", "HGNC",
	"DrugBank", "CHEMBL",
	"MONDO", "MeSH", "OMIM",
	"Reactome", "GO",
}

// Resolver normalizes (namespace, external id) pairs onto canonical node ids.
// Resolve is pure; Register is the only mutating operation and is idempotent.
type Resolver struct {
	mu         sync.RWMutex
	log        *logger.Logger
	namespaces map[string]bool
	// namespace -> external id -> canonical id
	aliases map[string]map[string]string
}

func New(log *logger.Logger, namespaces ...string) *Resolver {
	if len(namespaces) == 0 {
		namespaces = DefaultNamespaces
	}
	r := &Resolver{
		log:        log.With("service", "Resolver"),
		namespaces: make(map[string]bool, len(namespaces)),
		aliases:    make(map[string]map[string]string),
	}
	for _, ns := range namespaces {
		r.namespaces[normalizeNamespace(ns)] = true
	}
	return r
}

func normalizeNamespace(ns string) string {
	return strings.ToUpper(strings.TrimSpace(ns))
}

// RegisterNamespace admits a new identifier system. Idempotent.
func (r *Resolver) RegisterNamespace(namespace string) {
	ns := normalizeNamespace(namespace)
	if ns == "" {
		return
	}
	r.mu.Lock()
	r.namespaces[ns] = true
	r.mu.Unlock()
}

// Resolve returns the canonical id the alias maps to. It never mutates state.
func (r *Resolver) Resolve(namespace, externalID string) (string, error) {
	ns := normalizeNamespace(namespace)
	ext := strings.TrimSpace(externalID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.namespaces[ns] {
		return "", kgerr.ErrUnknownNamespace
	}
	canonical, ok := r.aliases[ns][ext]
	if !ok {
		return "", kgerr.ErrIdentifierNotFound
	}
	return canonical, nil
}

// Register adds an alias for canonicalID. Registering the same pair twice is
// a no-op; registering a pair that already maps elsewhere fails with
// ErrAmbiguousMapping and leaves the existing mapping untouched.
func (r *Resolver) Register(namespace, externalID, canonicalID string) error {
	ns := normalizeNamespace(namespace)
	ext := strings.TrimSpace(externalID)
	canonical := strings.TrimSpace(canonicalID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.namespaces[ns] {
		return kgerr.ErrUnknownNamespace
	}
	byExt := r.aliases[ns]
	if byExt == nil {
		byExt = make(map[string]string)
		r.aliases[ns] = byExt
	}
	if existing, ok := byExt[ext]; ok {
		if existing == canonical {
			return nil
		}
		r.log.Warn("alias collision",
			"namespace", ns,
			"external_id", ext,
			"existing", existing,
			"attempted", canonical,
		)
		return kgerr.ErrAmbiguousMapping
	}
	byExt[ext] = canonical
	return nil
}

// Aliases returns the registered aliases for canonicalID, namespace -> external
// id. Used when hydrating node alias maps.
func (r *Resolver) Aliases(canonicalID string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string)
	for ns, byExt := range r.aliases {
		for ext, canonical := range byExt {
			if canonical == canonicalID {
				out[ns] = ext
			}
		}
	}
	return out
}
