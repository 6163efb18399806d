package rationale

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/helixmap/biograph-backend/internal/pkg/ctxutil"
	"github.com/helixmap/biograph-backend/internal/platform/kgerr"
	"github.com/helixmap/biograph-backend/internal/platform/logger"
	"github.com/helixmap/biograph-backend/internal/platform/textgen"
	"github.com/helixmap/biograph-backend/internal/types"
)

// Fallback is the fixed response when no trustworthy narrative can be
// produced: generation failed, timed out, or cited evidence it was not given.
const Fallback = "No narrative available for this connection. Review the listed evidence directly."

// Narratives cite evidence as [ref:<source_ref>]; the scanner recognizes
// exactly this form.
var citationMarker = regexp.MustCompile(`\[ref:([^\[\]\s]+)\]`)

// Cache stores accepted narratives keyed by subject and evidence set, so a
// repeat click skips the slow external call. Implementations are best-effort;
// errors are logged and ignored.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, narrative string, ttl time.Duration)
}

// Subject describes the edge or path a narrative is requested for. Statements
// are the claims already rendered to the user, in traversal order.
type Subject struct {
	ID         string
	Statements []string
}

// Gate wraps the external text-generation collaborator and enforces that its
// output cites only evidence actually supplied. The check fails closed: a
// violating narrative is retried once under a stricter prompt and then
// replaced by the fixed fallback, never surfaced.
type Gate struct {
	log      *logger.Logger
	gen      textgen.Client
	cache    Cache
	timeout  time.Duration
	cacheTTL time.Duration
}

func NewGate(log *logger.Logger, gen textgen.Client, cache Cache, timeout, cacheTTL time.Duration) *Gate {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gate{
		log:      log.With("service", "RationaleGate"),
		gen:      gen,
		cache:    cache,
		timeout:  timeout,
		cacheTTL: cacheTTL,
	}
}

// Generate produces a narrative for the subject grounded in evidence. It
// always returns text: either an accepted narrative or Fallback. The second
// return reports whether the fallback was used. The call is bounded by the
// gate timeout and safely cancellable; neither outcome touches path state.
func (g *Gate) Generate(ctx context.Context, subject Subject, evidence []types.Evidence) (string, bool) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), g.timeout)
	defer cancel()

	allowed := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		allowed[ev.SourceRef] = true
	}

	key := cacheKey(subject, evidence)
	if g.cache != nil {
		if narrative, ok := g.cache.Get(ctx, key); ok {
			return narrative, false
		}
	}

	narrative, err := g.attempt(ctx, subject, evidence, false)
	if err == nil {
		err = g.checkCitations(narrative, allowed)
	}
	if err == nil {
		g.store(ctx, key, narrative)
		return narrative, false
	}

	g.log.Warn("rationale attempt rejected", "subject", subject.ID, "error", err.Error())

	// One stricter retry, then fail closed.
	narrative, retryErr := g.attempt(ctx, subject, evidence, true)
	if retryErr == nil {
		retryErr = g.checkCitations(narrative, allowed)
	}
	if retryErr == nil {
		g.store(ctx, key, narrative)
		return narrative, false
	}

	g.log.Warn("rationale falling back", "subject", subject.ID, "error", retryErr.Error())
	return Fallback, true
}

func (g *Gate) attempt(ctx context.Context, subject Subject, evidence []types.Evidence, strict bool) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	system := systemPrompt(strict)
	user := userPrompt(subject, evidence)
	return g.gen.GenerateText(ctx, system, user)
}

// checkCitations rejects any narrative citing an identifier outside the
// allowed set. Unverifiable text must never reach a user.
func (g *Gate) checkCitations(narrative string, allowed map[string]bool) error {
	matches := citationMarker.FindAllStringSubmatch(narrative, -1)
	var bad []string
	for _, m := range matches {
		if !allowed[m[1]] {
			bad = append(bad, m[1])
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("%w: uncited refs %s", kgerr.ErrCitationViolation, strings.Join(bad, ", "))
	}
	return nil
}

func (g *Gate) store(ctx context.Context, key, narrative string) {
	if g.cache == nil {
		return
	}
	g.cache.Set(ctx, key, narrative, g.cacheTTL)
}

func systemPrompt(strict bool) string {
	base := "You are a biomedical curator. Explain the displayed graph connection in plain language for a biologist. " +
		"Cite supporting evidence inline as [ref:SOURCE_REF], using ONLY the source references listed in the prompt. " +
		"Do not mention any study, database record, or identifier that is not listed."
	if !strict {
		return base
	}
	return base + " STRICT MODE: your previous answer cited material outside the provided evidence. " +
		"Every [ref:...] marker must exactly match one of the listed source references. " +
		"If the evidence is too thin to explain the connection, say so instead of citing anything else."
}

func userPrompt(subject Subject, evidence []types.Evidence) string {
	var b strings.Builder
	b.WriteString("Connection under review:\n")
	for _, s := range subject.Statements {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\nAvailable evidence (the only citable material):\n")
	for _, ev := range evidence {
		b.WriteString("- [ref:")
		b.WriteString(ev.SourceRef)
		b.WriteString("]")
		if ev.PublicationYear != nil {
			fmt.Fprintf(&b, " (%d)", *ev.PublicationYear)
		}
		if strings.TrimSpace(ev.Snippet) != "" {
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(ev.Snippet))
		}
		b.WriteString("\n")
	}
	if len(evidence) == 0 {
		b.WriteString("- none\n")
	}
	return b.String()
}

func cacheKey(subject Subject, evidence []types.Evidence) string {
	refs := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		refs = append(refs, ev.SourceRef)
	}
	sort.Strings(refs)
	h := sha256.Sum256([]byte(subject.ID + "\x00" + strings.Join(refs, "\x00")))
	return "rationale:" + hex.EncodeToString(h[:16])
}
