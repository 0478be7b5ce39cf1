package resolve

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/phobologic/vamdeps/internal/metrics"
	"github.com/phobologic/vamdeps/internal/model"
)

// ParsedDocument is a document together with the references parsed out of it.
type ParsedDocument struct {
	Document   *model.Document
	References []model.Reference
}

// Stats summarises one resolution pass.
type Stats struct {
	Resolved        int
	Delayed         int
	DelayedResolved int
	Unresolved      int
	Errors          []error
}

// ReferencesResolver drives a full pass: path lookup, immediate UUID/name
// matching across worker goroutines, then the single-threaded delayed batch.
type ReferencesResolver struct {
	uuid    *UUIDResolver
	paths   *PathResolver
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewReferencesResolver combines a path resolver with an initialised
// UUIDResolver.
func NewReferencesResolver(uuid *UUIDResolver, paths *PathResolver, log zerolog.Logger, m *metrics.Metrics) *ReferencesResolver {
	return &ReferencesResolver{uuid: uuid, paths: paths, log: log, metrics: m}
}

// Resolve attaches resolved and missing references to every document.
// Cancelling ctx stops the immediate phase; once the delayed batch starts it
// always runs to completion.
func (r *ReferencesResolver) Resolve(ctx context.Context, docs []ParsedDocument, workers int) (Stats, error) {
	start := time.Now()

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(docs) {
		workers = len(docs)
	}

	work := make(chan int, len(docs))
	results := make(chan Stats, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local Stats
			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				r.resolveDocument(docs[idx], &local)
			}
			results <- local
		}()
	}

	for i := range docs {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	for s := range results {
		stats.Resolved += s.Resolved
		stats.Delayed += s.Delayed
		stats.Unresolved += s.Unresolved
		stats.Errors = append(stats.Errors, s.Errors...)
	}
	r.metrics.ObservePhase("match", time.Since(start))

	// Every producer has joined here; the batch sees a stable queue.
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	stats.DelayedResolved = len(r.uuid.ResolveDelayed())

	r.log.Info().
		Str("event", "references_resolved").
		Int("documents", len(docs)).
		Int("resolved", stats.Resolved).
		Int("delayed", stats.Delayed).
		Int("delayed_resolved", stats.DelayedResolved).
		Int("unresolved", stats.Unresolved).
		Int("errors", len(stats.Errors)).
		Dur("duration_ms", time.Since(start)).
		Msg("reference resolution complete")
	return stats, nil
}

func (r *ReferencesResolver) resolveDocument(pd ParsedDocument, stats *Stats) {
	doc := pd.Document
	for _, ref := range pd.References {
		fallback := r.paths.Resolve(doc, ref)

		var (
			rr      model.ResolvedReference
			outcome Outcome
			err     error
		)
		switch {
		case ref.InternalID != "":
			rr, outcome, err = r.uuid.MatchByID(doc, ref, fallback)
		case ref.MorphName != "":
			rr, outcome, err = r.uuid.MatchByName(doc, ref, fallback)
		case fallback != nil:
			rr, outcome = model.NewResolvedReference(fallback, ref), Resolved
			r.metrics.RecordReference(KindPath, metrics.OutcomeResolved)
		default:
			outcome = Unresolved
			r.metrics.RecordReference(KindPath, metrics.OutcomeUnresolved)
		}

		if err != nil {
			r.log.Warn().
				Err(err).
				Str("document", doc.String()).
				Str("reference", ref.Value).
				Msg("reference rejected")
			stats.Errors = append(stats.Errors, err)
			doc.AddMissing(ref)
			continue
		}

		switch outcome {
		case Resolved:
			doc.AddReference(rr)
			stats.Resolved++
		case Delayed:
			stats.Delayed++
		default:
			doc.AddMissing(ref)
			stats.Unresolved++
		}
	}
}
