// Package resolve matches references found in documents to concrete assets.
//
// Matching runs in two phases. During the first, any number of goroutines
// call MatchByID and MatchByName; unambiguous references are answered
// immediately and ambiguous ones are queued. Once every producer has
// finished, a single call to ResolveDelayed decides the queued references in
// a deterministic order, caching each decision so that every reference to the
// same key and gender resolves to the same asset.
package resolve

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/phobologic/vamdeps/internal/metrics"
	"github.com/phobologic/vamdeps/internal/model"
)

var (
	// ErrLookupsNotInitialized is returned by the match functions when
	// InitLookups has not completed.
	ErrLookupsNotInitialized = errors.New("resolve: lookups not initialized")

	// ErrBatchInProgress is returned when a reference would be queued while
	// ResolveDelayed is running.
	ErrBatchInProgress = errors.New("resolve: delayed batch in progress")
)

// Outcome is the result of a single match attempt.
type Outcome int

const (
	// Unresolved means nothing matched; the caller records it as missing.
	Unresolved Outcome = iota
	// Resolved means a target was chosen immediately.
	Resolved
	// Delayed means the reference was queued for ResolveDelayed.
	Delayed
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return metrics.OutcomeResolved
	case Delayed:
		return metrics.OutcomeDelayed
	default:
		return metrics.OutcomeUnresolved
	}
}

// Lookup kinds, also used as the "kind" metric label.
const (
	KindID   = "id"
	KindName = "name"
	KindPath = "path"
)

type cacheKey struct {
	key    string
	gender uint8
}

type delayedEntry struct {
	doc        *model.Document
	ref        model.Reference
	candidates []model.AssetNode
	key        string
	kind       string
}

// UUIDResolver resolves references by cloth/hair UUID or morph display name.
type UUIDResolver struct {
	log           zerolog.Logger
	metrics       *metrics.Metrics
	ignoredMorphs map[string]struct{}

	byInternalID map[string][]model.AssetNode
	byMorphName  map[string][]model.AssetNode
	ready        atomic.Bool

	mu      sync.Mutex
	delayed []delayedEntry
	batch   atomic.Bool

	cacheVam   map[cacheKey]model.AssetNode
	cacheMorph map[cacheKey]model.AssetNode
}

// Option configures a UUIDResolver.
type Option func(*UUIDResolver)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(r *UUIDResolver) { r.log = l }
}

// WithMetrics records match outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *UUIDResolver) { r.metrics = m }
}

// WithIgnoredMorphs lists morph names that are never matched. References to
// them are reported unresolved without consulting the index.
func WithIgnoredMorphs(names ...string) Option {
	return func(r *UUIDResolver) {
		for _, n := range names {
			r.ignoredMorphs[n] = struct{}{}
		}
	}
}

// NewUUIDResolver creates a resolver. InitLookups must be called before any
// match.
func NewUUIDResolver(opts ...Option) *UUIDResolver {
	r := &UUIDResolver{
		log:           zerolog.Nop(),
		ignoredMorphs: make(map[string]struct{}),
		cacheVam:      make(map[cacheKey]model.AssetNode),
		cacheMorph:    make(map[cacheKey]model.AssetNode),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InitLookups builds the UUID and morph-name indices over the whole corpus.
// The two indices are built concurrently and published together once both
// are complete.
func (r *UUIDResolver) InitLookups(ctx context.Context, free []*model.FreeFile, packages []*model.Package) error {
	start := time.Now()
	nodes := corpus(free, packages)

	var (
		wg     sync.WaitGroup
		byID   map[string][]model.AssetNode
		byName map[string][]model.AssetNode
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		byID = buildIndex(nodes, func(n model.AssetNode) string {
			if !n.Type().Has(model.ValidClothOrHair) {
				return ""
			}
			return n.InternalID()
		})
	}()
	go func() {
		defer wg.Done()
		byName = buildIndex(nodes, func(n model.AssetNode) string {
			if !n.Type().Has(model.ValidMorph) {
				return ""
			}
			return n.MorphName()
		})
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.byInternalID = byID
	r.byMorphName = byName
	r.ready.Store(true)

	r.metrics.SetIndexEntries(KindID, len(byID))
	r.metrics.SetIndexEntries(KindName, len(byName))
	r.metrics.ObservePhase("init_lookups", time.Since(start))
	r.log.Info().
		Str("event", "index_built").
		Int("files", len(nodes)).
		Int("ids", len(byID)).
		Int("morph_names", len(byName)).
		Dur("duration_ms", time.Since(start)).
		Msg("lookup indices built")
	return nil
}

// corpus flattens every packaged and free file, packages first.
func corpus(free []*model.FreeFile, packages []*model.Package) []model.AssetNode {
	var nodes []model.AssetNode
	for _, p := range packages {
		for _, f := range p.AllFiles() {
			nodes = append(nodes, f)
		}
	}
	for _, f := range free {
		nodes = append(nodes, model.SelfAndChildren(f)...)
	}
	return nodes
}

func buildIndex(nodes []model.AssetNode, key func(model.AssetNode) string) map[string][]model.AssetNode {
	index := make(map[string][]model.AssetNode)
	for _, n := range nodes {
		k := key(n)
		if k == "" {
			continue
		}
		index[k] = append(index[k], n)
	}
	return index
}

// MatchByID matches a cloth or hair reference by its UUID. fallback is the
// asset the reference resolves to by path, or nil.
func (r *UUIDResolver) MatchByID(doc *model.Document, ref model.Reference, fallback model.AssetNode) (model.ResolvedReference, Outcome, error) {
	return r.match(doc, ref, ref.InternalID, KindID, r.byInternalID, fallback)
}

// MatchByName matches a morph reference by its display name. fallback is
// the asset the reference resolves to by path, or nil.
func (r *UUIDResolver) MatchByName(doc *model.Document, ref model.Reference, fallback model.AssetNode) (model.ResolvedReference, Outcome, error) {
	if _, ignored := r.ignoredMorphs[ref.MorphName]; ignored && ref.MorphName != "" {
		r.metrics.RecordReference(KindName, metrics.OutcomeUnresolved)
		return model.ResolvedReference{}, Unresolved, nil
	}
	return r.match(doc, ref, ref.MorphName, KindName, r.byMorphName, fallback)
}

func (r *UUIDResolver) match(
	doc *model.Document,
	ref model.Reference,
	key string,
	kind string,
	index map[string][]model.AssetNode,
	fallback model.AssetNode,
) (model.ResolvedReference, Outcome, error) {
	if strings.TrimSpace(key) == "" {
		r.metrics.RecordReference(kind, metrics.OutcomeInvalid)
		return model.ResolvedReference{}, Unresolved, &model.InvalidReferenceError{Reference: ref, Msg: "empty " + kind}
	}
	if !r.ready.Load() {
		return model.ResolvedReference{}, Unresolved, ErrLookupsNotInitialized
	}

	rr, outcome, err := r.matchCandidates(doc, ref, key, kind, index, fallback)
	if err == nil {
		r.metrics.RecordReference(kind, outcome.String())
	}
	return rr, outcome, err
}

func (r *UUIDResolver) matchCandidates(
	doc *model.Document,
	ref model.Reference,
	key string,
	kind string,
	index map[string][]model.AssetNode,
	fallback model.AssetNode,
) (model.ResolvedReference, Outcome, error) {
	indexed, found := index[key]
	var candidates []model.AssetNode
	switch {
	case !found && fallback == nil:
		return model.ResolvedReference{}, Unresolved, nil
	case !found:
		candidates = []model.AssetNode{fallback}
	default:
		candidates = append(make([]model.AssetNode, 0, len(indexed)+1), indexed...)
		if fallback != nil && !containsNode(candidates, fallback) {
			candidates = append(candidates, fallback)
		}
	}

	candidates = filterByGender(ref, candidates)

	// A size mismatch means the indexed candidates are presumably a UUID
	// collision; the path-based fallback is trusted instead.
	if fallback != nil {
		for _, c := range candidates {
			if c.SizeWithChildren() != fallback.SizeWithChildren() {
				return model.NewResolvedReference(fallback, ref), Resolved, nil
			}
		}
	}

	switch len(candidates) {
	case 0:
		if fallback != nil {
			return model.NewResolvedReference(fallback, ref), Resolved, nil
		}
		return model.ResolvedReference{}, Unresolved, nil
	case 1:
		return model.NewResolvedReference(candidates[0], ref), Resolved, nil
	}

	if anyNode(candidates, model.AssetNode.IsInPrimaryDir) {
		candidates = keepNodes(candidates, model.AssetNode.IsInPrimaryDir)
	}
	if len(candidates) == 1 {
		return model.NewResolvedReference(candidates[0], ref), Resolved, nil
	}

	if r.batch.Load() {
		return model.ResolvedReference{}, Unresolved, ErrBatchInProgress
	}
	r.mu.Lock()
	r.delayed = append(r.delayed, delayedEntry{
		doc:        doc,
		ref:        ref,
		candidates: candidates,
		key:        key,
		kind:       kind,
	})
	queued := len(r.delayed)
	r.mu.Unlock()

	r.metrics.SetDelayedQueueSize(queued)
	r.log.Debug().
		Str("event", "reference_delayed").
		Str("kind", kind).
		Str("key", key).
		Str("document", doc.String()).
		Int("candidates", len(candidates)).
		Msg("ambiguous reference delayed")
	return model.ResolvedReference{}, Delayed, nil
}

// filterByGender drops candidates of the opposite gender. Without any gender
// hint, female candidates are preferred when present.
func filterByGender(ref model.Reference, candidates []model.AssetNode) []model.AssetNode {
	female := ref.EstimatedType.IsFemale()
	male := ref.EstimatedType.IsMale()

	if !ref.EstimatedType.Has(model.ValidClothOrHairOrMorph) {
		location := strings.ToLower(ref.EstimatedLocation)
		if strings.Contains(location, "female") {
			female = true
		} else if strings.Contains(location, "male") {
			male = true
		}
	}

	isFemale := func(n model.AssetNode) bool { return n.Type().IsFemale() }
	isMale := func(n model.AssetNode) bool { return n.Type().IsMale() }
	not := func(pred func(model.AssetNode) bool) func(model.AssetNode) bool {
		return func(n model.AssetNode) bool { return !pred(n) }
	}

	switch {
	case female:
		return keepNodes(candidates, not(isMale))
	case male:
		return keepNodes(candidates, not(isFemale))
	case anyNode(candidates, isFemale):
		return keepNodes(candidates, not(isMale))
	default:
		return candidates
	}
}

// Pending returns the number of queued references.
func (r *UUIDResolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delayed)
}

// ResolveDelayed decides every queued reference, attaches the results to
// their documents and returns them. It must run after all matching has
// finished. Calling it on an empty queue returns nil and changes nothing.
func (r *UUIDResolver) ResolveDelayed() []model.ResolvedReference {
	r.mu.Lock()
	queue := r.delayed
	r.delayed = nil
	r.mu.Unlock()

	if len(queue) == 0 {
		return nil
	}

	if !r.batch.CompareAndSwap(false, true) {
		panic("resolve: concurrent ResolveDelayed")
	}
	defer r.batch.Store(false)

	start := time.Now()
	sortQueue(queue)

	created := make([]model.ResolvedReference, 0, len(queue))
	cacheHits := 0
	for _, e := range queue {
		cache := r.cacheVam
		if e.kind == KindName {
			cache = r.cacheMorph
		}
		lowerKey := strings.ToLower(e.key)

		if cached, ok := cache[cacheKey{lowerKey, e.ref.EstimatedType.GenderBucket()}]; ok {
			created = append(created, bind(e.doc, e.ref, cached))
			cacheHits++
			continue
		}

		winner := pickWinner(e.candidates)
		created = append(created, bind(e.doc, e.ref, winner))
		cache[cacheKey{lowerKey, winner.Type().GenderBucket()}] = winner
	}

	r.metrics.SetDelayedQueueSize(0)
	r.metrics.ObservePhase("resolve_delayed", time.Since(start))
	r.log.Info().
		Str("event", "delayed_resolved").
		Int("references", len(created)).
		Int("cache_hits", cacheHits).
		Dur("duration_ms", time.Since(start)).
		Msg("delayed references resolved")
	return created
}

// sortQueue orders preferred documents first; the remaining keys only make
// the order independent of how producers interleaved.
func sortQueue(queue []delayedEntry) {
	prefs := make([]bool, len(queue))
	for i := range queue {
		prefs[i] = queue[i].doc.Preferred()
	}
	idx := make([]int, len(queue))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		x, y := &queue[idx[a]], &queue[idx[b]]
		if pa, pb := prefs[idx[a]], prefs[idx[b]]; pa != pb {
			return pa
		}
		if xp, yp := x.doc.String(), y.doc.String(); xp != yp {
			return xp < yp
		}
		if x.key != y.key {
			return x.key < y.key
		}
		return x.ref.Value < y.ref.Value
	})
	sorted := make([]delayedEntry, len(queue))
	for i, j := range idx {
		sorted[i] = queue[j]
	}
	copy(queue, sorted)
}

// pickWinner chooses among ambiguous candidates: sticky preference first,
// then fewest dependencies, then the tie-break chain.
func pickWinner(candidates []model.AssetNode) model.AssetNode {
	candidates = append([]model.AssetNode(nil), candidates...)

	if anyNode(candidates, model.AssetNode.Preferred) {
		candidates = keepNodes(candidates, model.AssetNode.Preferred)
	}

	weights := make([]int, len(candidates))
	minWeight := math.MaxInt
	for i, c := range candidates {
		weights[i] = dependencyWeight(c)
		minWeight = min(minWeight, weights[i])
	}
	var best []model.AssetNode
	for i, c := range candidates {
		if weights[i] == minWeight {
			best = append(best, c)
		}
	}
	if len(best) == 1 {
		return best[0]
	}

	sort.SliceStable(best, func(i, j int) bool { return betterCandidate(best[i], best[j]) })
	return best[0]
}

func dependencyWeight(n model.AssetNode) int {
	h := n.Holder()
	return len(h.ResolvedPackageDependencies()) + len(h.ResolvedFreeDependencies())
}

// betterCandidate reports whether a should win over b once dependency weight
// is tied.
func betterCandidate(a, b model.AssetNode) bool {
	if a.IsInPrimaryDir() != b.IsInPrimaryDir() {
		return a.IsInPrimaryDir()
	}
	if la, lb := packagePathLen(a), packagePathLen(b); la != lb {
		return la < lb
	}
	if ua, ub := a.UsageCount(), b.UsageCount(); ua != ub {
		return ua > ub
	}
	if sa, sb := footprint(a), footprint(b); sa != sb {
		return sa < sb
	}
	return packageVersion(a) > packageVersion(b)
}

func packagePathLen(n model.AssetNode) int {
	if p := n.Package(); p != nil {
		return len(p.FullPath())
	}
	return 0
}

func footprint(n model.AssetNode) int64 {
	if p := n.Package(); p != nil {
		return p.Size()
	}
	return n.SizeWithChildren()
}

func packageVersion(n model.AssetNode) int {
	if p := n.Package(); p != nil {
		return p.Name().Version
	}
	return math.MaxInt
}

// bind attaches ref to doc and propagates the document's preference: a
// preferred document makes its target, and the target's whole package,
// sticky for later decisions.
func bind(doc *model.Document, ref model.Reference, target model.AssetNode) model.ResolvedReference {
	rr := model.NewResolvedReference(target, ref)
	doc.AddReference(rr)

	if !doc.Preferred() {
		return rr
	}
	target.SetPreferred(true)
	if p := target.Package(); p != nil {
		for _, f := range p.AllFiles() {
			f.SetPreferred(true)
		}
	}
	return rr
}

func containsNode(nodes []model.AssetNode, n model.AssetNode) bool {
	for _, c := range nodes {
		if c == n {
			return true
		}
	}
	return false
}

func anyNode(nodes []model.AssetNode, pred func(model.AssetNode) bool) bool {
	for _, n := range nodes {
		if pred(n) {
			return true
		}
	}
	return false
}

func keepNodes(nodes []model.AssetNode, pred func(model.AssetNode) bool) []model.AssetNode {
	out := make([]model.AssetNode, 0, len(nodes))
	for _, n := range nodes {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}
