package model

import "github.com/phobologic/vamdeps/internal/graph"

// DependencyHolder owns documents and therefore dependencies: a Package or a
// FreeFile.
type DependencyHolder interface {
	// ResolvedPackageDependencies is the trimmed list of packages required.
	ResolvedPackageDependencies() []*Package
	// ResolvedFreeDependencies is the trimmed list of loose files required.
	ResolvedFreeDependencies() []*FreeFile
	// UnresolvedDependencies lists references that matched nothing.
	UnresolvedDependencies() []UnresolvedDependency
	// ClearDependencies drops the memoised lists.
	ClearDependencies()

	directDependencies() []DependencyHolder
	dependencyEdges() []DependencyHolder
}

// UnresolvedDependency is a reference that could not be matched, together
// with the document it came from.
type UnresolvedDependency struct {
	Location string
	Document string
}

func (u UnresolvedDependency) String() string { return u.Location + " from " + u.Document }

type dependencySet struct {
	packages   []*Package
	free       []*FreeFile
	unresolved []UnresolvedDependency
}

type dependencyCell = graph.Memo[dependencySet]

func (p *Package) ResolvedPackageDependencies() []*Package        { return p.dependencies().packages }
func (p *Package) ResolvedFreeDependencies() []*FreeFile          { return p.dependencies().free }
func (p *Package) UnresolvedDependencies() []UnresolvedDependency { return p.dependencies().unresolved }
func (p *Package) ClearDependencies()                             { p.deps.Clear() }

// DependenciesCalculated reports whether the memoised lists are present.
func (p *Package) DependenciesCalculated() bool { return p.deps.Ready() }

func (p *Package) dependencies() dependencySet {
	return p.deps.Get(func() dependencySet { return trimmedDependencies(p) })
}

func (p *Package) directDependencies() []DependencyHolder {
	return rawDependencies(p, p.Documents(), nil)
}

func (p *Package) dependencyEdges() []DependencyHolder {
	return edgesOf(&p.deps, p.directDependencies)
}

func (f *FreeFile) ResolvedPackageDependencies() []*Package        { return f.dependencies().packages }
func (f *FreeFile) ResolvedFreeDependencies() []*FreeFile          { return f.dependencies().free }
func (f *FreeFile) UnresolvedDependencies() []UnresolvedDependency { return f.dependencies().unresolved }
func (f *FreeFile) ClearDependencies()                             { f.deps.Clear() }

func (f *FreeFile) dependencies() dependencySet {
	return f.deps.Get(func() dependencySet { return trimmedDependencies(f) })
}

// Documents returns the documents of f and its bundled children.
func (f *FreeFile) Documents() []*Document {
	var docs []*Document
	for _, n := range SelfAndChildren(f) {
		if doc := n.Document(); doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

func (f *FreeFile) directDependencies() []DependencyHolder {
	own := make(map[AssetNode]struct{})
	for _, n := range SelfAndChildren(f) {
		own[n] = struct{}{}
	}
	return rawDependencies(f, f.Documents(), own)
}

func (f *FreeFile) dependencyEdges() []DependencyHolder {
	return edgesOf(&f.deps, f.directDependencies)
}

// edgesOf returns the already-computed trimmed lists of a holder, or its raw
// dependencies when those lists are not cached yet. Reachability is the same
// either way. It never starts a computation, so cycles cannot reenter a cell.
func edgesOf(cell *dependencyCell, direct func() []DependencyHolder) []DependencyHolder {
	set, ok := cell.Peek()
	if !ok {
		return direct()
	}
	edges := make([]DependencyHolder, 0, len(set.packages)+len(set.free))
	for _, p := range set.packages {
		edges = append(edges, p)
	}
	for _, f := range set.free {
		edges = append(edges, f)
	}
	return edges
}

// rawDependencies lists, in discovery order, the package of every packaged
// target and every free target referenced by docs. References back into self
// (or into own, for free files) are skipped.
func rawDependencies(self DependencyHolder, docs []*Document, own map[AssetNode]struct{}) []DependencyHolder {
	var raw []DependencyHolder
	for _, doc := range docs {
		for _, ref := range doc.References() {
			if _, skip := own[ref.Target]; skip {
				continue
			}
			h := ref.Target.Holder()
			if h == self {
				continue
			}
			raw = append(raw, h)
		}
	}
	return graph.Distinct(raw)
}

func trimmedDependencies(self DependencyHolder) dependencySet {
	trimmed := graph.Reduce(self.directDependencies(), func(h DependencyHolder) []DependencyHolder {
		return h.dependencyEdges()
	})

	var set dependencySet
	for _, h := range trimmed {
		switch v := h.(type) {
		case *Package:
			set.packages = append(set.packages, v)
		case *FreeFile:
			set.free = append(set.free, v)
		}
	}

	var docs []*Document
	switch v := self.(type) {
	case *Package:
		docs = v.Documents()
	case *FreeFile:
		docs = v.Documents()
	}
	seen := make(map[UnresolvedDependency]struct{})
	for _, doc := range docs {
		for _, ref := range doc.Missing() {
			u := UnresolvedDependency{Location: ref.EstimatedLocation, Document: doc.String()}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			set.unresolved = append(set.unresolved, u)
		}
	}
	return set
}

// ClearAllDependencies invalidates the memoised dependency lists of every
// package and free file. Call it whenever the reference graph changes.
func ClearAllDependencies(packages []*Package, free []*FreeFile) {
	for _, p := range packages {
		p.ClearDependencies()
	}
	for _, f := range free {
		for _, n := range SelfAndChildren(f) {
			n.(*FreeFile).ClearDependencies()
		}
	}
}
