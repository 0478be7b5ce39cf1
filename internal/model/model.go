package model

import "sort"

// PackageEntry lists what one package needs.
type PackageEntry struct {
	Package          string
	Dependencies     []string
	FreeDependencies []string
}

// FreeEntry lists what one loose file needs.
type FreeEntry struct {
	File             string
	Dependencies     []string
	FreeDependencies []string
}

// UnresolvedEntry is a reference that matched nothing.
type UnresolvedEntry struct {
	Owner    string
	Location string
	Document string
}

// Report is the trimmed dependency listing of a scan, ready for
// serialization.
type Report struct {
	Name       string
	Root       string
	Packages   []PackageEntry
	Free       []FreeEntry
	Unresolved []UnresolvedEntry
}

// BuildReport collects the trimmed dependencies of every package and of every
// top-level free file that has any. Entries are sorted by name.
func BuildReport(name, root string, packages []*Package, free []*FreeFile) *Report {
	r := &Report{Name: name, Root: root}

	for _, p := range packages {
		owner := p.Name().String()
		r.Packages = append(r.Packages, PackageEntry{
			Package:          owner,
			Dependencies:     packageNames(p.ResolvedPackageDependencies()),
			FreeDependencies: freePaths(p.ResolvedFreeDependencies()),
		})
		r.Unresolved = appendUnresolved(r.Unresolved, owner, p.UnresolvedDependencies())
	}

	for _, f := range free {
		if len(f.Documents()) == 0 {
			continue
		}
		pkgs, files := f.ResolvedPackageDependencies(), f.ResolvedFreeDependencies()
		unresolved := f.UnresolvedDependencies()
		if len(pkgs) == 0 && len(files) == 0 && len(unresolved) == 0 {
			continue
		}
		r.Free = append(r.Free, FreeEntry{
			File:             f.FullPath(),
			Dependencies:     packageNames(pkgs),
			FreeDependencies: freePaths(files),
		})
		r.Unresolved = appendUnresolved(r.Unresolved, f.FullPath(), unresolved)
	}

	sort.SliceStable(r.Packages, func(i, j int) bool { return r.Packages[i].Package < r.Packages[j].Package })
	sort.SliceStable(r.Free, func(i, j int) bool { return r.Free[i].File < r.Free[j].File })
	sort.SliceStable(r.Unresolved, func(i, j int) bool {
		if r.Unresolved[i].Owner != r.Unresolved[j].Owner {
			return r.Unresolved[i].Owner < r.Unresolved[j].Owner
		}
		return r.Unresolved[i].Location < r.Unresolved[j].Location
	})
	return r
}

func packageNames(pkgs []*Package) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.Name().String()
	}
	return out
}

func freePaths(files []*FreeFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.FullPath()
	}
	return out
}

func appendUnresolved(dst []UnresolvedEntry, owner string, deps []UnresolvedDependency) []UnresolvedEntry {
	for _, u := range deps {
		dst = append(dst, UnresolvedEntry{Owner: owner, Location: u.Location, Document: u.Document})
	}
	return dst
}
