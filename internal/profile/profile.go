// Package profile marks the packages and files an operator asked for.
package profile

import (
	"strings"

	"github.com/phobologic/vamdeps/internal/model"
)

// Selection records what Select marked, keyed by report owner name.
type Selection struct {
	owners map[string]struct{}
}

// Len returns the number of selected packages and free files.
func (s *Selection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.owners)
}

// Has reports whether owner (a package name or free file path) is selected.
func (s *Selection) Has(owner string) bool {
	if s == nil {
		return false
	}
	_, ok := s.owners[owner]
	return ok
}

// Select marks as preferred every package whose file name and every free
// file whose root-relative path contains one of patterns, ignoring case.
// All files of a selected package are marked, as are the children of a
// selected free file. Blank patterns are ignored.
func Select(packages []*model.Package, free []*model.FreeFile, patterns []string) *Selection {
	sel := &Selection{owners: make(map[string]struct{})}

	var lowered []string
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	if len(lowered) == 0 {
		return sel
	}

	for _, p := range packages {
		if !matches(p.Name().Filename, lowered) {
			continue
		}
		for _, f := range p.AllFiles() {
			f.SetPreferred(true)
		}
		sel.owners[p.Name().String()] = struct{}{}
	}

	for _, f := range free {
		if !matches(f.LocalPath(), lowered) {
			continue
		}
		for _, n := range model.SelfAndChildren(f) {
			n.SetPreferred(true)
		}
		sel.owners[f.FullPath()] = struct{}{}
	}
	return sel
}

func matches(s string, patterns []string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Filter returns a report holding only the selected owners. An empty
// selection returns rm unchanged.
func Filter(rm *model.Report, sel *Selection) *model.Report {
	if sel.Len() == 0 {
		return rm
	}

	out := &model.Report{Name: rm.Name, Root: rm.Root}
	for _, e := range rm.Packages {
		if sel.Has(e.Package) {
			out.Packages = append(out.Packages, e)
		}
	}
	for _, e := range rm.Free {
		if sel.Has(e.File) {
			out.Free = append(out.Free, e)
		}
	}
	for _, u := range rm.Unresolved {
		if sel.Has(u.Owner) {
			out.Unresolved = append(out.Unresolved, u)
		}
	}
	return out
}
