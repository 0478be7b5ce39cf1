package resolve

import (
	"sort"
	"strconv"
	"strings"

	"github.com/phobologic/vamdeps/internal/model"
)

const selfPrefix = "SELF"

// PathResolver finds the asset a reference points at by its path text.
// Its answer is the fallback handed to MatchByID and MatchByName.
type PathResolver struct {
	// packages by lowercase "author.name", highest version first.
	packages map[string][]*model.Package
	// free files by lowercase root-relative path, primary directory first.
	free map[string][]*model.FreeFile
}

// NewPathResolver indexes packages by identity and free files by path.
func NewPathResolver(free []*model.FreeFile, packages []*model.Package) *PathResolver {
	pr := &PathResolver{
		packages: make(map[string][]*model.Package),
		free:     make(map[string][]*model.FreeFile),
	}
	for _, p := range packages {
		id := strings.ToLower(p.Name().PackageID())
		pr.packages[id] = append(pr.packages[id], p)
	}
	for _, list := range pr.packages {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Name().Version != list[j].Name().Version {
				return list[i].Name().Version > list[j].Name().Version
			}
			return list[i].IsInPrimaryDir() && !list[j].IsInPrimaryDir()
		})
	}

	for _, f := range free {
		for _, n := range model.SelfAndChildren(f) {
			key := strings.ToLower(n.LocalPath())
			pr.free[key] = append(pr.free[key], n.(*model.FreeFile))
		}
	}
	for _, list := range pr.free {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].IsInPrimaryDir() && !list[j].IsInPrimaryDir()
		})
	}
	return pr
}

// Resolve returns the asset named by ref.Value, or nil.
//
// "SELF:/path" is looked up in the document's own package,
// "Author.Name.Version:/path" in the named package (exact version, else the
// highest available) and anything else among free files.
func (pr *PathResolver) Resolve(doc *model.Document, ref model.Reference) model.AssetNode {
	value := model.NormalizePath(strings.TrimSpace(ref.Value))
	if value == "" {
		return nil
	}

	prefix, rest, hasPrefix := strings.Cut(value, ":/")
	if !hasPrefix {
		return pr.freeFile(value)
	}

	if prefix == selfPrefix {
		if doc == nil {
			return nil
		}
		if p := doc.File().Package(); p != nil {
			return packageFile(p, rest)
		}
		return pr.freeFile(rest)
	}

	p := pr.findPackage(prefix)
	if p == nil {
		return nil
	}
	return packageFile(p, rest)
}

func (pr *PathResolver) freeFile(localPath string) model.AssetNode {
	list := pr.free[strings.ToLower(strings.TrimPrefix(localPath, "/"))]
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

func (pr *PathResolver) findPackage(reference string) *model.Package {
	idx := strings.LastIndex(reference, ".")
	if idx <= 0 {
		return nil
	}
	list := pr.packages[strings.ToLower(reference[:idx])]
	if len(list) == 0 {
		return nil
	}

	if version, err := strconv.Atoi(reference[idx+1:]); err == nil {
		for _, p := range list {
			if p.Name().Version == version {
				return p
			}
		}
	}
	// "latest", "minN" and missing exact versions all take the newest.
	return list[0]
}

func packageFile(p *model.Package, localPath string) model.AssetNode {
	f, ok := p.File(localPath)
	if !ok {
		return nil
	}
	return f
}
