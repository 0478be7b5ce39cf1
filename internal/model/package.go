package model

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrInvalidPackageName is returned when a package file name does not follow
// the Author.Name.Version.var convention.
var ErrInvalidPackageName = errors.New("invalid package name")

// PackageName identifies a package by author, name and version.
type PackageName struct {
	Author   string
	Name     string
	Version  int
	Filename string
}

// ParsePackageName parses "Author.Name.Version.var" (the extension is optional).
func ParsePackageName(filename string) (PackageName, error) {
	base := path.Base(NormalizePath(filename))
	trimmed := base
	if strings.EqualFold(path.Ext(base), ".var") {
		trimmed = base[:len(base)-len(".var")]
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return PackageName{}, fmt.Errorf("%w: %q", ErrInvalidPackageName, filename)
	}
	version, err := strconv.Atoi(parts[2])
	if err != nil || version < 0 {
		return PackageName{}, fmt.Errorf("%w: %q: bad version", ErrInvalidPackageName, filename)
	}

	return PackageName{
		Author:   parts[0],
		Name:     parts[1],
		Version:  version,
		Filename: base,
	}, nil
}

// PackageID is the version-less identity "Author.Name".
func (n PackageName) PackageID() string { return n.Author + "." + n.Name }

func (n PackageName) String() string {
	return fmt.Sprintf("%s.%s.%d", n.Author, n.Name, n.Version)
}

// Package is an archive bundling files that travels as one dependency unit.
type Package struct {
	name         PackageName
	fullPath     string
	softLinkPath string
	primary      bool
	size         int64
	modified     time.Time

	files []*PackageFile

	typeOnce  sync.Once
	assetType AssetType

	docsOnce  sync.Once
	documents []*Document

	filesOnce sync.Once
	filesDict map[string]*PackageFile

	deps dependencyCell
}

// NewPackage creates an empty package. softLinkPath is the link target when
// fullPath is a soft link, empty otherwise.
func NewPackage(name PackageName, fullPath, softLinkPath string, primary bool, size int64, modified time.Time) *Package {
	return &Package{
		name:         name,
		fullPath:     NormalizePath(fullPath),
		softLinkPath: NormalizePath(softLinkPath),
		primary:      primary,
		size:         size,
		modified:     modified,
	}
}

func (p *Package) Name() PackageName            { return p.name }
func (p *Package) FullPath() string             { return p.fullPath }
func (p *Package) SourcePathIfSoftLink() string { return p.softLinkPath }
func (p *Package) IsInPrimaryDir() bool         { return p.primary }
func (p *Package) Size() int64                  { return p.size }
func (p *Package) Modified() time.Time          { return p.modified }
func (p *Package) String() string               { return p.fullPath }

// Files returns the top-level files; bundled children hang off them.
func (p *Package) Files() []*PackageFile { return p.files }

// AddFile appends a top-level file. All files must be added before any of
// the memoised accessors are used.
func (p *Package) AddFile(f *PackageFile) { p.files = append(p.files, f) }

// AllFiles returns every file of the package including bundled children.
func (p *Package) AllFiles() []*PackageFile {
	var out []*PackageFile
	for _, f := range p.files {
		for _, n := range SelfAndChildren(f) {
			out = append(out, n.(*PackageFile))
		}
	}
	return out
}

// Type is the union of the types of every contained file.
func (p *Package) Type() AssetType {
	p.typeOnce.Do(func() {
		for _, f := range p.AllFiles() {
			p.assetType |= f.Type()
		}
	})
	return p.assetType
}

// IsMorphPack reports whether the package contains nothing but morphs.
func (p *Package) IsMorphPack() bool {
	t := p.Type() &^ genderMask
	return t != Unknown && t&^Morph == Unknown
}

// Documents returns the parsed documents of the contained files.
func (p *Package) Documents() []*Document {
	p.docsOnce.Do(func() {
		for _, f := range p.AllFiles() {
			if doc := f.Document(); doc != nil {
				p.documents = append(p.documents, doc)
			}
		}
	})
	return p.documents
}

// File looks up a contained file by its package-relative path, ignoring case.
func (p *Package) File(localPath string) (*PackageFile, bool) {
	p.filesOnce.Do(func() {
		p.filesDict = make(map[string]*PackageFile)
		for _, f := range p.AllFiles() {
			key := strings.ToLower(f.LocalPath())
			if _, exists := p.filesDict[key]; !exists {
				p.filesDict[key] = f
			}
		}
	})
	f, ok := p.filesDict[strings.ToLower(strings.TrimPrefix(NormalizePath(localPath), "/"))]
	return f, ok
}
