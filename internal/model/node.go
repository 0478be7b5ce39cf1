// Package model defines the asset, package and reference data structures
// shared by the scanner, the resolver and the dependency reducer.
package model

import (
	"path"
	"strings"
	"sync/atomic"
	"time"
)

// AssetNode is the capability set shared by loose files and files inside a
// package.
type AssetNode interface {
	FullPath() string
	LocalPath() string
	FilenameLower() string
	ExtLower() string
	FilenameWithoutExt() string

	Size() int64
	SizeWithChildren() int64
	Modified() time.Time
	IsInPrimaryDir() bool
	Type() AssetType

	InternalID() string
	MorphName() string
	Document() *Document
	SetDocument(doc *Document)

	Children() []AssetNode
	Parent() AssetNode
	MissingChildren() []string
	AddMissingChild(name string)

	Preferred() bool
	SetPreferred(v bool)
	UsageCount() uint32

	// Package returns the owning package, or nil for a free file.
	Package() *Package
	// Holder returns what this node's dependency weight is measured on:
	// the owning package for packaged files, the file itself otherwise.
	Holder() DependencyHolder

	incrementUsage()
	setParent(parent AssetNode)
}

type fileBase struct {
	fullPath           string
	localPath          string
	filenameLower      string
	extLower           string
	filenameWithoutExt string
	size               int64
	modified           time.Time
	primary            bool
	assetType          AssetType

	internalID string
	morphName  string
	dirty      bool
	document   *Document

	parent          AssetNode
	children        []AssetNode
	missingChildren []string

	preferred atomic.Bool
	usage     atomic.Uint32
}

func (f *fileBase) init(fullPath, localPath string, size int64, primary bool, modified time.Time) {
	local := NormalizePath(localPath)
	name := path.Base(local)
	ext := path.Ext(name)

	f.fullPath = NormalizePath(fullPath)
	f.localPath = local
	f.filenameLower = strings.ToLower(name)
	f.extLower = strings.ToLower(ext)
	f.filenameWithoutExt = strings.TrimSuffix(name, ext)
	f.size = size
	f.modified = modified
	f.primary = primary
	f.assetType = DetectType(local)
}

func (f *fileBase) FullPath() string           { return f.fullPath }
func (f *fileBase) LocalPath() string          { return f.localPath }
func (f *fileBase) FilenameLower() string      { return f.filenameLower }
func (f *fileBase) ExtLower() string           { return f.extLower }
func (f *fileBase) FilenameWithoutExt() string { return f.filenameWithoutExt }
func (f *fileBase) Size() int64                { return f.size }
func (f *fileBase) Modified() time.Time        { return f.modified }
func (f *fileBase) IsInPrimaryDir() bool       { return f.primary }
func (f *fileBase) Type() AssetType            { return f.assetType }
func (f *fileBase) Document() *Document        { return f.document }
func (f *fileBase) SetDocument(doc *Document)  { f.document = doc }
func (f *fileBase) Children() []AssetNode      { return f.children }
func (f *fileBase) Parent() AssetNode          { return f.parent }
func (f *fileBase) MissingChildren() []string  { return f.missingChildren }
func (f *fileBase) Preferred() bool            { return f.preferred.Load() }
func (f *fileBase) SetPreferred(v bool)        { f.preferred.Store(v) }
func (f *fileBase) UsageCount() uint32         { return f.usage.Load() }
func (f *fileBase) incrementUsage()            { f.usage.Add(1) }
func (f *fileBase) setParent(parent AssetNode) { f.parent = parent }

// InternalID is the UUID of a cloth or hair descriptor. It is empty for any
// other kind of file.
func (f *fileBase) InternalID() string {
	if !f.assetType.Has(ValidClothOrHair) {
		return ""
	}
	return f.internalID
}

// MorphName is the display name of a morph descriptor. It is empty for any
// other kind of file.
func (f *fileBase) MorphName() string {
	if !f.assetType.Has(ValidMorph) {
		return ""
	}
	return f.morphName
}

func (f *fileBase) SetInternalID(id string)  { f.internalID = id }
func (f *fileBase) SetMorphName(name string) { f.morphName = name }

// Dirty reports whether the file changed since the previous scan and must be
// re-read.
func (f *fileBase) Dirty() bool     { return f.dirty }
func (f *fileBase) SetDirty(v bool) { f.dirty = v }

// SizeWithChildren is the file size plus the recursive size of its children.
func (f *fileBase) SizeWithChildren() int64 {
	total := f.size
	for _, c := range f.children {
		total += c.SizeWithChildren()
	}
	return total
}

func (f *fileBase) AddMissingChild(name string) {
	f.missingChildren = append(f.missingChildren, name)
}

func (f *fileBase) addChild(self, child AssetNode) {
	f.children = append(f.children, child)
	child.setParent(self)
}

// FreeFile is a loose file found under a scanned root.
type FreeFile struct {
	fileBase

	softLinkPath string
	deps         dependencyCell
}

// NewFreeFile creates a loose file. softLinkPath is the resolved link target
// when the scanned path is a soft link, empty otherwise.
func NewFreeFile(fullPath, localPath string, size int64, primary bool, modified time.Time, softLinkPath string) *FreeFile {
	f := &FreeFile{softLinkPath: NormalizePath(softLinkPath)}
	f.init(fullPath, localPath, size, primary, modified)
	return f
}

// SourcePathIfSoftLink returns the link target, or "" for a regular file.
func (f *FreeFile) SourcePathIfSoftLink() string { return f.softLinkPath }

// AddChild bundles child with f. Both must come from the same root.
func (f *FreeFile) AddChild(child *FreeFile) { f.addChild(f, child) }

func (f *FreeFile) Package() *Package        { return nil }
func (f *FreeFile) Holder() DependencyHolder { return f }
func (f *FreeFile) String() string           { return f.fullPath }

// PackageFile is a file stored inside a Package.
type PackageFile struct {
	fileBase

	pkg *Package
}

// NewPackageFile creates a file belonging to pkg. It is not added to the
// package; call Package.AddFile or PackageFile.AddChild for that.
func NewPackageFile(pkg *Package, localPath string, size int64, modified time.Time) *PackageFile {
	full := pkg.FullPath() + ":/" + strings.TrimPrefix(NormalizePath(localPath), "/")
	f := &PackageFile{pkg: pkg}
	f.init(full, localPath, size, pkg.IsInPrimaryDir(), modified)
	return f
}

// AddChild bundles child with f inside the same package.
func (f *PackageFile) AddChild(child *PackageFile) { f.addChild(f, child) }

func (f *PackageFile) Package() *Package        { return f.pkg }
func (f *PackageFile) Holder() DependencyHolder { return f.pkg }
func (f *PackageFile) String() string           { return f.fullPath + " Package: " + f.pkg.Name().String() }

// SelfAndChildren returns every descendant of node followed by node itself.
func SelfAndChildren(node AssetNode) []AssetNode {
	var out []AssetNode
	walkSelfAndChildren(node, &out)
	return out
}

func walkSelfAndChildren(node AssetNode, out *[]AssetNode) {
	for _, c := range node.Children() {
		walkSelfAndChildren(c, out)
	}
	*out = append(*out, node)
}
