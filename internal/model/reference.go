package model

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidReference is the kind of every InvalidReferenceError.
var ErrInvalidReference = errors.New("invalid reference")

// InvalidReferenceError reports a reference whose lookup key is empty.
type InvalidReferenceError struct {
	Reference Reference
	Msg       string
}

func (e *InvalidReferenceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %q", ErrInvalidReference, e.Reference.Value)
	}
	return fmt.Sprintf("%s: %s: %q", ErrInvalidReference, e.Msg, e.Reference.Value)
}

func (e *InvalidReferenceError) Unwrap() error { return ErrInvalidReference }

// Reference is a pointer to another asset found inside a document.
type Reference struct {
	// Value is the raw text of the reference, usually a path.
	Value string
	// InternalID is the estimated UUID of a cloth or hair item.
	InternalID string
	// MorphName is the estimated display name of a morph.
	MorphName string
	// EstimatedType is the type guessed from the reference text.
	EstimatedType AssetType
	// EstimatedLocation is where the referenced file is expected to live.
	EstimatedLocation string
}

// ResolvedReference pairs a reference with the asset it points at.
type ResolvedReference struct {
	Reference
	Target AssetNode
}

// NewResolvedReference binds ref to target.
func NewResolvedReference(target AssetNode, ref Reference) ResolvedReference {
	return ResolvedReference{Reference: ref, Target: target}
}

// Document is the parsed form of a scene, preset or descriptor file.
type Document struct {
	file AssetNode

	mu       sync.Mutex
	resolved []ResolvedReference
	missing  []Reference
}

// NewDocument creates a document for file and attaches it to the file.
func NewDocument(file AssetNode) *Document {
	doc := &Document{file: file}
	file.SetDocument(doc)
	return doc
}

// File is the asset this document was parsed from.
func (d *Document) File() AssetNode { return d.file }

// Preferred reports whether the operator wants this document's file.
func (d *Document) Preferred() bool { return d.file.Preferred() }

// AddReference records a resolved reference and bumps the target's usage count.
func (d *Document) AddReference(ref ResolvedReference) {
	ref.Target.incrementUsage()
	d.mu.Lock()
	d.resolved = append(d.resolved, ref)
	d.mu.Unlock()
}

// AddMissing records a reference that could not be resolved.
func (d *Document) AddMissing(ref Reference) {
	d.mu.Lock()
	d.missing = append(d.missing, ref)
	d.mu.Unlock()
}

// References returns a snapshot of the resolved references.
func (d *Document) References() []ResolvedReference {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ResolvedReference, len(d.resolved))
	copy(out, d.resolved)
	return out
}

// Missing returns a snapshot of the unresolved references.
func (d *Document) Missing() []Reference {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Reference, len(d.missing))
	copy(out, d.missing)
	return out
}

func (d *Document) String() string { return d.file.FullPath() }
