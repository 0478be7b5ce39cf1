package discover

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phobologic/vamdeps/internal/model"
)

// maxIdentitySize bounds how much of a descriptor is read for its identity.
const maxIdentitySize = 4 << 20

// archivePath is where the package bytes actually live.
func archivePath(pkg *model.Package) string {
	if src := pkg.SourcePathIfSoftLink(); src != "" {
		return src
	}
	return pkg.FullPath()
}

// listArchive adds every archive entry to pkg, grouping bundled files and
// reading the identity of cloth, hair and morph descriptors.
func listArchive(pkg *model.Package) error {
	zr, err := zip.OpenReader(archivePath(pkg))
	if err != nil {
		return err
	}
	defer zr.Close()

	var files []*model.PackageFile
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		f := model.NewPackageFile(pkg, entry.Name, int64(entry.UncompressedSize64), entry.Modified.UTC())
		if needsIdentity(f) {
			id, err := readEntryIdentity(entry, f.ExtLower())
			if err != nil {
				return fmt.Errorf("%s: %w", entry.Name, err)
			}
			setIdentity(f, id)
		}
		files = append(files, f)
	}

	for _, f := range Group(files) {
		pkg.AddFile(f)
	}
	return nil
}

func readEntryIdentity(entry *zip.File, ext string) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return ReadIdentity(rc, ext)
}

// ReadPackageDocuments calls fn with the contents of every document file in
// pkg. The archive is opened once.
func ReadPackageDocuments(pkg *model.Package, fn func(*model.PackageFile, []byte) error) error {
	zr, err := zip.OpenReader(archivePath(pkg))
	if err != nil {
		return err
	}
	defer zr.Close()

	entries := make(map[string]*zip.File, len(zr.File))
	for _, e := range zr.File {
		entries[strings.ToLower(model.NormalizePath(e.Name))] = e
	}

	for _, f := range pkg.AllFiles() {
		if !IsDocument(f) {
			continue
		}
		entry, ok := entries[strings.ToLower(f.LocalPath())]
		if !ok {
			continue
		}
		data, err := readEntry(entry)
		if err != nil {
			return fmt.Errorf("%s: %w", f.LocalPath(), err)
		}
		if err := fn(f, data); err != nil {
			return err
		}
	}
	return nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ReadFreeFile returns the contents of a loose file, following its soft link.
func ReadFreeFile(f *model.FreeFile) ([]byte, error) {
	p := f.SourcePathIfSoftLink()
	if p == "" {
		p = f.FullPath()
	}
	return os.ReadFile(p)
}

// LoadIdentities reads the identity of descriptors among files (and their
// children). With cached set only files marked dirty by the scan cache are
// read; otherwise every descriptor without an identity is. Unreadable or
// malformed descriptors are logged and keep an empty identity. It returns the
// number of descriptors read.
func (s *Scanner) LoadIdentities(files []*model.FreeFile, cached bool) int {
	read := 0
	for _, top := range files {
		for _, n := range model.SelfAndChildren(top) {
			f := n.(*model.FreeFile)
			if !needsIdentity(f) {
				continue
			}
			if cached && !f.Dirty() {
				continue
			}
			if !cached && (f.InternalID() != "" || f.MorphName() != "") {
				continue
			}
			data, err := ReadFreeFile(f)
			if err != nil {
				s.log.Warn().Err(err).Str("path", f.FullPath()).Msg("descriptor unreadable")
				continue
			}
			id, err := ReadIdentity(bytes.NewReader(data), f.ExtLower())
			if err != nil {
				s.log.Warn().Err(err).Str("path", f.FullPath()).Msg("descriptor malformed")
				continue
			}
			setIdentity(f, id)
			read++
		}
	}
	return read
}

type identitySetter interface {
	model.AssetNode
	SetInternalID(string)
	SetMorphName(string)
}

func needsIdentity(n model.AssetNode) bool {
	switch n.ExtLower() {
	case ".vam":
		return n.Type().Has(model.ValidClothOrHair)
	case ".vmi":
		return n.Type().Has(model.ValidMorph)
	}
	return false
}

func setIdentity(n identitySetter, id string) {
	switch n.ExtLower() {
	case ".vam":
		n.SetInternalID(id)
	case ".vmi":
		n.SetMorphName(id)
	}
}

type descriptor struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
}

// ReadIdentity extracts the UUID of a .vam descriptor or the display name of
// a .vmi descriptor. Other extensions yield "".
func ReadIdentity(r io.Reader, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if ext != ".vam" && ext != ".vmi" {
		return "", nil
	}

	var d descriptor
	if err := json.NewDecoder(io.LimitReader(r, maxIdentitySize)).Decode(&d); err != nil {
		if err == io.EOF {
			return "", nil
		}
		return "", fmt.Errorf("decoding descriptor: %w", err)
	}
	if ext == ".vam" {
		return strings.TrimSpace(d.UID), nil
	}
	return strings.TrimSpace(d.DisplayName), nil
}
