// Package discover finds loose files and packages under content roots.
package discover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/vamdeps/internal/model"
)

// IgnoreFile is the gitignore-style file read from the root of a content dir.
const IgnoreFile = ".assetignore"

// PackagesFolder holds the package archives of a content root.
const PackagesFolder = "AddonPackages"

// scanFolders are the loose-file folders of a content root.
var scanFolders = []string{"Custom", "Saves"}

// Scanner enumerates content roots.
type Scanner struct {
	log zerolog.Logger
}

// NewScanner creates a scanner logging to log.
func NewScanner(log zerolog.Logger) *Scanner {
	return &Scanner{log: log}
}

// FreeFiles returns the loose files under root's Custom and Saves folders,
// sorted by relative path with companion files bundled under their
// descriptor. primary marks the application's live directory.
// Hidden entries, paths matched by .assetignore and dangling soft links are
// skipped.
func (s *Scanner) FreeFiles(root string, primary bool) ([]*model.FreeFile, error) {
	gi := loadIgnore(root)

	var results []*model.FreeFile
	for _, folder := range scanFolders {
		dir := filepath.Join(root, folder)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}

		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				s.log.Debug().Err(err).Str("path", path).Msg("walk error")
				return nil // skip errors
			}

			name := d.Name()
			if d.IsDir() {
				if path != dir && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if gi != nil && gi.MatchesPath(rel) {
				return nil
			}

			f, ok := s.statFile(path, rel, primary, d)
			if ok {
				results = append(results, f)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].LocalPath() < results[j].LocalPath()
	})
	return Group(results), nil
}

// statFile builds a FreeFile, following soft links. Dangling links are
// skipped.
func (s *Scanner) statFile(path, rel string, primary bool, d os.DirEntry) (*model.FreeFile, bool) {
	var softLink string
	if d.Type()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			s.log.Debug().Err(err).Str("path", path).Msg("dangling soft link skipped")
			return nil, false
		}
		softLink = target
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return model.NewFreeFile(path, rel, info.Size(), primary, info.ModTime().UTC(), softLink), true
}

// Packages returns the packages under root's AddonPackages folder, sorted by
// path. Archives with malformed names or unreadable contents are logged and
// skipped.
func (s *Scanner) Packages(root string, primary bool) ([]*model.Package, error) {
	dir := filepath.Join(root, PackagesFolder)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, nil
	}
	gi := loadIgnore(root)

	var results []*model.Package
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".var") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err == nil && gi != nil && gi.MatchesPath(filepath.ToSlash(rel)) {
			return nil
		}

		pkg, err := s.openPackage(path, primary, d)
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("package skipped")
			return nil
		}
		if pkg != nil {
			results = append(results, pkg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].FullPath() < results[j].FullPath()
	})
	return results, nil
}

func (s *Scanner) openPackage(path string, primary bool, d os.DirEntry) (*model.Package, error) {
	name, err := model.ParsePackageName(filepath.Base(path))
	if err != nil {
		return nil, err
	}

	var softLink string
	if d.Type()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}
		softLink = target
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	pkg := model.NewPackage(name, path, softLink, primary, info.Size(), info.ModTime().UTC())
	if err := listArchive(pkg); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name.Filename, err)
	}
	return pkg, nil
}

func loadIgnore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil
	}
	return gi
}

// IsDocument reports whether node is parsed for references.
func IsDocument(node model.AssetNode) bool {
	switch node.ExtLower() {
	case ".vap":
		return true
	case ".json":
		return node.FilenameLower() != "meta.json"
	}
	return false
}
