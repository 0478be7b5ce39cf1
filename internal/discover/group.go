package discover

import (
	"path"
	"strings"

	"github.com/phobologic/vamdeps/internal/model"
)

// companions lists, per descriptor extension, the sibling extensions bundled
// under it. required companions are recorded as missing when absent.
var companions = map[string]struct {
	bundled  []string
	required []string
}{
	".vam":  {bundled: []string{".vaj", ".vab", ".jpg"}, required: []string{".vaj"}},
	".vmi":  {bundled: []string{".vmb"}, required: []string{".vmb"}},
	".json": {bundled: []string{".jpg"}},
	".vap":  {bundled: []string{".jpg"}},
}

type childAdder[T any] interface {
	model.AssetNode
	AddChild(child T)
}

// Group attaches companion files to their descriptor and returns the
// remaining top-level files in their original order.
func Group[T childAdder[T]](files []T) []T {
	byPath := make(map[string]int, len(files))
	for i, f := range files {
		byPath[strings.ToLower(f.LocalPath())] = i
	}
	claimed := make([]bool, len(files))
	for i, f := range files {
		rule, ok := companions[f.ExtLower()]
		if !ok || claimed[i] {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(f.LocalPath(), path.Ext(f.LocalPath())))
		for _, ext := range rule.bundled {
			j, found := byPath[stem+ext]
			if !found || j == i || claimed[j] {
				continue
			}
			if _, isParent := companions[files[j].ExtLower()]; isParent {
				continue
			}
			claimed[j] = true
			f.AddChild(files[j])
		}
		for _, ext := range rule.required {
			if _, found := byPath[stem+ext]; !found {
				f.AddMissingChild(f.FilenameWithoutExt() + ext)
			}
		}
	}

	out := make([]T, 0, len(files))
	for i, f := range files {
		if !claimed[i] {
			out = append(out, f)
		}
	}
	return out
}
