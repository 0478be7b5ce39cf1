// Package parse extracts asset references from scene and preset documents.
package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/phobologic/vamdeps/internal/model"
)

// assetExts are the extensions a string must end with to count as a path
// reference.
var assetExts = map[string]bool{
	".vam": true, ".vaj": true, ".vab": true,
	".vmi": true, ".vmb": true,
	".json": true, ".vap": true,
	".cs": true, ".cslist": true,
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true,
	".assetbundle": true, ".scene": true,
	".mp3": true, ".wav": true, ".ogg": true,
}

// node is a decoded JSON value that keeps object members in document order.
type node struct {
	fields []field // objects
	items  []node  // arrays
	str    string
	isStr  bool
	isObj  bool
}

type field struct {
	key string
	val node
}

func (n node) get(key string) (string, bool) {
	for _, f := range n.fields {
		if f.key == key && f.val.isStr {
			return f.val.str, true
		}
	}
	return "", false
}

// ExtractReferences returns the references of a document in the order they
// appear. Entries with an internalId become cloth or hair references, morph
// entries naming a .vmi become morph references, and any other string that
// looks like an asset path becomes a path reference.
func ExtractReferences(source []byte) ([]model.Reference, error) {
	if len(bytes.TrimSpace(source)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()
	root, err := readNode(dec)
	if err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	var refs []model.Reference
	walk(root, &refs)
	return refs, nil
}

func readNode(dec *json.Decoder) (node, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return node{}, io.ErrUnexpectedEOF
		}
		return node{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := node{isObj: true}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return node{}, err
				}
				key, _ := keyTok.(string)
				val, err := readNode(dec)
				if err != nil {
					return node{}, err
				}
				n.fields = append(n.fields, field{key: key, val: val})
			}
			_, err := dec.Token()
			return n, err
		case '[':
			var n node
			for dec.More() {
				val, err := readNode(dec)
				if err != nil {
					return node{}, err
				}
				n.items = append(n.items, val)
			}
			_, err := dec.Token()
			return n, err
		}
	case string:
		return node{str: t, isStr: true}, nil
	}
	return node{}, nil
}

func walk(n node, refs *[]model.Reference) {
	if n.isStr {
		if looksLikeAssetPath(n.str) {
			*refs = append(*refs, newReference(n.str))
		}
		return
	}
	for _, item := range n.items {
		walk(item, refs)
	}
	if !n.isObj {
		return
	}

	// consumed holds the member whose value became a typed reference.
	consumed := ""
	if internalID, ok := n.get("internalId"); ok && strings.TrimSpace(internalID) != "" {
		id, _ := n.get("id")
		ref := newReference(id)
		ref.InternalID = strings.TrimSpace(internalID)
		*refs = append(*refs, ref)
		consumed = "id"
	} else if uid, ok := n.get("uid"); ok && strings.EqualFold(path.Ext(uid), ".vmi") {
		if name, ok := n.get("name"); ok && strings.TrimSpace(name) != "" {
			ref := newReference(uid)
			ref.MorphName = strings.TrimSpace(name)
			*refs = append(*refs, ref)
			consumed = "uid"
		}
	}

	for _, f := range n.fields {
		if f.key == consumed || f.key == "internalId" {
			continue
		}
		walk(f.val, refs)
	}
}

func newReference(value string) model.Reference {
	value = strings.TrimSpace(value)
	location := model.NormalizePath(value)
	if _, rest, ok := strings.Cut(location, ":/"); ok {
		location = rest
	}
	location = strings.TrimPrefix(location, "/")
	return model.Reference{
		Value:             value,
		EstimatedType:     model.DetectType(location),
		EstimatedLocation: location,
	}
}

func looksLikeAssetPath(s string) bool {
	s = model.NormalizePath(strings.TrimSpace(s))
	if !assetExts[strings.ToLower(path.Ext(s))] {
		return false
	}
	if strings.Contains(s, ":/") {
		return true
	}
	lower := strings.ToLower(strings.TrimPrefix(s, "/"))
	return strings.HasPrefix(lower, "custom/") || strings.HasPrefix(lower, "saves/")
}
