package model

import (
	"path"
	"strings"
)

// AssetType is a bitmask classifying a file by category and gender.
type AssetType uint32

const (
	Cloth AssetType = 1 << iota
	Hair
	Morph
	Scene
	Preset
	Script
	Texture
	Other

	Female
	Male
	Neutral
)

const (
	Unknown AssetType = 0

	ValidClothOrHair        = Cloth | Hair
	ValidMorph              = Morph
	ValidClothOrHairOrMorph = Cloth | Hair | Morph

	genderMask = Female | Male | Neutral
)

var typeNames = []struct {
	flag AssetType
	name string
}{
	{Cloth, "cloth"},
	{Hair, "hair"},
	{Morph, "morph"},
	{Scene, "scene"},
	{Preset, "preset"},
	{Script, "script"},
	{Texture, "texture"},
	{Other, "other"},
	{Female, "female"},
	{Male, "male"},
	{Neutral, "neutral"},
}

// Has reports whether any of the bits in mask are set.
func (t AssetType) Has(mask AssetType) bool { return t&mask != 0 }

// IsFemale reports whether the female gender bit is set.
func (t AssetType) IsFemale() bool { return t&Female != 0 }

// IsMale reports whether the male gender bit is set.
func (t AssetType) IsMale() bool { return t&Male != 0 }

// Gender returns only the gender bits of t.
func (t AssetType) Gender() AssetType { return t & genderMask }

// GenderBucket collapses the gender bits into 0 (unknown), 1 (male) or 2 (female).
// Female wins when both bits are present.
func (t AssetType) GenderBucket() uint8 {
	switch {
	case t.IsFemale():
		return 2
	case t.IsMale():
		return 1
	default:
		return 0
	}
}

func (t AssetType) String() string {
	if t == Unknown {
		return "unknown"
	}
	var parts []string
	for _, tn := range typeNames {
		if t&tn.flag != 0 {
			parts = append(parts, tn.name)
		}
	}
	return strings.Join(parts, "|")
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tif":  {},
	".tga":  {},
}

// DetectType classifies a root-relative path by extension and folder layout.
func DetectType(localPath string) AssetType {
	lower := strings.ToLower(NormalizePath(localPath))
	ext := path.Ext(lower)

	switch ext {
	case ".vam", ".vaj", ".vab":
		var t AssetType
		switch {
		case strings.Contains(lower, "custom/clothing/"):
			t = Cloth
		case strings.Contains(lower, "custom/hair/"):
			t = Hair
		default:
			return Other
		}
		return t | genderFromFolder(lower)
	case ".vmi", ".vmb":
		if !strings.Contains(lower, "/morphs/") {
			return Other
		}
		return Morph | genderFromFolder(lower)
	case ".json":
		if strings.HasPrefix(lower, "saves/scene/") || strings.Contains(lower, "/saves/scene/") {
			return Scene
		}
		return Other
	case ".vap":
		return Preset
	case ".cs", ".cslist":
		return Script
	}

	if _, ok := imageExtensions[ext]; ok {
		return Texture
	}
	return Other
}

func genderFromFolder(lower string) AssetType {
	// "female" contains "male", so it has to be tested first.
	switch {
	case strings.Contains(lower, "/female"):
		return Female
	case strings.Contains(lower, "/male"):
		return Male
	default:
		return Neutral
	}
}

// NormalizePath converts Windows separators to forward slashes.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
