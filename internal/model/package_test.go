package model

import (
	"errors"
	"testing"
	"time"
)

func newTestPackage(t *testing.T, filename string, primary bool, files ...string) *Package {
	t.Helper()
	name, err := ParsePackageName(filename)
	if err != nil {
		t.Fatalf("ParsePackageName(%q): %v", filename, err)
	}
	p := NewPackage(name, "/vam/AddonPackages/"+filename, "", primary, 1000, time.Time{})
	for _, f := range files {
		p.AddFile(NewPackageFile(p, f, 10, time.Time{}))
	}
	return p
}

func TestParsePackageName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    PackageName
		wantErr bool
	}{
		{"Me.Outfit.3.var", PackageName{"Me", "Outfit", 3, "Me.Outfit.3.var"}, false},
		{"/vam/AddonPackages/Me.Outfit.12.VAR", PackageName{"Me", "Outfit", 12, "Me.Outfit.12.VAR"}, false},
		{`C:\vam\AddonPackages\You.Hair.1.var`, PackageName{"You", "Hair", 1, "You.Hair.1.var"}, false},
		{"Me.Outfit.3", PackageName{"Me", "Outfit", 3, "Me.Outfit.3"}, false},
		{"Me.Outfit.latest.var", PackageName{}, true},
		{"Me.Outfit.var", PackageName{}, true},
		{"Me.Out.fit.1.var", PackageName{}, true},
		{".Outfit.1.var", PackageName{}, true},
		{"Me.Outfit.-1.var", PackageName{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePackageName(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidPackageName) {
					t.Errorf("err = %v, want ErrInvalidPackageName", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPackageNameString(t *testing.T) {
	t.Parallel()

	n := PackageName{Author: "Me", Name: "Outfit", Version: 3}
	if n.String() != "Me.Outfit.3" {
		t.Errorf("String() = %q", n.String())
	}
	if n.PackageID() != "Me.Outfit" {
		t.Errorf("PackageID() = %q", n.PackageID())
	}
}

func TestPackageFile(t *testing.T) {
	t.Parallel()

	p := newTestPackage(t, "Me.Outfit.3.var", true,
		"Custom/Clothing/Female/Me/top/top.vam",
		"Saves/scene/demo.json",
	)

	tests := []struct {
		path string
		ok   bool
	}{
		{"Custom/Clothing/Female/Me/top/top.vam", true},
		{"/custom/clothing/female/me/top/TOP.VAM", true},
		{`Saves\scene\demo.json`, true},
		{"Saves/scene/other.json", false},
	}
	for _, tt := range tests {
		f, ok := p.File(tt.path)
		if ok != tt.ok {
			t.Errorf("File(%q) ok = %v, want %v", tt.path, ok, tt.ok)
		}
		if ok && f.Package() != p {
			t.Errorf("File(%q) belongs to %v", tt.path, f.Package())
		}
	}

	f, _ := p.File("Saves/scene/demo.json")
	if f.FullPath() != "/vam/AddonPackages/Me.Outfit.3.var:/Saves/scene/demo.json" {
		t.Errorf("FullPath = %q", f.FullPath())
	}
	if !f.IsInPrimaryDir() {
		t.Error("packaged file should inherit the primary flag")
	}
}

func TestPackageType(t *testing.T) {
	t.Parallel()

	outfit := newTestPackage(t, "Me.Outfit.3.var", false,
		"Custom/Clothing/Female/Me/top/top.vam",
		"Saves/scene/demo.json",
	)
	if got := outfit.Type(); !got.Has(Cloth) || !got.Has(Scene) || !got.IsFemale() {
		t.Errorf("Type() = %v", got)
	}
	if outfit.IsMorphPack() {
		t.Error("outfit is not a morph pack")
	}

	morphs := newTestPackage(t, "Me.Morphs.1.var", false,
		"Custom/Atom/Person/Morphs/female/Me/a.vmi",
		"Custom/Atom/Person/Morphs/male/Me/b.vmi",
	)
	if !morphs.IsMorphPack() {
		t.Errorf("morph pack not detected, Type() = %v", morphs.Type())
	}

	empty := newTestPackage(t, "Me.Empty.1.var", false)
	if empty.IsMorphPack() {
		t.Error("empty package is not a morph pack")
	}
}

func TestPackageAllFiles(t *testing.T) {
	t.Parallel()

	p := newTestPackage(t, "Me.Outfit.3.var", false)
	vam := NewPackageFile(p, "Custom/Clothing/Female/Me/top/top.vam", 10, time.Time{})
	vaj := NewPackageFile(p, "Custom/Clothing/Female/Me/top/top.vaj", 5, time.Time{})
	vam.AddChild(vaj)
	p.AddFile(vam)

	if len(p.Files()) != 1 {
		t.Errorf("Files() = %d, want 1", len(p.Files()))
	}
	all := p.AllFiles()
	if len(all) != 2 || all[0] != vaj || all[1] != vam {
		t.Errorf("AllFiles() = %v", all)
	}
	if _, ok := p.File("Custom/Clothing/Female/Me/top/top.vaj"); !ok {
		t.Error("child should be found by File")
	}
}
