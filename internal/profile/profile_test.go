package profile

import (
	"testing"
	"time"

	"github.com/phobologic/vamdeps/internal/model"
)

func fixture(t *testing.T) ([]*model.Package, []*model.FreeFile) {
	t.Helper()
	name, err := model.ParsePackageName("Me.Outfit.2.var")
	if err != nil {
		t.Fatal(err)
	}
	pkg := model.NewPackage(name, "/vam/AddonPackages/Me.Outfit.2.var", "", true, 100, time.Time{})
	pkg.AddFile(model.NewPackageFile(pkg, "Custom/Clothing/Female/Me/a/a.vam", 10, time.Time{}))
	pkg.AddFile(model.NewPackageFile(pkg, "Saves/scene/demo.json", 10, time.Time{}))

	other, err := model.ParsePackageName("You.Hair.1.var")
	if err != nil {
		t.Fatal(err)
	}
	otherPkg := model.NewPackage(other, "/vam/AddonPackages/You.Hair.1.var", "", true, 100, time.Time{})
	otherPkg.AddFile(model.NewPackageFile(otherPkg, "Custom/Hair/Female/You/h.vam", 10, time.Time{}))

	scene := model.NewFreeFile("/vam/Saves/scene/Party.json", "Saves/scene/Party.json", 1, true, time.Time{}, "")
	thumb := model.NewFreeFile("/vam/Saves/scene/Party.jpg", "Saves/scene/Party.jpg", 1, true, time.Time{}, "")
	scene.AddChild(thumb)
	loose := model.NewFreeFile("/vam/Saves/scene/other.json", "Saves/scene/other.json", 1, true, time.Time{}, "")

	return []*model.Package{pkg, otherPkg}, []*model.FreeFile{scene, loose}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	packages, free := fixture(t)
	sel := Select(packages, free, []string{" OUTFIT ", "party", ""})

	if sel.Len() != 2 {
		t.Fatalf("Len = %d, want 2", sel.Len())
	}
	if !sel.Has("Me.Outfit.2") || !sel.Has("/vam/Saves/scene/Party.json") {
		t.Errorf("unexpected selection")
	}

	for _, f := range packages[0].AllFiles() {
		if !f.Preferred() {
			t.Errorf("%s should be preferred", f.LocalPath())
		}
	}
	for _, f := range packages[1].AllFiles() {
		if f.Preferred() {
			t.Errorf("%s should not be preferred", f.LocalPath())
		}
	}
	if !free[0].Preferred() || !free[0].Children()[0].Preferred() {
		t.Error("selected free file and its children should be preferred")
	}
	if free[1].Preferred() {
		t.Error("other.json should not be preferred")
	}
}

func TestSelectNoPatterns(t *testing.T) {
	t.Parallel()

	packages, free := fixture(t)
	sel := Select(packages, free, nil)
	if sel.Len() != 0 {
		t.Errorf("Len = %d, want 0", sel.Len())
	}
	if packages[0].Files()[0].Preferred() {
		t.Error("nothing should be preferred")
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	rm := &model.Report{
		Name: "vam",
		Packages: []model.PackageEntry{
			{Package: "Me.Outfit.2", Dependencies: []string{"You.Hair.1"}},
			{Package: "You.Hair.1"},
		},
		Free: []model.FreeEntry{
			{File: "/vam/Saves/scene/Party.json", Dependencies: []string{"Me.Outfit.2"}},
			{File: "/vam/Saves/scene/other.json"},
		},
		Unresolved: []model.UnresolvedEntry{
			{Owner: "Me.Outfit.2", Location: "Custom/x.vam"},
			{Owner: "You.Hair.1", Location: "Custom/y.vam"},
		},
	}

	packages, free := fixture(t)
	got := Filter(rm, Select(packages, free, []string{"outfit", "party"}))

	if len(got.Packages) != 1 || got.Packages[0].Package != "Me.Outfit.2" {
		t.Errorf("packages = %+v", got.Packages)
	}
	if len(got.Free) != 1 || got.Free[0].File != "/vam/Saves/scene/Party.json" {
		t.Errorf("free = %+v", got.Free)
	}
	if len(got.Unresolved) != 1 || got.Unresolved[0].Owner != "Me.Outfit.2" {
		t.Errorf("unresolved = %+v", got.Unresolved)
	}
	if got.Name != "vam" {
		t.Errorf("Name = %q", got.Name)
	}

	if Filter(rm, Select(packages, free, nil)) != rm {
		t.Error("empty selection should return the original report")
	}
	if Filter(rm, nil) != rm {
		t.Error("nil selection should return the original report")
	}
}
